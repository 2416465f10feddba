package biometric

import (
	"context"
	"image"
	"math"

	"github.com/baechuer/biometric-auth/internal/domain"
)

const (
	fpSide      = 128
	fpBlock     = 16
	fpBlocks    = fpSide / fpBlock
	fpMinEnergy = 400.0 // mean squared gradient per pixel for a ridge block
	fpMinBlocks = 4
)

// FingerprintExtractor describes a fingerprint sample by its local ridge
// orientation field: for every block it stores the doubled-angle orientation
// vector weighted by coherence.
type FingerprintExtractor struct{}

func NewFingerprintExtractor() *FingerprintExtractor { return &FingerprintExtractor{} }

func (FingerprintExtractor) Modality() domain.Modality { return domain.ModalityFingerprint }

func (FingerprintExtractor) Formats() []string {
	return []string{FormatPNG, FormatBMP, FormatJPEG, FormatWebP}
}

func (FingerprintExtractor) Extract(ctx context.Context, ev domain.Evidence) (Extraction, error) {
	format := NormalizeFormat(ev.Format)
	if format == "" {
		format, _ = DetectFormat(ev.Data)
	}
	if format == FormatGIF {
		return Extraction{}, domain.ErrUnsupportedEvidenceFormat(format)
	}
	frames, err := decodeFrames(ev.Data, format)
	if err != nil {
		return Extraction{}, err
	}
	img := frames[0]
	if b := img.Bounds(); min(b.Dx(), b.Dy()) < fpBlock*2 {
		return Extraction{}, domain.ErrNoSignalDetected(domain.ModalityFingerprint)
	}

	g := grayscale(img, fpSide)
	emb := make(Embedding, fpBlocks*fpBlocks*2)
	var (
		foreground int
		coherence  float64
	)
	for by := 0; by < fpBlocks; by++ {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}
		for bx := 0; bx < fpBlocks; bx++ {
			gxx, gxy, energy, n := blockMoments(g, bx*fpBlock, by*fpBlock)
			if n == 0 || energy/float64(n) < fpMinEnergy {
				continue
			}
			foreground++
			i := (by*fpBlocks + bx) * 2
			emb[i] = gxx / energy
			emb[i+1] = gxy / energy
			coherence += math.Hypot(emb[i], emb[i+1])
		}
	}
	if foreground < fpMinBlocks || !normalize(emb) {
		return Extraction{}, domain.ErrNoSignalDetected(domain.ModalityFingerprint)
	}

	coverage := float64(foreground) / float64(fpBlocks*fpBlocks)
	return Extraction{
		Embedding: emb,
		Quality:   clamp01(coverage * coherence / float64(foreground)),
		Frames:    1,
	}, nil
}

// blockMoments accumulates the squared-gradient moments of one block using a
// Sobel operator; border pixels of the image are skipped.
func blockMoments(g *image.Gray, x0, y0 int) (gxx, gxy, energy float64, n int) {
	at := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }
	for y := max(y0, 1); y < min(y0+fpBlock, fpSide-1); y++ {
		for x := max(x0, 1); x < min(x0+fpBlock, fpSide-1); x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			gxx += gx*gx - gy*gy
			gxy += 2 * gx * gy
			energy += gx*gx + gy*gy
			n++
		}
	}
	return gxx, gxy, energy, n
}
