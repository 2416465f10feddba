package biometric

import (
	"context"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/baechuer/biometric-auth/internal/domain"
)

const (
	faceEmbedSide   = 32
	faceQualitySide = 128
	// Frames flatter than this (intensity std-dev) carry no face signal.
	faceFlatStd = 3.0
)

// FaceExtractor builds an appearance embedding from the central region of a
// still image or the sharpest frame of a short clip.
type FaceExtractor struct {
	// MinSide is the crop side (pixels) that earns full resolution credit.
	MinSide int
	// Workers bounds parallel frame analysis; zero means GOMAXPROCS.
	Workers int
}

func NewFaceExtractor() *FaceExtractor {
	return &FaceExtractor{MinSide: 160}
}

func (f *FaceExtractor) Modality() domain.Modality { return domain.ModalityFace }

func (f *FaceExtractor) Formats() []string {
	return []string{FormatJPEG, FormatPNG, FormatGIF, FormatWebP, FormatBMP}
}

type faceFrame struct {
	embedding Embedding
	quality   float64
	ok        bool
}

func (f *FaceExtractor) Extract(ctx context.Context, ev domain.Evidence) (Extraction, error) {
	format := NormalizeFormat(ev.Format)
	if format == "" {
		format, _ = DetectFormat(ev.Data)
	}
	frames, err := decodeFrames(ev.Data, format)
	if err != nil {
		return Extraction{}, err
	}

	results := make([]faceFrame, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i, fr := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = f.analyse(fr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Extraction{}, err
	}

	best := -1
	for i, r := range results {
		if r.ok && (best < 0 || r.quality > results[best].quality) {
			best = i
		}
	}
	if best < 0 {
		return Extraction{}, domain.ErrNoSignalDetected(domain.ModalityFace)
	}
	return Extraction{
		Embedding: results[best].embedding,
		Quality:   results[best].quality,
		Frames:    len(frames),
	}, nil
}

func (f *FaceExtractor) analyse(img image.Image) faceFrame {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side < faceEmbedSide {
		return faceFrame{}
	}

	work := grayscale(img, faceQualitySide)
	_, std := meanStd(work)
	if std < faceFlatStd {
		return faceFrame{}
	}

	small := grayscale(img, faceEmbedSide)
	mean, _ := meanStd(small)
	emb := make(Embedding, len(small.Pix))
	for i, p := range small.Pix {
		emb[i] = float64(p) - mean
	}
	if !normalize(emb) {
		return faceFrame{}
	}

	minSide := f.MinSide
	if minSide <= 0 {
		minSide = 160
	}
	resolution := clamp01(float64(side) / float64(minSide))
	contrast := clamp01(std / 50)
	sharpness := clamp01(laplacianVariance(work) / 300)

	return faceFrame{
		embedding: emb,
		quality:   clamp01(0.3*resolution + 0.35*contrast + 0.35*sharpness),
		ok:        true,
	}
}
