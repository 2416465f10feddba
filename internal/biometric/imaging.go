package biometric

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// maxClipFrames caps how many frames of an animated clip are inspected.
const maxClipFrames = 30

func decodeConfig(data []byte, format string) (image.Config, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG:
		return jpeg.DecodeConfig(r)
	case FormatPNG:
		return png.DecodeConfig(r)
	case FormatWebP:
		return webp.DecodeConfig(r)
	case FormatBMP:
		return bmp.DecodeConfig(r)
	case FormatGIF:
		return gif.DecodeConfig(r)
	}
	return image.Config{}, domain.ErrUnsupportedEvidenceFormat(format)
}

// decodeFrames decodes still images into one frame and animated GIF clips
// into up to maxClipFrames composited frames, sampled evenly. It applies
// the DefaultMaxPixels budget itself, so extractors are safe to call
// without CheckEvidence.
func decodeFrames(data []byte, format string) ([]image.Image, error) {
	if err := checkDimensions(data, format, DefaultMaxPixels); err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatGIF:
		return decodeClip(r)
	default:
		return nil, domain.ErrUnsupportedEvidenceFormat(format)
	}
	if err != nil {
		return nil, domain.ErrEvidenceMalformed(err.Error())
	}
	return []image.Image{img}, nil
}

func decodeClip(r *bytes.Reader) ([]image.Image, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, domain.ErrEvidenceMalformed(err.Error())
	}
	if len(g.Image) == 0 {
		return nil, domain.ErrEvidenceMalformed("clip has no frames")
	}

	step := (len(g.Image) + maxClipFrames - 1) / maxClipFrames
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}

	// Frames may be partial updates; composite them onto a running canvas.
	// Snapshots are kept in grayscale, which is all the extractors read.
	canvas := image.NewRGBA(bounds)
	frames := make([]image.Image, 0, min(len(g.Image), maxClipFrames))
	for i, fr := range g.Image {
		draw.Draw(canvas, fr.Bounds(), fr, fr.Bounds().Min, draw.Over)
		if i%step == 0 && len(frames) < maxClipFrames {
			snap := image.NewGray(bounds)
			draw.Draw(snap, bounds, canvas, bounds.Min, draw.Src)
			frames = append(frames, snap)
		}
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalBackground {
			draw.Draw(canvas, fr.Bounds(), image.Transparent, image.Point{}, draw.Src)
		}
	}
	return frames, nil
}

// grayscale center-crops img to a square and resamples it to side×side.
func grayscale(img image.Image, side int) *image.Gray {
	b := img.Bounds()
	sq := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-sq)/2
	y0 := b.Min.Y + (b.Dy()-sq)/2
	crop := image.Rect(x0, y0, x0+sq, y0+sq)

	dst := image.NewGray(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}

// meanStd returns the mean and standard deviation of the pixel intensities.
func meanStd(g *image.Gray) (float64, float64) {
	n := float64(len(g.Pix))
	if n == 0 {
		return 0, 0
	}
	var sum, sq float64
	for _, p := range g.Pix {
		v := float64(p)
		sum += v
		sq += v * v
	}
	mean := sum / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// laplacianVariance is a focus measure: blurred frames have a low value.
func laplacianVariance(g *image.Gray) float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	at := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }

	var sum, sq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			sum += v
			sq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	return sq/float64(n) - mean*mean
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// normalize scales v to unit length in place and reports whether it had
// any magnitude.
func normalize(v []float64) bool {
	var n float64
	for _, x := range v {
		n += x * x
	}
	if n == 0 {
		return false
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] /= n
	}
	return true
}
