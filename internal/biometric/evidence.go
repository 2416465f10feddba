package biometric

import (
	"bytes"
	"slices"
	"strings"

	"github.com/baechuer/biometric-auth/internal/domain"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
	FormatBMP  = "bmp"
)

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	magicGIF  = []byte("GIF8")
	magicRIFF = []byte("RIFF")
	magicBMP  = []byte("BM")
)

// DetectFormat sniffs the container format from magic bytes.
func DetectFormat(data []byte) (string, bool) {
	if len(data) < 12 {
		return "", false
	}
	switch {
	case bytes.HasPrefix(data, magicJPEG):
		return FormatJPEG, true
	case bytes.HasPrefix(data, magicPNG):
		return FormatPNG, true
	case bytes.HasPrefix(data, magicGIF):
		return FormatGIF, true
	case bytes.HasPrefix(data, magicRIFF) && string(data[8:12]) == "WEBP":
		return FormatWebP, true
	case bytes.HasPrefix(data, magicBMP):
		return FormatBMP, true
	}
	return "", false
}

// NormalizeFormat lower-cases a declared format and folds common aliases.
func NormalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	f = strings.TrimPrefix(f, "image/")
	if f == "jpg" {
		return FormatJPEG
	}
	return f
}

// DefaultMaxPixels bounds the decoded area of a still image (4096x4096).
const DefaultMaxPixels = 4096 * 4096

// clipPixelFactor is how many MaxPixels a whole clip may decode to, counting
// every frame plus the sampled snapshots.
const clipPixelFactor = 4

// Limits bounds evidence before any decoding happens. Zero MaxPixels means
// DefaultMaxPixels, which is also the ceiling extractors enforce; zero
// MaxBytes disables the byte check.
type Limits struct {
	MaxBytes  int
	MaxPixels int
}

func (l Limits) maxPixels() int {
	if l.MaxPixels > 0 {
		return l.MaxPixels
	}
	return DefaultMaxPixels
}

// CheckEvidence rejects empty, oversized, unsupported or mislabelled
// evidence. It runs before any extractor sees the bytes and returns the
// effective format. Dimensions are read from the container headers only, so
// a small file declaring a huge canvas is refused without allocating it.
func CheckEvidence(ev domain.Evidence, lim Limits, supported []string) (string, error) {
	if len(ev.Data) == 0 {
		return "", domain.ErrEvidenceMalformed("empty")
	}
	if lim.MaxBytes > 0 && len(ev.Data) > lim.MaxBytes {
		return "", domain.ErrEvidenceTooLarge(lim.MaxBytes)
	}

	detected, ok := DetectFormat(ev.Data)
	if !ok {
		return "", domain.ErrEvidenceMalformed("unrecognised container")
	}

	declared := NormalizeFormat(ev.Format)
	if declared == "" {
		declared = detected
	}
	if !slices.Contains(supported, declared) {
		return "", domain.ErrUnsupportedEvidenceFormat(declared)
	}
	if declared != detected {
		return "", domain.ErrEvidenceMalformed("declared format " + declared + " but content is " + detected)
	}
	if err := checkDimensions(ev.Data, declared, lim.maxPixels()); err != nil {
		return "", err
	}
	return declared, nil
}

// checkDimensions enforces the pixel budget from headers alone.
func checkDimensions(data []byte, format string, maxPixels int) error {
	if format == FormatGIF {
		layout, err := scanGIF(data)
		if err != nil {
			return err
		}
		screen := layout.width * layout.height
		if screen > maxPixels {
			return domain.ErrEvidencePixels(layout.width, layout.height, maxPixels)
		}
		sampled := min(len(layout.frames), maxClipFrames)
		if layout.framePixels()+sampled*screen > clipPixelFactor*maxPixels {
			return domain.ErrEvidencePixels(layout.width, layout.height, maxPixels)
		}
		return nil
	}

	cfg, err := decodeConfig(data, format)
	if err != nil {
		return domain.ErrEvidenceMalformed(err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return domain.ErrEvidenceMalformed("image has no pixels")
	}
	if cfg.Width*cfg.Height > maxPixels {
		return domain.ErrEvidencePixels(cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}
