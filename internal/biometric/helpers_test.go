package biometric

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// rampImage is a linear ramp along one axis with a fine checker texture.
func rampImage(side int, horizontal bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			pos := y
			if horizontal {
				pos = x
			}
			v := 20 + pos*200/side
			if (x+y)%2 == 0 {
				v += 20
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

func stripesImage(side, period int, vertical bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			pos := y
			if vertical {
				pos = x
			}
			var v uint8 = 30
			if (pos/period)%2 == 0 {
				v = 225
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func flatImage(side int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeClip(t *testing.T, frames ...*image.Gray) []byte {
	t.Helper()
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.Gray{Y: uint8(i)}
	}
	anim := &gif.GIF{}
	for _, fr := range frames {
		p := image.NewPaletted(fr.Bounds(), pal)
		copy(p.Pix, fr.Pix)
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	return buf.Bytes()
}

func pngEvidence(t *testing.T, img image.Image) domain.Evidence {
	return domain.Evidence{Data: encodePNG(t, img), Format: FormatPNG}
}
