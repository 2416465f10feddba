package biometric

import (
	"encoding/binary"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// gifLayout is what a GIF declares about itself before any frame is
// decompressed: the logical screen and the size of every frame.
type gifLayout struct {
	width, height int
	frames        []int
}

func (l gifLayout) framePixels() int {
	total := 0
	for _, n := range l.frames {
		total += n
	}
	return total
}

// scanGIF walks the GIF block structure without running LZW, so the cost
// is linear in the encoded size whatever the declared dimensions are.
func scanGIF(data []byte) (gifLayout, error) {
	malformed := func(why string) (gifLayout, error) {
		return gifLayout{}, domain.ErrEvidenceMalformed("gif: " + why)
	}
	if len(data) < 13 {
		return malformed("short header")
	}

	layout := gifLayout{
		width:  int(binary.LittleEndian.Uint16(data[6:8])),
		height: int(binary.LittleEndian.Uint16(data[8:10])),
	}
	p := 13
	if flags := data[10]; flags&0x80 != 0 {
		p += 3 << ((flags & 0x07) + 1)
	}

	for p < len(data) {
		switch data[p] {
		case 0x3B: // trailer
			return layout, nil
		case 0x21: // extension: introducer, label, sub-blocks
			next, ok := skipSubBlocks(data, p+2)
			if !ok {
				return malformed("truncated extension")
			}
			p = next
		case 0x2C: // image descriptor
			if p+10 > len(data) {
				return malformed("truncated image descriptor")
			}
			w := int(binary.LittleEndian.Uint16(data[p+5 : p+7]))
			h := int(binary.LittleEndian.Uint16(data[p+7 : p+9]))
			flags := data[p+9]
			layout.frames = append(layout.frames, w*h)
			if layout.width == 0 || layout.height == 0 {
				layout.width, layout.height = max(layout.width, w), max(layout.height, h)
			}

			p += 10
			if flags&0x80 != 0 {
				p += 3 << ((flags & 0x07) + 1)
			}
			// LZW minimum code size precedes the data sub-blocks.
			next, ok := skipSubBlocks(data, p+1)
			if !ok {
				return malformed("truncated image data")
			}
			p = next
		default:
			return malformed("unknown block")
		}
	}
	if len(layout.frames) == 0 {
		return malformed("no frames")
	}
	return layout, nil
}

// skipSubBlocks returns the offset after the zero-length terminator.
func skipSubBlocks(data []byte, p int) (int, bool) {
	for {
		if p >= len(data) {
			return 0, false
		}
		n := int(data[p])
		p++
		if n == 0 {
			return p, true
		}
		p += n
	}
}
