package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
)

// MaxPixels bounds decoded texture size; embedded images in uploaded files
// are untrusted.
const MaxPixels = 8192 * 8192

type codec struct {
	name   string
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

var (
	pngCodec  = codec{"png", png.DecodeConfig, png.Decode}
	jpegCodec = codec{"jpeg", jpeg.DecodeConfig, jpeg.Decode}
	bmpCodec  = codec{"bmp", bmp.DecodeConfig, bmp.Decode}
	tgaCodec  = codec{"tga", tga.DecodeConfig, tga.Decode}
)

// sniff picks a codec from the leading magic bytes. TGA has no magic and
// is the fallback.
func sniff(data []byte) codec {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return pngCodec
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return jpegCodec
	case bytes.HasPrefix(data, []byte("BM")):
		return bmpCodec
	default:
		return tgaCodec
	}
}

// Decode decodes an embedded texture (PNG, JPEG, TGA or BMP) into NRGBA.
func Decode(data []byte) (*image.NRGBA, error) {
	c := sniff(data)
	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s config: %w", c.name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("texture: %s image %dx%d out of range", c.name, cfg.Width, cfg.Height)
	}
	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", c.name, err)
	}
	return toNRGBA(img), nil
}

// toNRGBA converts any image to NRGBA format.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
