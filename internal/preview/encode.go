package preview

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/HugoSmits86/nativewebp"
)

// EncodeWebP writes img as a lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("preview: encode webp: %w", err)
	}
	return nil
}

// WebPBytes encodes img to an in-memory WebP.
func WebPBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeWebP(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveWebP writes img to path.
func SaveWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview: create %s: %w", path, err)
	}
	if err := EncodeWebP(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
