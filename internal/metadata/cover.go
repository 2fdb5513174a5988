package metadata

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

const jpegQuality = 90

// EncodeCover returns the bytes to store for a downloaded cover. Images
// larger than maxSize on either side are scaled down to fit, keeping their
// aspect ratio. A maxSize of zero keeps the original dimensions. JPEG data
// that needs no scaling is returned untouched; everything else is
// re-encoded as JPEG.
func EncodeCover(img image.Image, data []byte, maxSize int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to encode")
	}

	scaled := ResizeCover(img, maxSize)
	if scaled == img && http.DetectContentType(data) == "image/jpeg" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

// ResizeCover fits img inside a maxSize square. It returns img itself when
// no scaling is needed.
func ResizeCover(img image.Image, maxSize int) image.Image {
	if maxSize <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return img
	}
	return resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3) //nolint:gosec // maxSize is positive
}

// WriteCoverFile writes data to dir/name, creating dir if needed.
func WriteCoverFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write cover %s: %w", path, err)
	}
	return path, nil
}
