package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Downscale shrinks img so its width is at most maxWidth, keeping the aspect
// ratio. Images already narrow enough are returned unchanged.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return img
	}

	scale := float64(maxWidth) / float64(w)
	nh := int(math.Round(float64(h) * scale))
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEG encodes img as a baseline JPEG. quality is in (0, 1].
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := int(math.Round(quality * 100))
	q = max(1, min(q, 100))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
