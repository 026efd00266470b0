// File: internal/services/attachment/thumbnail.go
package attachment

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Thumbnailer downsizes images to JPEG thumbnails.
type Thumbnailer struct {
	MaxDimension int
	Quality      int
	MaxPixels    int
}

// Generate decodes data and returns a JPEG whose longest side is at most
// MaxDimension, keeping the aspect ratio. Images already within bounds are
// re-encoded at their own size.
func (t Thumbnailer) Generate(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	if cfg.Width*cfg.Height > t.MaxPixels {
		return nil, fmt.Errorf("image is %dx%d, larger than %d pixels", cfg.Width, cfg.Height, t.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), t.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha; transparent regions become white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: t.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales width and height so the longer side is at most limit.
func fitWithin(width, height, limit int) (int, int) {
	if width >= height {
		if width > limit {
			height = height * limit / width
			width = limit
		}
	} else if height > limit {
		width = width * limit / height
		height = limit
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
