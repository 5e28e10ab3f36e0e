package imageio

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/imgio"

	"polyevolve/internal/evo"
)

// LoadTarget decodes the image at path and normalizes it to NRGBA with an
// origin at (0, 0).
func LoadTarget(path string) (*image.NRGBA, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load target %s: %w", path, err)
	}
	return Normalize(img)
}

func Normalize(img image.Image) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, evo.ErrEmptyImage
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out, nil
}
