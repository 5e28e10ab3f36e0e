package evo

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

var ErrDimensionMismatch = errors.New("image dimensions differ")

// Fitness sums, over every pixel, the Euclidean distance between the RGB
// values of a and b. Alpha is ignored. Lower is better and identical images
// score 0.
func Fitness(a, b image.Image) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	ra, fastA := pixelsOf(a)
	rb, fastB := pixelsOf(b)

	total := 0.0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			var r1, g1, b1, r2, g2, b2 int
			if fastA != nil {
				i := fastA.offset(x, y)
				r1, g1, b1 = int(ra[i]), int(ra[i+1]), int(ra[i+2])
			} else {
				r1, g1, b1 = rgbAt(a, ab.Min.X+x, ab.Min.Y+y)
			}
			if fastB != nil {
				i := fastB.offset(x, y)
				r2, g2, b2 = int(rb[i]), int(rb[i+1]), int(rb[i+2])
			} else {
				r2, g2, b2 = rgbAt(b, bb.Min.X+x, bb.Min.Y+y)
			}
			dr, dg, db := r1-r2, g1-g2, b1-b2
			total += math.Sqrt(float64(dr*dr + dg*dg + db*db))
		}
	}
	return total, nil
}

// opaqueRGBA marks renderer output, which is opaque by construction, so its
// storage can be read directly without scanning alpha first.
type opaqueRGBA struct {
	*image.RGBA
}

func renderedFitness(target image.Image, rendered *image.RGBA) (float64, error) {
	return Fitness(target, opaqueRGBA{rendered})
}

type pixLayout struct {
	stride int
}

func (l *pixLayout) offset(x, y int) int {
	return y*l.stride + x*4
}

// pixelsOf exposes 8-bit RGBA storage directly. *image.RGBA is only used
// when fully opaque storage can be assumed to equal straight color, which is
// the case for rendered candidates and normalized targets.
func pixelsOf(img image.Image) ([]uint8, *pixLayout) {
	switch v := img.(type) {
	case opaqueRGBA:
		start := v.PixOffset(v.Rect.Min.X, v.Rect.Min.Y)
		return v.Pix[start:], &pixLayout{stride: v.Stride}
	case *image.NRGBA:
		start := v.PixOffset(v.Rect.Min.X, v.Rect.Min.Y)
		return v.Pix[start:], &pixLayout{stride: v.Stride}
	case *image.RGBA:
		if !v.Opaque() {
			return nil, nil
		}
		start := v.PixOffset(v.Rect.Min.X, v.Rect.Min.Y)
		return v.Pix[start:], &pixLayout{stride: v.Stride}
	default:
		return nil, nil
	}
}

func rgbAt(img image.Image, x, y int) (int, int, int) {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return int(c.R), int(c.G), int(c.B)
}
