package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"golang.org/x/image/vector"

	"polyevolve/internal/model"
)

const DefaultBlurRadius = 3.0

// Rasterizer paints genomes with anti-aliased polygon fills. It keeps a
// scratch path rasterizer and is not safe for concurrent use.
type Rasterizer struct {
	Background model.Color
	BlurRadius float64

	z *vector.Rasterizer
}

func NewRasterizer() *Rasterizer {
	return &Rasterizer{Background: model.Black, BlurRadius: DefaultBlurRadius}
}

// Render fills an opaque base with the background, then for each polygon in
// order paints it onto one shared transparent layer and composites the whole
// layer over the base using the layer's own alpha.
func (r *Rasterizer) Render(genome model.Genome) *image.RGBA {
	w, h := genome.Canvas.Width, genome.Canvas.Height
	bounds := image.Rect(0, 0, w, h)

	base := image.NewRGBA(bounds)
	bg := r.Background
	bg.A = 255
	draw.Draw(base, bounds, image.NewUniform(toNRGBA(bg)), image.Point{}, draw.Src)

	layer := image.NewRGBA(bounds)
	for _, polygon := range genome.Polygons {
		r.fillPolygon(layer, polygon, w, h)
		draw.Draw(base, bounds, layer, image.Point{}, draw.Over)
	}
	return base
}

func (r *Rasterizer) fillPolygon(dst *image.RGBA, polygon model.Polygon, w, h int) {
	ring := clipToRect(polygon.Points, float32(w), float32(h))
	if len(ring) < 3 {
		return
	}
	if r.z == nil {
		r.z = vector.NewRasterizer(w, h)
	} else {
		r.z.Reset(w, h)
	}
	r.z.DrawOp = draw.Over
	r.z.MoveTo(ring[0].x, ring[0].y)
	for _, p := range ring[1:] {
		r.z.LineTo(p.x, p.y)
	}
	r.z.ClosePath()
	r.z.Draw(dst, dst.Bounds(), image.NewUniform(toNRGBA(polygon.Color)), image.Point{})
}

// Blur returns a Gaussian-blurred copy for presentation.
func (r *Rasterizer) Blur(img *image.RGBA) *image.RGBA {
	if r.BlurRadius <= 0 {
		out := image.NewRGBA(img.Bounds())
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
		return out
	}
	return blur.Gaussian(img, r.BlurRadius)
}

func toNRGBA(c model.Color) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
