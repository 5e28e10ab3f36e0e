package genotype

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"polyevolve/internal/model"
)

const (
	DefaultPolygons  = 50
	DefaultMinPoints = 3
	DefaultMaxPoints = 5
	DefaultOffset    = 10
)

var ErrNoPolygons = errors.New("polygon count must be > 0")

// Params controls how the initial genome is generated.
type Params struct {
	Polygons   int
	MinPoints  int
	MaxPoints  int
	Offset     int
	FixedColor bool
}

func DefaultParams() Params {
	return Params{
		Polygons:   DefaultPolygons,
		MinPoints:  DefaultMinPoints,
		MaxPoints:  DefaultMaxPoints,
		Offset:     DefaultOffset,
		FixedColor: true,
	}
}

func (p Params) Validate() error {
	if p.Polygons <= 0 {
		return ErrNoPolygons
	}
	if p.MinPoints < 3 {
		return fmt.Errorf("min points must be >= 3, got %d", p.MinPoints)
	}
	if p.MaxPoints < p.MinPoints {
		return fmt.Errorf("vertex range invalid: max=%d < min=%d", p.MaxPoints, p.MinPoints)
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must be >= 0, got %d", p.Offset)
	}
	return nil
}

// ConstructGenome generates a genome for the given canvas. Every polygon gets
// its own freshly allocated point slice.
func ConstructGenome(canvas model.Size, params Params, rng *rand.Rand) (model.Genome, error) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return model.Genome{}, fmt.Errorf("canvas size must be positive, got %dx%d", canvas.Width, canvas.Height)
	}
	if err := params.Validate(); err != nil {
		return model.Genome{}, err
	}
	rng = ensureRNG(rng)

	polygons := make([]model.Polygon, 0, params.Polygons)
	for i := 0; i < params.Polygons; i++ {
		count := params.MinPoints + rng.Intn(params.MaxPoints-params.MinPoints+1)
		points := make([]model.Point, 0, count)
		for j := 0; j < count; j++ {
			points = append(points, GeneratePoint(rng, canvas.Width, canvas.Height, params.Offset))
		}
		color := model.White
		if !params.FixedColor {
			color = GenerateColor(rng)
		}
		polygons = append(polygons, model.Polygon{Points: points, Color: color})
	}

	return model.Genome{
		VersionedRecord: model.CurrentVersion(),
		Canvas:          canvas,
		Polygons:        polygons,
	}, nil
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
