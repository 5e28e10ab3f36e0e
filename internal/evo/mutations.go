package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"polyevolve/internal/genotype"
	"polyevolve/internal/model"
)

var (
	ErrNoPoints   = errors.New("polygon has no points")
	ErrNoPolygons = errors.New("genome has no polygons")
)

type PolygonMutationKind int

const (
	MutateAny PolygonMutationKind = iota
	MutateColor
	MutatePoint
)

func (k PolygonMutationKind) String() string {
	switch k {
	case MutateAny:
		return "any"
	case MutateColor:
		return "color"
	case MutatePoint:
		return "point"
	default:
		return "unknown"
	}
}

// PolygonChange describes one edit made to a polygon.
type PolygonChange struct {
	Kind PolygonMutationKind
	// Channel is set for color changes and Point for point changes.
	Channel int
	Point   int
}

// MutatePolygon applies exactly one perturbation to p in place: with equal
// probability either one color channel gets a fresh value in [0, 256), or one
// existing point is resampled over the padded canvas.
func MutatePolygon(rng *rand.Rand, p *model.Polygon, canvas model.Size, offset int) (PolygonChange, error) {
	if len(p.Points) == 0 {
		return PolygonChange{Kind: MutateAny}, ErrNoPoints
	}
	if rng.Float64() < 0.5 {
		return PolygonChange{Kind: MutateColor, Channel: mutateColor(rng, p)}, nil
	}
	return PolygonChange{Kind: MutatePoint, Point: mutatePoint(rng, p, canvas, offset)}, nil
}

// mutateColor returns the index of the channel it replaced.
func mutateColor(rng *rand.Rand, p *model.Polygon) int {
	channel := rng.Intn(4)
	p.Color = p.Color.WithChannel(channel, uint8(rng.Intn(256)))
	return channel
}

// mutatePoint returns the index of the point it resampled.
func mutatePoint(rng *rand.Rand, p *model.Polygon, canvas model.Size, offset int) int {
	idx := rng.Intn(len(p.Points))
	p.Points[idx] = genotype.GeneratePoint(rng, canvas.Width, canvas.Height, offset)
	return idx
}

// appliedChange is the last edit made by a GenomeMutation.
type appliedChange struct {
	PolygonChange
	polygon int
	after   model.Polygon
}

// GenomeMutation copies the parent and mutates one uniformly chosen polygon
// of the copy.
type GenomeMutation struct {
	Rand   *rand.Rand
	Offset int
	// Only pins every mutation to one kind. MutateAny keeps the coin flip.
	Only PolygonMutationKind

	last *appliedChange
}

func (o *GenomeMutation) Name() string {
	if o == nil {
		return MutationPolygon
	}
	switch o.Only {
	case MutateColor:
		return MutationColor
	case MutatePoint:
		return MutationPoint
	default:
		return MutationPolygon
	}
}

func (o *GenomeMutation) Apply(_ context.Context, genome model.Genome) (model.Genome, error) {
	if len(genome.Polygons) == 0 {
		return model.Genome{}, ErrNoPolygons
	}
	if o == nil || o.Rand == nil {
		return model.Genome{}, errors.New("random source is required")
	}

	child := genotype.CloneGenome(genome)
	idx := o.Rand.Intn(len(child.Polygons))
	target := &child.Polygons[idx]
	if len(target.Points) == 0 {
		return model.Genome{}, ErrNoPoints
	}
	var change PolygonChange
	switch o.Only {
	case MutateColor:
		change = PolygonChange{Kind: MutateColor, Channel: mutateColor(o.Rand, target)}
	case MutatePoint:
		change = PolygonChange{Kind: MutatePoint, Point: mutatePoint(o.Rand, target, child.Canvas, o.Offset)}
	default:
		var err error
		if change, err = MutatePolygon(o.Rand, target, child.Canvas, o.Offset); err != nil {
			return model.Genome{}, err
		}
	}
	o.last = &appliedChange{PolygonChange: change, polygon: idx, after: *target}
	child.Generation = genome.Generation + 1
	return child, nil
}

// Describe reports the edit made by the last successful Apply, in the form
// "changing color ..." or "changing point ...".
func (o *GenomeMutation) Describe() string {
	if o == nil || o.last == nil {
		return ""
	}
	c := o.last
	switch c.Kind {
	case MutateColor:
		return fmt.Sprintf("changing %s channel %d to %d on polygon %d: %s",
			c.Kind, c.Channel, c.after.Color.Channel(c.Channel), c.polygon, c.after)
	default:
		pt := c.after.Points[c.Point]
		return fmt.Sprintf("changing %s %d to (%d, %d) on polygon %d: %s",
			c.Kind, c.Point, pt.X, pt.Y, c.polygon, c.after)
	}
}
