package evo

import (
	"context"

	"polyevolve/internal/model"
)

// Operator produces a child genome. Implementations must not modify the
// genome they are given.
type Operator interface {
	Name() string
	Apply(ctx context.Context, genome model.Genome) (model.Genome, error)
}

// Describer is implemented by operators that can report what their last
// Apply changed.
type Describer interface {
	Describe() string
}
