package genotype

import (
	"math/rand"

	"polyevolve/internal/model"
)

// GeneratePoint samples uniformly from [-offset, width+offset) x [-offset, height+offset).
func GeneratePoint(rng *rand.Rand, width, height, offset int) model.Point {
	return model.Point{
		X: rng.Intn(width+2*offset) - offset,
		Y: rng.Intn(height+2*offset) - offset,
	}
}

func GenerateColor(rng *rand.Rand) model.Color {
	return model.Color{
		R: uint8(rng.Intn(256)),
		G: uint8(rng.Intn(256)),
		B: uint8(rng.Intn(256)),
		A: uint8(rng.Intn(256)),
	}
}
