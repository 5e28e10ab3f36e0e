package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"polyevolve/internal/model"
)

const (
	MutationPolygon = "mutate_polygon"
	MutationColor   = "mutate_color"
	MutationPoint   = "mutate_point"

	DefaultMutation = MutationPolygon

	minPolygonPoints = 3
)

var (
	ErrMutationExists       = errors.New("mutation already registered")
	ErrMutationNotFound     = errors.New("mutation not found")
	ErrMutationIncompatible = errors.New("mutation incompatible with genome")
	ErrVersionMismatch      = errors.New("mutation version mismatch")
	ErrTooFewPoints         = errors.New("polygon has fewer than 3 points")
)

type CompatibilityFn func(genome model.Genome) error

// MutationFactory builds a run-scoped operator bound to the run's random
// source and vertex offset.
type MutationFactory func(rng *rand.Rand, offset int) Operator

type MutationSpec struct {
	Name          string
	New           MutationFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

var mutationRegistry = struct {
	mu sync.RWMutex
	m  map[string]MutationSpec
}{
	m: builtinMutations(),
}

func builtinMutations() map[string]MutationSpec {
	m := make(map[string]MutationSpec)
	for name, kind := range map[string]PolygonMutationKind{
		MutationPolygon: MutateAny,
		MutationColor:   MutateColor,
		MutationPoint:   MutatePoint,
	} {
		m[name] = MutationSpec{
			Name: name,
			New: func(rng *rand.Rand, offset int) Operator {
				return &GenomeMutation{Rand: rng, Offset: offset, Only: kind}
			},
			SchemaVersion: model.SchemaVersion,
			CodecVersion:  model.CodecVersion,
			Compatible:    requirePolygons,
		}
	}
	return m
}

func requirePolygons(genome model.Genome) error {
	if len(genome.Polygons) == 0 {
		return ErrNoPolygons
	}
	for i, p := range genome.Polygons {
		if len(p.Points) == 0 {
			return fmt.Errorf("polygon %d: %w", i, ErrNoPoints)
		}
		if len(p.Points) < minPolygonPoints {
			return fmt.Errorf("polygon %d: %w: has %d", i, ErrTooFewPoints, len(p.Points))
		}
	}
	return nil
}

// RegisterMutation adds a named mutation strategy at the current record versions.
func RegisterMutation(name string, factory MutationFactory) error {
	return RegisterMutationWithSpec(MutationSpec{
		Name:          name,
		New:           factory,
		SchemaVersion: model.SchemaVersion,
		CodecVersion:  model.CodecVersion,
	})
}

func RegisterMutationWithSpec(spec MutationSpec) error {
	if spec.Name == "" {
		return errors.New("mutation name is required")
	}
	if spec.New == nil {
		return errors.New("mutation factory is required")
	}
	if spec.SchemaVersion != model.SchemaVersion || spec.CodecVersion != model.CodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	mutationRegistry.mu.Lock()
	defer mutationRegistry.mu.Unlock()

	if _, exists := mutationRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrMutationExists, spec.Name)
	}
	mutationRegistry.m[spec.Name] = spec
	return nil
}

// ResolveMutation builds the named mutation for genome, rejecting genomes
// whose record versions or shape the strategy cannot handle.
func ResolveMutation(name string, genome model.Genome, rng *rand.Rand, offset int) (Operator, error) {
	mutationRegistry.mu.RLock()
	spec, ok := mutationRegistry.m[name]
	mutationRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMutationNotFound, name)
	}
	if genome.SchemaVersion != spec.SchemaVersion || genome.CodecVersion != spec.CodecVersion {
		return nil, fmt.Errorf("%w: mutation=%s expected(schema=%d codec=%d) got(schema=%d codec=%d)",
			ErrVersionMismatch,
			name,
			spec.SchemaVersion,
			spec.CodecVersion,
			genome.SchemaVersion,
			genome.CodecVersion,
		)
	}
	if spec.Compatible != nil {
		if err := spec.Compatible(genome); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMutationIncompatible, name, err)
		}
	}
	return spec.New(rng, offset), nil
}

func ListMutations() []string {
	mutationRegistry.mu.RLock()
	defer mutationRegistry.mu.RUnlock()

	names := make([]string, 0, len(mutationRegistry.m))
	for name := range mutationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetMutationRegistryForTests() {
	mutationRegistry.mu.Lock()
	defer mutationRegistry.mu.Unlock()
	mutationRegistry.m = builtinMutations()
}
