package evo

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"polyevolve/internal/model"
)

type noopOperator struct{}

func (noopOperator) Name() string { return "noop" }

func (noopOperator) Apply(_ context.Context, genome model.Genome) (model.Genome, error) {
	return genome, nil
}

func noopFactory(*rand.Rand, int) Operator { return noopOperator{} }

func TestBuiltinMutationsResolve(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	names := ListMutations()
	if !reflect.DeepEqual(names, []string{MutationColor, MutationPoint, MutationPolygon}) {
		t.Fatalf("unexpected builtin mutations: %+v", names)
	}

	genome := coveringTriangle(model.White)
	for _, name := range names {
		op, err := ResolveMutation(name, genome, rand.New(rand.NewSource(1)), 10)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if op.Name() != name {
			t.Fatalf("expected operator %s, got %s", name, op.Name())
		}
	}
}

func TestPinnedMutationsTouchOneDimension(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	parent := coveringTriangle(model.White)

	color, err := ResolveMutation(MutationColor, parent, rng, 10)
	if err != nil {
		t.Fatalf("resolve color: %v", err)
	}
	point, err := ResolveMutation(MutationPoint, parent, rng, 10)
	if err != nil {
		t.Fatalf("resolve point: %v", err)
	}

	for i := 0; i < 200; i++ {
		child, err := color.Apply(context.Background(), parent)
		if err != nil {
			t.Fatalf("color apply: %v", err)
		}
		if !reflect.DeepEqual(child.Polygons[0].Points, parent.Polygons[0].Points) {
			t.Fatal("color mutation moved a point")
		}

		child, err = point.Apply(context.Background(), parent)
		if err != nil {
			t.Fatalf("point apply: %v", err)
		}
		if child.Polygons[0].Color != parent.Polygons[0].Color {
			t.Fatal("point mutation changed the color")
		}
	}
}

func TestRegisterMutationDuplicateAndValidation(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	if err := RegisterMutation("noop", noopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterMutation("noop", noopFactory); !errors.Is(err, ErrMutationExists) {
		t.Fatalf("expected ErrMutationExists, got: %v", err)
	}
	if err := RegisterMutation(MutationPolygon, noopFactory); !errors.Is(err, ErrMutationExists) {
		t.Fatalf("expected builtin collision, got: %v", err)
	}
	if err := RegisterMutation("", noopFactory); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterMutation("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := RegisterMutationWithSpec(MutationSpec{
		Name:          "bad-version",
		New:           noopFactory,
		SchemaVersion: 99,
		CodecVersion:  model.CodecVersion,
	}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveMutationFailures(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)
	rng := rand.New(rand.NewSource(1))

	if _, err := ResolveMutation("missing", coveringTriangle(model.White), rng, 0); !errors.Is(err, ErrMutationNotFound) {
		t.Fatalf("expected ErrMutationNotFound, got: %v", err)
	}

	stale := coveringTriangle(model.White)
	stale.CodecVersion = model.CodecVersion + 1
	if _, err := ResolveMutation(MutationPolygon, stale, rng, 0); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}

	empty := model.Genome{VersionedRecord: model.CurrentVersion()}
	if _, err := ResolveMutation(MutationPolygon, empty, rng, 0); !errors.Is(err, ErrMutationIncompatible) {
		t.Fatalf("expected ErrMutationIncompatible, got: %v", err)
	}

	pointless := coveringTriangle(model.White)
	pointless.Polygons[0].Points = nil
	if _, err := ResolveMutation(MutationPoint, pointless, rng, 0); !errors.Is(err, ErrMutationIncompatible) {
		t.Fatalf("expected ErrMutationIncompatible, got: %v", err)
	}
}

func TestResolveMutationRejectsDegeneratePolygons(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{1, 2} {
		genome := coveringTriangle(model.White)
		genome.Polygons[0].Points = genome.Polygons[0].Points[:n]
		for _, name := range ListMutations() {
			_, err := ResolveMutation(name, genome, rng, 10)
			if !errors.Is(err, ErrMutationIncompatible) || !errors.Is(err, ErrTooFewPoints) {
				t.Fatalf("%s with %d points: expected ErrTooFewPoints, got: %v", name, n, err)
			}
		}
	}

	if _, err := ResolveMutation(MutationPolygon, coveringTriangle(model.White), rng, 10); err != nil {
		t.Fatalf("triangle should resolve: %v", err)
	}
}

func TestRegisteredMutationIsResolvable(t *testing.T) {
	resetMutationRegistryForTests()
	t.Cleanup(resetMutationRegistryForTests)

	if err := RegisterMutation("noop", noopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	op, err := ResolveMutation("noop", model.Genome{VersionedRecord: model.CurrentVersion()}, nil, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Name() != "noop" {
		t.Fatalf("unexpected operator: %s", op.Name())
	}
}
