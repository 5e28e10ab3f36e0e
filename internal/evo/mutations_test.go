package evo

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"polyevolve/internal/genotype"
	"polyevolve/internal/model"
)

func newTestGenome(t *testing.T, seed int64, fixedColor bool) model.Genome {
	t.Helper()
	params := genotype.DefaultParams()
	params.FixedColor = fixedColor
	genome, err := genotype.ConstructGenome(model.Size{Width: 40, Height: 30}, params, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("construct genome: %v", err)
	}
	return genome
}

func countColorChanges(a, b model.Color) int {
	n := 0
	for i := 0; i < 4; i++ {
		if a.Channel(i) != b.Channel(i) {
			n++
		}
	}
	return n
}

func countPointChanges(a, b []model.Point) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func TestMutatePolygonTouchesExactlyOneDimension(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	canvas := model.Size{Width: 20, Height: 20}
	kinds := map[PolygonMutationKind]int{}

	for i := 0; i < 4000; i++ {
		before := model.Polygon{
			Points: []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}, {X: 7, Y: 8}},
			Color:  genotype.GenerateColor(rng),
		}
		after := genotype.ClonePolygon(before)

		change, err := MutatePolygon(rng, &after, canvas, 10)
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		kind := change.Kind
		kinds[kind]++

		colorChanges := countColorChanges(before.Color, after.Color)
		pointChanges := countPointChanges(before.Points, after.Points)
		switch kind {
		case MutateColor:
			if pointChanges != 0 || colorChanges > 1 {
				t.Fatalf("color mutation changed points=%d channels=%d", pointChanges, colorChanges)
			}
		case MutatePoint:
			if colorChanges != 0 || pointChanges > 1 {
				t.Fatalf("point mutation changed points=%d channels=%d", pointChanges, colorChanges)
			}
			for _, p := range after.Points {
				if p.X < -10 || p.X >= 30 || p.Y < -10 || p.Y >= 30 {
					t.Fatalf("resampled point out of range: %+v", p)
				}
			}
		default:
			t.Fatalf("unexpected kind %v", kind)
		}
		if len(after.Points) != len(before.Points) {
			t.Fatalf("point count changed: %d -> %d", len(before.Points), len(after.Points))
		}
	}

	colorShare := float64(kinds[MutateColor]) / 4000
	if colorShare < 0.45 || colorShare > 0.55 {
		t.Fatalf("expected an even coin flip, got color share %.3f", colorShare)
	}
}

func TestMutatePolygonRejectsEmptyPoints(t *testing.T) {
	p := model.Polygon{}
	if _, err := MutatePolygon(rand.New(rand.NewSource(1)), &p, model.Size{Width: 1, Height: 1}, 0); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v", err)
	}
}

func TestGenomeMutationLeavesParentUntouched(t *testing.T) {
	op := &GenomeMutation{Rand: rand.New(rand.NewSource(21)), Offset: 10}
	for seed := int64(0); seed < 50; seed++ {
		parent := newTestGenome(t, seed, seed%2 == 0)
		snapshot := genotype.CloneGenome(parent)

		child, err := op.Apply(context.Background(), parent)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if !reflect.DeepEqual(parent, snapshot) {
			t.Fatal("parent changed by mutation")
		}
		if child.Canvas != parent.Canvas || len(child.Polygons) != len(parent.Polygons) {
			t.Fatalf("shape changed: %+v/%d vs %+v/%d", child.Canvas, len(child.Polygons), parent.Canvas, len(parent.Polygons))
		}
		if child.Generation != parent.Generation+1 {
			t.Fatalf("expected generation %d, got %d", parent.Generation+1, child.Generation)
		}

		differing := 0
		for i := range parent.Polygons {
			if !reflect.DeepEqual(parent.Polygons[i], child.Polygons[i]) {
				differing++
			}
		}
		if differing > 1 {
			t.Fatalf("expected at most one differing polygon, got %d", differing)
		}

		for i := range child.Polygons {
			child.Polygons[i].Points[0] = model.Point{X: -99, Y: -99}
		}
		if !reflect.DeepEqual(parent, snapshot) {
			t.Fatal("child shares point storage with parent")
		}
	}
}

func TestGenomeMutationRequiresPolygonsAndRandom(t *testing.T) {
	op := &GenomeMutation{Rand: rand.New(rand.NewSource(1))}
	if _, err := op.Apply(context.Background(), model.Genome{}); !errors.Is(err, ErrNoPolygons) {
		t.Fatalf("expected ErrNoPolygons, got %v", err)
	}
	var nilOp *GenomeMutation
	if _, err := nilOp.Apply(context.Background(), newTestGenome(t, 1, true)); err == nil {
		t.Fatal("expected missing random source error")
	}
	if op.Name() == "" {
		t.Fatal("expected operator name")
	}
}

func TestGenomeMutationDescribesLastChange(t *testing.T) {
	parent := newTestGenome(t, 21, true)
	op := &GenomeMutation{Rand: rand.New(rand.NewSource(8)), Offset: 10}
	if op.Describe() != "" {
		t.Fatal("expected empty description before any mutation")
	}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		if _, err := op.Apply(context.Background(), parent); err != nil {
			t.Fatalf("apply: %v", err)
		}
		desc := op.Describe()
		switch {
		case strings.HasPrefix(desc, "changing color channel "):
			seen["color"] = true
		case strings.HasPrefix(desc, "changing point "):
			seen["point"] = true
		default:
			t.Fatalf("unexpected description %q", desc)
		}
		if !strings.Contains(desc, "on polygon ") || !strings.Contains(desc, "), (") {
			t.Fatalf("expected polygon index and rendering in %q", desc)
		}
	}
	if !seen["color"] || !seen["point"] {
		t.Fatalf("expected both change kinds, saw %v", seen)
	}
}
