package evo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand"

	"github.com/dustin/go-humanize"

	"polyevolve/internal/genotype"
	"polyevolve/internal/model"
)

const DefaultSnapshotInterval = 100

var ErrEmptyImage = errors.New("target image has zero size")

// Renderer rasterizes genomes. Render output is what gets scored and must be
// fully opaque; Blur is applied to snapshot frames only.
type Renderer interface {
	Render(genome model.Genome) *image.RGBA
	Blur(img *image.RGBA) *image.RGBA
}

// SnapshotSink receives the periodic presentation frames.
type SnapshotSink interface {
	Emit(ctx context.Context, index int, img image.Image) error
}

type GenerationReport struct {
	Generation       int
	Accepted         bool
	CandidateFitness float64
	BestFitness      float64
	// Snapshot is the index of the frame emitted this generation, 0 if none.
	Snapshot    int
	SnapshotErr error
	// Best aliases the held genome; observers must not modify it.
	Best model.Genome
}

type ClimberConfig struct {
	Target   image.Image
	Renderer Renderer
	Sink     SnapshotSink
	// Params defaults to genotype.DefaultParams when zero. Its offset also
	// bounds point mutations of a resumed genome.
	Params genotype.Params
	// Initial replaces the generated starting genome when set.
	Initial *model.Genome
	// Mutation overrides MutationName, which is resolved from the registry
	// and defaults to DefaultMutation.
	Mutation     Operator
	MutationName string
	// SnapshotInterval defaults to DefaultSnapshotInterval.
	SnapshotInterval int
	// Generations bounds Run; 0 runs until the context is done.
	Generations  int
	Seed         int64
	Logger       *slog.Logger
	OnGeneration func(GenerationReport)
}

// HillClimber is a (1+1) evolutionary loop: it holds one genome and replaces
// it only with strictly fitter mutants.
type HillClimber struct {
	cfg ClimberConfig
	rng *rand.Rand
	log *slog.Logger

	best           model.Genome
	bestFitness    float64
	initialFitness float64
	generation     int
	accepted       int
	snapshots      int
}

func NewHillClimber(cfg ClimberConfig) (*HillClimber, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("target image is required")
	}
	bounds := cfg.Target.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Params == (genotype.Params{}) {
		cfg.Params = genotype.DefaultParams()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	canvas := model.Size{Width: bounds.Dx(), Height: bounds.Dy()}
	var initial model.Genome
	if cfg.Initial != nil {
		if cfg.Initial.Canvas != canvas {
			return nil, fmt.Errorf("initial genome canvas %dx%d does not match target %dx%d",
				cfg.Initial.Canvas.Width, cfg.Initial.Canvas.Height, canvas.Width, canvas.Height)
		}
		if len(cfg.Initial.Polygons) == 0 {
			return nil, ErrNoPolygons
		}
		initial = genotype.CloneGenome(*cfg.Initial)
	} else {
		var err error
		initial, err = genotype.ConstructGenome(canvas, cfg.Params, rng)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Mutation == nil {
		name := cfg.MutationName
		if name == "" {
			name = DefaultMutation
		}
		op, err := ResolveMutation(name, initial, rng, cfg.Params.Offset)
		if err != nil {
			return nil, err
		}
		cfg.Mutation = op
	}

	fitness, err := renderedFitness(cfg.Target, cfg.Renderer.Render(initial))
	if err != nil {
		return nil, err
	}

	return &HillClimber{
		cfg:            cfg,
		rng:            rng,
		log:            cfg.Logger,
		best:           initial,
		bestFitness:    fitness,
		initialFitness: fitness,
	}, nil
}

// Best returns a deep copy of the held genome and its fitness.
func (h *HillClimber) Best() (model.Genome, float64) {
	return genotype.CloneGenome(h.best), h.bestFitness
}

func (h *HillClimber) InitialFitness() float64 { return h.initialFitness }
func (h *HillClimber) Generation() int         { return h.generation }
func (h *HillClimber) Accepted() int           { return h.accepted }
func (h *HillClimber) Snapshots() int          { return h.snapshots }

// Step runs one generation: mutate, render, score, select, and emit a
// snapshot when the generation counter hits the interval.
func (h *HillClimber) Step(ctx context.Context) (GenerationReport, error) {
	child, err := h.cfg.Mutation.Apply(ctx, h.best)
	if err != nil {
		return GenerationReport{}, fmt.Errorf("mutate: %w", err)
	}
	childFitness, err := renderedFitness(h.cfg.Target, h.cfg.Renderer.Render(child))
	if err != nil {
		return GenerationReport{}, err
	}

	report := GenerationReport{CandidateFitness: childFitness}
	if childFitness < h.bestFitness {
		h.best = child
		h.bestFitness = childFitness
		h.accepted++
		report.Accepted = true
		if h.log.Enabled(ctx, slog.LevelDebug) {
			attrs := []any{"fitness", humanize.CommafWithDigits(childFitness, 2), "generation", h.generation + 1}
			if d, ok := h.cfg.Mutation.(Describer); ok {
				attrs = append(attrs, "change", d.Describe())
			}
			h.log.Debug("picking child", attrs...)
		}
	}

	h.generation++
	report.Generation = h.generation
	report.BestFitness = h.bestFitness

	if h.generation%h.cfg.SnapshotInterval == 0 {
		h.snapshots++
		report.Snapshot = h.snapshots
		h.log.Info("showing generation",
			"generation", humanize.Comma(int64(h.generation)),
			"snapshot", h.snapshots,
			"fitness", humanize.CommafWithDigits(h.bestFitness, 2),
		)
		if h.cfg.Sink != nil {
			frame := h.cfg.Renderer.Blur(h.cfg.Renderer.Render(h.best))
			if err := h.cfg.Sink.Emit(ctx, h.snapshots, frame); err != nil {
				report.SnapshotErr = err
				h.log.Warn("snapshot failed", "snapshot", h.snapshots, "error", err)
			}
		}
	}

	report.Best = h.best
	if h.cfg.OnGeneration != nil {
		h.cfg.OnGeneration(report)
	}
	return report, nil
}

// Run steps until ctx is done or the generation budget is spent. A
// cancelled context is reported as ctx.Err().
func (h *HillClimber) Run(ctx context.Context) error {
	for h.cfg.Generations == 0 || h.generation < h.cfg.Generations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := h.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}
