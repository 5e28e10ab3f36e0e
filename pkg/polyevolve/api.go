package polyevolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"polyevolve/internal/evo"
	"polyevolve/internal/genotype"
	"polyevolve/internal/imageio"
	"polyevolve/internal/metrics"
	"polyevolve/internal/model"
	"polyevolve/internal/render"
	"polyevolve/internal/storage"
)

const (
	defaultDBPath             = "polyevolve.db"
	defaultCheckpointInterval = 1000
)

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store       storage.Store
	initialized bool
}

type RunRequest struct {
	TargetPath    string
	RunID         string
	ContinueRunID string
	Seed          int64

	// Zero Polygons, MinPoints and MaxPoints use the defaults, or the parent
	// run's values when continuing. A continued run cannot change them.
	Polygons  int
	MinPoints int
	MaxPoints int
	// Offset is nil to use the default or inherit it from the parent run.
	Offset      *int
	RandomColor bool
	// Mutation names a registered mutation strategy; empty uses the default
	// or the parent run's strategy.
	Mutation string

	SnapshotInterval int
	SnapshotDir      string
	DisableSnapshots bool
	// BlurRadius of 0 uses the default; negative disables blur.
	BlurRadius float64
	Background model.Color

	// Generations of 0 runs until ctx is cancelled.
	Generations        int
	CheckpointInterval int

	Logger     *slog.Logger
	ExtraSinks []evo.SnapshotSink
	Metrics    *metrics.Collector
}

type RunSummary struct {
	RunID          string
	InitialFitness float64
	BestFitness    float64
	Generations    int
	Accepted       int
	Snapshots      int
	SnapshotDir    string
	Stopped        bool
}

type RunItem struct {
	RunID         string
	CreatedAtUTC  string
	TargetPath    string
	Seed          int64
	Polygons      int
	Mutation      string
	Generations   int
	BestFitness   float64
	ContinuedFrom string
}

type RenderRequest struct {
	RunID      string
	OutPath    string
	Blur       bool
	BlurRadius float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// Run loads the target, evolves until ctx is cancelled or the generation
// budget is spent, and persists the run record and checkpoints. Cancellation
// is a normal stop and is reported through RunSummary.Stopped.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.TargetPath == "" {
		return RunSummary{}, errors.New("target path is required")
	}
	if req.SnapshotInterval <= 0 {
		req.SnapshotInterval = evo.DefaultSnapshotInterval
	}
	if req.CheckpointInterval <= 0 {
		req.CheckpointInterval = defaultCheckpointInterval
	}
	if req.Logger == nil {
		req.Logger = slog.New(slog.DiscardHandler)
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	target, err := imageio.LoadTarget(req.TargetPath)
	if err != nil {
		return RunSummary{}, err
	}

	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	var (
		initial *model.Genome
		parent  *model.RunRecord
	)
	if req.ContinueRunID != "" {
		run, ok, err := c.store.GetRun(ctx, req.ContinueRunID)
		if err != nil {
			return RunSummary{}, err
		}
		if !ok {
			return RunSummary{}, fmt.Errorf("unknown run %s", req.ContinueRunID)
		}
		checkpoint, ok, err := c.store.GetLatestCheckpoint(ctx, req.ContinueRunID)
		if err != nil {
			return RunSummary{}, err
		}
		if !ok {
			return RunSummary{}, fmt.Errorf("no checkpoint for run %s", req.ContinueRunID)
		}
		parent = &run
		initial = &checkpoint.Genome
	}
	params, mutation, err := runParams(req, parent)
	if err != nil {
		return RunSummary{}, err
	}

	rasterizer := render.NewRasterizer()
	rasterizer.Background = req.Background
	switch {
	case req.BlurRadius > 0:
		rasterizer.BlurRadius = req.BlurRadius
	case req.BlurRadius < 0:
		rasterizer.BlurRadius = 0
	}

	var sinks imageio.MultiSink
	snapshotDir := ""
	if !req.DisableSnapshots {
		fileSink, err := imageio.NewFileSink(req.SnapshotDir)
		if err != nil {
			return RunSummary{}, err
		}
		fileSink.Logger = req.Logger
		snapshotDir = fileSink.Dir
		sinks = append(sinks, fileSink)
	}
	sinks = append(sinks, req.ExtraSinks...)

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := req.Logger.With("run_id", runID)
	record := model.RunRecord{
		VersionedRecord:  model.CurrentVersion(),
		ID:               runID,
		TargetPath:       req.TargetPath,
		CreatedAtUTC:     time.Now().UTC().Format(time.RFC3339),
		Seed:             req.Seed,
		Polygons:         params.Polygons,
		MinPoints:        params.MinPoints,
		MaxPoints:        params.MaxPoints,
		Offset:           params.Offset,
		FixedColor:       params.FixedColor,
		Mutation:         mutation,
		SnapshotInterval: req.SnapshotInterval,
		ContinuedFrom:    req.ContinueRunID,
	}

	var climber *evo.HillClimber
	persistCtx := context.WithoutCancel(ctx)
	onGeneration := func(report evo.GenerationReport) {
		if req.Metrics != nil {
			req.Metrics.Observe(report)
		}
		if report.Generation%req.CheckpointInterval != 0 {
			return
		}
		record.BestFitness = report.BestFitness
		record.Generations = report.Generation
		record.Snapshots = climber.Snapshots()
		if err := c.checkpoint(persistCtx, record, report.Best, climber.Accepted()); err != nil {
			logger.Warn("checkpoint failed", "generation", report.Generation, "error", err)
		}
	}

	cfg := evo.ClimberConfig{
		Target:           target,
		Renderer:         rasterizer,
		Params:           params,
		Initial:          initial,
		MutationName:     mutation,
		SnapshotInterval: req.SnapshotInterval,
		Generations:      req.Generations,
		Seed:             req.Seed,
		Logger:           logger,
		OnGeneration:     onGeneration,
	}
	if len(sinks) > 0 {
		cfg.Sink = sinks
	}
	climber, err = evo.NewHillClimber(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	record.InitialFitness = climber.InitialFitness()
	record.BestFitness = climber.InitialFitness()
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run started",
		"target", req.TargetPath,
		"size", fmt.Sprintf("%dx%d", target.Bounds().Dx(), target.Bounds().Dy()),
		"polygons", params.Polygons,
		"fitness", humanize.CommafWithDigits(climber.InitialFitness(), 2),
	)

	runErr := climber.Run(ctx)
	stopped := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !stopped {
		return RunSummary{}, runErr
	}

	best, bestFitness := climber.Best()
	record.BestFitness = bestFitness
	record.Generations = climber.Generation()
	record.Snapshots = climber.Snapshots()
	if err := c.checkpoint(persistCtx, record, best, climber.Accepted()); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run finished",
		"generations", humanize.Comma(int64(climber.Generation())),
		"accepted", humanize.Comma(int64(climber.Accepted())),
		"fitness", humanize.CommafWithDigits(bestFitness, 2),
	)

	return RunSummary{
		RunID:          runID,
		InitialFitness: climber.InitialFitness(),
		BestFitness:    bestFitness,
		Generations:    climber.Generation(),
		Accepted:       climber.Accepted(),
		Snapshots:      climber.Snapshots(),
		SnapshotDir:    snapshotDir,
		Stopped:        stopped,
	}, nil
}

// runParams resolves genome parameters and the mutation strategy. A continued
// run starts from its parent's values and may only change the offset and the
// mutation.
func runParams(req RunRequest, parent *model.RunRecord) (genotype.Params, string, error) {
	params := genotype.DefaultParams()
	mutation := evo.DefaultMutation
	if parent == nil {
		if req.Polygons != 0 {
			params.Polygons = req.Polygons
		}
		if req.MinPoints != 0 {
			params.MinPoints = req.MinPoints
		}
		if req.MaxPoints != 0 {
			params.MaxPoints = req.MaxPoints
		}
		params.FixedColor = !req.RandomColor
	} else {
		params = genotype.Params{
			Polygons:   parent.Polygons,
			MinPoints:  parent.MinPoints,
			MaxPoints:  parent.MaxPoints,
			Offset:     parent.Offset,
			FixedColor: parent.FixedColor,
		}
		if parent.Mutation != "" {
			mutation = parent.Mutation
		}
		for _, f := range []struct {
			name      string
			got, want int
		}{
			{"polygons", req.Polygons, parent.Polygons},
			{"min points", req.MinPoints, parent.MinPoints},
			{"max points", req.MaxPoints, parent.MaxPoints},
		} {
			if f.got != 0 && f.got != f.want {
				return genotype.Params{}, "", fmt.Errorf("%s=%d conflicts with run %s (%d)", f.name, f.got, parent.ID, f.want)
			}
		}
	}
	if req.Offset != nil {
		params.Offset = *req.Offset
	}
	if req.Mutation != "" {
		mutation = req.Mutation
	}
	if err := params.Validate(); err != nil {
		return genotype.Params{}, "", err
	}
	return params, mutation, nil
}

func (c *Client) checkpoint(ctx context.Context, record model.RunRecord, best model.Genome, accepted int) error {
	if err := c.store.SaveCheckpoint(ctx, model.Checkpoint{
		VersionedRecord: model.CurrentVersion(),
		RunID:           record.ID,
		Generation:      record.Generations,
		Fitness:         record.BestFitness,
		Accepted:        accepted,
		Genome:          best,
	}); err != nil {
		return err
	}
	return c.store.SaveRun(ctx, record)
}

func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	items := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, RunItem{
			RunID:         run.ID,
			CreatedAtUTC:  run.CreatedAtUTC,
			TargetPath:    run.TargetPath,
			Seed:          run.Seed,
			Polygons:      run.Polygons,
			Mutation:      run.Mutation,
			Generations:   run.Generations,
			BestFitness:   run.BestFitness,
			ContinuedFrom: run.ContinuedFrom,
		})
	}
	return items, nil
}

func (c *Client) Checkpoint(ctx context.Context, runID string) (model.Checkpoint, error) {
	if err := c.Init(ctx); err != nil {
		return model.Checkpoint{}, err
	}
	checkpoint, ok, err := c.store.GetLatestCheckpoint(ctx, runID)
	if err != nil {
		return model.Checkpoint{}, err
	}
	if !ok {
		return model.Checkpoint{}, fmt.Errorf("no checkpoint for run %s", runID)
	}
	return checkpoint, nil
}

// RenderCheckpoint writes the latest checkpoint genome of a run to a PNG.
func (c *Client) RenderCheckpoint(ctx context.Context, req RenderRequest) error {
	if req.OutPath == "" {
		return errors.New("output path is required")
	}
	checkpoint, err := c.Checkpoint(ctx, req.RunID)
	if err != nil {
		return err
	}
	rasterizer := render.NewRasterizer()
	if req.BlurRadius > 0 {
		rasterizer.BlurRadius = req.BlurRadius
	}
	img := rasterizer.Render(checkpoint.Genome)
	if req.Blur {
		img = rasterizer.Blur(img)
	}
	return imgio.Save(req.OutPath, img, imgio.PNGEncoder())
}
