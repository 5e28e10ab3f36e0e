package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"polyevolve/internal/metrics"
	"polyevolve/internal/preview"
	"polyevolve/internal/storage"
	"polyevolve/pkg/polyevolve"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:], os.Stdout, os.Stderr)
	case "runs":
		return runRuns(ctx, args[1:], os.Stdout)
	case "render":
		return runRender(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func openClient(storeKind, dbPath string) (*polyevolve.Client, error) {
	return polyevolve.New(polyevolve.Options{StoreKind: storeKind, DBPath: dbPath})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "polyevolve.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "polyevolve.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	defaults := defaultRunConfig()
	defaults.Store = storage.DefaultStoreKind()
	flags := defaults

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML run config path")
	fs.StringVar(&flags.Target, "target", flags.Target, "target image path (png|jpeg)")
	fs.StringVar(&flags.RunID, "run-id", flags.RunID, "explicit run id (optional)")
	fs.StringVar(&flags.ContinueRun, "continue-run", flags.ContinueRun, "resume from the latest checkpoint of this run id")
	fs.Int64Var(&flags.Seed, "seed", flags.Seed, "rng seed (0 picks one from the clock)")
	fs.IntVar(&flags.Polygons, "polygons", flags.Polygons, "polygons per genome")
	fs.IntVar(&flags.MinPoints, "min-points", flags.MinPoints, "minimum vertices per polygon")
	fs.IntVar(&flags.MaxPoints, "max-points", flags.MaxPoints, "maximum vertices per polygon")
	fs.IntVar(&flags.Offset, "offset", flags.Offset, "vertex margin outside the canvas")
	fs.BoolVar(&flags.RandomColor, "random-color", flags.RandomColor, "start polygons with random colors instead of white")
	fs.StringVar(&flags.Mutation, "mutation", flags.Mutation, "mutation strategy: mutate_polygon|mutate_color|mutate_point")
	fs.IntVar(&flags.Generations, "gens", flags.Generations, "generation budget (0 runs until interrupted)")
	fs.IntVar(&flags.SnapshotInterval, "snapshot-interval", flags.SnapshotInterval, "generations between snapshots")
	fs.StringVar(&flags.SnapshotDir, "snapshot-dir", flags.SnapshotDir, "snapshot directory (default OS temp dir)")
	fs.BoolVar(&flags.NoSnapshots, "no-snapshots", flags.NoSnapshots, "do not write snapshot PNGs")
	fs.IntVar(&flags.CheckpointInterval, "checkpoint-interval", flags.CheckpointInterval, "generations between persisted checkpoints")
	fs.Float64Var(&flags.Blur, "blur", flags.Blur, "snapshot blur radius (0 disables)")
	fs.StringVar(&flags.Background, "background", flags.Background, "canvas background color #rrggbb[aa]")
	fs.StringVar(&flags.Store, "store", flags.Store, "store backend: memory|sqlite")
	fs.StringVar(&flags.DBPath, "db-path", flags.DBPath, "sqlite database path")
	fs.BoolVar(&flags.Preview, "preview", flags.Preview, "draw snapshots in the terminal")
	fs.StringVar(&flags.MetricsAddr, "metrics-addr", flags.MetricsAddr, "serve prometheus metrics on this address")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "log format: text|json")
	fs.StringVar(&flags.LogFile, "log-file", flags.LogFile, "write logs to this file instead of stderr")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageError(fmt.Sprintf("unexpected arguments: %v", fs.Args()))
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := loadRunConfig(*configPath, defaults)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) {
		applyFlag(&cfg, flags, f.Name)
	})
	if err := cfg.validate(); err != nil {
		return err
	}
	req, err := cfg.runRequest()
	if err != nil {
		return err
	}

	logOut := stderr
	if cfg.Preview && cfg.LogFile == "" {
		// The preview owns the terminal.
		logOut = io.Discard
	}
	logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile, logOut)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()
	req.Logger = logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.New(reg)
		if err != nil {
			return err
		}
		req.Metrics = collector
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
				logger.Error("metrics server stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	if cfg.Preview {
		term, err := preview.OpenTerminal()
		if err != nil {
			return fmt.Errorf("open terminal preview: %w", err)
		}
		defer func() {
			_ = term.Close()
		}()
		go term.Watch(cancel)
		req.ExtraSinks = append(req.ExtraSinks, term)
	}

	client, err := openClient(cfg.Store, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	status := "completed"
	if summary.Stopped {
		status = "stopped"
	}
	fmt.Fprintf(stdout, "run_id=%s status=%s generations=%s accepted=%s snapshots=%d initial_fitness=%s best_fitness=%s\n",
		summary.RunID,
		status,
		humanize.Comma(int64(summary.Generations)),
		humanize.Comma(int64(summary.Accepted)),
		summary.Snapshots,
		humanize.CommafWithDigits(summary.InitialFitness, 2),
		humanize.CommafWithDigits(summary.BestFitness, 2),
	)
	if summary.SnapshotDir != "" {
		fmt.Fprintf(stdout, "snapshots_dir=%s\n", summary.SnapshotDir)
	}
	return nil
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "polyevolve.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID         string  `json:"run_id"`
			CreatedAtUTC  string  `json:"created_at_utc"`
			TargetPath    string  `json:"target_path"`
			Seed          int64   `json:"seed"`
			Polygons      int     `json:"polygons"`
			Mutation      string  `json:"mutation"`
			Generations   int     `json:"generations"`
			BestFitness   float64 `json:"best_fitness"`
			ContinuedFrom string  `json:"continued_from,omitempty"`
		}
		out := make([]runsItem, 0, len(items))
		for _, item := range items {
			out = append(out, runsItem(item))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s target=%s seed=%d polygons=%d mutation=%s gens=%d best_fitness=%.2f",
			item.RunID,
			item.CreatedAtUTC,
			item.TargetPath,
			item.Seed,
			item.Polygons,
			item.Mutation,
			item.Generations,
			item.BestFitness,
		)
		if item.ContinuedFrom != "" {
			fmt.Fprintf(stdout, " continued_from=%s", item.ContinuedFrom)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id whose latest checkpoint is rendered")
	out := fs.String("out", "", "output PNG path")
	blur := fs.Bool("blur", false, "apply the snapshot blur")
	blurRadius := fs.Float64("blur-radius", 0, "blur radius override (0 keeps the default)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "polyevolve.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" || *out == "" {
		return usageError("render requires --run-id and --out")
	}

	client, err := openClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.RenderCheckpoint(ctx, polyevolve.RenderRequest{
		RunID:      *runID,
		OutPath:    *out,
		Blur:       *blur,
		BlurRadius: *blurRadius,
	}); err != nil {
		return err
	}
	fmt.Printf("rendered run_id=%s out=%s\n", *runID, *out)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: polyevolvectl <init|reset|run|runs|render> [flags]", msg)
}
