package main

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"polyevolve/internal/evo"
	"polyevolve/internal/genotype"
	"polyevolve/internal/model"
	"polyevolve/internal/render"
	"polyevolve/pkg/polyevolve"
)

// runConfig is the merged view of defaults, the optional TOML file and
// explicitly set flags, in that order of precedence.
type runConfig struct {
	Target      string `toml:"target"`
	RunID       string `toml:"run_id"`
	ContinueRun string `toml:"continue_run"`
	Seed        int64  `toml:"seed"`

	Polygons    int    `toml:"polygons"`
	MinPoints   int    `toml:"min_points"`
	MaxPoints   int    `toml:"max_points"`
	Offset      int    `toml:"offset"`
	RandomColor bool   `toml:"random_color"`
	Mutation    string `toml:"mutation"`

	Generations        int     `toml:"generations"`
	SnapshotInterval   int     `toml:"snapshot_interval"`
	SnapshotDir        string  `toml:"snapshot_dir"`
	NoSnapshots        bool    `toml:"no_snapshots"`
	CheckpointInterval int     `toml:"checkpoint_interval"`
	Blur               float64 `toml:"blur"`
	Background         string  `toml:"background"`

	Store  string `toml:"store"`
	DBPath string `toml:"db_path"`

	Preview     bool   `toml:"preview"`
	MetricsAddr string `toml:"metrics_addr"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	// set holds the config keys given in the file or on the command line.
	set map[string]bool
}

func (c *runConfig) markSet(key string) {
	if c.set == nil {
		c.set = make(map[string]bool)
	}
	c.set[key] = true
}

func (c runConfig) isSet(key string) bool {
	return c.set[key]
}

func defaultRunConfig() runConfig {
	params := genotype.DefaultParams()
	return runConfig{
		Polygons:           params.Polygons,
		MinPoints:          params.MinPoints,
		MaxPoints:          params.MaxPoints,
		Offset:             params.Offset,
		Mutation:           evo.DefaultMutation,
		SnapshotInterval:   evo.DefaultSnapshotInterval,
		CheckpointInterval: 1000,
		Blur:               render.DefaultBlurRadius,
		Background:         "#000000",
		DBPath:             "polyevolve.db",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// loadRunConfig decodes path on top of base. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func loadRunConfig(path string, base runConfig) (runConfig, error) {
	cfg := base
	cfg.set = maps.Clone(base.set)
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return runConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return runConfig{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	for _, key := range md.Keys() {
		cfg.markSet(key.String())
	}
	return cfg, nil
}

// applyFlag copies the named flag's parsed value from flags into cfg and
// marks the matching config key as set.
func applyFlag(cfg *runConfig, flags runConfig, name string) {
	cfg.markSet(strings.ReplaceAll(name, "-", "_"))
	switch name {
	case "target":
		cfg.Target = flags.Target
	case "run-id":
		cfg.RunID = flags.RunID
	case "continue-run":
		cfg.ContinueRun = flags.ContinueRun
	case "seed":
		cfg.Seed = flags.Seed
	case "polygons":
		cfg.Polygons = flags.Polygons
	case "min-points":
		cfg.MinPoints = flags.MinPoints
	case "max-points":
		cfg.MaxPoints = flags.MaxPoints
	case "offset":
		cfg.Offset = flags.Offset
	case "random-color":
		cfg.RandomColor = flags.RandomColor
	case "mutation":
		cfg.Mutation = flags.Mutation
	case "gens":
		cfg.Generations = flags.Generations
	case "snapshot-interval":
		cfg.SnapshotInterval = flags.SnapshotInterval
	case "snapshot-dir":
		cfg.SnapshotDir = flags.SnapshotDir
	case "no-snapshots":
		cfg.NoSnapshots = flags.NoSnapshots
	case "checkpoint-interval":
		cfg.CheckpointInterval = flags.CheckpointInterval
	case "blur":
		cfg.Blur = flags.Blur
	case "background":
		cfg.Background = flags.Background
	case "store":
		cfg.Store = flags.Store
	case "db-path":
		cfg.DBPath = flags.DBPath
	case "preview":
		cfg.Preview = flags.Preview
	case "metrics-addr":
		cfg.MetricsAddr = flags.MetricsAddr
	case "log-level":
		cfg.LogLevel = flags.LogLevel
	case "log-format":
		cfg.LogFormat = flags.LogFormat
	case "log-file":
		cfg.LogFile = flags.LogFile
	}
}

func (c runConfig) validate() error {
	if c.Target == "" {
		return usageError("run requires --target (or target in --config)")
	}
	if c.Generations < 0 {
		return fmt.Errorf("gens must be >= 0")
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot-interval must be > 0")
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint-interval must be > 0")
	}
	if !slices.Contains(evo.ListMutations(), c.Mutation) {
		return fmt.Errorf("unknown mutation %q: want one of %s", c.Mutation, strings.Join(evo.ListMutations(), "|"))
	}
	params := genotype.Params{
		Polygons:  c.Polygons,
		MinPoints: c.MinPoints,
		MaxPoints: c.MaxPoints,
		Offset:    c.Offset,
	}
	return params.Validate()
}

func (c runConfig) runRequest() (polyevolve.RunRequest, error) {
	background, err := parseHexColor(c.Background)
	if err != nil {
		return polyevolve.RunRequest{}, err
	}
	blur := c.Blur
	if blur == 0 {
		blur = -1
	}
	req := polyevolve.RunRequest{
		TargetPath:         c.Target,
		RunID:              c.RunID,
		ContinueRunID:      c.ContinueRun,
		Seed:               c.Seed,
		RandomColor:        c.RandomColor,
		SnapshotInterval:   c.SnapshotInterval,
		SnapshotDir:        c.SnapshotDir,
		DisableSnapshots:   c.NoSnapshots,
		BlurRadius:         blur,
		Background:         background,
		Generations:        c.Generations,
		CheckpointInterval: c.CheckpointInterval,
	}
	// A continued run inherits genome settings it was not explicitly given.
	resumed := c.ContinueRun != ""
	if !resumed || c.isSet("polygons") {
		req.Polygons = c.Polygons
	}
	if !resumed || c.isSet("min_points") {
		req.MinPoints = c.MinPoints
	}
	if !resumed || c.isSet("max_points") {
		req.MaxPoints = c.MaxPoints
	}
	if !resumed || c.isSet("offset") {
		offset := c.Offset
		req.Offset = &offset
	}
	if !resumed || c.isSet("mutation") {
		req.Mutation = c.Mutation
	}
	return req, nil
}

// parseHexColor accepts #rrggbb or #rrggbbaa; alpha defaults to opaque.
func parseHexColor(s string) (model.Color, error) {
	hex := strings.TrimPrefix(s, "#")
	var r, g, b uint8
	a := uint8(255)
	switch len(hex) {
	case 6:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
			return model.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
	case 8:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return model.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
	default:
		return model.Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	return model.Color{R: r, G: g, B: b, A: a}, nil
}

// newLogger builds the process logger. The returned closer releases the log
// file when one is configured.
func newLogger(level, format, file string, fallback io.Writer) (*slog.Logger, func() error, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}

	out := fallback
	closer := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(out, opts)), closer, nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), closer, nil
	default:
		_ = closer()
		return nil, nil, fmt.Errorf("invalid log format %q: want text|json", format)
	}
}
