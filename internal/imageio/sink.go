package imageio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"

	"polyevolve/internal/evo"
)

// FileSink writes snapshots as zero-padded numbered PNG files.
type FileSink struct {
	Dir    string
	Logger *slog.Logger
}

func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

func SnapshotName(index int) string {
	return fmt.Sprintf("%010d.png", index)
}

func (s *FileSink) Path(index int) string {
	return filepath.Join(s.Dir, SnapshotName(index))
}

func (s *FileSink) Emit(ctx context.Context, index int, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(index)
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if s.Logger != nil {
		s.Logger.Info("saving image", "path", path)
	}
	return nil
}

// MultiSink fans a snapshot out to several sinks. Every sink is attempted.
type MultiSink []evo.SnapshotSink

func (m MultiSink) Emit(ctx context.Context, index int, img image.Image) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, index, img); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
