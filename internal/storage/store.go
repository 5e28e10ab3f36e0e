package storage

import (
	"context"

	"polyevolve/internal/model"
)

// Store persists run records and best-genome checkpoints.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveCheckpoint(ctx context.Context, checkpoint model.Checkpoint) error
	GetLatestCheckpoint(ctx context.Context, runID string) (model.Checkpoint, bool, error)
	Reset(ctx context.Context) error
}
