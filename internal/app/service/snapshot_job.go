package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sifan077/SnapLink/internal/app/repository"
	"github.com/sifan077/SnapLink/internal/app/snapshot"
	"go.uber.org/zap"
)

const snapshotTimeout = 30 * time.Second

// SnapshotJob periodically writes every link to a snapshot file and writes a
// final one when stopped.
type SnapshotJob struct {
	logger   *zap.Logger
	store    repository.LinkStore
	path     string
	schedule string
	cron     *cron.Cron
}

// NewSnapshotJob creates a job writing store to path on the given cron
// schedule (standard five-field specs and "@every" descriptors).
func NewSnapshotJob(logger *zap.Logger, store repository.LinkStore, path, schedule string) *SnapshotJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotJob{
		logger:   logger,
		store:    store,
		path:     path,
		schedule: schedule,
	}
}

// Start registers the job and begins the schedule.
func (j *SnapshotJob) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("schedule snapshot %q: %w", j.schedule, err)
	}
	j.cron = c
	c.Start()

	j.logger.Info("snapshot job started",
		zap.String("path", j.path),
		zap.String("schedule", j.schedule))
	return nil
}

// Stop halts the schedule, waits for a running write and writes one last
// snapshot.
func (j *SnapshotJob) Stop(ctx context.Context) error {
	if j.cron != nil {
		select {
		case <-j.cron.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	_, err := j.Write(ctx)
	j.logger.Info("snapshot job stopped")
	return err
}

// Write exports the store now.
func (j *SnapshotJob) Write(ctx context.Context) (int, error) {
	n, err := snapshot.WriteFile(ctx, j.store, j.path)
	if err != nil {
		j.logger.Error("failed to write snapshot", zap.String("path", j.path), zap.Error(err))
		return 0, err
	}
	j.logger.Debug("snapshot written", zap.String("path", j.path), zap.Int("links", n))
	return n, nil
}

// Restore imports path into the store. Codes already present are kept.
func (j *SnapshotJob) Restore(ctx context.Context) (int, error) {
	n, skipped, err := snapshot.ReadFile(ctx, j.store, j.path)
	if err != nil {
		return n, fmt.Errorf("restore snapshot: %w", err)
	}
	if len(skipped) > 0 {
		j.logger.Warn("snapshot records already stored", zap.Strings("codes", skipped))
	}
	j.logger.Info("snapshot restored", zap.String("path", j.path), zap.Int("links", n))
	return n, nil
}

func (j *SnapshotJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	_, _ = j.Write(ctx)
}
