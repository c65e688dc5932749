package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type SyncFeedsTask struct {
	Task
	syncer DueFeedSyncer
}

func NewSyncFeedsTask(syncer DueFeedSyncer) *SyncFeedsTask {
	return &SyncFeedsTask{
		Task:   NewTask(TaskTypeSyncFeeds, "due feeds"),
		syncer: syncer,
	}
}

func (t *SyncFeedsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.syncer.SyncDueFeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync feeds: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncFeeds",
		"duration", t.GetDuration(),
		"due", report.Due,
		"refreshed", report.Refreshed,
		"failed", report.Failed,
		"new", report.NewEntries)

	return nil
}
