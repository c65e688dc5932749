package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

type RefreshFeedTask struct {
	Task
	FeedID    int64
	refresher FeedRefresher
}

func NewRefreshFeedTask(feedID int64, refresher FeedRefresher) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:      NewTask(TaskTypeRefreshFeed, strconv.FormatInt(feedID, 10)),
		FeedID:    feedID,
		refresher: refresher,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	outcome, err := t.refresher.RefreshFeed(ctx, t.FeedID)
	if err != nil {
		return fmt.Errorf("failed to refresh feed: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed_id", t.FeedID,
		"duration", t.GetDuration(),
		"new", outcome.NewEntries,
		"skipped", outcome.Skipped)

	return nil
}
