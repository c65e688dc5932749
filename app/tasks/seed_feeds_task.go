package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/feedsync/app/feed"
)

// SeedFeedsTask ingests the subscriptions declared in the feeds directory.
// Subscriptions that are already stored are refreshed instead of duplicated.
type SeedFeedsTask struct {
	Task
	Subscriptions []feed.Subscription
	seeder        SubscriptionSeeder
}

func NewSeedFeedsTask(subs []feed.Subscription, seeder SubscriptionSeeder) *SeedFeedsTask {
	return &SeedFeedsTask{
		Task:          NewTask(TaskTypeSeedFeeds, fmt.Sprintf("%d subscriptions", len(subs))),
		Subscriptions: subs,
		seeder:        seeder,
	}
}

func (t *SeedFeedsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.seeder.SeedSubscriptions(ctx, t.Subscriptions)
	if err != nil {
		return fmt.Errorf("failed to seed feeds: %w", err)
	}

	for _, item := range result.Items {
		if item.Kind != "" {
			slog.Warn("Subscription not ingested", "url", item.URL, "kind", item.Kind, "message", item.Message)
		}
	}

	slog.Info("Task completed",
		"type", "SeedFeeds",
		"duration", t.GetDuration(),
		"total", len(result.Items),
		"failed", result.FailedCount())

	return nil
}
