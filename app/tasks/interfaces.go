package tasks

import (
	"context"

	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/merger"
	"github.com/lysyi3m/feedsync/app/service"
)

// TaskSchedulerInterface is what the HTTP layer and main need from the scheduler.
//
//	periodic := func() TaskInterface { return NewSyncFeedsTask(svc) }
//	scheduler := NewScheduler(workerCount, interval, periodic, NewSeedFeedsTask(subs, svc))
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSyncFeedsTask(svc))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	GetStats() Stats
}

type DueFeedSyncer interface {
	SyncDueFeeds(ctx context.Context) (*service.SyncReport, error)
}

type FeedRefresher interface {
	RefreshFeed(ctx context.Context, id int64) (*merger.Outcome, error)
}

type SubscriptionSeeder interface {
	SeedSubscriptions(ctx context.Context, subs []feed.Subscription) (*service.BatchResult, error)
}

var (
	_ DueFeedSyncer      = (*service.Service)(nil)
	_ FeedRefresher      = (*service.Service)(nil)
	_ SubscriptionSeeder = (*service.Service)(nil)
)
