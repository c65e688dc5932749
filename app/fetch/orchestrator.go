package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feedsync/app/feed"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 5

// Fetcher fetches a single feed. *Worker is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Result
}

var _ Fetcher = (*Worker)(nil)

// Orchestrator runs one fetch per URL with bounded concurrency.
type Orchestrator struct {
	fetcher     Fetcher
	concurrency int
}

func NewOrchestrator(fetcher Fetcher, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		fetcher:     fetcher,
		concurrency: concurrency,
	}
}

// FetchAll returns once every fetch has completed. results[i] always belongs
// to urls[i], whatever order the fetches finish in. A failing fetch never
// cancels its siblings.
func (o *Orchestrator) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, url := range urls {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Recovered panic in fetch", "url", url, "panic", r)
					results[i] = failure(url, feed.NewInvalidFeedError(fmt.Errorf("panic during fetch: %v", r)))
				}
			}()
			results[i] = o.fetcher.Fetch(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	slog.Debug("Fetch batch completed", "total", len(urls), "failed", failed, "duration", time.Since(start))

	return results
}
