package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/feedsync/app/feed"
)

type fakeFetcher struct {
	delay    func(url string) time.Duration
	fail     map[string]bool
	panics   map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay != nil {
		time.Sleep(f.delay(url))
	}
	if f.panics[url] {
		panic("boom")
	}
	if f.fail[url] {
		return Result{URL: url, Err: feed.NewInvalidFeedError(fmt.Errorf("bad feed %s", url))}
	}
	return Result{URL: url, Snapshot: &feed.Snapshot{SourceURL: url, Title: url}}
}

func TestFetchAllPreservesOrder(t *testing.T) {
	urls := make([]string, 10)
	delays := make(map[string]time.Duration, len(urls))
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
		delays[urls[i]] = time.Duration(len(urls)-i) * 5 * time.Millisecond
	}

	fetcher := &fakeFetcher{delay: func(url string) time.Duration { return delays[url] }}
	results := NewOrchestrator(fetcher, 10).FetchAll(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("Expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("Expected result %d for %s, got %s", i, urls[i], r.URL)
		}
		if !r.OK() || r.Snapshot.SourceURL != urls[i] {
			t.Errorf("Expected snapshot for %s, got %+v", urls[i], r)
		}
	}
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}

	fetcher := &fakeFetcher{delay: func(string) time.Duration { return 10 * time.Millisecond }}
	NewOrchestrator(fetcher, 3).FetchAll(context.Background(), urls)

	if got := fetcher.maxSeen.Load(); got > 3 {
		t.Errorf("Expected at most 3 concurrent fetches, saw %d", got)
	}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	urls := []string{"https://example.com/ok1", "https://example.com/bad", "https://example.com/panic", "https://example.com/ok2"}
	fetcher := &fakeFetcher{
		fail:   map[string]bool{"https://example.com/bad": true},
		panics: map[string]bool{"https://example.com/panic": true},
	}

	results := NewOrchestrator(fetcher, 2).FetchAll(context.Background(), urls)

	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	if !results[0].OK() || !results[3].OK() {
		t.Error("Expected healthy feeds to succeed despite sibling failures")
	}
	if results[1].OK() || results[1].Err.Kind != feed.ErrorKindInvalidFeed {
		t.Errorf("Expected invalid_feed for bad feed, got %+v", results[1])
	}
	if results[2].OK() || results[2].URL != "https://example.com/panic" {
		t.Errorf("Expected recovered failure for panicking fetch, got %+v", results[2])
	}
}

func TestFetchAllEmpty(t *testing.T) {
	results := NewOrchestrator(&fakeFetcher{}, 0).FetchAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestFetchAllDoesNotWaitOnStuckFeed(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testRSS))
	}))
	defer fast.Close()

	worker := NewWorker(http.DefaultClient, feed.NewParser(), WithTimeout(100*time.Millisecond))
	orchestrator := NewOrchestrator(worker, 2)

	start := time.Now()
	results := orchestrator.FetchAll(context.Background(), []string{slow.URL, fast.URL})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected batch to finish near the per-fetch timeout, took %v", elapsed)
	}

	if results[0].OK() || results[0].Err.Kind != feed.ErrorKindTimeout {
		t.Errorf("Expected timeout for stuck feed, got %+v", results[0])
	}
	if !results[1].OK() {
		t.Errorf("Expected fast feed to succeed, got %v", results[1].Err)
	}
}
