package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/metrics"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 5 * 1024 * 1024
	DefaultUserAgent   = "feedsync/1.0"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type FeedParser interface {
	Run(sourceURL string, data []byte) (*feed.Snapshot, error)
}

var _ FeedParser = (*feed.Parser)(nil)

// Worker performs single isolated feed retrievals. It keeps no state between
// calls and never caches documents.
type Worker struct {
	client      HTTPClient
	parser      FeedParser
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
}

type Option func(*Worker)

func WithTimeout(timeout time.Duration) Option {
	return func(w *Worker) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

func WithMaxBodySize(size int64) Option {
	return func(w *Worker) {
		if size > 0 {
			w.maxBodySize = size
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(w *Worker) {
		if userAgent != "" {
			w.userAgent = userAgent
		}
	}
}

func NewWorker(client HTTPClient, parser FeedParser, opts ...Option) *Worker {
	w := &Worker{
		client:      client,
		parser:      parser,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fetch retrieves and parses url within the worker timeout. Failures are
// returned as data; Fetch never panics.
func (w *Worker) Fetch(ctx context.Context, url string) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in fetch worker", "url", url, "panic", r)
			result = failure(url, feed.NewInvalidFeedError(fmt.Errorf("panic during fetch: %v", r)))
		}
		result.Duration = time.Since(start)
		metrics.ObserveFetch(result.Outcome(), result.Duration)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	data, err := w.download(timeoutCtx, url)
	if err != nil {
		if isTimeout(timeoutCtx, err) {
			return failure(url, feed.NewTimeoutError(err))
		}
		return failure(url, feed.NewInvalidFeedError(err))
	}

	snapshot, err := w.parser.Run(url, data)
	if err != nil {
		return failure(url, feed.NewInvalidFeedError(err))
	}

	return success(url, snapshot)
}

func (w *Worker) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > w.maxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", w.maxBodySize)
	}

	return data, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
