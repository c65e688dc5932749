package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lysyi3m/feedsync/app/feed"
)

type TaskType string

const (
	TaskTypeSyncFeeds   TaskType = "sync_feeds"
	TaskTypeRefreshFeed TaskType = "refresh_feed"
	TaskTypeSeedFeeds   TaskType = "seed_feeds"
)

const (
	DefaultMaxRetries = 3
	retryInitialDelay = time.Second
	retryMaxDelay     = 30 * time.Second
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	NextRetryDelay() time.Duration
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	Target     string // what the task works on, for logs
	RetryCount int
	MaxRetries int
	StartedAt  *time.Time
	backoff    *backoff.ExponentialBackOff
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetTarget() string {
	return t.Target
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// NextRetryDelay doubles from one second up to thirty seconds.
func (t *Task) NextRetryDelay() time.Duration {
	if t.backoff == nil {
		t.backoff = newRetryBackOff()
	}
	delay := t.backoff.NextBackOff()
	if delay == backoff.Stop {
		return retryMaxDelay
	}
	return delay
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, target string) Task {
	uniqueID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Intn(10000))

	return Task{
		ID:         uniqueID,
		Type:       taskType,
		Target:     target,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialDelay
	b.MaxInterval = retryMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Retryable reports whether a failed task should be attempted again. Missing
// and duplicate feeds fail the same way every time.
func Retryable(err error) bool {
	switch feed.KindOf(err) {
	case feed.ErrorKindNotFound, feed.ErrorKindDuplicateFeed:
		return false
	}
	return !errors.Is(err, context.Canceled)
}
