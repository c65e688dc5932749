package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/merger"
	"github.com/lysyi3m/feedsync/app/service"
)

// recordingTask fails the first failures attempts with err.
type recordingTask struct {
	Task
	failures int32
	err      error
	attempts atomic.Int32
	done     chan struct{}
	once     sync.Once
}

func newRecordingTask(failures int32, err error) *recordingTask {
	return &recordingTask{
		Task:     NewTask(TaskTypeSyncFeeds, "test"),
		failures: failures,
		err:      err,
		done:     make(chan struct{}),
	}
}

func (t *recordingTask) Execute(ctx context.Context) error {
	n := t.attempts.Add(1)
	if n <= t.failures {
		return t.err
	}
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *recordingTask) NextRetryDelay() time.Duration {
	return time.Millisecond
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for task")
	}
}

func waitForProcessed(t *testing.T, s *Scheduler, n int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for s.GetStats().TotalProcessed < n {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for %d processed tasks, stats: %+v", n, s.GetStats())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewScheduler(t *testing.T) {
	scheduler := NewScheduler(0, time.Second, nil)

	if scheduler.workerCount != 1 {
		t.Errorf("Expected worker count to be clamped to 1, got %d", scheduler.workerCount)
	}
	if cap(scheduler.taskQueue) != queueSize {
		t.Errorf("Expected queue capacity %d, got %d", queueSize, cap(scheduler.taskQueue))
	}
	if stats := scheduler.GetStats(); stats.Workers != 1 || stats.TotalProcessed != 0 {
		t.Errorf("Unexpected initial stats: %+v", stats)
	}
}

func TestSchedulerRunsStartupTasks(t *testing.T) {
	task := newRecordingTask(0, nil)
	scheduler := NewScheduler(2, 0, nil, task)
	scheduler.Start()
	defer scheduler.Stop()

	waitFor(t, task.done)

	if got := task.attempts.Load(); got != 1 {
		t.Errorf("Expected 1 attempt, got %d", got)
	}
}

func TestSchedulerRetriesTransientFailures(t *testing.T) {
	task := newRecordingTask(2, feed.NewTimeoutError(context.DeadlineExceeded))
	scheduler := NewScheduler(1, 0, nil)
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	waitFor(t, task.done)
	waitForProcessed(t, scheduler, 3)

	if got := task.attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
	if task.GetRetryCount() != 2 {
		t.Errorf("Expected retry count 2, got %d", task.GetRetryCount())
	}

	stats := scheduler.GetStats()
	if stats.TotalProcessed != 3 || stats.TotalErrors != 2 {
		t.Errorf("Expected 3 processed and 2 errors, got %+v", stats)
	}
	if stats.LastProcessedAt == nil {
		t.Error("Expected last processed time to be set")
	}
}

func TestSchedulerGivesUpAfterMaxRetries(t *testing.T) {
	task := newRecordingTask(100, errors.New("boom"))
	scheduler := NewScheduler(1, 0, nil)
	scheduler.Start()

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitForProcessed(t, scheduler, DefaultMaxRetries+1)
	time.Sleep(20 * time.Millisecond)
	scheduler.Stop()

	if got := task.attempts.Load(); got != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, got)
	}
}

func TestSchedulerDoesNotRetryPermanentFailures(t *testing.T) {
	task := newRecordingTask(100, feed.NewNotFoundError("Feed", 7))
	scheduler := NewScheduler(1, 0, nil)
	scheduler.Start()

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitForProcessed(t, scheduler, 1)
	time.Sleep(20 * time.Millisecond)
	scheduler.Stop()

	if got := task.attempts.Load(); got != 1 {
		t.Errorf("Expected a single attempt, got %d", got)
	}
}

func TestSchedulerPeriodicTasks(t *testing.T) {
	var created atomic.Int32
	ticked := make(chan struct{})
	var once sync.Once

	periodic := func() TaskInterface {
		created.Add(1)
		task := newRecordingTask(0, nil)
		go func() {
			<-task.done
			once.Do(func() { close(ticked) })
		}()
		return task
	}

	scheduler := NewScheduler(1, 10*time.Millisecond, periodic)
	scheduler.Start()
	waitFor(t, ticked)
	scheduler.Stop()

	if created.Load() < 1 {
		t.Error("Expected at least one periodic task")
	}
}

func TestEnqueueTaskErrors(t *testing.T) {
	scheduler := NewScheduler(1, 0, nil)

	for i := 0; i < queueSize; i++ {
		if err := scheduler.EnqueueTask(newRecordingTask(0, nil)); err != nil {
			t.Fatalf("Expected no error at %d, got: %v", i, err)
		}
	}
	if err := scheduler.EnqueueTask(newRecordingTask(0, nil)); err == nil {
		t.Error("Expected error when queue is full")
	}

	scheduler.Stop()
	if err := scheduler.EnqueueTask(newRecordingTask(0, nil)); err == nil {
		t.Error("Expected error after stop")
	}
}

func TestNextRetryDelay(t *testing.T) {
	task := NewTask(TaskTypeRefreshFeed, "1")

	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, task.NextRetryDelay())
	}

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Retry delays mismatch (-want +got):\n%s", diff)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", feed.NewTimeoutError(context.DeadlineExceeded), true},
		{"storage", feed.NewStorageError("insert", errors.New("disk full")), true},
		{"invalid feed", feed.NewInvalidFeedError(errors.New("bad xml")), true},
		{"not found", feed.NewNotFoundError("Feed", 1), false},
		{"wrapped duplicate", errors.Join(errors.New("ctx"), feed.NewDuplicateFeedError("u")), false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

type fakeService struct {
	report  *service.SyncReport
	outcome *merger.Outcome
	batch   *service.BatchResult
	err     error
	seeded  []feed.Subscription
	feedID  int64
}

func (f *fakeService) SyncDueFeeds(ctx context.Context) (*service.SyncReport, error) {
	return f.report, f.err
}

func (f *fakeService) RefreshFeed(ctx context.Context, id int64) (*merger.Outcome, error) {
	f.feedID = id
	return f.outcome, f.err
}

func (f *fakeService) SeedSubscriptions(ctx context.Context, subs []feed.Subscription) (*service.BatchResult, error) {
	f.seeded = subs
	return f.batch, f.err
}

func TestTaskExecute(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{
		report:  &service.SyncReport{Due: 1, Refreshed: 1},
		outcome: &merger.Outcome{NewEntries: 2},
		batch:   &service.BatchResult{Items: []service.BatchItem{{URL: "u", Status: service.StatusSuccess}}},
	}

	if err := NewSyncFeedsTask(svc).Execute(ctx); err != nil {
		t.Errorf("Expected sync to succeed, got: %v", err)
	}

	refresh := NewRefreshFeedTask(42, svc)
	if refresh.GetTarget() != "42" {
		t.Errorf("Expected target '42', got %q", refresh.GetTarget())
	}
	if err := refresh.Execute(ctx); err != nil {
		t.Errorf("Expected refresh to succeed, got: %v", err)
	}
	if svc.feedID != 42 {
		t.Errorf("Expected feed 42 to be refreshed, got %d", svc.feedID)
	}

	subs := []feed.Subscription{{Name: "a", URL: "https://a.test/feed"}}
	if err := NewSeedFeedsTask(subs, svc).Execute(ctx); err != nil {
		t.Errorf("Expected seed to succeed, got: %v", err)
	}
	if diff := cmp.Diff(subs, svc.seeded); diff != "" {
		t.Errorf("Seeded subscriptions mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskExecuteErrorsKeepKind(t *testing.T) {
	svc := &fakeService{err: feed.NewNotFoundError("Feed", 3)}

	err := NewRefreshFeedTask(3, svc).Execute(context.Background())
	if !feed.IsKind(err, feed.ErrorKindNotFound) {
		t.Errorf("Expected wrapped not_found, got %v", err)
	}
	if Retryable(err) {
		t.Error("Expected wrapped not_found to be permanent")
	}
}

func TestTaskExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewSyncFeedsTask(&fakeService{}).Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
