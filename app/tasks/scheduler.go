package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	queueSize   = 300
	taskTimeout = 5 * time.Minute
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Stats is a point-in-time view of scheduler activity.
type Stats struct {
	Workers         int        `json:"workers"`
	QueueSize       int        `json:"queue_size"`
	TotalProcessed  int64      `json:"total_processed"`
	TotalErrors     int64      `json:"total_errors"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

type Scheduler struct {
	interval    time.Duration
	workerCount int
	periodic    func() TaskInterface
	startup     []TaskInterface
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu    sync.Mutex
	stats Stats
}

// NewScheduler creates a scheduler with workerCount workers. When interval is
// positive, periodic is called on every tick and its task enqueued. startup
// tasks are enqueued once by Start.
func NewScheduler(workerCount int, interval time.Duration, periodic func() TaskInterface, startup ...TaskInterface) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	workerCount = max(1, workerCount)

	return &Scheduler{
		interval:    interval,
		workerCount: workerCount,
		periodic:    periodic,
		startup:     startup,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		stats:       Stats{Workers: workerCount},
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	for _, task := range s.startup {
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue startup task", "type", string(task.GetType()), "error", err)
		}
	}

	if s.interval <= 0 || s.periodic == nil {
		slog.Debug("Periodic sync disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				task := s.periodic()
				if err := s.EnqueueTask(task); err != nil {
					slog.Warn("Failed to enqueue periodic task", "type", string(task.GetType()), "error", err)
				}
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers and pending retries to
// exit. Queued tasks that have not started are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("scheduler stopped: %w", err)
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.QueueSize = len(s.taskQueue)
	return stats
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.record(err)

	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !Retryable(err) {
		slog.Warn("Task failed permanently, not retrying", "type", string(task.GetType()), "target", task.GetTarget(), "error", err)
		return
	}
	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := task.NextRetryDelay()

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

func (s *Scheduler) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.stats.TotalProcessed++
	s.stats.LastProcessedAt = &now
	if err != nil {
		s.stats.TotalErrors++
	}
}
