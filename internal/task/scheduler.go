package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// SchedulerConfig sizes a Scheduler.
type SchedulerConfig struct {
	// WorkerCount is the number of tasks run concurrently
	WorkerCount int

	// QueueSize is the number of accepted tasks that may wait for a worker
	QueueSize int
}

// Scheduler runs tasks on a fixed set of workers behind a bounded queue.
// Submit never blocks: a full queue is reported as ErrSaturated through the
// returned Handle.
type Scheduler struct {
	queue  *TaskQueue
	pool   *WorkerPool
	logger *slog.Logger

	errorHandler func(task Task, err error)

	mu      sync.Mutex
	stopped bool
}

// scheduledTask pairs a submitted task with its handle while it is queued.
type scheduledTask struct {
	Task
	handle *Handle
}

// NewScheduler creates a Scheduler. Workers start with Start.
func NewScheduler(cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_scheduler")

	s := &Scheduler{
		queue:  NewTaskQueue(cfg.QueueSize, logger),
		logger: logger,
	}
	s.pool = NewWorkerPool(s.queue, WorkerPoolConfig{WorkerCount: cfg.WorkerCount}, logger)
	s.pool.SetCompleteHandler(s.finish)
	return s
}

// SetErrorHandler sets the function called with every task that returns
// an error or panics. It runs on the worker before the Handle completes.
// Must be called before Start.
func (s *Scheduler) SetErrorHandler(handler func(task Task, err error)) {
	s.errorHandler = handler
}

// Start launches the workers.
func (s *Scheduler) Start() {
	s.pool.Start()
}

// Stop refuses new submissions, cancels running tasks and waits for the
// workers to exit. Tasks still waiting in the queue complete with
// ErrSchedulerClosed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.queue.Close()
	s.pool.Stop()

	abandoned := 0
	for t := range s.queue.GetChannel() {
		t.(*scheduledTask).handle.complete(ErrSchedulerClosed)
		abandoned++
	}
	s.logger.Info("task scheduler stopped", "abandoned_tasks", abandoned)
}

// Submit hands a task to the workers and returns its Handle.
func (s *Scheduler) Submit(t Task) *Handle {
	h := newHandle()
	st := &scheduledTask{Task: t, handle: h}

	err := s.queue.Enqueue(st)
	switch {
	case err == nil:
	case errors.Is(err, ErrQueueFull):
		s.logger.Warn("task rejected, scheduler saturated",
			"task_id", t.ID(),
			"task_type", t.Type())
		h.complete(fmt.Errorf("%w: %w", ErrSaturated, err))
	case errors.Is(err, ErrQueueClosed):
		h.complete(ErrSchedulerClosed)
	default:
		h.complete(err)
	}
	return h
}

func (s *Scheduler) finish(t Task, err error) {
	st := t.(*scheduledTask)
	if err != nil && s.errorHandler != nil {
		s.errorHandler(st.Task, err)
	}
	st.handle.complete(err)
}
