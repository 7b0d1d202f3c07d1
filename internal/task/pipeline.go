package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/store"
)

// Pipeline hands chart generation tasks to the scheduler. Execution faults
// are retried by the RetryPolicy on the worker; a saturated scheduler makes
// the pipeline resubmit the same task later according to the
// ResubmitPolicy.
type Pipeline struct {
	scheduler *Scheduler
	factory   *ChartTaskFactory
	charts    store.ChartStore
	datasets  store.DatasetStore
	retry     RetryPolicy
	resubmit  ResubmitPolicy
	recovery  RecoveryPolicy
	logger    *slog.Logger

	// after schedules f to run once d has elapsed
	after func(d time.Duration, f func())
}

// retryingTask runs a chart task under the pipeline's retry policy.
type retryingTask struct {
	*ChartGenerationTask
	policy RetryPolicy
}

func (t *retryingTask) Execute(ctx context.Context) error {
	return t.policy.Do(ctx, t.ChartGenerationTask.Execute)
}

// NewPipeline creates a pipeline and installs its error handler on the
// scheduler.
func NewPipeline(
	scheduler *Scheduler,
	factory *ChartTaskFactory,
	charts store.ChartStore,
	datasets store.DatasetStore,
	retry RetryPolicy,
	resubmit ResubmitPolicy,
	recovery RecoveryPolicy,
	logger *slog.Logger,
) (*Pipeline, error) {
	if scheduler == nil {
		return nil, ErrNilScheduler
	}
	if factory == nil {
		return nil, errors.New("task factory cannot be nil")
	}
	if charts == nil {
		return nil, ErrNilChartStore
	}
	if datasets == nil {
		return nil, ErrNilDatasetStore
	}
	if retry == nil {
		retry = NewBackoffRetryPolicy(3, time.Second)
	}
	resubmit = resubmit.withDefaults()
	recovery = recovery.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		scheduler: scheduler,
		factory:   factory,
		charts:    charts,
		datasets:  datasets,
		retry:     retry,
		resubmit:  resubmit,
		recovery:  recovery,
		logger:    logger.With("component", "generation_pipeline"),
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	scheduler.SetErrorHandler(p.handleError)
	return p, nil
}

// Enqueue creates the generation task for a chart in WAIT and submits it.
// It returns once the task is handed off; the outcome is only visible on
// the chart record.
func (p *Pipeline) Enqueue(chartID, ownerID uuid.UUID, prompt string) error {
	t, err := p.factory.CreateTask(chartID, ownerID, prompt)
	if err != nil {
		return fmt.Errorf("failed to create generation task: %w", err)
	}
	p.submit(&retryingTask{ChartGenerationTask: t, policy: p.retry}, 0)
	return nil
}

func (p *Pipeline) submit(t *retryingTask, resubmits int) {
	h := p.scheduler.Submit(t)
	h.OnComplete(func(err error) {
		log := p.logger.With("chart_id", t.ID())

		switch {
		case errors.Is(err, ErrSaturated):
			next := resubmits + 1
			if p.resubmit.Exhausted(next) {
				log.Error("giving up on chart, scheduler stayed saturated",
					"resubmits", resubmits)
				p.factory.recorder.fail(context.Background(), t.ID(), t.OwnerID(), ExecMessageSaturated)
				return
			}
			delay := p.resubmit.Backoff(next)
			log.Warn("scheduler saturated, resubmitting chart",
				"attempt", next,
				"delay", delay)
			p.after(delay, func() { p.submit(t, next) })

		case errors.Is(err, ErrSchedulerClosed):
			log.Warn("scheduler closed before chart ran, leaving it for recovery")
		}
	})
}

// handleError records a chart as FAILED when its task returns an error,
// which only happens once retries are exhausted or the task panicked.
func (p *Pipeline) handleError(task Task, err error) {
	rt, ok := task.(*retryingTask)
	if !ok {
		p.logger.Error("unexpected task type in pipeline", "task_type", task.Type(), "error", err)
		return
	}

	log := p.logger.With("chart_id", rt.ID())
	if errors.Is(err, context.Canceled) && !errors.Is(err, ErrRetriesExhausted) {
		log.Warn("chart generation interrupted by shutdown", "error", err)
		return
	}

	message := ExecMessageRetriesExhausted
	if errors.Is(err, ErrTaskPanicked) {
		message = ExecMessageAIError
	}
	log.Error("chart generation failed", "error", err, "exec_message", message)

	// The worker context may already be canceled.
	p.factory.recorder.fail(context.Background(), rt.ID(), rt.OwnerID(), message)
}
