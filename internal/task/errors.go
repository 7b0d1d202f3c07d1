package task

import "errors"

// Errors reported by the scheduler and the generation pipeline.
var (
	// ErrSaturated is reported through a Handle when every worker is busy
	// and the backlog is full. The task was not run.
	ErrSaturated = errors.New("task scheduler saturated")

	// ErrSchedulerClosed is reported through a Handle when the scheduler
	// has stopped. The task was not run.
	ErrSchedulerClosed = errors.New("task scheduler closed")

	// ErrRetriesExhausted wraps the last execution fault once a
	// RetryPolicy gives up.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrTaskPanicked wraps a panic raised while executing a task.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrAIResponseFormat is returned when a model reply cannot be split
	// into a chart configuration and an analysis.
	ErrAIResponseFormat = errors.New("AI response format invalid")
)

// Constructor errors
var (
	ErrNilChartStore   = errors.New("chart store cannot be nil")
	ErrNilDatasetStore = errors.New("dataset store cannot be nil")
	ErrNilClient       = errors.New("AI client cannot be nil")
	ErrNilScheduler    = errors.New("scheduler cannot be nil")
	ErrEmptyChartID    = errors.New("chart ID cannot be empty")
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
)

// Messages recorded on a failed chart.
const (
	ExecMessageRunningUpdateFailed   = "status update to running failed"
	ExecMessageAIError               = "AI generation error"
	ExecMessageSucceededUpdateFailed = "status update to succeeded failed"
	ExecMessageRetriesExhausted      = "AI generation failed after retries"
	ExecMessageSaturated             = "task queue saturated"
	ExecMessageInterrupted           = "generation interrupted"
	ExecMessageDatasetMissing        = "dataset unavailable for recovery"
)
