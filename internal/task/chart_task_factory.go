package task

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/events"
	"github.com/phrazzld/scry-bi/internal/generation"
	"github.com/phrazzld/scry-bi/internal/store"
)

// ChartTaskFactory creates ChartGenerationTask instances that share one
// AI client, chart store and event emitter.
type ChartTaskFactory struct {
	client   generation.Client
	modelID  string
	recorder *statusRecorder
	logger   *slog.Logger
}

// NewChartTaskFactory creates a new factory for ChartGenerationTasks.
// emitter may be nil. modelID may be empty to use the client's default.
func NewChartTaskFactory(
	client generation.Client,
	charts store.ChartStore,
	emitter events.EventEmitter,
	modelID string,
	logger *slog.Logger,
) (*ChartTaskFactory, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if charts == nil {
		return nil, ErrNilChartStore
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chart_generation_task")

	return &ChartTaskFactory{
		client:  client,
		modelID: modelID,
		recorder: &statusRecorder{
			charts:  charts,
			emitter: emitter,
			logger:  logger,
		},
		logger: logger,
	}, nil
}

// CreateTask creates a task for the chart and its prompt.
func (f *ChartTaskFactory) CreateTask(chartID, ownerID uuid.UUID, prompt string) (*ChartGenerationTask, error) {
	if chartID == uuid.Nil {
		return nil, ErrEmptyChartID
	}
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	return &ChartGenerationTask{
		chartID:  chartID,
		ownerID:  ownerID,
		modelID:  f.modelID,
		prompt:   prompt,
		client:   f.client,
		recorder: f.recorder,
		logger:   f.logger,
	}, nil
}
