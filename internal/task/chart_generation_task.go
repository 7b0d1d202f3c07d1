package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/generation"
)

// ChartGenerationTask asks the AI model to chart one dataset and records
// the outcome on the chart. Only a failed model call is returned as an
// error; every other failure is recorded on the chart and swallowed.
type ChartGenerationTask struct {
	chartID  uuid.UUID
	ownerID  uuid.UUID
	modelID  string
	prompt   string
	client   generation.Client
	recorder *statusRecorder
	logger   *slog.Logger
}

var _ Task = (*ChartGenerationTask)(nil)

// ID returns the chart ID, which doubles as the task ID.
func (t *ChartGenerationTask) ID() uuid.UUID {
	return t.chartID
}

// Type returns TaskTypeChartGeneration.
func (t *ChartGenerationTask) Type() string {
	return TaskTypeChartGeneration
}

// OwnerID returns the owner of the chart.
func (t *ChartGenerationTask) OwnerID() uuid.UUID {
	return t.ownerID
}

// Prompt returns the prompt sent to the model.
func (t *ChartGenerationTask) Prompt() string {
	return t.prompt
}

// Execute runs one generation attempt.
func (t *ChartGenerationTask) Execute(ctx context.Context) error {
	log := t.logger.With("chart_id", t.chartID)

	if err := t.recorder.transition(ctx, t.chartID, t.ownerID, domain.Running()); err != nil {
		log.Error("failed to mark chart running", "error", err)
		t.recorder.fail(ctx, t.chartID, t.ownerID, ExecMessageRunningUpdateFailed)
		return nil
	}

	reply, err := t.client.Chat(ctx, t.modelID, t.prompt)
	if err != nil {
		log.Warn("AI call failed", "error", err)
		return fmt.Errorf("AI call for chart %s failed: %w", t.chartID, err)
	}

	genChart, genResult, err := ParseReply(reply)
	if err != nil {
		log.Warn("AI reply rejected", "error", err, "reply_length", len(reply))
		t.recorder.fail(ctx, t.chartID, t.ownerID, ExecMessageAIError)
		return nil
	}

	if err := t.recorder.transition(ctx, t.chartID, t.ownerID, domain.Succeeded(genChart, genResult)); err != nil {
		log.Error("failed to record generated chart", "error", err)
		t.recorder.fail(ctx, t.chartID, t.ownerID, ExecMessageSucceededUpdateFailed)
		return nil
	}

	log.Info("chart generated")
	return nil
}
