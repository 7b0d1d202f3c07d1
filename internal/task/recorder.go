package task

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/events"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/store"
)

// statusRecorder persists chart transitions and announces them.
type statusRecorder struct {
	charts  store.ChartStore
	emitter events.EventEmitter
	logger  *slog.Logger
}

// transition writes update and, once persisted, emits a status event.
// Event delivery failures are logged and do not fail the transition.
func (r *statusRecorder) transition(ctx context.Context, chartID, ownerID uuid.UUID, update domain.ChartUpdate) error {
	if err := r.charts.Update(ctx, chartID, update); err != nil {
		return err
	}

	if r.emitter != nil {
		event := events.NewChartStatusEvent(chartID, ownerID, update.Status, update.ExecMessage)
		if err := r.emitter.EmitEvent(ctx, event); err != nil {
			logger.FromContextOrDefault(ctx, r.logger).Warn("failed to emit chart status event",
				"error", err,
				"chart_id", chartID,
				"status", update.Status)
		}
	}
	return nil
}

// fail records the chart as FAILED. A failure to record is logged and
// dropped; there is nothing further to fall back to.
func (r *statusRecorder) fail(ctx context.Context, chartID, ownerID uuid.UUID, message string) {
	if err := r.transition(ctx, chartID, ownerID, domain.Failed(message)); err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Error("failed to record chart failure",
			"error", err,
			"chart_id", chartID,
			"exec_message", message)
	}
}
