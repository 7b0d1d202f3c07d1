package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
)

// ChartStatusEvent records that a chart reached a new status.
type ChartStatusEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	ChartID     uuid.UUID          `json:"chart_id"`
	OwnerID     uuid.UUID          `json:"owner_id"`
	Status      domain.ChartStatus `json:"status"`
	ExecMessage string             `json:"exec_message,omitempty"`

	// OccurredAt is when the transition was persisted
	OccurredAt time.Time `json:"occurred_at"`
}

// NewChartStatusEvent creates an event for a transition of chart to status.
func NewChartStatusEvent(chartID, ownerID uuid.UUID, status domain.ChartStatus, execMessage string) *ChartStatusEvent {
	return &ChartStatusEvent{
		ID:          uuid.New(),
		ChartID:     chartID,
		OwnerID:     ownerID,
		Status:      status,
		ExecMessage: execMessage,
		OccurredAt:  time.Now().UTC(),
	}
}

// Marshal encodes the event as JSON.
func (e *ChartStatusEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ChartStatusEvent) error
}

// HandlerFunc adapts an ordinary function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *ChartStatusEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ChartStatusEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the pipeline to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *ChartStatusEvent) error
}
