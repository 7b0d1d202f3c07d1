package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler collects the events it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []*ChartStatusEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *ChartStatusEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	event := NewChartStatusEvent(uuid.New(), uuid.New(), domain.ChartStatusRunning, "")

	t.Run("no handlers", func(t *testing.T) {
		assert.NoError(t, NewInMemoryEventEmitter(nil).EmitEvent(context.Background(), event))
	})

	t.Run("fans out to every handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		h1, h2 := &recordingHandler{}, &recordingHandler{}
		emitter.RegisterHandler(h1)
		emitter.RegisterHandler(h2)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, []*ChartStatusEvent{event}, h1.events)
		assert.Equal(t, []*ChartStatusEvent{event}, h2.events)
	})

	t.Run("returns the first error but still delivers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		first := errors.New("first")
		failing := &recordingHandler{err: first}
		second := &recordingHandler{err: errors.New("second")}
		ok := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(second)
		emitter.RegisterHandler(ok)

		err := emitter.EmitEvent(context.Background(), event)
		assert.ErrorIs(t, err, first)
		assert.Len(t, ok.events, 1)
	})

	t.Run("handler func", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		var got *ChartStatusEvent
		emitter.RegisterHandler(HandlerFunc(func(ctx context.Context, e *ChartStatusEvent) error {
			got = e
			return nil
		}))

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Same(t, event, got)
	})
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	l, buf := logger.NewTestLogger()
	event := NewChartStatusEvent(uuid.New(), uuid.New(), domain.ChartStatusFailed, "AI generation error")

	require.NoError(t, NewLogHandler(l).HandleEvent(context.Background(), event))

	entries := buf.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "chart status changed", entries[0]["msg"])
	assert.Equal(t, "failed", entries[0]["status"])
	assert.Equal(t, "AI generation error", entries[0]["exec_message"])
	assert.Equal(t, event.ChartID.String(), entries[0]["chart_id"])
}

func TestChartStatusEvent_Marshal(t *testing.T) {
	t.Parallel()

	event := NewChartStatusEvent(uuid.New(), uuid.New(), domain.ChartStatusSucceeded, "")
	data, err := event.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "succeeded", decoded["status"])
	assert.NotContains(t, decoded, "exec_message")
}
