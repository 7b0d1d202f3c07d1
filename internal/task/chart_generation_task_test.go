package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/events"
	"github.com/phrazzld/scry-bi/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = "ok【【【【【{\"series\":[{\"type\":\"line\"}]}【【【【【Users grew steadily."

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.ChartStatusEvent
}

func (r *eventRecorder) EmitEvent(ctx context.Context, e *events.ChartStatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) statuses() []domain.ChartStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChartStatus, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

func waitingChart(t *testing.T, charts *mocks.MockChartStore) *domain.Chart {
	t.Helper()
	chart, err := domain.NewChart(uuid.New(), "sales", "show growth", "line")
	require.NoError(t, err)
	charts.Put(chart)
	return chart
}

func newTestTask(t *testing.T, client *mocks.MockAIClient, charts *mocks.MockChartStore, emitter events.EventEmitter, chart *domain.Chart) *ChartGenerationTask {
	t.Helper()
	factory, err := NewChartTaskFactory(client, charts, emitter, "test-model", nil)
	require.NoError(t, err)
	task, err := factory.CreateTask(chart.ID, chart.OwnerID, "prompt")
	require.NoError(t, err)
	return task
}

func TestChartGenerationTask_Success(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)
	emitter := &eventRecorder{}
	client := &mocks.MockAIClient{Reply: validReply}

	task := newTestTask(t, client, charts, emitter, chart)
	require.NoError(t, task.Execute(context.Background()))

	got := charts.Get(chart.ID)
	assert.Equal(t, domain.ChartStatusSucceeded, got.Status)
	assert.Equal(t, `{"series":[{"type":"line"}]}`, got.GenChart)
	assert.Equal(t, "Users grew steadily.", got.GenResult)
	assert.Empty(t, got.ExecMessage)
	assert.Equal(t, []string{"prompt"}, client.Prompts())
	assert.Equal(t, []domain.ChartStatus{domain.ChartStatusRunning, domain.ChartStatusSucceeded}, emitter.statuses())
}

func TestChartGenerationTask_AIErrorIsReturned(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)
	cause := errors.New("upstream 503")

	task := newTestTask(t, &mocks.MockAIClient{Err: cause}, charts, nil, chart)
	err := task.Execute(context.Background())

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.ChartStatusRunning, charts.Get(chart.ID).Status, "left running for the retry")
}

func TestChartGenerationTask_MalformedReply(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)

	task := newTestTask(t, &mocks.MockAIClient{Reply: "no sections here"}, charts, nil, chart)
	require.NoError(t, task.Execute(context.Background()), "format errors are recorded, not retried")

	got := charts.Get(chart.ID)
	assert.Equal(t, domain.ChartStatusFailed, got.Status)
	assert.Equal(t, ExecMessageAIError, got.ExecMessage)
	assert.Empty(t, got.GenChart)
}

func TestChartGenerationTask_RunningUpdateFails(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)
	client := &mocks.MockAIClient{Reply: validReply}

	charts.UpdateFn = func(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error {
		if update.Status == domain.ChartStatusRunning {
			return errors.New("connection refused")
		}
		return nil
	}

	task := newTestTask(t, client, charts, nil, chart)
	require.NoError(t, task.Execute(context.Background()))

	assert.Zero(t, client.Calls(), "the model is not called")
	updates := charts.Updates()
	require.Len(t, updates, 2)
	assert.Equal(t, domain.Failed(ExecMessageRunningUpdateFailed), updates[1].Update)
}

func TestChartGenerationTask_SucceededUpdateFails(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)

	var failed domain.ChartUpdate
	charts.UpdateFn = func(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error {
		switch update.Status {
		case domain.ChartStatusSucceeded:
			return errors.New("deadlock detected")
		case domain.ChartStatusFailed:
			failed = update
		}
		return nil
	}

	task := newTestTask(t, &mocks.MockAIClient{Reply: validReply}, charts, nil, chart)
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, ExecMessageSucceededUpdateFailed, failed.ExecMessage)
}

func TestChartGenerationTask_RecordingFailureIsDropped(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)
	charts.UpdateFn = func(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error {
		return errors.New("database down")
	}

	task := newTestTask(t, &mocks.MockAIClient{Reply: validReply}, charts, nil, chart)
	assert.NoError(t, task.Execute(context.Background()))
	assert.Len(t, charts.Updates(), 2)
}

func TestChartGenerationTask_RetriedAttemptRemarksRunning(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	chart := waitingChart(t, charts)

	attempts := 0
	client := &mocks.MockAIClient{ChatFn: func(ctx context.Context, modelID, prompt string) (string, error) {
		attempts++
		assert.Equal(t, "test-model", modelID)
		if attempts == 1 {
			return "", errors.New("timeout")
		}
		return validReply, nil
	}}

	task := newTestTask(t, client, charts, nil, chart)
	policy := NewBackoffRetryPolicy(3, 0)
	require.NoError(t, policy.Do(context.Background(), task.Execute))

	assert.Equal(t, domain.ChartStatusSucceeded, charts.Get(chart.ID).Status)
	updates := charts.Updates()
	require.Len(t, updates, 3)
	assert.Equal(t, domain.ChartStatusRunning, updates[0].Update.Status)
	assert.Equal(t, domain.ChartStatusRunning, updates[1].Update.Status)
	assert.NoError(t, updates[1].Err)
}

func TestChartTaskFactory_Validation(t *testing.T) {
	t.Parallel()

	charts := mocks.NewMockChartStore()
	client := &mocks.MockAIClient{}

	_, err := NewChartTaskFactory(nil, charts, nil, "", nil)
	assert.ErrorIs(t, err, ErrNilClient)
	_, err = NewChartTaskFactory(client, nil, nil, "", nil)
	assert.ErrorIs(t, err, ErrNilChartStore)

	factory, err := NewChartTaskFactory(client, charts, nil, "", nil)
	require.NoError(t, err)

	_, err = factory.CreateTask(uuid.Nil, uuid.New(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyChartID)
	_, err = factory.CreateTask(uuid.New(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	task, err := factory.CreateTask(uuid.New(), uuid.New(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeChartGeneration, task.Type())
}
