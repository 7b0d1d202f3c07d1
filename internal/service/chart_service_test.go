package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/mocks"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/ratelimit"
	"github.com/phrazzld/scry-bi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reply = "ok【【【【【{\"series\":[]}【【【【【Sales doubled."

type enqueueCall struct {
	ChartID uuid.UUID
	OwnerID uuid.UUID
	Prompt  string
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueueCall
	err   error
}

func (f *fakeEnqueuer) Enqueue(chartID, ownerID uuid.UUID, prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueueCall{chartID, ownerID, prompt})
	return f.err
}

type serviceFixture struct {
	svc      ChartService
	sqlMock  sqlmock.Sqlmock
	charts   *mocks.MockChartStore
	datasets *mocks.MockDatasetStore
	limiter  *mocks.MockLimiter
	client   *mocks.MockAIClient
	pipeline *fakeEnqueuer
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &serviceFixture{
		sqlMock:  mock,
		charts:   mocks.NewMockChartStore(),
		datasets: mocks.NewMockDatasetStore(),
		limiter:  &mocks.MockLimiter{},
		client:   &mocks.MockAIClient{Reply: reply},
		pipeline: &fakeEnqueuer{},
	}
	log, _ := logger.NewTestLogger()
	f.svc, err = NewChartService(ChartServiceDeps{
		DB:       db,
		Charts:   f.charts,
		Datasets: f.datasets,
		Limiter:  f.limiter,
		Client:   f.client,
		Pipeline: f.pipeline,
	}, log)
	require.NoError(t, err)
	return f
}

func testDataset(t *testing.T) *domain.Dataset {
	t.Helper()
	ds, err := domain.NewDataset([]string{"month", "sales"}, [][]string{{"jan", "10"}, {"feb", "20"}})
	require.NoError(t, err)
	return ds
}

func testRequest(t *testing.T) GenChartRequest {
	return GenChartRequest{
		OwnerID:   uuid.New(),
		Name:      "sales",
		Goal:      "show the trend",
		ChartType: "line",
		Dataset:   testDataset(t),
	}
}

func TestNewChartService_NilDependencies(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	full := ChartServiceDeps{
		DB:       db,
		Charts:   mocks.NewMockChartStore(),
		Datasets: mocks.NewMockDatasetStore(),
		Limiter:  &mocks.MockLimiter{},
		Client:   &mocks.MockAIClient{},
		Pipeline: &fakeEnqueuer{},
	}

	tests := []struct {
		name   string
		mutate func(d *ChartServiceDeps)
	}{
		{"nil db", func(d *ChartServiceDeps) { d.DB = nil }},
		{"nil charts", func(d *ChartServiceDeps) { d.Charts = nil }},
		{"nil datasets", func(d *ChartServiceDeps) { d.Datasets = nil }},
		{"nil limiter", func(d *ChartServiceDeps) { d.Limiter = nil }},
		{"nil client", func(d *ChartServiceDeps) { d.Client = nil }},
		{"nil pipeline", func(d *ChartServiceDeps) { d.Pipeline = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := full
			tc.mutate(&deps)
			svc, err := NewChartService(deps, nil)
			assert.Nil(t, svc)
			var svcErr *ChartServiceError
			assert.True(t, errors.As(err, &svcErr))
		})
	}

	svc, err := NewChartService(full, nil)
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenChartAsync(t *testing.T) {
	t.Parallel()

	t.Run("persists and enqueues", func(t *testing.T) {
		f := newServiceFixture(t)
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()
		req := testRequest(t)

		id, err := f.svc.GenChartAsync(context.Background(), req)
		require.NoError(t, err)
		require.NoError(t, f.sqlMock.ExpectationsWereMet())

		chart := f.charts.Get(id)
		require.NotNil(t, chart)
		assert.Equal(t, domain.ChartStatusWait, chart.Status)
		assert.Equal(t, req.OwnerID, chart.OwnerID)
		assert.True(t, f.datasets.Has(domain.DatasetTableName(id)))

		require.Len(t, f.pipeline.calls, 1)
		assert.Equal(t, id, f.pipeline.calls[0].ChartID)
		assert.Equal(t, req.OwnerID, f.pipeline.calls[0].OwnerID)
		assert.Contains(t, f.pipeline.calls[0].Prompt, "show the trend, please use a line chart")
		assert.Contains(t, f.pipeline.calls[0].Prompt, "jan,10\nfeb,20")

		assert.Equal(t, []string{ratelimit.GenerationKey(req.OwnerID.String())}, f.limiter.Keys())
	})

	t.Run("validation failure persists nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		req := testRequest(t)
		req.Goal = "  "

		_, err := f.svc.GenChartAsync(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.limiter.Keys(), "invalid requests do not consume quota")
		assert.Empty(t, f.pipeline.calls)
		require.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("name too long", func(t *testing.T) {
		f := newServiceFixture(t)
		req := testRequest(t)
		req.Name = strings.Repeat("n", domain.MaxChartNameLength+1)

		_, err := f.svc.GenChartAsync(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("empty dataset", func(t *testing.T) {
		f := newServiceFixture(t)
		req := testRequest(t)
		req.Dataset = nil

		_, err := f.svc.GenChartAsync(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrEmptyDataset)
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newServiceFixture(t)
		f.limiter.Err = ratelimit.ErrRateLimited

		_, err := f.svc.GenChartAsync(context.Background(), testRequest(t))
		assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
		assert.Empty(t, f.pipeline.calls)
		require.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("dataset failure rolls back", func(t *testing.T) {
		f := newServiceFixture(t)
		f.datasets.InsertRowsFn = func(ctx context.Context, name string, rows [][]string) error {
			return errors.New("disk full")
		}
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()

		_, err := f.svc.GenChartAsync(context.Background(), testRequest(t))
		assert.ErrorIs(t, err, ErrPersistence)
		var svcErr *ChartServiceError
		assert.True(t, errors.As(err, &svcErr))
		assert.Empty(t, f.pipeline.calls)
		assert.Empty(t, f.datasets.Dropped(), "transactional stores roll back on their own")
		require.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("non-transactional dataset store is cleaned up", func(t *testing.T) {
		f := newServiceFixture(t)
		f.datasets.NonTransactional = true
		f.charts.CreateFn = func(ctx context.Context, chart *domain.Chart) error {
			return nil
		}
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit().WillReturnError(sql.ErrConnDone)

		_, err := f.svc.GenChartAsync(context.Background(), testRequest(t))
		assert.ErrorIs(t, err, ErrPersistence)
		assert.ErrorIs(t, err, store.ErrTransactionFailed)
		require.Len(t, f.datasets.Dropped(), 1)
		assert.True(t, strings.HasPrefix(f.datasets.Dropped()[0], "chart_"))
	})

	t.Run("enqueue failure marks chart failed", func(t *testing.T) {
		f := newServiceFixture(t)
		f.pipeline.err = errors.New("scheduler closed")
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()

		id, err := f.svc.GenChartAsync(context.Background(), testRequest(t))
		require.NoError(t, err)

		chart := f.charts.Get(id)
		require.NotNil(t, chart)
		assert.Equal(t, domain.ChartStatusFailed, chart.Status)
		assert.NotEmpty(t, chart.ExecMessage)
	})
}

func TestGenChart(t *testing.T) {
	t.Parallel()

	t.Run("success persists a succeeded chart", func(t *testing.T) {
		f := newServiceFixture(t)
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()

		res, err := f.svc.GenChart(context.Background(), testRequest(t))
		require.NoError(t, err)
		assert.Equal(t, `{"series":[]}`, res.GenChart)
		assert.Equal(t, "Sales doubled.", res.GenResult)

		chart := f.charts.Get(res.ChartID)
		require.NotNil(t, chart)
		assert.Equal(t, domain.ChartStatusSucceeded, chart.Status)
		assert.Equal(t, res.GenChart, chart.GenChart)
		assert.Equal(t, 1, f.client.Calls())
		assert.Empty(t, f.pipeline.calls)
		require.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("malformed reply persists nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		f.client.Reply = "no delimiters here"

		_, err := f.svc.GenChart(context.Background(), testRequest(t))
		require.Error(t, err)
		var svcErr *ChartServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, "AI generation error", svcErr.Message)
		require.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("client failure is not retried", func(t *testing.T) {
		f := newServiceFixture(t)
		f.client.Err = errors.New("upstream timeout")

		_, err := f.svc.GenChart(context.Background(), testRequest(t))
		require.Error(t, err)
		assert.Equal(t, 1, f.client.Calls())
	})

	t.Run("rate limited before calling the model", func(t *testing.T) {
		f := newServiceFixture(t)
		f.limiter.Err = ratelimit.ErrRateLimited

		_, err := f.svc.GenChart(context.Background(), testRequest(t))
		assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
		assert.Zero(t, f.client.Calls())
	})
}

func TestListMyCharts(t *testing.T) {
	t.Parallel()

	owner := uuid.New()

	t.Run("applies defaults", func(t *testing.T) {
		f := newServiceFixture(t)
		var got store.ChartQuery
		f.charts.ListByOwnerFn = func(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
			got = q
			return &store.ChartPage{Records: []*domain.Chart{}, Page: q.Page, PageSize: q.PageSize}, nil
		}

		page, err := f.svc.ListMyCharts(context.Background(), store.ChartQuery{OwnerID: owner})
		require.NoError(t, err)
		assert.Equal(t, 1, got.Page)
		assert.Equal(t, DefaultPageSize, got.PageSize)
		assert.NotNil(t, page.Records)
	})

	t.Run("rejects invalid queries", func(t *testing.T) {
		f := newServiceFixture(t)
		tests := []store.ChartQuery{
			{OwnerID: owner, PageSize: store.MaxPageSize + 1},
			{OwnerID: owner, PageSize: -1},
			{OwnerID: owner, SortField: "exec_message; drop table chart"},
			{OwnerID: owner, SortOrder: "sideways"},
			{},
		}
		for _, q := range tests {
			_, err := f.svc.ListMyCharts(context.Background(), q)
			assert.ErrorIs(t, err, domain.ErrValidation, "%+v", q)
		}
	})

	t.Run("returns only the caller's charts", func(t *testing.T) {
		f := newServiceFixture(t)
		mine, err := domain.NewChart(owner, "mine", "goal", "")
		require.NoError(t, err)
		theirs, err := domain.NewChart(uuid.New(), "theirs", "goal", "")
		require.NoError(t, err)
		f.charts.Put(mine)
		f.charts.Put(theirs)

		page, err := f.svc.ListMyCharts(context.Background(), store.ChartQuery{OwnerID: owner, PageSize: 20})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, mine.ID, page.Records[0].ID)
	})
}

func TestGetChart(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	owner := uuid.New()
	chart, err := domain.NewChart(owner, "mine", "goal", "")
	require.NoError(t, err)
	f.charts.Put(chart)

	got, err := f.svc.GetChart(context.Background(), owner, chart.ID)
	require.NoError(t, err)
	assert.Equal(t, chart.ID, got.ID)

	_, err = f.svc.GetChart(context.Background(), uuid.New(), chart.ID)
	assert.ErrorIs(t, err, ErrChartNotFound)

	_, err = f.svc.GetChart(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, ErrChartNotFound)
}
