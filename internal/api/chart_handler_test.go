package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/api/shared"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/ratelimit"
	"github.com/phrazzld/scry-bi/internal/service"
	"github.com/phrazzld/scry-bi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChartService struct {
	GenChartFn      func(ctx context.Context, req service.GenChartRequest) (*service.GenChartResult, error)
	GenChartAsyncFn func(ctx context.Context, req service.GenChartRequest) (uuid.UUID, error)
	ListMyChartsFn  func(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error)
	GetChartFn      func(ctx context.Context, ownerID, chartID uuid.UUID) (*domain.Chart, error)
}

func (m *mockChartService) GenChart(ctx context.Context, req service.GenChartRequest) (*service.GenChartResult, error) {
	return m.GenChartFn(ctx, req)
}

func (m *mockChartService) GenChartAsync(ctx context.Context, req service.GenChartRequest) (uuid.UUID, error) {
	return m.GenChartAsyncFn(ctx, req)
}

func (m *mockChartService) ListMyCharts(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
	return m.ListMyChartsFn(ctx, q)
}

func (m *mockChartService) GetChart(ctx context.Context, ownerID, chartID uuid.UUID) (*domain.Chart, error) {
	return m.GetChartFn(ctx, ownerID, chartID)
}

const salesCSV = "month,sales\njan,10\nfeb,20\n"

// uploadRequest builds an authenticated multipart request.
func uploadRequest(t *testing.T, target string, ownerID uuid.UUID, fields map[string]string, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if ownerID != uuid.Nil {
		req = req.WithContext(shared.WithOwnerID(req.Context(), ownerID))
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestChartHandler_GenChartAsync(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	chartID := uuid.New()
	fields := map[string]string{"name": "sales", "goal": "show the trend", "chart_type": "line"}

	t.Run("accepted", func(t *testing.T) {
		var got service.GenChartRequest
		svc := &mockChartService{GenChartAsyncFn: func(ctx context.Context, req service.GenChartRequest) (uuid.UUID, error) {
			got = req
			return chartID, nil
		}}
		h := NewChartHandler(svc, 0, nil)
		rec := httptest.NewRecorder()

		h.GenChartAsync(rec, uploadRequest(t, "/api/charts/gen/async", ownerID, fields, "sales.csv", salesCSV))

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp GenChartAsyncResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, chartID, resp.ChartID)

		assert.Equal(t, ownerID, got.OwnerID)
		assert.Equal(t, "show the trend", got.Goal)
		assert.Equal(t, "line", got.ChartType)
		assert.Equal(t, []string{"month", "sales"}, got.Dataset.Fields)
		assert.Len(t, got.Dataset.Rows, 2)
	})

	failing := &mockChartService{GenChartAsyncFn: func(ctx context.Context, req service.GenChartRequest) (uuid.UUID, error) {
		t.Fatal("service must not be called")
		return uuid.Nil, nil
	}}

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChartHandler(failing, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", uuid.Nil, fields, "sales.csv", salesCSV))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChartHandler(failing, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, fields, "sales.txt", salesCSV))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "File must be xlsx or csv", decodeError(t, rec).Error)
	})

	t.Run("file over the limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		big := "a,b\n" + strings.Repeat("1,2\n", 600)
		NewChartHandler(failing, 1024, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, fields, "big.csv", big))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "File is too large", decodeError(t, rec).Error)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChartHandler(failing, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, fields, "", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid file: is required", decodeError(t, rec).Error)
	})

	t.Run("missing goal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		noGoal := map[string]string{"name": "sales"}
		NewChartHandler(failing, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, noGoal, "sales.csv", salesCSV))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid goal: is required", decodeError(t, rec).Error)
	})

	t.Run("name too long", func(t *testing.T) {
		rec := httptest.NewRecorder()
		long := map[string]string{"name": strings.Repeat("图", 101), "goal": "trend"}
		NewChartHandler(failing, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, long, "sales.csv", salesCSV))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid name: must be at most 100 characters", decodeError(t, rec).Error)
	})

	t.Run("rate limited", func(t *testing.T) {
		svc := &mockChartService{GenChartAsyncFn: func(ctx context.Context, req service.GenChartRequest) (uuid.UUID, error) {
			return uuid.Nil, ratelimit.ErrRateLimited
		}}
		rec := httptest.NewRecorder()
		NewChartHandler(svc, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, fields, "sales.csv", salesCSV))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("persistence failure hides details", func(t *testing.T) {
		svc := &mockChartService{GenChartAsyncFn: func(ctx context.Context, req service.GenChartRequest) (uuid.UUID, error) {
			return uuid.Nil, &service.ChartServiceError{
				Operation: "gen_chart_async",
				Message:   "failed to persist chart",
				Err:       errors.New("pq: relation chart_abc does not exist"),
			}
		}}
		rec := httptest.NewRecorder()
		NewChartHandler(svc, 0, nil).GenChartAsync(rec, uploadRequest(t, "/", ownerID, fields, "sales.csv", salesCSV))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "Failed to submit chart", body.Error)
		assert.NotContains(t, rec.Body.String(), "relation")
	})
}

func TestChartHandler_GenChart(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	want := &service.GenChartResult{ChartID: uuid.New(), GenChart: `{"series":[]}`, GenResult: "flat"}
	svc := &mockChartService{GenChartFn: func(ctx context.Context, req service.GenChartRequest) (*service.GenChartResult, error) {
		return want, nil
	}}

	rec := httptest.NewRecorder()
	NewChartHandler(svc, 0, nil).GenChart(rec, uploadRequest(t, "/api/charts/gen", ownerID,
		map[string]string{"goal": "trend"}, "sales.csv", salesCSV))

	require.Equal(t, http.StatusOK, rec.Code)
	var got service.GenChartResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, *want, got)
}

func TestChartHandler_ListMyCharts(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("passes filters", func(t *testing.T) {
		var got store.ChartQuery
		svc := &mockChartService{ListMyChartsFn: func(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
			got = q
			return &store.ChartPage{Records: []*domain.Chart{}, Page: 2, PageSize: 5}, nil
		}}
		req := httptest.NewRequest(http.MethodGet,
			"/api/charts/my?page=2&page_size=5&name=sal&chart_type=line&sort_field=name&sort_order=asc", nil)
		req = req.WithContext(shared.WithOwnerID(req.Context(), ownerID))
		rec := httptest.NewRecorder()

		NewChartHandler(svc, 0, nil).ListMyCharts(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, store.ChartQuery{
			OwnerID: ownerID, Name: "sal", ChartType: "line",
			Page: 2, PageSize: 5, SortField: "name", SortOrder: "asc",
		}, got)
		assert.JSONEq(t, `{"records":[],"total":0,"page":2,"page_size":5}`, rec.Body.String())
	})

	t.Run("bad page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/charts/my?page=two", nil)
		req = req.WithContext(shared.WithOwnerID(req.Context(), ownerID))
		rec := httptest.NewRecorder()
		NewChartHandler(&mockChartService{}, 0, nil).ListMyCharts(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service rejects page size", func(t *testing.T) {
		svc := &mockChartService{ListMyChartsFn: func(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
			return nil, domain.NewValidationError("page_size", "must be between 1 and 20", nil)
		}}
		req := httptest.NewRequest(http.MethodGet, "/api/charts/my?page_size=21", nil)
		req = req.WithContext(shared.WithOwnerID(req.Context(), ownerID))
		rec := httptest.NewRecorder()
		NewChartHandler(svc, 0, nil).ListMyCharts(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid page_size: must be between 1 and 20", decodeError(t, rec).Error)
	})
}

func TestChartHandler_GetChart(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	chart, err := domain.NewChart(ownerID, "sales", "trend", "")
	require.NoError(t, err)

	svc := &mockChartService{GetChartFn: func(ctx context.Context, owner, id uuid.UUID) (*domain.Chart, error) {
		if owner == ownerID && id == chart.ID {
			return chart, nil
		}
		return nil, service.ErrChartNotFound
	}}
	router := chi.NewRouter()
	router.Get("/api/charts/{id}", NewChartHandler(svc, 0, nil).GetChart)

	get := func(path string, owner uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(shared.WithOwnerID(req.Context(), owner))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/api/charts/"+chart.ID.String(), ownerID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Chart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, chart.ID, got.ID)
	assert.Equal(t, domain.ChartStatusWait, got.Status)

	assert.Equal(t, http.StatusNotFound, get("/api/charts/"+chart.ID.String(), uuid.New()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/charts/not-a-uuid", ownerID).Code)
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("goal", "is required", nil), http.StatusBadRequest},
		{domain.ErrEmptyDataset, http.StatusBadRequest},
		{ratelimit.ErrRateLimited, http.StatusTooManyRequests},
		{service.ErrChartNotFound, http.StatusNotFound},
		{store.ErrChartNotFound, http.StatusNotFound},
		{&http.MaxBytesError{Limit: 10}, http.StatusBadRequest},
		{service.NewChartServiceError("gen_chart", "failed", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err), "%v", tc.err)
	}
}
