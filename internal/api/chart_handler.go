package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/api/shared"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/service"
	"github.com/phrazzld/scry-bi/internal/spreadsheet"
)

// multipartOverhead is the room left for form fields and part headers on
// top of the file size limit.
const multipartOverhead = 64 << 10

// ChartHandler handles chart generation and history requests.
type ChartHandler struct {
	charts         service.ChartService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewChartHandler creates a new ChartHandler. A non-positive
// maxUploadBytes selects spreadsheet.DefaultMaxUploadBytes.
func NewChartHandler(charts service.ChartService, maxUploadBytes int64, logger *slog.Logger) *ChartHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = spreadsheet.DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ChartHandler{
		charts:         charts,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "chart_handler"),
	}
}

// GenChart handles POST /api/charts/gen. The chart is generated before
// the response is written.
func (h *ChartHandler) GenChart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	req, err := h.readGenChartRequest(w, r, ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.charts.GenChart(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate chart")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GenChartAsync handles POST /api/charts/gen/async. It answers 202 with the
// chart ID once the chart is queued; clients poll GET /api/charts/{id}.
func (h *ChartHandler) GenChartAsync(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	req, err := h.readGenChartRequest(w, r, ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	chartID, err := h.charts.GenChartAsync(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit chart")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("chart queued", "chart_id", chartID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, GenChartAsyncResponse{ChartID: chartID})
}

// ListMyCharts handles GET /api/charts/my.
func (h *ChartHandler) ListMyCharts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	q, err := parseChartQuery(r, ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := h.charts.ListMyCharts(r.Context(), q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list charts")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// GetChart handles GET /api/charts/{id}.
func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	chartID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	chart, err := h.charts.GetChart(r.Context(), ownerID, chartID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get chart")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, chart)
}

// readGenChartRequest reads and checks the multipart upload shared by both
// generation endpoints. The body is capped before anything is parsed.
func (h *ChartHandler) readGenChartRequest(
	w http.ResponseWriter,
	r *http.Request,
	ownerID uuid.UUID,
) (service.GenChartRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return service.GenChartRequest{}, spreadsheet.ErrFileTooLarge
		}
		return service.GenChartRequest{}, domain.NewValidationError("body", "must be a multipart form", nil)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	form := GenChartForm{
		Name:      r.FormValue("name"),
		Goal:      r.FormValue("goal"),
		ChartType: r.FormValue("chart_type"),
	}
	if err := shared.ValidateRequest(form); err != nil {
		return service.GenChartRequest{}, fromValidatorError(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return service.GenChartRequest{}, domain.NewValidationError("file", "is required", nil)
	}
	defer func() { _ = file.Close() }()

	format, err := spreadsheet.ValidateUpload(header.Filename, header.Size, h.maxUploadBytes)
	if err != nil {
		return service.GenChartRequest{}, err
	}

	dataset, err := spreadsheet.Parse(format, file)
	if err != nil {
		return service.GenChartRequest{}, err
	}

	return service.GenChartRequest{
		OwnerID:   ownerID,
		Name:      form.Name,
		Goal:      form.Goal,
		ChartType: form.ChartType,
		Dataset:   dataset,
	}, nil
}
