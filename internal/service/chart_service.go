package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/generation"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/ratelimit"
	"github.com/phrazzld/scry-bi/internal/store"
	"github.com/phrazzld/scry-bi/internal/task"
)

// DefaultPageSize is used when a listing does not ask for a page size.
const DefaultPageSize = 10

// ChartEnqueuer hands a persisted chart to background generation.
type ChartEnqueuer interface {
	// Enqueue submits the chart and returns once it is handed off.
	Enqueue(chartID, ownerID uuid.UUID, prompt string) error
}

// GenChartRequest is one chart generation request.
type GenChartRequest struct {
	OwnerID   uuid.UUID
	Name      string
	Goal      string
	ChartType string
	Dataset   *domain.Dataset
}

// GenChartResult is the outcome of a synchronous generation.
type GenChartResult struct {
	ChartID   uuid.UUID `json:"chart_id"`
	GenChart  string    `json:"gen_chart"`
	GenResult string    `json:"gen_result"`
}

// ChartService provides chart generation and history operations.
type ChartService interface {
	// GenChart generates a chart inline and persists it only on success.
	GenChart(ctx context.Context, req GenChartRequest) (*GenChartResult, error)

	// GenChartAsync persists the chart in WAIT and returns its ID once the
	// chart is handed to the generation pipeline.
	GenChartAsync(ctx context.Context, req GenChartRequest) (uuid.UUID, error)

	// ListMyCharts returns a page of the owner's charts.
	ListMyCharts(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error)

	// GetChart returns one of the owner's charts.
	GetChart(ctx context.Context, ownerID, chartID uuid.UUID) (*domain.Chart, error)
}

// ChartServiceDeps groups the collaborators of the chart service.
type ChartServiceDeps struct {
	DB       store.TxBeginner
	Charts   store.ChartStore
	Datasets store.DatasetStore
	Limiter  ratelimit.Limiter
	Client   generation.Client
	Pipeline ChartEnqueuer

	// ModelID selects the model for synchronous calls; empty uses the
	// client's default
	ModelID string
}

type chartServiceImpl struct {
	db       store.TxBeginner
	charts   store.ChartStore
	datasets store.DatasetStore
	limiter  ratelimit.Limiter
	client   generation.Client
	pipeline ChartEnqueuer
	modelID  string
	logger   *slog.Logger
}

// NewChartService creates a new ChartService.
// It returns an error if any of the required dependencies are nil.
func NewChartService(deps ChartServiceDeps, logger *slog.Logger) (ChartService, error) {
	missing := func(name string) error {
		return &ChartServiceError{Operation: "create_service", Message: name + " cannot be nil"}
	}
	switch {
	case deps.DB == nil:
		return nil, missing("db")
	case deps.Charts == nil:
		return nil, missing("charts")
	case deps.Datasets == nil:
		return nil, missing("datasets")
	case deps.Limiter == nil:
		return nil, missing("limiter")
	case deps.Client == nil:
		return nil, missing("client")
	case deps.Pipeline == nil:
		return nil, missing("pipeline")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &chartServiceImpl{
		db:       deps.DB,
		charts:   deps.Charts,
		datasets: deps.Datasets,
		limiter:  deps.Limiter,
		client:   deps.Client,
		pipeline: deps.Pipeline,
		modelID:  deps.ModelID,
		logger:   logger.With("component", "chart_service"),
	}, nil
}

// admit runs the checks shared by both generation paths: input validation
// and the owner's rate limit. Nothing is persisted before both pass.
func (s *chartServiceImpl) admit(ctx context.Context, req GenChartRequest) error {
	if req.OwnerID == uuid.Nil {
		return domain.NewValidationError("owner_id", "is required", nil)
	}
	if err := domain.ValidateSubmission(req.Name, req.Goal); err != nil {
		return err
	}
	if err := req.Dataset.Validate(); err != nil {
		return err
	}
	return s.limiter.Allow(ctx, ratelimit.GenerationKey(req.OwnerID.String()))
}

// GenChartAsync implements ChartService.
func (s *chartServiceImpl) GenChartAsync(ctx context.Context, req GenChartRequest) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("owner_id", req.OwnerID)

	if err := s.admit(ctx, req); err != nil {
		log.Debug("generation request rejected", "error", err)
		return uuid.Nil, NewChartServiceError("gen_chart_async", "request rejected", err)
	}

	chart, err := domain.NewChart(req.OwnerID, req.Name, req.Goal, req.ChartType)
	if err != nil {
		return uuid.Nil, NewChartServiceError("gen_chart_async", "failed to create chart object", err)
	}

	if err := s.persist(ctx, chart, req.Dataset); err != nil {
		log.Error("failed to persist chart", "error", err, "chart_id", chart.ID)
		return uuid.Nil, NewChartServiceError("gen_chart_async", "failed to persist chart",
			fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	prompt, err := generation.BuildPrompt(chart.Goal, chart.ChartType, req.Dataset)
	if err == nil {
		err = s.pipeline.Enqueue(chart.ID, chart.OwnerID, prompt)
	}
	if err != nil {
		// The chart is already persisted, so the failure is recorded on it.
		log.Error("failed to hand chart to the pipeline", "error", err, "chart_id", chart.ID)
		if updateErr := s.charts.Update(ctx, chart.ID, domain.Failed("task submission failed")); updateErr != nil {
			log.Error("failed to record submission failure", "error", updateErr, "chart_id", chart.ID)
		}
	}

	log.Info("chart accepted for generation", "chart_id", chart.ID)
	return chart.ID, nil
}

// GenChart implements ChartService.
func (s *chartServiceImpl) GenChart(ctx context.Context, req GenChartRequest) (*GenChartResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("owner_id", req.OwnerID)

	if err := s.admit(ctx, req); err != nil {
		log.Debug("generation request rejected", "error", err)
		return nil, NewChartServiceError("gen_chart", "request rejected", err)
	}

	prompt, err := generation.BuildPrompt(req.Goal, req.ChartType, req.Dataset)
	if err != nil {
		return nil, NewChartServiceError("gen_chart", "failed to build prompt", err)
	}

	reply, err := s.client.Chat(ctx, s.modelID, prompt)
	if err != nil {
		log.Error("AI call failed", "error", err)
		return nil, NewChartServiceError("gen_chart", "AI generation failed", err)
	}

	genChart, genResult, err := task.ParseReply(reply)
	if err != nil {
		log.Warn("AI reply rejected", "error", err)
		return nil, NewChartServiceError("gen_chart", "AI generation error", err)
	}

	chart, err := domain.NewChart(req.OwnerID, req.Name, req.Goal, req.ChartType)
	if err != nil {
		return nil, NewChartServiceError("gen_chart", "failed to create chart object", err)
	}
	chart.Status = domain.ChartStatusSucceeded
	chart.GenChart = genChart
	chart.GenResult = genResult

	if err := s.persist(ctx, chart, req.Dataset); err != nil {
		log.Error("failed to persist chart", "error", err, "chart_id", chart.ID)
		return nil, NewChartServiceError("gen_chart", "failed to persist chart",
			fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	log.Info("chart generated", "chart_id", chart.ID)
	return &GenChartResult{ChartID: chart.ID, GenChart: genChart, GenResult: genResult}, nil
}

// persist writes the chart and its dataset in one transaction. A dataset
// backend that cannot join the transaction is cleaned up by hand when the
// transaction fails.
func (s *chartServiceImpl) persist(ctx context.Context, chart *domain.Chart, ds *domain.Dataset) error {
	name := domain.DatasetTableName(chart.ID)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.charts.WithTx(tx).Create(ctx, chart); err != nil {
			return fmt.Errorf("failed to save chart: %w", err)
		}
		datasets := s.datasets.WithTx(tx)
		if err := datasets.CreateTable(ctx, name, ds.Fields); err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}
		if err := datasets.InsertRows(ctx, name, ds.Rows); err != nil {
			return fmt.Errorf("failed to insert dataset rows: %w", err)
		}
		return nil
	})

	if err != nil && !s.datasets.Transactional() {
		if dropErr := s.datasets.DropTable(context.WithoutCancel(ctx), name); dropErr != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to drop dataset after failed submission",
				"error", dropErr,
				"dataset", name)
		}
	}
	return err
}

// ListMyCharts implements ChartService.
func (s *chartServiceImpl) ListMyCharts(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
	if q.OwnerID == uuid.Nil {
		return nil, domain.NewValidationError("owner_id", "is required", nil)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize == 0:
		q.PageSize = DefaultPageSize
	case q.PageSize < 0 || q.PageSize > store.MaxPageSize:
		return nil, domain.NewValidationError("page_size",
			fmt.Sprintf("must be between 1 and %d", store.MaxPageSize), nil)
	}
	if _, err := store.SortColumn(q.SortField); err != nil {
		return nil, domain.NewValidationError("sort_field", "is not allowed", nil)
	}
	switch strings.ToLower(q.SortOrder) {
	case "", store.SortOrderAsc, store.SortOrderDesc:
	default:
		return nil, domain.NewValidationError("sort_order", "must be asc or desc", nil)
	}

	page, err := s.charts.ListByOwner(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrInvalidEntity) {
			return nil, domain.NewValidationError("query", err.Error(), nil)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list charts",
			"error", err,
			"owner_id", q.OwnerID)
		return nil, NewChartServiceError("list_my_charts", "failed to list charts", err)
	}
	return page, nil
}

// GetChart implements ChartService.
func (s *chartServiceImpl) GetChart(ctx context.Context, ownerID, chartID uuid.UUID) (*domain.Chart, error) {
	chart, err := s.charts.GetByID(ctx, chartID)
	if err != nil {
		return nil, NewChartServiceError("get_chart", "failed to get chart", err)
	}
	if chart.OwnerID != ownerID {
		return nil, ErrChartNotFound
	}
	return chart, nil
}
