package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/store"
)

const chartColumns = `id, owner_id, name, goal, chart_type, status,
	gen_chart, gen_result, exec_message, created_at, updated_at`

// PostgresChartStore implements the store.ChartStore interface
// using a PostgreSQL database as the storage backend.
type PostgresChartStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresChartStore creates a new PostgreSQL implementation of the ChartStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresChartStore(db store.DBTX, logger *slog.Logger) *PostgresChartStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresChartStore{
		db:     db,
		logger: logger.With(slog.String("component", "chart_store")),
	}
}

// Ensure PostgresChartStore implements store.ChartStore interface
var _ store.ChartStore = (*PostgresChartStore)(nil)

// Create implements store.ChartStore.Create
func (s *PostgresChartStore) Create(ctx context.Context, chart *domain.Chart) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := chart.Validate(); err != nil {
		log.Warn("chart validation failed during create",
			slog.String("error", err.Error()),
			slog.String("chart_id", chart.ID.String()))
		return err
	}

	query := `INSERT INTO charts (` + chartColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query,
		chart.ID,
		chart.OwnerID,
		chart.Name,
		chart.Goal,
		chart.ChartType,
		string(chart.Status),
		chart.GenChart,
		chart.GenResult,
		chart.ExecMessage,
		chart.CreatedAt,
		chart.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create chart",
			slog.String("error", err.Error()),
			slog.String("chart_id", chart.ID.String()))
		return MapError(err)
	}

	log.Debug("chart created",
		slog.String("chart_id", chart.ID.String()),
		slog.String("status", string(chart.Status)))
	return nil
}

// Update implements store.ChartStore.Update.
// The status guard and the field writes run as one UPDATE statement.
func (s *PostgresChartStore) Update(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := update.Validate(); err != nil {
		log.Warn("invalid chart update",
			slog.String("error", err.Error()),
			slog.String("chart_id", id.String()))
		return err
	}

	predecessors := domain.PredecessorsOf(update.Status)
	args := []any{
		string(update.Status),
		update.GenChart,
		update.GenResult,
		update.ExecMessage,
		time.Now().UTC(),
		id,
	}
	placeholders := make([]string, len(predecessors))
	for i, p := range predecessors {
		args = append(args, string(p))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := `UPDATE charts
		SET status = $1,
			gen_chart = COALESCE(NULLIF($2, ''), gen_chart),
			gen_result = COALESCE(NULLIF($3, ''), gen_result),
			exec_message = COALESCE(NULLIF($4, ''), exec_message),
			updated_at = $5
		WHERE id = $6 AND status IN (` + strings.Join(placeholders, ", ") + `)`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update chart",
			slog.String("error", err.Error()),
			slog.String("chart_id", id.String()),
			slog.String("status", string(update.Status)))
		return MapError(err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug("chart updated",
			slog.String("chart_id", id.String()),
			slog.String("status", string(update.Status)))
		return nil
	}

	// Nothing matched: tell a missing chart apart from a rejected transition.
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM charts WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrChartNotFound
	}
	if err != nil {
		return MapError(err)
	}

	log.Warn("chart transition rejected",
		slog.String("chart_id", id.String()),
		slog.String("from", current),
		slog.String("to", string(update.Status)))
	return fmt.Errorf("%w: %w: chart %s cannot move from %s to %s",
		store.ErrUpdateFailed, domain.ErrInvalidTransition, id, current, update.Status)
}

// GetByID implements store.ChartStore.GetByID
func (s *PostgresChartStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chart, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + chartColumns + ` FROM charts WHERE id = $1`
	chart, err := scanChart(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("chart not found", slog.String("chart_id", id.String()))
			return nil, store.ErrChartNotFound
		}
		log.Error("failed to get chart by ID",
			slog.String("error", err.Error()),
			slog.String("chart_id", id.String()))
		return nil, MapError(err)
	}

	return chart, nil
}

// ListByOwner implements store.ChartStore.ListByOwner
func (s *PostgresChartStore) ListByOwner(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if q.PageSize < 1 || q.PageSize > store.MaxPageSize {
		return nil, fmt.Errorf("%w: page size must be between 1 and %d", store.ErrInvalidEntity, store.MaxPageSize)
	}
	column, err := store.SortColumn(q.SortField)
	if err != nil {
		return nil, err
	}
	direction := "DESC"
	switch strings.ToLower(q.SortOrder) {
	case "", store.SortOrderDesc:
	case store.SortOrderAsc:
		direction = "ASC"
	default:
		return nil, fmt.Errorf("%w: sort order must be asc or desc", store.ErrInvalidEntity)
	}

	conditions := []string{"owner_id = $1"}
	args := []any{q.OwnerID}
	addCondition := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}
	if q.ID != uuid.Nil {
		addCondition("id = $%d", q.ID)
	}
	if q.Name != "" {
		addCondition("strpos(name, $%d) > 0", q.Name)
	}
	if q.Goal != "" {
		addCondition("goal = $%d", q.Goal)
	}
	if q.ChartType != "" {
		addCondition("chart_type = $%d", q.ChartType)
	}
	where := strings.Join(conditions, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM charts WHERE `+where, args...).Scan(&total); err != nil {
		log.Error("failed to count charts",
			slog.String("error", err.Error()),
			slog.String("owner_id", q.OwnerID.String()))
		return nil, MapError(err)
	}

	page := &store.ChartPage{
		Records:  []*domain.Chart{},
		Total:    total,
		Page:     max(q.Page, 1),
		PageSize: q.PageSize,
	}
	if total == 0 {
		return page, nil
	}

	args = append(args, q.PageSize, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM charts WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		chartColumns, where, column, direction, direction, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list charts",
			slog.String("error", err.Error()),
			slog.String("owner_id", q.OwnerID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		chart, err := scanChart(rows)
		if err != nil {
			return nil, MapError(err)
		}
		page.Records = append(page.Records, chart)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return page, nil
}

// FindByStatus implements store.ChartStore.FindByStatus
func (s *PostgresChartStore) FindByStatus(
	ctx context.Context,
	status domain.ChartStatus,
	olderThan time.Duration,
) ([]*domain.Chart, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + chartColumns + ` FROM charts WHERE status = $1`
	args := []any{string(status)}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to find charts by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)),
			slog.Duration("older_than", olderThan))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var charts []*domain.Chart
	for rows.Next() {
		chart, err := scanChart(rows)
		if err != nil {
			return nil, MapError(err)
		}
		charts = append(charts, chart)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return charts, nil
}

// WithTx implements store.ChartStore.WithTx
func (s *PostgresChartStore) WithTx(tx *sql.Tx) store.ChartStore {
	return &PostgresChartStore{
		db:     tx,
		logger: s.logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChart(row rowScanner) (*domain.Chart, error) {
	var chart domain.Chart
	var status string
	err := row.Scan(
		&chart.ID,
		&chart.OwnerID,
		&chart.Name,
		&chart.Goal,
		&chart.ChartType,
		&status,
		&chart.GenChart,
		&chart.GenResult,
		&chart.ExecMessage,
		&chart.CreatedAt,
		&chart.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	chart.Status = domain.ChartStatus(status)
	return &chart, nil
}
