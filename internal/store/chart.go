package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
)

// MaxPageSize is the largest page a chart listing may request.
const MaxPageSize = 20

// DefaultSortField is used when a listing does not name a sort field.
const DefaultSortField = "created_at"

// Sort orders accepted by chart listings.
const (
	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

// sortColumns maps the sort fields a caller may request to table columns.
// Only names in this map ever reach an ORDER BY clause.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
	"status":     "status",
	"chart_type": "chart_type",
}

// SortColumn returns the column for a requested sort field.
// An empty field selects DefaultSortField; an unknown one is rejected.
func SortColumn(field string) (string, error) {
	if field == "" {
		field = DefaultSortField
	}
	col, ok := sortColumns[strings.ToLower(field)]
	if !ok {
		return "", ErrInvalidSortField
	}
	return col, nil
}

// ChartQuery filters and paginates an owner's charts.
// OwnerID is always applied; the other filters only when set.
type ChartQuery struct {
	OwnerID   uuid.UUID
	ID        uuid.UUID // exact match when not uuid.Nil
	Name      string    // substring match
	Goal      string    // exact match
	ChartType string    // exact match
	Page      int       // 1-based
	PageSize  int
	SortField string
	SortOrder string
}

// Offset returns the row offset of the requested page.
func (q ChartQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// ChartPage is one page of a chart listing.
type ChartPage struct {
	Records  []*domain.Chart `json:"records"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ChartStore defines the interface for chart data persistence.
// Version: 1.0
type ChartStore interface {
	// Create saves a new chart. It validates the chart before writing.
	Create(ctx context.Context, chart *domain.Chart) error

	// Update applies a self-contained update to a chart in a single atomic
	// conditional write. The write only succeeds when the chart exists and its
	// current status is a permitted predecessor of update.Status.
	// Returns ErrChartNotFound or ErrUpdateFailed otherwise.
	Update(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error

	// GetByID retrieves a chart by its unique ID.
	// Returns ErrChartNotFound if the chart does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Chart, error)

	// ListByOwner returns one page of an owner's charts matching the query.
	ListByOwner(ctx context.Context, query ChartQuery) (*ChartPage, error)

	// FindByStatus returns the charts currently in the given status whose
	// last update is more than olderThan ago, oldest first. An olderThan of
	// zero returns every chart in the status.
	FindByStatus(ctx context.Context, status domain.ChartStatus, olderThan time.Duration) ([]*domain.Chart, error)

	// WithTx returns a new ChartStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ChartStore
}
