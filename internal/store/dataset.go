package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/scry-bi/internal/domain"
)

// DatasetStore persists the raw dataset uploaded with each chart, one table
// (or document) per chart. Implementations may be relational or
// document-oriented; callers must not depend on which.
// Version: 1.0
type DatasetStore interface {
	// CreateTable creates the storage for a dataset with the given field names.
	CreateTable(ctx context.Context, name string, fields []string) error

	// InsertRows appends rows, in order, to a created dataset.
	InsertRows(ctx context.Context, name string, rows [][]string) error

	// ReadRows reads a dataset back with rows in insertion order.
	// Returns ErrDatasetNotFound if it does not exist.
	ReadRows(ctx context.Context, name string) (*domain.Dataset, error)

	// DropTable removes a dataset. It is used to compensate a failed
	// submission on backends that cannot join the chart transaction.
	DropTable(ctx context.Context, name string) error

	// WithTx returns a DatasetStore bound to the provided transaction.
	// Backends that cannot take part in the transaction return themselves.
	WithTx(tx *sql.Tx) DatasetStore

	// Transactional reports whether writes made through WithTx are rolled
	// back with the transaction.
	Transactional() bool
}
