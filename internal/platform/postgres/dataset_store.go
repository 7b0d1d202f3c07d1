package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/store"
)

// maxInsertParams keeps a multi-row INSERT under PostgreSQL's bind parameter limit.
const maxInsertParams = 65535

// maxInsertRows bounds the number of rows in one INSERT statement.
const maxInsertRows = 500

var datasetTablePattern = regexp.MustCompile(`^chart_[0-9a-f]{32}$`)

// PostgresDatasetStore implements store.DatasetStore with one table per
// chart. Every field is a text column; a leading "__row" integer column
// records insertion order.
type PostgresDatasetStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDatasetStore creates a new PostgreSQL implementation of the DatasetStore interface.
func NewPostgresDatasetStore(db store.DBTX, logger *slog.Logger) *PostgresDatasetStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDatasetStore{
		db:     db,
		logger: logger.With(slog.String("component", "dataset_store")),
	}
}

var _ store.DatasetStore = (*PostgresDatasetStore)(nil)

// CreateTable implements store.DatasetStore.CreateTable
func (s *PostgresDatasetStore) CreateTable(ctx context.Context, name string, fields []string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := checkTableName(name); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: dataset %s has no fields", store.ErrInvalidEntity, name)
	}

	columns := make([]string, 0, len(fields)+1)
	columns = append(columns, quoteIdent(domain.RowOrdinalField)+" INTEGER PRIMARY KEY")
	for _, f := range fields {
		if f == domain.RowOrdinalField {
			return fmt.Errorf("%w: field name %q is reserved", store.ErrInvalidEntity, f)
		}
		columns = append(columns, quoteIdent(f)+" TEXT")
	}

	query := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(columns, ", "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		log.Error("failed to create dataset table",
			slog.String("error", err.Error()),
			slog.String("table", name))
		return MapError(err)
	}

	log.Debug("dataset table created",
		slog.String("table", name),
		slog.Int("fields", len(fields)))
	return nil
}

// InsertRows implements store.DatasetStore.InsertRows.
// Rows are written in chunks of multi-row INSERT statements; ordinals
// continue from the rows already present.
func (s *PostgresDatasetStore) InsertRows(ctx context.Context, name string, rows [][]string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := checkTableName(name); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var next int64
	countQuery := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s",
		quoteIdent(domain.RowOrdinalField), quoteIdent(name))
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&next); err != nil {
		log.Error("failed to read dataset row ordinal",
			slog.String("error", err.Error()),
			slog.String("table", name))
		return MapError(err)
	}

	width := len(rows[0]) + 1
	chunk := min(maxInsertRows, max(1, maxInsertParams/width))

	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*width)
		for _, row := range rows[start:end] {
			if len(row)+1 != width {
				return fmt.Errorf("%w: dataset %s rows have different widths", store.ErrInvalidEntity, name)
			}
			next++
			args = append(args, next)
			placeholders := make([]string, 0, width)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			for _, cell := range row {
				args = append(args, cell)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			values = append(values, "("+strings.Join(placeholders, ", ")+")")
		}

		query := fmt.Sprintf("INSERT INTO %s VALUES %s", quoteIdent(name), strings.Join(values, ", "))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			log.Error("failed to insert dataset rows",
				slog.String("error", err.Error()),
				slog.String("table", name),
				slog.Int("offset", start))
			return MapError(err)
		}
	}

	log.Debug("dataset rows inserted",
		slog.String("table", name),
		slog.Int("rows", len(rows)))
	return nil
}

// ReadRows implements store.DatasetStore.ReadRows
func (s *PostgresDatasetStore) ReadRows(ctx context.Context, name string) (*domain.Dataset, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := checkTableName(name); err != nil {
		return nil, err
	}

	fields, err := s.columns(ctx, name)
	if err != nil {
		log.Error("failed to read dataset columns",
			slog.String("error", err.Error()),
			slog.String("table", name))
		return nil, err
	}
	if len(fields) == 0 {
		return nil, store.ErrDatasetNotFound
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = quoteIdent(f)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), quoteIdent(name), quoteIdent(domain.RowOrdinalField))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		if IsUndefinedTable(err) {
			return nil, store.ErrDatasetNotFound
		}
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ds := &domain.Dataset{Fields: fields}
	cells := make([]sql.NullString, len(fields))
	dest := make([]any, len(fields))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, MapError(err)
		}
		row := make([]string, len(fields))
		for i, c := range cells {
			row[i] = c.String
		}
		ds.Rows = append(ds.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return ds, nil
}

// DropTable implements store.DatasetStore.DropTable
func (s *PostgresDatasetStore) DropTable(ctx context.Context, name string) error {
	if err := checkTableName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to drop dataset table",
			slog.String("error", err.Error()),
			slog.String("table", name))
		return MapError(err)
	}
	return nil
}

// WithTx implements store.DatasetStore.WithTx
func (s *PostgresDatasetStore) WithTx(tx *sql.Tx) store.DatasetStore {
	return &PostgresDatasetStore{
		db:     tx,
		logger: s.logger,
	}
}

// Transactional implements store.DatasetStore.Transactional.
// PostgreSQL DDL is transactional, so a rolled back submission leaves no table.
func (s *PostgresDatasetStore) Transactional() bool {
	return true
}

// columns returns the field columns of a dataset table in creation order.
func (s *PostgresDatasetStore) columns(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var fields []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, MapError(err)
		}
		if col != domain.RowOrdinalField {
			fields = append(fields, col)
		}
	}
	return fields, rows.Err()
}

func checkTableName(name string) error {
	if !datasetTablePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid dataset table name %q", store.ErrInvalidEntity, name)
	}
	return nil
}

func quoteIdent(s string) string {
	return pgx.Identifier{s}.Sanitize()
}
