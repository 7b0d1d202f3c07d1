package domain

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RowOrdinalField is reserved by dataset stores to keep row order.
const RowOrdinalField = "__row"

// MaxFieldNameBytes is the longest field name a dataset keeps. Longer names
// are cut on a rune boundary so every store can use them as column names.
const MaxFieldNameBytes = 63

// Dataset is the raw tabular data uploaded with a chart. Fields come from
// the header row of the uploaded file; Rows hold the remaining rows, each
// exactly len(Fields) cells wide.
type Dataset struct {
	Fields []string
	Rows   [][]string
}

// NewDataset normalizes a header and its data rows into a Dataset.
// Blank field names become column_N, duplicates get a numeric suffix, and
// every row is padded or truncated to the header width.
func NewDataset(header []string, rows [][]string) (*Dataset, error) {
	if len(header) == 0 || len(rows) == 0 {
		return nil, ErrEmptyDataset
	}

	fields := normalizeFields(header)
	normalized := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(fields))
		copy(cells, row)
		normalized = append(normalized, cells)
	}

	return &Dataset{Fields: fields, Rows: normalized}, nil
}

// Validate checks the dataset shape.
func (d *Dataset) Validate() error {
	if d == nil || len(d.Fields) == 0 || len(d.Rows) == 0 {
		return ErrEmptyDataset
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Fields) {
			return NewValidationError(fmt.Sprintf("rows[%d]", i), "does not match the header width", nil)
		}
	}
	return nil
}

// CSV serializes the data rows, without the header, as comma-separated lines.
func (d *Dataset) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(d.Rows); err != nil {
		return "", fmt.Errorf("failed to serialize dataset rows: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DatasetTableName returns the name of the storage table or document that
// holds the raw dataset of a chart.
func DatasetTableName(chartID uuid.UUID) string {
	return "chart_" + strings.ReplaceAll(chartID.String(), "-", "")
}

func normalizeFields(header []string) []string {
	fields := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" || name == RowOrdinalField {
			name = fmt.Sprintf("column_%d", i+1)
		}
		name = truncateBytes(name, MaxFieldNameBytes)
		base := name
		for n := 2; seen[name]; n++ {
			suffix := fmt.Sprintf("_%d", n)
			name = truncateBytes(base, MaxFieldNameBytes-len(suffix)) + suffix
		}
		seen[name] = true
		fields[i] = name
	}
	return fields
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
