// Package spreadsheet turns uploaded xlsx and csv files into datasets.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/xuri/excelize/v2"
)

// DefaultMaxUploadBytes is the largest accepted upload.
const DefaultMaxUploadBytes int64 = 1 << 20

// Format is a supported upload format, named by its file extension.
type Format string

// Supported formats
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
	ErrUnsupportedFormat = fmt.Errorf("%w: file must be xlsx or csv", domain.ErrValidation)

	// ErrFileTooLarge is returned for uploads over the size limit.
	ErrFileTooLarge = fmt.Errorf("%w: file is too large", domain.ErrValidation)

	// ErrUnreadable is returned when the file content cannot be parsed.
	ErrUnreadable = fmt.Errorf("%w: file cannot be read", domain.ErrValidation)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat returns the format named by filename's extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch Format(ext) {
	case FormatXLSX, FormatCSV:
		return Format(ext), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ValidateUpload checks an upload's name and size before it is read.
func ValidateUpload(filename string, size, limit int64) (Format, error) {
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if size > limit {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, limit)
	}
	return DetectFormat(filename)
}

// Parse reads a spreadsheet of the given format. The first non-blank row
// of the first sheet becomes the header; blank rows are skipped.
func Parse(format Format, r io.Reader) (*domain.Dataset, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	return domain.NewDataset(rows[0], rows[1:])
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: line %d: %v", ErrUnreadable, parseErr.Line, parseErr.Err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return rows, nil
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
