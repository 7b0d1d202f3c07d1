package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/ratelimit"
	"github.com/phrazzld/scry-bi/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in ChartServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrChartNotFound indicates that the chart does not exist or belongs to
	// another user. The two cases are deliberately indistinguishable.
	// API layer should map this to HTTP 404 Not Found.
	ErrChartNotFound = errors.New("chart not found")

	// ErrPersistence indicates that a chart or its dataset could not be
	// saved. Nothing from the request was kept.
	ErrPersistence = errors.New("failed to persist chart")
)

// ChartServiceError wraps errors from the chart service with context.
type ChartServiceError struct {
	// Operation is the operation that failed (e.g., "gen_chart_async", "list_my_charts")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ChartServiceError.
func (e *ChartServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chart service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("chart service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ChartServiceError) Unwrap() error {
	return e.Err
}

// NewChartServiceError creates a new ChartServiceError.
// Validation, rate limit and not-found errors are returned without wrapping.
func NewChartServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrChartNotFound), errors.Is(err, store.ErrChartNotFound):
		return ErrChartNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, ratelimit.ErrRateLimited):
		return err
	}

	return &ChartServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
