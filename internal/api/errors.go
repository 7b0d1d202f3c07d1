package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-bi/internal/api/shared"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/ratelimit"
	"github.com/phrazzld/scry-bi/internal/service"
	"github.com/phrazzld/scry-bi/internal/service/auth"
	"github.com/phrazzld/scry-bi/internal/spreadsheet"
	"github.com/phrazzld/scry-bi/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests

	// Charts owned by someone else are reported as missing.
	case errors.Is(err, service.ErrChartNotFound),
		errors.Is(err, store.ErrChartNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.As(err, &maxBytesErr):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err. Validation
// messages are built from our own field names and are safe to return;
// everything unexpected gets a generic message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var vErr *domain.ValidationError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, ratelimit.ErrRateLimited):
		return "Too many requests, please try again later"

	case errors.Is(err, service.ErrChartNotFound),
		errors.Is(err, store.ErrChartNotFound):
		return "Chart not found"

	case errors.Is(err, spreadsheet.ErrFileTooLarge), errors.As(err, &maxBytesErr):
		return "File is too large"
	case errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		return "File must be xlsx or csv"
	case errors.Is(err, spreadsheet.ErrUnreadable):
		return "File cannot be read"
	case errors.Is(err, domain.ErrEmptyDataset):
		return "File contains no data"

	case errors.As(err, &vErr):
		return fmt.Sprintf("Invalid %s: %s", vErr.Field, vErr.Message)
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return "Validation error"

	case errors.Is(err, service.ErrPersistence):
		return "Failed to save chart"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted details. fallback replaces the generic message of a 500.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// fromValidatorError converts the first struct validation failure into a
// domain validation error named after the form field.
func fromValidatorError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("request", "is invalid", nil)
	}
	fe := fieldErrs[0]
	return domain.NewValidationError(fe.Field(), validationTagMessage(fe.Tag(), fe.Param()), nil)
}

func validationTagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " characters"
	case "min":
		return "must be at least " + param
	case "oneof":
		return "must be one of " + param
	case "uuid":
		return "must be a UUID"
	default:
		return "is invalid"
	}
}
