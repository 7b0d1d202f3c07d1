package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/api/shared"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/store"
)

// requireOwner returns the authenticated owner or writes a 401.
func requireOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := shared.OwnerIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return ownerID, true
}

// getPathUUID parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "must be a UUID", nil)
	}
	return id, nil
}

// parseChartQuery reads the listing filters from the query string. Range
// and allow-list checks are left to the service.
func parseChartQuery(r *http.Request, ownerID uuid.UUID) (store.ChartQuery, error) {
	values := r.URL.Query()
	q := store.ChartQuery{
		OwnerID:   ownerID,
		Name:      values.Get("name"),
		Goal:      values.Get("goal"),
		ChartType: values.Get("chart_type"),
		SortField: values.Get("sort_field"),
		SortOrder: values.Get("sort_order"),
	}

	if raw := values.Get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, domain.NewValidationError("id", "must be a UUID", nil)
		}
		q.ID = id
	}

	var err error
	if q.Page, err = queryInt(values.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = queryInt(values.Get("page_size"), "page_size"); err != nil {
		return q, err
	}
	return q, nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", nil)
	}
	return n, nil
}
