package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/store"
)

// ChartUpdateCall records one call to MockChartStore.Update.
type ChartUpdateCall struct {
	ID     uuid.UUID
	Update domain.ChartUpdate
	Err    error
}

// MockChartStore implements store.ChartStore for testing. Without function
// overrides it keeps charts in memory and enforces the same status
// transitions as the SQL store. It is safe for concurrent use.
type MockChartStore struct {
	// Function fields for customizable behavior
	CreateFn       func(ctx context.Context, chart *domain.Chart) error
	UpdateFn       func(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Chart, error)
	ListByOwnerFn  func(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error)
	FindByStatusFn func(ctx context.Context, status domain.ChartStatus, olderThan time.Duration) ([]*domain.Chart, error)

	mu      sync.Mutex
	charts  map[uuid.UUID]*domain.Chart
	updates []ChartUpdateCall
}

var _ store.ChartStore = (*MockChartStore)(nil)

// NewMockChartStore creates an empty in-memory chart store.
func NewMockChartStore() *MockChartStore {
	return &MockChartStore{charts: make(map[uuid.UUID]*domain.Chart)}
}

// Put stores a copy of chart without validation.
func (m *MockChartStore) Put(chart *domain.Chart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *chart
	m.charts[chart.ID] = &c
}

// Get returns a copy of the stored chart, or nil.
func (m *MockChartStore) Get(id uuid.UUID) *domain.Chart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charts[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Updates returns every Update call made so far.
func (m *MockChartStore) Updates() []ChartUpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChartUpdateCall(nil), m.updates...)
}

// Create implements store.ChartStore
func (m *MockChartStore) Create(ctx context.Context, chart *domain.Chart) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, chart)
	}
	if err := chart.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.charts[chart.ID]; ok {
		return store.ErrDuplicate
	}
	c := *chart
	m.charts[chart.ID] = &c
	return nil
}

// Update implements store.ChartStore
func (m *MockChartStore) Update(ctx context.Context, id uuid.UUID, update domain.ChartUpdate) error {
	var err error
	if m.UpdateFn != nil {
		err = m.UpdateFn(ctx, id, update)
	} else {
		err = m.apply(id, update)
	}

	m.mu.Lock()
	m.updates = append(m.updates, ChartUpdateCall{ID: id, Update: update, Err: err})
	m.mu.Unlock()
	return err
}

func (m *MockChartStore) apply(id uuid.UUID, update domain.ChartUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charts[id]
	if !ok {
		return store.ErrChartNotFound
	}
	if !domain.CanTransition(c.Status, update.Status) {
		return fmt.Errorf("%w: %w: chart %s cannot move from %s to %s",
			store.ErrUpdateFailed, domain.ErrInvalidTransition, id, c.Status, update.Status)
	}
	c.Status = update.Status
	c.UpdatedAt = time.Now().UTC()
	if update.GenChart != "" {
		c.GenChart = update.GenChart
	}
	if update.GenResult != "" {
		c.GenResult = update.GenResult
	}
	if update.ExecMessage != "" {
		c.ExecMessage = update.ExecMessage
	}
	return nil
}

// GetByID implements store.ChartStore
func (m *MockChartStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chart, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if c := m.Get(id); c != nil {
		return c, nil
	}
	return nil, store.ErrChartNotFound
}

// ListByOwner implements store.ChartStore with owner, name and goal
// filters, newest first.
func (m *MockChartStore) ListByOwner(ctx context.Context, q store.ChartQuery) (*store.ChartPage, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, q)
	}

	m.mu.Lock()
	matched := make([]*domain.Chart, 0)
	for _, c := range m.charts {
		if c.OwnerID != q.OwnerID {
			continue
		}
		if q.Name != "" && !strings.Contains(c.Name, q.Name) {
			continue
		}
		if q.Goal != "" && c.Goal != q.Goal {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &store.ChartPage{Total: int64(len(matched)), Page: q.Page, PageSize: q.PageSize, Records: []*domain.Chart{}}
	start := q.Offset()
	if start < len(matched) {
		end := start + q.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page.Records = matched[start:end]
	}
	return page, nil
}

// FindByStatus implements store.ChartStore
func (m *MockChartStore) FindByStatus(ctx context.Context, status domain.ChartStatus, olderThan time.Duration) ([]*domain.Chart, error) {
	if m.FindByStatusFn != nil {
		return m.FindByStatusFn(ctx, status, olderThan)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chart
	for _, c := range m.charts {
		if c.Status == status && (olderThan <= 0 || c.UpdatedAt.Before(cutoff)) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// WithTx returns the mock itself.
func (m *MockChartStore) WithTx(_ *sql.Tx) store.ChartStore {
	return m
}
