package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/store"
)

// MockDatasetStore implements store.DatasetStore in memory.
type MockDatasetStore struct {
	CreateTableFn func(ctx context.Context, name string, fields []string) error
	InsertRowsFn  func(ctx context.Context, name string, rows [][]string) error
	ReadRowsFn    func(ctx context.Context, name string) (*domain.Dataset, error)

	// NonTransactional makes Transactional report false, as a document
	// backend would.
	NonTransactional bool

	mu       sync.Mutex
	datasets map[string]*domain.Dataset
	dropped  []string
}

var _ store.DatasetStore = (*MockDatasetStore)(nil)

// NewMockDatasetStore creates an empty in-memory dataset store.
func NewMockDatasetStore() *MockDatasetStore {
	return &MockDatasetStore{datasets: make(map[string]*domain.Dataset)}
}

// Put stores a dataset directly.
func (m *MockDatasetStore) Put(name string, ds *domain.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[name] = ds
}

// Has reports whether a dataset exists.
func (m *MockDatasetStore) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.datasets[name]
	return ok
}

// Dropped returns the names passed to DropTable.
func (m *MockDatasetStore) Dropped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dropped...)
}

// CreateTable implements store.DatasetStore
func (m *MockDatasetStore) CreateTable(ctx context.Context, name string, fields []string) error {
	if m.CreateTableFn != nil {
		return m.CreateTableFn(ctx, name, fields)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[name]; ok {
		return store.ErrDuplicate
	}
	m.datasets[name] = &domain.Dataset{Fields: append([]string(nil), fields...)}
	return nil
}

// InsertRows implements store.DatasetStore
func (m *MockDatasetStore) InsertRows(ctx context.Context, name string, rows [][]string) error {
	if m.InsertRowsFn != nil {
		return m.InsertRowsFn(ctx, name, rows)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasets[name]
	if !ok {
		return store.ErrDatasetNotFound
	}
	ds.Rows = append(ds.Rows, rows...)
	return nil
}

// ReadRows implements store.DatasetStore
func (m *MockDatasetStore) ReadRows(ctx context.Context, name string) (*domain.Dataset, error) {
	if m.ReadRowsFn != nil {
		return m.ReadRowsFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasets[name]
	if !ok {
		return nil, store.ErrDatasetNotFound
	}
	return &domain.Dataset{Fields: ds.Fields, Rows: ds.Rows}, nil
}

// DropTable implements store.DatasetStore
func (m *MockDatasetStore) DropTable(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.datasets, name)
	m.dropped = append(m.dropped, name)
	return nil
}

// WithTx returns the mock itself.
func (m *MockDatasetStore) WithTx(_ *sql.Tx) store.DatasetStore {
	return m
}

// Transactional implements store.DatasetStore
func (m *MockDatasetStore) Transactional() bool {
	return !m.NonTransactional
}
