// Package repository provides the persistence backends for the level collection.
//
// Every backend loads and saves the whole collection at once; the level store
// serialises writers, so backends only need to be safe for that single writer
// plus concurrent loads.
package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/okian/demonlist/internal/domain/model"
)

// Supported storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Store loads and saves the ordered level collection.
type Store interface {
	Load(ctx context.Context) ([]model.Level, error)
	Save(ctx context.Context, levels []model.Level) error
	Close() error
}

// Open returns the backend named by driver.
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case "", DriverFile:
		return NewFileStore(path)
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// MemoryStore keeps the collection in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	levels []model.Level
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(seed ...model.Level) *MemoryStore {
	return &MemoryStore{levels: model.CloneLevels(seed)}
}

// Load returns a copy of the stored levels.
func (m *MemoryStore) Load(_ context.Context) ([]model.Level, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return model.CloneLevels(m.levels), nil
}

// Save replaces the stored levels with a copy of levels.
func (m *MemoryStore) Save(_ context.Context, levels []model.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = model.CloneLevels(levels)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
