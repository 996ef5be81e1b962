package storage

import (
	"context"
	"sync"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// Memory is an in-process backend for dry runs and tests.
type Memory struct {
	mu    sync.Mutex
	data  *models.StatusData
	saves int
}

// NewMemory returns a backend holding a copy of initial, which may be nil.
func NewMemory(initial *models.StatusData) *Memory {
	return &Memory{data: initial.Clone()}
}

func (m *Memory) Load(ctx context.Context) (*models.StatusData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, data *models.StatusData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data.Clone()
	m.saves++
	return nil
}

// Saved returns a copy of the last saved document.
func (m *Memory) Saved() *models.StatusData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone()
}

// Saves returns how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
