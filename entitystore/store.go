// Package entitystore defines where field vectors come from when indexes
// are built in bulk, plus an in-memory implementation for tests and small
// datasets.
package entitystore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/macneib/PolyVectorDB/model"
)

// ErrVectorNotFound is returned when an entity has no vector for a field.
type ErrVectorNotFound struct {
	Field string
	ID    model.EntityID
}

// Error returns the error message for a missing vector.
func (e *ErrVectorNotFound) Error() string {
	return fmt.Sprintf("entitystore: no vector for %s in field %q", e.ID, e.Field)
}

// Source supplies per-field vectors for bulk index builds. Entities may be
// missing from any given field; ScanField only visits entities that have
// one.
type Source interface {
	// GetVector returns the vector an entity carries for a field.
	GetVector(ctx context.Context, field string, id model.EntityID) ([]float32, error)

	// ScanField calls fn once per entity that has a vector for the field,
	// in ascending EntityID order. Returning an error from fn stops the
	// scan and propagates the error.
	ScanField(ctx context.Context, field string, fn func(id model.EntityID, v []float32) error) error
}

var _ Source = (*Memory)(nil)

// Memory is an in-memory Source keyed by field name.
type Memory struct {
	mu     sync.RWMutex
	fields map[string]map[model.EntityID][]float32
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{fields: make(map[string]map[model.EntityID][]float32)}
}

// Put stores the vector for an entity under a field, replacing any prior
// value. The vector is copied.
func (m *Memory) Put(field string, id model.EntityID, v []float32) {
	vec := make([]float32, len(v))
	copy(vec, v)

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fields[field]
	if !ok {
		f = make(map[model.EntityID][]float32)
		m.fields[field] = f
	}
	f[id] = vec
}

// GetVector returns the vector an entity carries for a field.
func (m *Memory) GetVector(ctx context.Context, field string, id model.EntityID) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.fields[field][id]
	if !ok {
		return nil, &ErrVectorNotFound{Field: field, ID: id}
	}
	return v, nil
}

// ScanField visits entities with a vector for the field in ascending
// EntityID order.
func (m *Memory) ScanField(ctx context.Context, field string, fn func(id model.EntityID, v []float32) error) error {
	m.mu.RLock()
	ids := make([]model.EntityID, 0, len(m.fields[field]))
	for id := range m.fields[field] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.mu.RLock()
		v, ok := m.fields[field][id]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}
