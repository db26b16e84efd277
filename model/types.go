// Package model defines the shared identifier types used across the engine.
package model

import "fmt"

// EntityID is the stable, caller-facing identifier of a multi-vector entity.
// It is opaque to the engine and immutable once assigned.
type EntityID uint64

// String returns a string representation of the EntityID.
func (id EntityID) String() string {
	return fmt.Sprintf("entity(%d)", uint64(id))
}

// Entry associates an entity with one field's vector.
type Entry struct {
	ID     EntityID
	Vector []float32
}
