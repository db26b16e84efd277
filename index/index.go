// Package index provides the capability contract shared by the linear and
// graph field indexes.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/model"
)

// Algorithm selects the index implementation for a field.
// The set is deliberately small and closed.
type Algorithm int

const (
	// AlgorithmLinear is an exhaustive exact scan. It is the zero value, so
	// a field whose graph parameters were never specified falls back to it.
	AlgorithmLinear Algorithm = iota

	// AlgorithmGraph is the HNSW-style navigable graph (approximate).
	AlgorithmGraph
)

// String returns a string representation of the Algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmLinear:
		return "Linear"
	case AlgorithmGraph:
		return "Graph"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("index: k must be positive")

	// ErrEmptyVector is returned when an empty vector is inserted or queried.
	ErrEmptyVector = errors.New("index: empty vector")
)

// ErrCorruption reports a broken internal invariant. It is fatal for the
// affected index: the instance is unusable until rebuilt and the error must
// never be silently recovered.
type ErrCorruption struct {
	Reason string
}

// Error returns the error message for index corruption.
func (e *ErrCorruption) Error() string {
	return fmt.Sprintf("index corruption: %s", e.Reason)
}

// Candidate is a per-field search hit in raw distance space (lower is
// better). The query engine converts distances to similarities.
type Candidate struct {
	ID       model.EntityID
	Distance float32
}

// SearchOptions controls the execution of a single-field search.
type SearchOptions struct {
	// EF bounds the candidate list during graph search. Values below k are
	// raised to k. Ignored by the linear index.
	EF int
}

// LevelStats describes one graph layer.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections int
}

// Stats is a point-in-time snapshot of an index.
type Stats struct {
	Algorithm      Algorithm
	Metric         distance.Metric
	Dimension      int
	LiveCount      int
	TombstoneCount int
	MemoryBytes    int64
	MaxLevel       int
	Levels         []LevelStats
}

// Index represents a vector index over one field.
//
// Implementations serialize their own writers; searches run concurrently
// with each other. A search overlapping an insert may or may not observe
// the new entry, which is acceptable under approximate semantics.
type Index interface {
	gob.GobEncoder
	gob.GobDecoder

	// Insert adds or replaces the vector for an entity. Re-inserting an
	// existing entity replaces its prior entry; the live count is unchanged.
	Insert(ctx context.Context, id model.EntityID, v []float32) error

	// Delete removes an entity. Returns false if the entity was not present.
	Delete(ctx context.Context, id model.EntityID) (bool, error)

	// Search returns up to k candidates ordered by ascending distance,
	// ties broken by ascending EntityID. An empty index yields an empty
	// result, not an error.
	Search(ctx context.Context, q []float32, k int, opts *SearchOptions) ([]Candidate, error)

	// Contains reports whether the entity is live in the index.
	Contains(id model.EntityID) bool

	// Count returns the number of live entries.
	Count() int

	// Dimension returns the fixed vector dimensionality of the index.
	Dimension() int

	// Metric returns the metric the index was built with.
	Metric() distance.Metric

	// NeedsCompaction reports whether accumulated tombstones crossed the
	// configured threshold.
	NeedsCompaction() bool

	// Compact physically removes tombstoned entries and repairs structure.
	Compact(ctx context.Context) error

	// Stats returns a snapshot of index statistics.
	Stats() Stats

	// Close releases the index and all contained vectors.
	Close() error
}

// ValidateVector rejects empty and wrong-dimension vectors before any
// mutation happens.
func ValidateVector(dim int, v []float32) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	if len(v) != dim {
		return &distance.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	return nil
}
