package polyvectordb

import (
	"context"
	"errors"
	"fmt"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/engine"
	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/registry"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrFieldNotFound is returned when an operation names an
	// unregistered field.
	ErrFieldNotFound = errors.New("field not found")

	// ErrFieldExists is returned when creating a field whose name is
	// already taken.
	ErrFieldExists = errors.New("field already exists")

	// ErrCancelled is returned when an operation was cut short by its
	// context.
	ErrCancelled = errors.New("operation cancelled")

	// ErrClosed is returned when the database has been closed.
	ErrClosed = errors.New("database closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidQuery indicates a structurally invalid cross-vector query:
// no fields, duplicate fields, bad weights, or a missing custom scorer.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidQuery struct {
	Reason string
	cause  error
}

func (e *ErrInvalidQuery) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func (e *ErrInvalidQuery) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Cancellation unification.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	// Field lookup unification.
	if errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrFieldNotFound, err)
	}
	if errors.Is(err, registry.ErrAlreadyExists) {
		return fmt.Errorf("%w: %w", ErrFieldExists, err)
	}

	// Argument normalization.
	var dm *distance.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	// Query shape normalization.
	if errors.Is(err, engine.ErrEmptyQuery) || errors.Is(err, engine.ErrMissingScorer) {
		return &ErrInvalidQuery{Reason: err.Error(), cause: err}
	}
	var df *engine.ErrDuplicateField
	if errors.As(err, &df) {
		return &ErrInvalidQuery{Reason: err.Error(), cause: err}
	}
	var iw *engine.ErrInvalidWeight
	if errors.As(err, &iw) {
		return &ErrInvalidQuery{Reason: err.Error(), cause: err}
	}

	return err
}
