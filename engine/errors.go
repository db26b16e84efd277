package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned when a query has no field legs.
	ErrEmptyQuery = errors.New("engine: query has no fields")

	// ErrMissingScorer is returned when StrategyCustom is selected
	// without a Scorer.
	ErrMissingScorer = errors.New("engine: custom strategy requires a scorer")
)

// ErrUnknownField is returned when a query names an unregistered field.
type ErrUnknownField struct {
	Field string
	cause error
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("engine: unknown field %q", e.Field)
}

func (e *ErrUnknownField) Unwrap() error {
	return e.cause
}

// ErrDuplicateField is returned when a query names the same field twice.
type ErrDuplicateField struct {
	Field string
}

func (e *ErrDuplicateField) Error() string {
	return fmt.Sprintf("engine: duplicate field %q in query", e.Field)
}

// ErrInvalidWeight is returned when a field weight is negative, or when
// every weight under WeightedAverage is zero.
type ErrInvalidWeight struct {
	Field  string
	Weight float64
	Reason string
}

func (e *ErrInvalidWeight) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("engine: invalid weights: %s", e.Reason)
	}
	return fmt.Sprintf("engine: invalid weight %v for field %q: %s", e.Weight, e.Field, e.Reason)
}
