// Package engine executes cross-vector queries: concurrent per-field
// candidate retrieval followed by score combination over the candidate
// union.
package engine

import (
	"github.com/macneib/PolyVectorDB/model"
)

// CombinationStrategy selects how per-field similarities collapse into one
// combined score.
type CombinationStrategy int

const (
	// StrategyWeightedAverage combines scores as the weight-normalized
	// average of per-field similarities.
	StrategyWeightedAverage CombinationStrategy = iota

	// StrategyMin scores each entity by its worst field. Weights are
	// ignored.
	StrategyMin

	// StrategyMax scores each entity by its best field. Weights are
	// ignored.
	StrategyMax

	// StrategyCustom delegates scoring to the query's Scorer.
	StrategyCustom
)

// String returns a string representation of the CombinationStrategy.
func (s CombinationStrategy) String() string {
	switch s {
	case StrategyWeightedAverage:
		return "WeightedAverage"
	case StrategyMin:
		return "Min"
	case StrategyMax:
		return "Max"
	case StrategyCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Scorer computes a combined score from per-field similarities. The map
// holds one entry per queried field; missing-field placeholders are
// already filled in.
type Scorer func(fieldScores map[string]float64) float64

// FieldQuery is one per-field leg of a cross-vector query.
type FieldQuery struct {
	// Field names the registered field to search.
	Field string

	// Vector is the query vector for this field.
	Vector []float32

	// Weight scales this field's contribution under WeightedAverage.
	// Must not be negative.
	Weight float64
}

// CrossVectorQuery is a multi-field similarity query.
type CrossVectorQuery struct {
	// Fields holds one entry per queried field. Must not be empty, and
	// field names must not repeat.
	Fields []FieldQuery

	// Strategy selects score combination. Zero value is WeightedAverage.
	Strategy CombinationStrategy

	// Scorer is required when Strategy is StrategyCustom, ignored
	// otherwise.
	Scorer Scorer

	// K is the number of results to return. Must be positive.
	K int
}

// SearchResult is one combined hit, with per-field similarity detail.
type SearchResult struct {
	ID            model.EntityID
	FieldScores   map[string]float64
	CombinedScore float64
}
