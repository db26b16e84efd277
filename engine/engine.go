package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/registry"
)

// DefaultExpansionFactor is the multiplier applied to k when retrieving
// per-field candidates. Over-fetching lets entities that rank outside the
// top k on every individual field still surface in the combined ranking.
const DefaultExpansionFactor = 4

// Engine executes cross-vector queries against a field registry.
type Engine struct {
	registry        *registry.Registry
	expansionFactor int
}

// New creates an engine over the given registry. An expansionFactor below
// 1 falls back to the default.
func New(reg *registry.Registry, expansionFactor int) *Engine {
	if expansionFactor < 1 {
		expansionFactor = DefaultExpansionFactor
	}
	return &Engine{registry: reg, expansionFactor: expansionFactor}
}

// fieldHits is one field's search output plus what the combiner needs to
// score it.
type fieldHits struct {
	field      *registry.Field
	weight     float64
	candidates []index.Candidate
}

// Search executes a cross-vector query and returns up to q.K results
// ordered by descending combined score, ties broken by ascending EntityID.
//
// Any field leg failing fails the whole query; there are no partial
// results.
func (e *Engine) Search(ctx context.Context, q *CrossVectorQuery) ([]SearchResult, error) {
	fields, err := e.validate(q)
	if err != nil {
		return nil, err
	}

	// Each field retrieves an expanded candidate set so the combined
	// ranking can promote entities that are merely good everywhere.
	n := q.K * e.expansionFactor
	if n < q.K {
		n = q.K
	}

	hits := make([]fieldHits, len(q.Fields))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, fq := range q.Fields {
		i, fq := i, fq
		f := fields[i]
		g.Go(func() error {
			ef := f.Config.EFSearch
			if n > ef {
				ef = n
			}
			candidates, err := f.Index.Search(gctx, fq.Vector, n, &index.SearchOptions{EF: ef})
			if err != nil {
				return err
			}
			mu.Lock()
			hits[i] = fieldHits{field: f, weight: fq.Weight, candidates: candidates}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return combine(q, hits)
}

// validate checks the query shape and resolves every field leg before any
// search runs.
func (e *Engine) validate(q *CrossVectorQuery) ([]*registry.Field, error) {
	if q == nil || len(q.Fields) == 0 {
		return nil, ErrEmptyQuery
	}
	if q.K <= 0 {
		return nil, index.ErrInvalidK
	}
	if q.Strategy == StrategyCustom && q.Scorer == nil {
		return nil, ErrMissingScorer
	}

	fields := make([]*registry.Field, len(q.Fields))
	seen := make(map[string]struct{}, len(q.Fields))
	weightSum := 0.0

	for i, fq := range q.Fields {
		if _, ok := seen[fq.Field]; ok {
			return nil, &ErrDuplicateField{Field: fq.Field}
		}
		seen[fq.Field] = struct{}{}

		if fq.Weight < 0 {
			return nil, &ErrInvalidWeight{Field: fq.Field, Weight: fq.Weight, Reason: "must not be negative"}
		}
		weightSum += fq.Weight

		f, err := e.registry.Get(fq.Field)
		if err != nil {
			return nil, &ErrUnknownField{Field: fq.Field, cause: err}
		}
		fields[i] = f
	}

	if q.Strategy == StrategyWeightedAverage && weightSum == 0 {
		return nil, &ErrInvalidWeight{Reason: "weighted average requires at least one positive weight"}
	}
	return fields, nil
}
