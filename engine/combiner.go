package engine

import (
	"fmt"
	"maps"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/model"
)

// combine merges per-field candidate sets into the final ranking. The
// candidate universe is the union of all field results; an entity missing
// from a field's results contributes that field's worst similarity, so
// absence penalizes instead of erroring.
func combine(q *CrossVectorQuery, hits []fieldHits) ([]SearchResult, error) {
	universe := roaring64.New()
	scores := make([]map[model.EntityID]float64, len(hits))

	for i, h := range hits {
		m := h.field.Index.Metric()
		scores[i] = make(map[model.EntityID]float64, len(h.candidates))
		for _, c := range h.candidates {
			scores[i][c.ID] = distance.ToSimilarity(m, c.Distance)
			universe.Add(uint64(c.ID))
		}
	}

	results := make([]SearchResult, 0, universe.GetCardinality())

	it := universe.Iterator()
	for it.HasNext() {
		id := model.EntityID(it.Next())

		fieldScores := make(map[string]float64, len(hits))
		for i, h := range hits {
			s, ok := scores[i][id]
			if !ok {
				s = distance.WorstSimilarity(h.field.Index.Metric())
			}
			fieldScores[h.field.Name] = s
		}

		combined, err := combineScores(q, hits, fieldScores)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			ID:            id,
			FieldScores:   fieldScores,
			CombinedScore: combined,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > q.K {
		results = results[:q.K]
	}
	return results, nil
}

// combineScores applies the query's strategy to one entity's field scores.
func combineScores(q *CrossVectorQuery, hits []fieldHits, fieldScores map[string]float64) (float64, error) {
	switch q.Strategy {
	case StrategyWeightedAverage:
		var sum, weightSum float64
		for _, h := range hits {
			sum += h.weight * fieldScores[h.field.Name]
			weightSum += h.weight
		}
		// validate rejected all-zero weights up front.
		return sum / weightSum, nil

	case StrategyMin:
		best := fieldScores[hits[0].field.Name]
		for _, h := range hits[1:] {
			if s := fieldScores[h.field.Name]; s < best {
				best = s
			}
		}
		return best, nil

	case StrategyMax:
		best := fieldScores[hits[0].field.Name]
		for _, h := range hits[1:] {
			if s := fieldScores[h.field.Name]; s > best {
				best = s
			}
		}
		return best, nil

	case StrategyCustom:
		// The scorer gets its own copy so it cannot distort the scores
		// reported in the result.
		return q.Scorer(maps.Clone(fieldScores)), nil

	default:
		return 0, fmt.Errorf("engine: unknown combination strategy %v", q.Strategy)
	}
}
