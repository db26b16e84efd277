// Package linear implements an exhaustive exact-scan index. It serves as
// the correctness oracle for the graph index and as the safe default for
// small fields.
package linear

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/model"
)

// ctxCheckInterval is how many slots a scan visits between cancellation
// checks.
const ctxCheckInterval = 1024

var _ index.Index = (*Linear)(nil)

// Options contains configuration for the linear index.
type Options struct {
	// Dimension is the fixed vector dimensionality. Required.
	Dimension int

	// Metric selects the distance function. Required.
	Metric distance.Metric
}

// entry is one stored vector. Entries are immutable once published.
type entry struct {
	id     model.EntityID
	vector []float32
}

// indexState is an immutable snapshot of the slot table. Writers build a
// new state and publish it atomically; readers never block.
type indexState struct {
	slots    []*entry
	byEntity map[model.EntityID]int
	freeList []int
	live     int
}

// Linear is an exact-scan index. Reads load the current state without
// locking; writes are serialized by a mutex and publish copy-on-write
// states.
type Linear struct {
	opts     Options
	distFunc distance.Func

	writeMu sync.Mutex
	state   atomic.Pointer[indexState]
}

// New creates a new linear index with the given options.
func New(optFns ...func(o *Options)) (*Linear, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("linear: dimension must be positive, got %d", opts.Dimension)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	l := &Linear{
		opts:     opts,
		distFunc: distFunc,
	}
	l.state.Store(&indexState{byEntity: make(map[model.EntityID]int)})
	return l, nil
}

// Insert adds or replaces the vector for an entity.
func (l *Linear) Insert(ctx context.Context, id model.EntityID, v []float32) error {
	if err := index.ValidateVector(l.opts.Dimension, v); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vec := make([]float32, len(v))
	copy(vec, v)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := l.state.Load()
	next := cur.clone()

	e := &entry{id: id, vector: vec}
	if slot, ok := next.byEntity[id]; ok {
		next.slots[slot] = e
	} else if len(next.freeList) > 0 {
		slot := next.freeList[len(next.freeList)-1]
		next.freeList = next.freeList[:len(next.freeList)-1]
		next.slots[slot] = e
		next.byEntity[id] = slot
		next.live++
	} else {
		next.slots = append(next.slots, e)
		next.byEntity[id] = len(next.slots) - 1
		next.live++
	}

	l.state.Store(next)
	return nil
}

// Delete removes an entity. Returns false if the entity was not present.
func (l *Linear) Delete(ctx context.Context, id model.EntityID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := l.state.Load()
	slot, ok := cur.byEntity[id]
	if !ok {
		return false, nil
	}

	next := cur.clone()
	next.slots[slot] = nil
	delete(next.byEntity, id)
	next.freeList = append(next.freeList, slot)
	next.live--

	l.state.Store(next)
	return true, nil
}

// Search scans every live entry and returns the exact top k by ascending
// distance, ties broken by ascending EntityID.
func (l *Linear) Search(ctx context.Context, q []float32, k int, _ *index.SearchOptions) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(l.opts.Dimension, q); err != nil {
		return nil, err
	}

	st := l.state.Load()
	if st.live == 0 {
		return nil, nil
	}

	candidates := make([]index.Candidate, 0, st.live)
	for i, e := range st.slots {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if e == nil {
			continue
		}
		candidates = append(candidates, index.Candidate{
			ID:       e.id,
			Distance: l.distFunc(q, e.vector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Contains reports whether the entity is live in the index.
func (l *Linear) Contains(id model.EntityID) bool {
	_, ok := l.state.Load().byEntity[id]
	return ok
}

// Count returns the number of live entries.
func (l *Linear) Count() int {
	return l.state.Load().live
}

// Dimension returns the fixed vector dimensionality of the index.
func (l *Linear) Dimension() int {
	return l.opts.Dimension
}

// Metric returns the metric the index was built with.
func (l *Linear) Metric() distance.Metric {
	return l.opts.Metric
}

// NeedsCompaction always reports false. Deleted slots are reused by
// inserts, so the scan cost tracks the live count closely; Compact is
// still available to reclaim a long freelist.
func (l *Linear) NeedsCompaction() bool {
	return false
}

// Compact rebuilds the slot table without holes.
func (l *Linear) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := l.state.Load()
	next := &indexState{
		slots:    make([]*entry, 0, cur.live),
		byEntity: make(map[model.EntityID]int, cur.live),
		live:     cur.live,
	}
	for _, e := range cur.slots {
		if e == nil {
			continue
		}
		next.byEntity[e.id] = len(next.slots)
		next.slots = append(next.slots, e)
	}

	l.state.Store(next)
	return nil
}

// Stats returns a point-in-time snapshot of the index.
func (l *Linear) Stats() index.Stats {
	st := l.state.Load()

	stats := index.Stats{
		Algorithm: index.AlgorithmLinear,
		Metric:    l.opts.Metric,
		Dimension: l.opts.Dimension,
		LiveCount: st.live,
	}
	for _, e := range st.slots {
		if e != nil {
			stats.MemoryBytes += int64(len(e.vector)) * 4
		}
	}
	return stats
}

// Close releases the slot table and all contained vectors.
func (l *Linear) Close() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.state.Store(&indexState{byEntity: make(map[model.EntityID]int)})
	return nil
}

// clone copies the state for a copy-on-write update.
func (s *indexState) clone() *indexState {
	next := &indexState{
		slots:    make([]*entry, len(s.slots)),
		byEntity: make(map[model.EntityID]int, len(s.byEntity)),
		freeList: make([]int, len(s.freeList)),
		live:     s.live,
	}
	copy(next.slots, s.slots)
	copy(next.freeList, s.freeList)
	for id, slot := range s.byEntity {
		next.byEntity[id] = slot
	}
	return next
}
