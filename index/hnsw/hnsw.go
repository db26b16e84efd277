// Package hnsw implements a hierarchical navigable small world graph index
// with tombstone deletion and background-friendly compaction.
package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/internal/bitset"
	"github.com/macneib/PolyVectorDB/internal/queue"
	"github.com/macneib/PolyVectorDB/internal/visited"
	"github.com/macneib/PolyVectorDB/model"
)

// noEntryPoint marks a graph with no live entry point.
const noEntryPoint = ^uint32(0)

var _ index.Index = (*HNSW)(nil)

// Options contains configuration for the HNSW index.
type Options struct {
	// Dimension is the fixed vector dimensionality. Required.
	Dimension int

	// Metric selects the distance function. Required.
	Metric distance.Metric

	// M is the target number of bidirectional links per node on upper
	// layers. Layer 0 allows 2*M.
	M int

	// EFConstruction bounds the candidate list during insertion.
	EFConstruction int

	// EFSearch is the default candidate list bound for searches that do
	// not specify one.
	EFSearch int

	// TombstoneRatio is the tombstone fraction above which
	// NeedsCompaction reports true.
	TombstoneRatio float64

	// Heuristic enables diversity-aware neighbor selection instead of
	// picking the M closest candidates.
	Heuristic bool

	// RandomSeed seeds level generation. Zero means a fixed default, so
	// builds are reproducible unless a seed is chosen explicitly.
	RandomSeed int64
}

// DefaultOptions is the default configuration for the HNSW index.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       100,
	TombstoneRatio: 0.2,
	Heuristic:      true,
}

// node is a slot in the graph's node table. Neighbor lists hold local
// uint32 slot IDs, one list per layer from 0 up to level.
type node struct {
	entity    model.EntityID
	vector    []float32
	level     int
	neighbors [][]uint32
}

// searchScratch holds the per-search allocations recycled through a pool.
type searchScratch struct {
	visited    *visited.Set
	candidates *queue.Queue
	results    *queue.Queue
}

// HNSW is a navigable small world graph index.
//
// Writers are serialized by a single mutex; searches take the read lock and
// run concurrently. Tombstoned nodes stay in the graph as routing bridges
// until Compact removes them.
type HNSW struct {
	mu sync.RWMutex

	opts     Options
	distFunc distance.Func

	nodes    []*node
	byEntity map[model.EntityID]uint32
	freeList []uint32

	entryPoint uint32
	maxLevel   int

	tombstones *bitset.BitSet
	liveCount  int
	deadCount  int

	levelMult float64
	rng       *rand.Rand

	searchPool sync.Pool
}

// New creates a new HNSW index with the given options.
func New(optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("hnsw: dimension must be positive, got %d", opts.Dimension)
	}
	if opts.M < 2 {
		return nil, fmt.Errorf("hnsw: M must be at least 2, got %d", opts.M)
	}
	if opts.EFConstruction < opts.M {
		return nil, fmt.Errorf("hnsw: efConstruction %d must not be below M %d", opts.EFConstruction, opts.M)
	}
	if opts.TombstoneRatio <= 0 || opts.TombstoneRatio >= 1 {
		return nil, fmt.Errorf("hnsw: tombstone ratio must be in (0, 1), got %v", opts.TombstoneRatio)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	seed := opts.RandomSeed
	if seed == 0 {
		seed = 1
	}

	h := &HNSW{
		opts:       opts,
		distFunc:   distFunc,
		byEntity:   make(map[model.EntityID]uint32),
		entryPoint: noEntryPoint,
		maxLevel:   -1,
		tombstones: bitset.New(0),
		levelMult:  1.0 / math.Log(float64(opts.M)),
		rng:        rand.New(rand.NewSource(seed)),
	}

	h.searchPool.New = func() any {
		return &searchScratch{
			visited:    visited.New(1024),
			candidates: queue.NewMin(opts.EFConstruction),
			results:    queue.NewMax(opts.EFConstruction),
		}
	}

	return h, nil
}

// Insert adds the vector for an entity. Re-inserting an existing entity
// replaces its prior vector; the live count stays the same.
func (h *HNSW) Insert(ctx context.Context, id model.EntityID, v []float32) error {
	if err := index.ValidateVector(h.opts.Dimension, v); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.byEntity[id]; ok {
		h.tombstoneLocked(prev)
	}

	vec := make([]float32, len(v))
	copy(vec, v)

	level := h.randomLevel()
	slot := h.allocSlot(&node{
		entity:    id,
		vector:    vec,
		level:     level,
		neighbors: make([][]uint32, level+1),
	})
	h.byEntity[id] = slot
	h.liveCount++

	if h.entryPoint == noEntryPoint {
		h.entryPoint = slot
		h.maxLevel = level
		return nil
	}

	ep := h.entryPoint

	// Greedy descent through layers above the new node's level. A failure
	// past this point tombstones the partially linked node so the graph
	// stays consistent.
	for l := h.maxLevel; l > level; l-- {
		var err error
		ep, err = h.greedyClosest(ctx, vec, ep, l)
		if err != nil {
			h.tombstoneLocked(slot)
			return err
		}
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		found, err := h.searchLayer(ctx, vec, ep, l, h.opts.EFConstruction)
		if err != nil {
			h.tombstoneLocked(slot)
			return err
		}

		selected := h.selectNeighbors(vec, found, h.opts.M)
		h.nodes[slot].neighbors[l] = selected

		maxConn := h.maxConnections(l)
		for _, nb := range selected {
			h.connect(nb, slot, l, maxConn)
		}

		if len(found) > 0 {
			ep = found[0].Node
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = slot
	}
	return nil
}

// Delete tombstones an entity. The node stays in the graph for routing
// until the next compaction. Returns false if the entity was not present.
func (h *HNSW) Delete(ctx context.Context, id model.EntityID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	slot, ok := h.byEntity[id]
	if !ok {
		return false, nil
	}
	h.tombstoneLocked(slot)
	return true, nil
}

// tombstoneLocked marks the slot dead, drops the entity mapping, and moves
// the entry point off the tombstone when needed. Caller holds the write lock.
func (h *HNSW) tombstoneLocked(slot uint32) {
	delete(h.byEntity, h.nodes[slot].entity)
	h.tombstones.Set(slot)
	h.liveCount--
	h.deadCount++

	if h.entryPoint != slot {
		return
	}

	// Reassign the entry point to the highest-level live node. A tombstoned
	// entry point still routes correctly, but keeping it live makes the
	// empty-after-deletes case explicit.
	h.entryPoint = noEntryPoint
	h.maxLevel = -1
	for i, n := range h.nodes {
		if n == nil || h.tombstones.Test(uint32(i)) {
			continue
		}
		if n.level > h.maxLevel {
			h.maxLevel = n.level
			h.entryPoint = uint32(i)
		}
	}
}

// Search returns up to k live candidates ordered by ascending distance,
// ties broken by ascending EntityID.
func (h *HNSW) Search(ctx context.Context, q []float32, k int, opts *index.SearchOptions) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(h.opts.Dimension, q); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.liveCount == 0 {
		return nil, nil
	}
	if h.entryPoint == noEntryPoint || h.nodes[h.entryPoint] == nil {
		return nil, &index.ErrCorruption{Reason: "live nodes present but no entry point"}
	}

	ef := h.opts.EFSearch
	if opts != nil && opts.EF > ef {
		ef = opts.EF
	}
	if ef < k {
		ef = k
	}

	ep := h.entryPoint
	for l := h.maxLevel; l > 0; l-- {
		var err error
		ep, err = h.greedyClosest(ctx, q, ep, l)
		if err != nil {
			return nil, err
		}
	}

	found, err := h.searchLayer(ctx, q, ep, 0, ef)
	if err != nil {
		return nil, err
	}

	candidates := make([]index.Candidate, 0, k)
	for _, item := range found {
		if h.tombstones.Test(item.Node) {
			continue
		}
		candidates = append(candidates, index.Candidate{
			ID:       h.nodes[item.Node].entity,
			Distance: item.Distance,
		})
		if len(candidates) == k {
			break
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// greedyClosest walks one layer greedily toward q and returns the local
// minimum. Tombstoned nodes participate in routing.
func (h *HNSW) greedyClosest(ctx context.Context, q []float32, ep uint32, level int) (uint32, error) {
	cur := ep
	curDist := h.distFunc(q, h.nodes[cur].vector)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		improved := false
		n := h.nodes[cur]
		if level < len(n.neighbors) {
			for _, nb := range n.neighbors[level] {
				d := h.distFunc(q, h.nodes[nb].vector)
				if d < curDist {
					cur, curDist = nb, d
					improved = true
				}
			}
		}
		if !improved {
			return cur, nil
		}
	}
}

// searchLayer runs bounded best-first search on one layer and returns up to
// ef items sorted by ascending distance.
func (h *HNSW) searchLayer(ctx context.Context, q []float32, ep uint32, level, ef int) ([]queue.Item, error) {
	scratch := h.searchPool.Get().(*searchScratch)
	defer func() {
		scratch.visited.Reset()
		scratch.candidates.Reset()
		scratch.results.Reset()
		h.searchPool.Put(scratch)
	}()

	epDist := h.distFunc(q, h.nodes[ep].vector)
	entry := queue.Item{Node: ep, Distance: epDist}

	scratch.visited.Visit(ep)
	scratch.candidates.PushItem(entry)
	scratch.results.PushItem(entry)

	for scratch.candidates.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur, _ := scratch.candidates.PopItem()
		if worst, ok := scratch.results.TopItem(); ok && scratch.results.Len() >= ef && cur.Distance > worst.Distance {
			break
		}

		n := h.nodes[cur.Node]
		if level >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[level] {
			if scratch.visited.Visited(nb) {
				continue
			}
			scratch.visited.Visit(nb)

			d := h.distFunc(q, h.nodes[nb].vector)
			worst, _ := scratch.results.TopItem()
			if scratch.results.Len() < ef || d < worst.Distance {
				item := queue.Item{Node: nb, Distance: d}
				scratch.candidates.PushItem(item)
				scratch.results.PushItemBounded(item, ef)
			}
		}
	}

	out := make([]queue.Item, scratch.results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = scratch.results.PopItem()
	}
	return out, nil
}

// selectNeighbors picks up to m neighbors from candidates, which arrive
// sorted by ascending distance. With the heuristic enabled a candidate is
// kept only when it is closer to the query than to every already-kept
// neighbor, which spreads links across directions; remaining capacity is
// filled with the closest rejects.
func (h *HNSW) selectNeighbors(q []float32, candidates []queue.Item, m int) []uint32 {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		for i, c := range candidates {
			out[i] = c.Node
		}
		return out
	}

	if !h.opts.Heuristic {
		out := make([]uint32, m)
		for i := 0; i < m; i++ {
			out[i] = candidates[i].Node
		}
		return out
	}

	selected := make([]uint32, 0, m)
	rejected := make([]uint32, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) == m {
			break
		}
		keep := true
		for _, s := range selected {
			if h.distFunc(h.nodes[c.Node].vector, h.nodes[s].vector) < c.Distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c.Node)
		} else {
			rejected = append(rejected, c.Node)
		}
	}

	for _, r := range rejected {
		if len(selected) == m {
			break
		}
		selected = append(selected, r)
	}
	return selected
}

// connect adds a back-link from nb to slot on the given layer, re-selecting
// neighbors when the list overflows maxConn.
func (h *HNSW) connect(nb, slot uint32, level, maxConn int) {
	n := h.nodes[nb]
	n.neighbors[level] = append(n.neighbors[level], slot)
	if len(n.neighbors[level]) <= maxConn {
		return
	}

	items := make([]queue.Item, 0, len(n.neighbors[level]))
	for _, c := range n.neighbors[level] {
		items = append(items, queue.Item{
			Node:     c,
			Distance: h.distFunc(n.vector, h.nodes[c].vector),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })
	n.neighbors[level] = h.selectNeighbors(n.vector, items, maxConn)
}

// randomLevel draws a level from the exponential distribution that keeps
// the expected layer population ratio at 1/M.
func (h *HNSW) randomLevel() int {
	r := h.rng.Float64()
	for r == 0 {
		r = h.rng.Float64()
	}
	return int(math.Floor(-math.Log(r) * h.levelMult))
}

// allocSlot places n in a free slot, or appends a new one.
func (h *HNSW) allocSlot(n *node) uint32 {
	if len(h.freeList) > 0 {
		slot := h.freeList[len(h.freeList)-1]
		h.freeList = h.freeList[:len(h.freeList)-1]
		h.nodes[slot] = n
		return slot
	}
	slot := uint32(len(h.nodes))
	h.nodes = append(h.nodes, n)
	h.tombstones.Grow(slot + 1)
	return slot
}

// maxConnections returns the degree cap for a layer.
func (h *HNSW) maxConnections(level int) int {
	if level == 0 {
		return h.opts.M * 2
	}
	return h.opts.M
}

// Contains reports whether the entity is live in the index.
func (h *HNSW) Contains(id model.EntityID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byEntity[id]
	return ok
}

// Count returns the number of live entries.
func (h *HNSW) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.liveCount
}

// Dimension returns the fixed vector dimensionality of the index.
func (h *HNSW) Dimension() int {
	return h.opts.Dimension
}

// Metric returns the metric the index was built with.
func (h *HNSW) Metric() distance.Metric {
	return h.opts.Metric
}

// NeedsCompaction reports whether the tombstone fraction crossed the
// configured ratio.
func (h *HNSW) NeedsCompaction() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := h.liveCount + h.deadCount
	if total == 0 {
		return false
	}
	return float64(h.deadCount)/float64(total) >= h.opts.TombstoneRatio
}

// Close releases the node table and all contained vectors.
func (h *HNSW) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nodes = nil
	h.byEntity = nil
	h.freeList = nil
	h.entryPoint = noEntryPoint
	h.maxLevel = -1
	h.tombstones.ClearAll()
	h.liveCount = 0
	h.deadCount = 0
	return nil
}

// Validate checks structural invariants and returns the first violation
// found. Intended for tests and post-compaction verification.
func (h *HNSW) Validate() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	live := 0
	for i, n := range h.nodes {
		slot := uint32(i)
		if n == nil {
			if h.tombstones.Test(slot) {
				return fmt.Errorf("hnsw: free slot %d still tombstoned", slot)
			}
			continue
		}
		if !h.tombstones.Test(slot) {
			live++
			if got, ok := h.byEntity[n.entity]; !ok || got != slot {
				return fmt.Errorf("hnsw: live slot %d not mapped for %s", slot, n.entity)
			}
		}
		if len(n.neighbors) != n.level+1 {
			return fmt.Errorf("hnsw: slot %d has %d layers, want %d", slot, len(n.neighbors), n.level+1)
		}
		for l, list := range n.neighbors {
			if len(list) > h.maxConnections(l) {
				return fmt.Errorf("hnsw: slot %d exceeds degree cap on layer %d: %d", slot, l, len(list))
			}
			for _, nb := range list {
				if int(nb) >= len(h.nodes) || h.nodes[nb] == nil {
					return fmt.Errorf("hnsw: slot %d links to dangling slot %d on layer %d", slot, nb, l)
				}
				if nb == slot {
					return fmt.Errorf("hnsw: slot %d links to itself on layer %d", slot, l)
				}
				if l > h.nodes[nb].level {
					return fmt.Errorf("hnsw: slot %d links to %d above its level on layer %d", slot, nb, l)
				}
			}
		}
	}
	if live != h.liveCount {
		return fmt.Errorf("hnsw: live count %d does not match table scan %d", h.liveCount, live)
	}
	if live > 0 && h.entryPoint == noEntryPoint {
		return &index.ErrCorruption{Reason: "live nodes present but no entry point"}
	}
	return nil
}
