package hnsw

import (
	"context"
	"sort"

	"github.com/macneib/PolyVectorDB/internal/queue"
)

// Compact physically removes tombstoned nodes and repairs the neighbor
// lists of the survivors. It runs in three phases under the write lock:
//
//  1. every live node's lists are filtered to live neighbors, pulling in
//     2-hop replacements through dying bridges when a list gets sparse,
//  2. tombstoned slots are freed and returned to the free list,
//  3. the entry point is reassigned to the highest-level live node.
//
// Searches are blocked for the duration; the write path already serializes
// against the same lock, so callers typically run this in the background.
func (h *HNSW) Compact(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.deadCount == 0 {
		return nil
	}

	// Phase 1: repair live nodes.
	for i, n := range h.nodes {
		if n == nil || h.tombstones.Test(uint32(i)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for l := range n.neighbors {
			h.repairLayer(n, uint32(i), l)
		}
	}

	// Phase 2: free tombstoned slots.
	for i, n := range h.nodes {
		slot := uint32(i)
		if n == nil || !h.tombstones.Test(slot) {
			continue
		}
		h.nodes[slot] = nil
		h.tombstones.Unset(slot)
		h.freeList = append(h.freeList, slot)
	}
	h.deadCount = 0

	// Phase 3: reassign the entry point.
	h.entryPoint = noEntryPoint
	h.maxLevel = -1
	for i, n := range h.nodes {
		if n == nil {
			continue
		}
		if n.level > h.maxLevel {
			h.maxLevel = n.level
			h.entryPoint = uint32(i)
		}
	}
	return nil
}

// repairLayer rewrites one neighbor list of a live node to live-only
// entries. When the filtered list drops below half the degree cap, the
// tombstoned neighbors' own lists are followed one hop to recover
// candidates that the dying bridges used to provide.
func (h *HNSW) repairLayer(n *node, slot uint32, level int) {
	list := n.neighbors[level]

	kept := list[:0]
	var dead []uint32
	for _, nb := range list {
		if h.tombstones.Test(nb) {
			dead = append(dead, nb)
		} else {
			kept = append(kept, nb)
		}
	}

	maxConn := h.maxConnections(level)
	if len(dead) == 0 || len(kept) >= maxConn/2 {
		n.neighbors[level] = kept
		return
	}

	seen := make(map[uint32]struct{}, len(kept)+1)
	seen[slot] = struct{}{}
	for _, k := range kept {
		seen[k] = struct{}{}
	}

	items := make([]queue.Item, 0, len(kept))
	for _, k := range kept {
		items = append(items, queue.Item{Node: k, Distance: h.distFunc(n.vector, h.nodes[k].vector)})
	}
	for _, d := range dead {
		dn := h.nodes[d]
		if level >= len(dn.neighbors) {
			continue
		}
		for _, hop := range dn.neighbors[level] {
			if _, ok := seen[hop]; ok || h.tombstones.Test(hop) {
				continue
			}
			seen[hop] = struct{}{}
			items = append(items, queue.Item{Node: hop, Distance: h.distFunc(n.vector, h.nodes[hop].vector)})
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })
	n.neighbors[level] = h.selectNeighbors(n.vector, items, maxConn)
}
