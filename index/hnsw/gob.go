package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/macneib/PolyVectorDB/internal/bitset"
	"github.com/macneib/PolyVectorDB/model"
)

// gobNode is the serialized form of a node table slot. A nil slot is
// encoded with Free set so the free list survives a round trip.
type gobNode struct {
	Free      bool
	Entity    model.EntityID
	Vector    []float32
	Level     int
	Neighbors [][]uint32
}

// GobEncode serializes the graph. The caller must ensure no writer is
// active; searches are excluded by the read lock held here.
func (h *HNSW) GobEncode() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(h.opts); err != nil {
		return nil, fmt.Errorf("hnsw: encode options: %w", err)
	}

	nodes := make([]gobNode, len(h.nodes))
	for i, n := range h.nodes {
		if n == nil {
			nodes[i] = gobNode{Free: true}
			continue
		}
		nodes[i] = gobNode{
			Entity:    n.entity,
			Vector:    n.vector,
			Level:     n.level,
			Neighbors: n.neighbors,
		}
	}
	if err := enc.Encode(nodes); err != nil {
		return nil, fmt.Errorf("hnsw: encode nodes: %w", err)
	}

	tombstoned := make([]uint32, 0, h.deadCount)
	for i := range h.nodes {
		if h.tombstones.Test(uint32(i)) {
			tombstoned = append(tombstoned, uint32(i))
		}
	}
	if err := enc.Encode(tombstoned); err != nil {
		return nil, fmt.Errorf("hnsw: encode tombstones: %w", err)
	}

	if err := enc.Encode(h.entryPoint); err != nil {
		return nil, fmt.Errorf("hnsw: encode entry point: %w", err)
	}
	if err := enc.Encode(h.maxLevel); err != nil {
		return nil, fmt.Errorf("hnsw: encode max level: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode restores a graph serialized by GobEncode, replacing the
// receiver's state.
func (h *HNSW) GobDecode(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	dec := gob.NewDecoder(bytes.NewReader(data))

	var opts Options
	if err := dec.Decode(&opts); err != nil {
		return fmt.Errorf("hnsw: decode options: %w", err)
	}

	restored, err := New(func(o *Options) { *o = opts })
	if err != nil {
		return err
	}

	var nodes []gobNode
	if err := dec.Decode(&nodes); err != nil {
		return fmt.Errorf("hnsw: decode nodes: %w", err)
	}

	var tombstoned []uint32
	if err := dec.Decode(&tombstoned); err != nil {
		return fmt.Errorf("hnsw: decode tombstones: %w", err)
	}
	if err := dec.Decode(&restored.entryPoint); err != nil {
		return fmt.Errorf("hnsw: decode entry point: %w", err)
	}
	if err := dec.Decode(&restored.maxLevel); err != nil {
		return fmt.Errorf("hnsw: decode max level: %w", err)
	}

	restored.nodes = make([]*node, len(nodes))
	restored.tombstones = bitset.New(uint32(len(nodes)))
	for i, gn := range nodes {
		if gn.Free {
			restored.freeList = append(restored.freeList, uint32(i))
			continue
		}
		restored.nodes[i] = &node{
			entity:    gn.Entity,
			vector:    gn.Vector,
			level:     gn.Level,
			neighbors: gn.Neighbors,
		}
	}
	for _, slot := range tombstoned {
		if int(slot) >= len(restored.nodes) || restored.nodes[slot] == nil {
			return fmt.Errorf("hnsw: decode: tombstone for invalid slot %d", slot)
		}
		restored.tombstones.Set(slot)
		restored.deadCount++
	}
	for i, n := range restored.nodes {
		if n == nil || restored.tombstones.Test(uint32(i)) {
			continue
		}
		restored.byEntity[n.entity] = uint32(i)
		restored.liveCount++
	}

	// Keep the receiver's lock; adopt everything else.
	h.opts = restored.opts
	h.distFunc = restored.distFunc
	h.nodes = restored.nodes
	h.byEntity = restored.byEntity
	h.freeList = restored.freeList
	h.entryPoint = restored.entryPoint
	h.maxLevel = restored.maxLevel
	h.tombstones = restored.tombstones
	h.liveCount = restored.liveCount
	h.deadCount = restored.deadCount
	h.levelMult = restored.levelMult
	h.rng = restored.rng
	h.searchPool.New = restored.searchPool.New

	return nil
}
