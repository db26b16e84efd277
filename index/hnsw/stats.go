package hnsw

import (
	"github.com/macneib/PolyVectorDB/index"
)

// Stats returns a point-in-time snapshot of the graph.
func (h *HNSW) Stats() index.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := index.Stats{
		Algorithm:      index.AlgorithmGraph,
		Metric:         h.opts.Metric,
		Dimension:      h.opts.Dimension,
		LiveCount:      h.liveCount,
		TombstoneCount: h.deadCount,
		MaxLevel:       h.maxLevel,
	}

	if h.maxLevel >= 0 {
		nodesPerLevel := make([]int, h.maxLevel+1)
		connsPerLevel := make([]int, h.maxLevel+1)

		for _, n := range h.nodes {
			if n == nil {
				continue
			}
			stats.MemoryBytes += int64(len(n.vector)) * 4
			for l, list := range n.neighbors {
				if l > h.maxLevel {
					continue
				}
				nodesPerLevel[l]++
				connsPerLevel[l] += len(list)
				stats.MemoryBytes += int64(len(list)) * 4
			}
		}

		stats.Levels = make([]index.LevelStats, 0, h.maxLevel+1)
		for l := h.maxLevel; l >= 0; l-- {
			ls := index.LevelStats{
				Level:       l,
				Nodes:       nodesPerLevel[l],
				Connections: connsPerLevel[l],
			}
			if ls.Nodes > 0 {
				ls.AvgConnections = ls.Connections / ls.Nodes
			}
			stats.Levels = append(stats.Levels, ls)
		}
	}
	return stats
}
