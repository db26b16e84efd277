// Package distance provides the similarity kernel: pure functions scoring
// two equal-dimension vectors under a chosen metric.
//
// Indices operate internally on distances (lower is better). The query layer
// converts distances into a single "higher is better" similarity space via
// ToSimilarity; the conversion is chosen once per metric and applied
// consistently everywhere.
package distance
