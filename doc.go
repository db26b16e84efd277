// Package polyvectordb is an embedded multi-field vector search engine.
// Each entity can carry vectors in several named fields, each field backed
// by its own index (exact linear scan or an HNSW graph), and queries
// combine per-field similarities into a single ranking.
package polyvectordb
