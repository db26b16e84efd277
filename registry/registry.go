// Package registry maps field names to their vector indexes and owns field
// lifecycle: creation, lookup, teardown, and bulk builds.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/index/hnsw"
	"github.com/macneib/PolyVectorDB/index/linear"
)

var (
	// ErrAlreadyExists is returned when creating a field whose name is
	// already registered.
	ErrAlreadyExists = errors.New("registry: field already exists")

	// ErrNotFound is returned when a field name is not registered.
	ErrNotFound = errors.New("registry: field not found")
)

// Config describes one field's index. The zero Algorithm is Linear, so a
// field created without graph parameters gets the exact index.
type Config struct {
	Algorithm      index.Algorithm
	Metric         distance.Metric
	Dimension      int
	M              int
	EFConstruction int
	EFSearch       int
	TombstoneRatio float64
	RandomSeed     int64
}

// withDefaults fills unset graph parameters from hnsw.DefaultOptions.
func (c Config) withDefaults() Config {
	d := hnsw.DefaultOptions
	if c.M == 0 {
		c.M = d.M
	}
	if c.EFConstruction == 0 {
		c.EFConstruction = d.EFConstruction
	}
	if c.EFSearch == 0 {
		c.EFSearch = d.EFSearch
	}
	if c.TombstoneRatio == 0 {
		c.TombstoneRatio = d.TombstoneRatio
	}
	return c
}

// Field is a registered field and its index.
type Field struct {
	Name   string
	Config Config
	Index  index.Index
}

// Registry is a concurrency-safe map of field name to index.
type Registry struct {
	mu     sync.RWMutex
	fields map[string]*Field
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{fields: make(map[string]*Field)}
}

// Create registers a new field and builds its empty index.
func (r *Registry) Create(name string, cfg Config) (*Field, error) {
	if name == "" {
		return nil, fmt.Errorf("registry: field name must not be empty")
	}

	cfg = cfg.withDefaults()

	idx, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.fields[name]; ok {
		idx.Close()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	f := &Field{Name: name, Config: cfg, Index: idx}
	r.fields[name] = f
	return f, nil
}

// Get returns the field registered under name.
func (r *Registry) Get(name string) (*Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return f, nil
}

// Drop removes a field and closes its index.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	f, ok := r.fields[name]
	if ok {
		delete(r.fields, name)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return f.Index.Close()
}

// Names returns the registered field names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns per-field index statistics keyed by field name.
func (r *Registry) Stats() map[string]index.Stats {
	r.mu.RLock()
	fields := make([]*Field, 0, len(r.fields))
	for _, f := range r.fields {
		fields = append(fields, f)
	}
	r.mu.RUnlock()

	out := make(map[string]index.Stats, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Index.Stats()
	}
	return out
}

// Close drops every field and closes all indexes, returning the first
// close error encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	fields := r.fields
	r.fields = make(map[string]*Field)
	r.mu.Unlock()

	var firstErr error
	for _, f := range fields {
		if err := f.Index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildIndex instantiates the index implementation a config selects.
func buildIndex(cfg Config) (index.Index, error) {
	switch cfg.Algorithm {
	case index.AlgorithmLinear:
		return linear.New(func(o *linear.Options) {
			o.Dimension = cfg.Dimension
			o.Metric = cfg.Metric
		})
	case index.AlgorithmGraph:
		return hnsw.New(func(o *hnsw.Options) {
			o.Dimension = cfg.Dimension
			o.Metric = cfg.Metric
			o.M = cfg.M
			o.EFConstruction = cfg.EFConstruction
			o.EFSearch = cfg.EFSearch
			o.TombstoneRatio = cfg.TombstoneRatio
			o.RandomSeed = cfg.RandomSeed
		})
	default:
		return nil, fmt.Errorf("registry: unknown algorithm %v", cfg.Algorithm)
	}
}
