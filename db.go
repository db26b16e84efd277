package polyvectordb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/engine"
	"github.com/macneib/PolyVectorDB/entitystore"
	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/model"
	"github.com/macneib/PolyVectorDB/registry"
	"github.com/macneib/PolyVectorDB/resource"
)

// Re-exported core types so typical callers only import this package.
type (
	// EntityID identifies an entity across all fields.
	EntityID = model.EntityID

	// IndexConfig describes one field's index.
	IndexConfig = registry.Config

	// IndexStats is a point-in-time snapshot of one field's index.
	IndexStats = index.Stats

	// FieldQuery is one per-field leg of a cross-vector query.
	FieldQuery = engine.FieldQuery

	// CrossVectorQuery is a multi-field similarity query.
	CrossVectorQuery = engine.CrossVectorQuery

	// SearchResult is one combined hit, with per-field similarity detail.
	SearchResult = engine.SearchResult

	// Scorer computes a combined score from per-field similarities.
	Scorer = engine.Scorer

	// CombinationStrategy selects how per-field similarities collapse
	// into one combined score.
	CombinationStrategy = engine.CombinationStrategy
)

// Re-exported constants for query strategies, index algorithms and metrics.
const (
	StrategyWeightedAverage = engine.StrategyWeightedAverage
	StrategyMin             = engine.StrategyMin
	StrategyMax             = engine.StrategyMax
	StrategyCustom          = engine.StrategyCustom

	AlgorithmLinear = index.AlgorithmLinear
	AlgorithmGraph  = index.AlgorithmGraph

	MetricCosine    = distance.MetricCosine
	MetricEuclidean = distance.MetricEuclidean
	MetricManhattan = distance.MetricManhattan
	MetricDot       = distance.MetricDot
)

// DB is the top-level handle: a registry of per-field indexes plus the
// cross-vector query engine over them.
//
// All methods are safe for concurrent use.
type DB struct {
	opts     options
	registry *registry.Registry
	engine   *engine.Engine
	ctrl     *resource.Controller

	closed atomic.Bool
	bg     sync.WaitGroup
}

// New creates an empty database.
func New(optFns ...Option) *DB {
	opts := applyOptions(optFns)

	reg := registry.New()
	return &DB{
		opts:     opts,
		registry: reg,
		engine:   engine.New(reg, opts.expansionFactor),
		ctrl:     resource.NewController(opts.resourceConfig),
	}
}

// CreateIndex registers a new field with its own index.
func (db *DB) CreateIndex(name string, cfg IndexConfig) error {
	if db.closed.Load() {
		return ErrClosed
	}
	_, err := db.registry.Create(name, cfg)
	return translateError(err)
}

// DropIndex removes a field and releases its index.
func (db *DB) DropIndex(name string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	return translateError(db.registry.Drop(name))
}

// FieldNames returns the registered field names in sorted order.
func (db *DB) FieldNames() []string {
	return db.registry.Names()
}

// InsertVector adds or replaces the vector an entity carries for a field.
func (db *DB) InsertVector(ctx context.Context, field string, id EntityID, v []float32) error {
	if db.closed.Load() {
		return ErrClosed
	}

	start := time.Now()

	f, err := db.registry.Get(field)
	if err == nil {
		err = f.Index.Insert(ctx, id, v)
	}
	err = translateError(err)

	db.opts.metricsCollector.RecordInsert(field, time.Since(start), err)
	db.opts.logger.LogInsert(ctx, field, id, len(v), err)
	return err
}

// DeleteVector removes the vector an entity carries for a field. Returns
// false if the entity had no vector there.
func (db *DB) DeleteVector(ctx context.Context, field string, id EntityID) (bool, error) {
	if db.closed.Load() {
		return false, ErrClosed
	}

	start := time.Now()

	var found bool
	f, err := db.registry.Get(field)
	if err == nil {
		found, err = f.Index.Delete(ctx, id)
	}
	err = translateError(err)

	db.opts.metricsCollector.RecordDelete(field, time.Since(start), err)
	db.opts.logger.LogDelete(ctx, field, id, found, err)

	if err == nil && found && db.opts.autoCompaction {
		db.maybeCompact(ctx, f)
	}
	return found, err
}

// Query executes a cross-vector query and returns up to q.K results
// ordered by descending combined score.
func (db *DB) Query(ctx context.Context, q *CrossVectorQuery) ([]SearchResult, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()

	results, err := db.engine.Search(ctx, q)
	err = translateError(err)

	fields, k := 0, 0
	if q != nil {
		fields, k = len(q.Fields), q.K
	}
	db.opts.metricsCollector.RecordQuery(fields, k, time.Since(start), err)
	db.opts.logger.LogQuery(ctx, fields, k, len(results), err)
	return results, err
}

// Stats returns per-field index statistics keyed by field name.
func (db *DB) Stats() map[string]IndexStats {
	return db.registry.Stats()
}

// IndexStats returns one field's index statistics.
func (db *DB) IndexStats(field string) (IndexStats, error) {
	if db.closed.Load() {
		return IndexStats{}, ErrClosed
	}

	f, err := db.registry.Get(field)
	if err != nil {
		return IndexStats{}, translateError(err)
	}
	return f.Index.Stats(), nil
}

// Compact synchronously compacts one field's index.
func (db *DB) Compact(ctx context.Context, field string) error {
	if db.closed.Load() {
		return ErrClosed
	}

	f, err := db.registry.Get(field)
	if err != nil {
		return translateError(err)
	}
	return db.compactField(ctx, f)
}

// BuildFromSource bulk-loads the named fields from a vector source,
// building them concurrently under the ingest rate limit. It returns
// per-field insert counts.
func (db *DB) BuildFromSource(ctx context.Context, src entitystore.Source, fields ...string) (map[string]int, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	counts, err := db.registry.BuildFields(ctx, fields, src, db.ctrl)
	err = translateError(err)

	for _, name := range fields {
		db.opts.logger.LogBuild(ctx, name, counts[name], err)
	}
	return counts, err
}

// Close shuts the database down: background compactions are drained and
// every index is released. Further calls return ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	db.bg.Wait()
	return db.registry.Close()
}

// maybeCompact kicks off a background compaction when the field's index
// reports it crossed its tombstone threshold.
func (db *DB) maybeCompact(ctx context.Context, f *registry.Field) {
	if !f.Index.NeedsCompaction() {
		return
	}

	// Detach from the caller's cancellation: the delete already
	// succeeded, the cleanup should not die with its request.
	bgCtx := context.WithoutCancel(ctx)

	db.bg.Add(1)
	go func() {
		defer db.bg.Done()
		_ = db.ctrl.RunBackground(bgCtx, func(ctx context.Context) error {
			return db.compactField(ctx, f)
		})
	}()
}

// compactField runs one compaction with metrics and logging.
func (db *DB) compactField(ctx context.Context, f *registry.Field) error {
	start := time.Now()
	before := f.Index.Stats().TombstoneCount

	err := translateError(f.Index.Compact(ctx))

	db.opts.metricsCollector.RecordCompaction(f.Name, time.Since(start), err)
	db.opts.logger.LogCompaction(ctx, f.Name, before, err)
	return err
}
