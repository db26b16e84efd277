package polyvectordb

import (
	"log/slog"

	"github.com/macneib/PolyVectorDB/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	expansionFactor  int
	resourceConfig   resource.Config
	autoCompaction   bool
}

// Option configures DB constructor behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &polyvectordb.BasicMetricsCollector{}
//	db := polyvectordb.New(polyvectordb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := polyvectordb.NewJSONLogger(slog.LevelInfo)
//	db := polyvectordb.New(polyvectordb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithExpansionFactor configures the per-field candidate over-fetch
// multiplier for cross-vector queries. Values below 1 keep the default.
//
// Larger factors improve combined-ranking quality for entities that are
// good everywhere but great nowhere, at the cost of wider per-field
// searches.
func WithExpansionFactor(factor int) Option {
	return func(o *options) {
		o.expansionFactor = factor
	}
}

// WithResourceConfig configures background job and ingest throttling.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithAutoCompaction enables tombstone-ratio-triggered background
// compaction after deletes.
func WithAutoCompaction(enabled bool) Option {
	return func(o *options) {
		o.autoCompaction = enabled
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		resourceConfig:   resource.DefaultConfig,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
