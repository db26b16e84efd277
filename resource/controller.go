// Package resource throttles background maintenance and bulk ingestion so
// they cannot starve the query path.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config contains configuration for the resource controller.
type Config struct {
	// MaxBackgroundJobs caps concurrent background jobs such as
	// compactions. Zero or negative disables the cap.
	MaxBackgroundJobs int

	// IngestLimitPerSec rate-limits bulk inserts. Zero or negative
	// disables the limit.
	IngestLimitPerSec int
}

// DefaultConfig is the default resource controller configuration.
var DefaultConfig = Config{
	MaxBackgroundJobs: 2,
}

// Controller enforces the configured limits. A nil *Controller is valid
// and enforces nothing.
type Controller struct {
	bgSem  *semaphore.Weighted
	ingest *rate.Limiter
	active atomic.Int64
}

// NewController creates a controller for the given config.
func NewController(cfg Config) *Controller {
	c := &Controller{}
	if cfg.MaxBackgroundJobs > 0 {
		c.bgSem = semaphore.NewWeighted(int64(cfg.MaxBackgroundJobs))
	}
	if cfg.IngestLimitPerSec > 0 {
		c.ingest = rate.NewLimiter(rate.Limit(cfg.IngestLimitPerSec), cfg.IngestLimitPerSec)
	}
	return c
}

// RunBackground runs fn once a background slot is available, blocking
// until then or until ctx is done.
func (c *Controller) RunBackground(ctx context.Context, fn func(ctx context.Context) error) error {
	if c == nil || c.bgSem == nil {
		return fn(ctx)
	}

	if err := c.bgSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.bgSem.Release(1)

	c.active.Add(1)
	defer c.active.Add(-1)

	return fn(ctx)
}

// WaitIngest blocks until the rate limiter grants n ingest tokens.
func (c *Controller) WaitIngest(ctx context.Context, n int) error {
	if c == nil || c.ingest == nil {
		return ctx.Err()
	}
	return c.ingest.WaitN(ctx, n)
}

// ActiveBackgroundJobs returns the number of jobs currently running under
// RunBackground.
func (c *Controller) ActiveBackgroundJobs() int64 {
	if c == nil {
		return 0
	}
	return c.active.Load()
}
