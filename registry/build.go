package registry

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/macneib/PolyVectorDB/entitystore"
	"github.com/macneib/PolyVectorDB/model"
	"github.com/macneib/PolyVectorDB/resource"
)

// BuildField bulk-loads one field's index from a source, honoring the
// controller's ingest rate limit. It returns the number of vectors
// inserted.
func (r *Registry) BuildField(ctx context.Context, name string, src entitystore.Source, ctrl *resource.Controller) (int, error) {
	f, err := r.Get(name)
	if err != nil {
		return 0, err
	}

	count := 0
	err = src.ScanField(ctx, name, func(id model.EntityID, v []float32) error {
		if err := ctrl.WaitIngest(ctx, 1); err != nil {
			return err
		}
		if err := f.Index.Insert(ctx, id, v); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// BuildFields builds several fields concurrently, one goroutine per field.
// The first failure cancels the rest. It returns per-field insert counts
// for the fields that completed.
func (r *Registry) BuildFields(ctx context.Context, names []string, src entitystore.Source, ctrl *resource.Controller) (map[string]int, error) {
	// Resolve everything up front so a typo fails before any work starts.
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	counts := make(map[string]int, len(names))
	var mu sync.Mutex

	for _, name := range names {
		name := name
		g.Go(func() error {
			n, err := r.BuildField(gctx, name, src, ctrl)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[name] = n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}
