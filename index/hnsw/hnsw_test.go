package hnsw

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macneib/PolyVectorDB/distance"
	"github.com/macneib/PolyVectorDB/index"
	"github.com/macneib/PolyVectorDB/index/linear"
	"github.com/macneib/PolyVectorDB/model"
	"github.com/macneib/PolyVectorDB/testutil"
)

func newTestIndex(t *testing.T, dim int, metric distance.Metric) *HNSW {
	t.Helper()

	h, err := New(func(o *Options) {
		o.Dimension = dim
		o.Metric = metric
		o.RandomSeed = 42
	})
	require.NoError(t, err)
	return h
}

func TestNew(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{
			name:   "Defaults with dimension and metric",
			mutate: func(o *Options) {},
		},
		{
			name:    "Zero dimension rejected",
			mutate:  func(o *Options) { o.Dimension = 0 },
			wantErr: true,
		},
		{
			name:    "M below two rejected",
			mutate:  func(o *Options) { o.M = 1 },
			wantErr: true,
		},
		{
			name:    "EFConstruction below M rejected",
			mutate:  func(o *Options) { o.EFConstruction = 4 },
			wantErr: true,
		},
		{
			name:    "Tombstone ratio out of range rejected",
			mutate:  func(o *Options) { o.TombstoneRatio = 1.5 },
			wantErr: true,
		},
		{
			name:    "Unspecified metric rejected",
			mutate:  func(o *Options) { o.Metric = distance.MetricUnspecified },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(func(o *Options) {
				o.Dimension = 4
				o.Metric = distance.MetricEuclidean
				tc.mutate(o)
			})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricEuclidean)

	require.NoError(t, h.Insert(ctx, 1, []float32{0, 0}))
	require.NoError(t, h.Insert(ctx, 2, []float32{1, 0}))
	require.NoError(t, h.Insert(ctx, 3, []float32{5, 5}))

	got, err := h.Search(ctx, []float32{0.1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.EntityID(1), got[0].ID)
	assert.Equal(t, model.EntityID(2), got[1].ID)
	assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
}

func TestSearchEmptyIndex(t *testing.T) {
	h := newTestIndex(t, 2, distance.MetricEuclidean)

	got, err := h.Search(context.Background(), []float32{0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchInvalidArguments(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricEuclidean)
	require.NoError(t, h.Insert(ctx, 1, []float32{0, 0}))

	t.Run("Invalid k", func(t *testing.T) {
		_, err := h.Search(ctx, []float32{0, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("Dimension mismatch", func(t *testing.T) {
		_, err := h.Search(ctx, []float32{0, 0, 0}, 1, nil)

		var dm *distance.ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("Empty vector", func(t *testing.T) {
		_, err := h.Search(ctx, nil, 1, nil)
		assert.ErrorIs(t, err, index.ErrEmptyVector)
	})
}

func TestInsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricEuclidean)

	require.NoError(t, h.Insert(ctx, 1, []float32{0, 0}))
	require.NoError(t, h.Insert(ctx, 2, []float32{10, 10}))
	require.NoError(t, h.Insert(ctx, 1, []float32{9, 9}))

	assert.Equal(t, 2, h.Count())

	got, err := h.Search(ctx, []float32{9, 9}, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EntityID(1), got[0].ID)
	assert.InDelta(t, 0.0, got[0].Distance, 1e-6)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricEuclidean)

	require.NoError(t, h.Insert(ctx, 1, []float32{0, 0}))
	require.NoError(t, h.Insert(ctx, 2, []float32{1, 1}))

	found, err := h.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, h.Contains(1))
	assert.Equal(t, 1, h.Count())

	found, err = h.Delete(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)

	got, err := h.Search(ctx, []float32{0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EntityID(2), got[0].ID)
}

func TestDeleteAllThenSearch(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricEuclidean)

	for i := 0; i < 10; i++ {
		require.NoError(t, h.Insert(ctx, model.EntityID(i), []float32{float32(i), 0}))
	}
	for i := 0; i < 10; i++ {
		found, err := h.Delete(ctx, model.EntityID(i))
		require.NoError(t, err)
		assert.True(t, found)
	}

	got, err := h.Search(ctx, []float32{0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, h.Validate())
}

func TestRecallAgainstExactScan(t *testing.T) {
	ctx := context.Background()
	const (
		numVectors = 500
		dim        = 16
		k          = 10
		numQueries = 20
	)

	rng := testutil.NewRNG(42)
	vectors := rng.UnitVectors(numVectors, dim)

	h := newTestIndex(t, dim, distance.MetricEuclidean)
	exact, err := linear.New(func(o *linear.Options) {
		o.Dimension = dim
		o.Metric = distance.MetricEuclidean
	})
	require.NoError(t, err)

	for i, v := range vectors {
		id := model.EntityID(i)
		require.NoError(t, h.Insert(ctx, id, v))
		require.NoError(t, exact.Insert(ctx, id, v))
	}
	require.NoError(t, h.Validate())

	var totalRecall float64
	for n := 0; n < numQueries; n++ {
		query := rng.UnitVector(dim)

		truth, err := exact.Search(ctx, query, k, nil)
		require.NoError(t, err)

		approx, err := h.Search(ctx, query, k, &index.SearchOptions{EF: 200})
		require.NoError(t, err)
		require.Len(t, approx, k)

		totalRecall += testutil.ComputeRecall(truth, approx)
	}

	avgRecall := totalRecall / numQueries
	assert.GreaterOrEqual(t, avgRecall, 0.9, "average recall@%d = %v", k, avgRecall)
}

// At saturation the graph must reproduce the exact oracle: searching with
// ef at least the index size returns the same top-k set as a linear scan.
func TestSaturatedSearchMatchesExactScan(t *testing.T) {
	ctx := context.Background()
	const (
		numVectors = 300
		dim        = 8
		k          = 10
		numQueries = 20
	)

	rng := testutil.NewRNG(29)
	vectors := rng.UnitVectors(numVectors, dim)

	h := newTestIndex(t, dim, distance.MetricEuclidean)
	exact, err := linear.New(func(o *linear.Options) {
		o.Dimension = dim
		o.Metric = distance.MetricEuclidean
	})
	require.NoError(t, err)

	for i, v := range vectors {
		id := model.EntityID(i)
		require.NoError(t, h.Insert(ctx, id, v))
		require.NoError(t, exact.Insert(ctx, id, v))
	}

	for n := 0; n < numQueries; n++ {
		query := rng.UnitVector(dim)

		truth, err := exact.Search(ctx, query, k, nil)
		require.NoError(t, err)

		got, err := h.Search(ctx, query, k, &index.SearchOptions{EF: numVectors})
		require.NoError(t, err)

		assert.Equal(t, testutil.IDs(truth), testutil.IDs(got))
	}
}

func TestConcurrentInsertsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	const (
		goroutines = 8
		perWorker  = 200
		dim        = 4
	)

	h := newTestIndex(t, dim, distance.MetricEuclidean)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()

			rng := testutil.NewRNG(int64(100 + g))
			vectors := rng.UniformVectors(perWorker, dim)
			for i, v := range vectors {
				id := model.EntityID(g*perWorker + i)
				assert.NoError(t, h.Insert(ctx, id, v))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, h.Validate())
	assert.Equal(t, goroutines*perWorker, h.Count())

	got, err := h.Search(ctx, []float32{0.5, 0.5, 0.5, 0.5}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestSearchResultsAreSorted(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)

	h := newTestIndex(t, 8, distance.MetricManhattan)
	for i, v := range rng.UniformVectors(100, 8) {
		require.NoError(t, h.Insert(ctx, model.EntityID(i), v))
	}

	got, err := h.Search(ctx, rng.UniformVectors(1, 8)[0], 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 10)

	for i := 1; i < len(got); i++ {
		if got[i-1].Distance == got[i].Distance {
			assert.Less(t, got[i-1].ID, got[i].ID)
		} else {
			assert.Less(t, got[i-1].Distance, got[i].Distance)
		}
	}
}

func TestStructuralInvariants(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)

	h := newTestIndex(t, 4, distance.MetricEuclidean)
	vectors := rng.UniformVectors(300, 4)

	for i, v := range vectors {
		require.NoError(t, h.Insert(ctx, model.EntityID(i), v))
	}
	for i := 0; i < 300; i += 3 {
		_, err := h.Delete(ctx, model.EntityID(i))
		require.NoError(t, err)
	}
	for i, v := range vectors[:50] {
		require.NoError(t, h.Insert(ctx, model.EntityID(1000+i), v))
	}

	require.NoError(t, h.Validate())
	assert.Equal(t, 250, h.Count())
}

func TestContextCancellation(t *testing.T) {
	h := newTestIndex(t, 4, distance.MetricEuclidean)

	ctx := context.Background()
	rng := testutil.NewRNG(3)
	for i, v := range rng.UniformVectors(50, 4) {
		require.NoError(t, h.Insert(ctx, model.EntityID(i), v))
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Search(cancelled, []float32{0, 0, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, context.Canceled)

	err = h.Insert(cancelled, 999, []float32{0, 0, 0, 0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricCosine)

	require.NoError(t, h.Insert(ctx, 1, []float32{1, 0}))
	require.NoError(t, h.Insert(ctx, 2, []float32{0, 1}))
	_, err := h.Delete(ctx, 2)
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, index.AlgorithmGraph, stats.Algorithm)
	assert.Equal(t, distance.MetricCosine, stats.Metric)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, 1, stats.LiveCount)
	assert.Equal(t, 1, stats.TombstoneCount)
	assert.Positive(t, stats.MemoryBytes)
	assert.NotEmpty(t, stats.Levels)
}

func TestNeedsCompaction(t *testing.T) {
	ctx := context.Background()
	h, err := New(func(o *Options) {
		o.Dimension = 2
		o.Metric = distance.MetricEuclidean
		o.TombstoneRatio = 0.5
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, h.Insert(ctx, model.EntityID(i), []float32{float32(i), 0}))
	}
	assert.False(t, h.NeedsCompaction())

	for i := 0; i < 5; i++ {
		_, err := h.Delete(ctx, model.EntityID(i))
		require.NoError(t, err)
	}
	assert.True(t, h.NeedsCompaction())
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	h := newTestIndex(t, 2, distance.MetricEuclidean)

	require.NoError(t, h.Insert(ctx, 1, []float32{0, 0}))
	_, err := h.Delete(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	assert.Equal(t, 0, h.Count())
	assert.Zero(t, h.Stats().TombstoneCount)
	assert.False(t, h.Contains(1))

	got, err := h.Search(ctx, []float32{0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGobRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(5)

	h := newTestIndex(t, 8, distance.MetricEuclidean)
	vectors := rng.UniformVectors(100, 8)
	for i, v := range vectors {
		require.NoError(t, h.Insert(ctx, model.EntityID(i), v))
	}
	_, err := h.Delete(ctx, 7)
	require.NoError(t, err)

	data, err := h.GobEncode()
	require.NoError(t, err)

	restored := newTestIndex(t, 2, distance.MetricCosine)
	require.NoError(t, restored.GobDecode(data))
	require.NoError(t, restored.Validate())

	assert.Equal(t, h.Count(), restored.Count())
	assert.Equal(t, 8, restored.Dimension())
	assert.Equal(t, distance.MetricEuclidean, restored.Metric())
	assert.False(t, restored.Contains(7))

	query := rng.UniformVectors(1, 8)[0]
	want, err := h.Search(ctx, query, 5, nil)
	require.NoError(t, err)
	got, err := restored.Search(ctx, query, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
