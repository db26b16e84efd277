package polyvectordb

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macneib/PolyVectorDB/entitystore"
	"github.com/macneib/PolyVectorDB/resource"
	"github.com/macneib/PolyVectorDB/testutil"
)

func newTestDB(t *testing.T, optFns ...Option) *DB {
	t.Helper()

	db := New(optFns...)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.CreateIndex("title", IndexConfig{
		Metric:    MetricCosine,
		Dimension: 4,
	}))
	require.NoError(t, db.CreateIndex("body", IndexConfig{
		Algorithm: AlgorithmGraph,
		Metric:    MetricEuclidean,
		Dimension: 4,
	}))

	require.NoError(t, db.InsertVector(ctx, "title", 1, []float32{1, 0, 0, 0}))
	require.NoError(t, db.InsertVector(ctx, "title", 2, []float32{0, 1, 0, 0}))
	require.NoError(t, db.InsertVector(ctx, "body", 1, []float32{0, 0, 0, 0}))
	require.NoError(t, db.InsertVector(ctx, "body", 2, []float32{1, 1, 1, 1}))

	results, err := db.Query(ctx, &CrossVectorQuery{
		Fields: []FieldQuery{
			{Field: "title", Vector: []float32{1, 0, 0, 0}, Weight: 0.7},
			{Field: "body", Vector: []float32{0, 0, 0, 0}, Weight: 0.3},
		},
		K: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, EntityID(1), results[0].ID)
	assert.Greater(t, results[0].CombinedScore, results[1].CombinedScore)
	assert.Contains(t, results[0].FieldScores, "title")
	assert.Contains(t, results[0].FieldScores, "body")

	found, err := db.DeleteVector(ctx, "title", 1)
	require.NoError(t, err)
	assert.True(t, found)

	stats := db.Stats()
	assert.Equal(t, 1, stats["title"].LiveCount)
	assert.Equal(t, 2, stats["body"].LiveCount)
}

func TestIndexStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.CreateIndex("title", IndexConfig{
		Algorithm: AlgorithmGraph,
		Metric:    MetricEuclidean,
		Dimension: 2,
	}))
	require.NoError(t, db.InsertVector(ctx, "title", 1, []float32{1, 0}))

	stats, err := db.IndexStats("title")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmGraph, stats.Algorithm)
	assert.Equal(t, 1, stats.LiveCount)
	assert.Equal(t, 2, stats.Dimension)

	_, err = db.IndexStats("nope")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	closedDB := New()
	require.NoError(t, closedDB.Close())
	_, err = closedDB.IndexStats("title")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCreateAndDropIndex(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateIndex("title", IndexConfig{Metric: MetricCosine, Dimension: 2}))
	assert.ErrorIs(t, db.CreateIndex("title", IndexConfig{Metric: MetricCosine, Dimension: 2}), ErrFieldExists)

	assert.Equal(t, []string{"title"}, db.FieldNames())

	require.NoError(t, db.DropIndex("title"))
	assert.ErrorIs(t, db.DropIndex("title"), ErrFieldNotFound)
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.CreateIndex("title", IndexConfig{Metric: MetricCosine, Dimension: 2}))

	t.Run("Unknown field", func(t *testing.T) {
		err := db.InsertVector(ctx, "nope", 1, []float32{0, 0})
		assert.ErrorIs(t, err, ErrFieldNotFound)
	})

	t.Run("Dimension mismatch", func(t *testing.T) {
		err := db.InsertVector(ctx, "title", 1, []float32{0, 0, 0})

		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 3, dm.Actual)
	})

	t.Run("Invalid k", func(t *testing.T) {
		_, err := db.Query(ctx, &CrossVectorQuery{
			Fields: []FieldQuery{{Field: "title", Vector: []float32{1, 0}, Weight: 1}},
			K:      0,
		})
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("Query against unknown field", func(t *testing.T) {
		_, err := db.Query(ctx, &CrossVectorQuery{
			Fields: []FieldQuery{{Field: "nope", Vector: []float32{1, 0}, Weight: 1}},
			K:      1,
		})
		assert.ErrorIs(t, err, ErrFieldNotFound)
	})

	t.Run("Empty query", func(t *testing.T) {
		_, err := db.Query(ctx, &CrossVectorQuery{K: 1})

		var iq *ErrInvalidQuery
		assert.ErrorAs(t, err, &iq)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		require.NoError(t, db.InsertVector(ctx, "title", 1, []float32{1, 0}))

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := db.Query(cancelled, &CrossVectorQuery{
			Fields: []FieldQuery{{Field: "title", Vector: []float32{1, 0}, Weight: 1}},
			K:      1,
		})
		assert.ErrorIs(t, err, ErrCancelled)
	})
}

func TestClosedDB(t *testing.T) {
	db := New()
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Close(), ErrClosed)
	assert.ErrorIs(t, db.CreateIndex("x", IndexConfig{Metric: MetricCosine, Dimension: 2}), ErrClosed)
	assert.ErrorIs(t, db.InsertVector(context.Background(), "x", 1, []float32{0, 0}), ErrClosed)

	_, err := db.Query(context.Background(), &CrossVectorQuery{K: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuildFromSource(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(41)

	db := newTestDB(t, WithResourceConfig(resource.Config{
		MaxBackgroundJobs: 2,
		IngestLimitPerSec: 100000,
	}))

	require.NoError(t, db.CreateIndex("title", IndexConfig{
		Algorithm: AlgorithmGraph,
		Metric:    MetricEuclidean,
		Dimension: 8,
	}))
	require.NoError(t, db.CreateIndex("body", IndexConfig{
		Metric:    MetricEuclidean,
		Dimension: 8,
	}))

	src := entitystore.NewMemory()
	for i, v := range rng.UniformVectors(60, 8) {
		src.Put("title", EntityID(i), v)
		if i%3 == 0 {
			src.Put("body", EntityID(i), v)
		}
	}

	counts, err := db.BuildFromSource(ctx, src, "title", "body")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"title": 60, "body": 20}, counts)

	stats := db.Stats()
	assert.Equal(t, 60, stats["title"].LiveCount)
	assert.Equal(t, 20, stats["body"].LiveCount)
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	db := newTestDB(t, WithMetricsCollector(metrics))

	require.NoError(t, db.CreateIndex("title", IndexConfig{Metric: MetricCosine, Dimension: 2}))
	require.NoError(t, db.InsertVector(ctx, "title", 1, []float32{1, 0}))

	_, err := db.Query(ctx, &CrossVectorQuery{
		Fields: []FieldQuery{{Field: "title", Vector: []float32{1, 0}, Weight: 1}},
		K:      1,
	})
	require.NoError(t, err)

	_, err = db.DeleteVector(ctx, "title", 1)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.InsertCount)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(1), stats.DeleteCount)
	assert.Zero(t, stats.InsertErrors)
}

func TestAutoCompaction(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, WithAutoCompaction(true))

	require.NoError(t, db.CreateIndex("title", IndexConfig{
		Algorithm:      AlgorithmGraph,
		Metric:         MetricEuclidean,
		Dimension:      2,
		TombstoneRatio: 0.3,
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, db.InsertVector(ctx, "title", EntityID(i), []float32{float32(i), 0}))
	}
	for i := 0; i < 10; i++ {
		_, err := db.DeleteVector(ctx, "title", EntityID(i))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return db.Stats()["title"].TombstoneCount == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 10, db.Stats()["title"].LiveCount)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(47)

	db := newTestDB(t)
	require.NoError(t, db.CreateIndex("title", IndexConfig{
		Algorithm: AlgorithmGraph,
		Metric:    MetricEuclidean,
		Dimension: 8,
	}))
	for i, v := range rng.UniformVectors(80, 8) {
		require.NoError(t, db.InsertVector(ctx, "title", EntityID(i), v))
	}
	_, err := db.DeleteVector(ctx, "title", 7)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, db.SaveSnapshot(ctx, "title", &buf))

	restoredDB := newTestDB(t)
	name, err := restoredDB.LoadSnapshot(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "title", name)

	stats := restoredDB.Stats()["title"]
	assert.Equal(t, 79, stats.LiveCount)

	query := rng.UniformVectors(1, 8)[0]
	want, err := db.Query(ctx, &CrossVectorQuery{
		Fields: []FieldQuery{{Field: "title", Vector: query, Weight: 1}},
		K:      5,
	})
	require.NoError(t, err)
	got, err := restoredDB.Query(ctx, &CrossVectorQuery{
		Fields: []FieldQuery{{Field: "title", Vector: query, Weight: 1}},
		K:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapshotFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.CreateIndex("title", IndexConfig{Metric: MetricCosine, Dimension: 2}))
	require.NoError(t, db.InsertVector(ctx, "title", 1, []float32{1, 0}))

	filename := t.TempDir() + "/title.snap"
	require.NoError(t, db.SaveSnapshotFile(ctx, "title", filename))

	restoredDB := newTestDB(t)
	name, err := restoredDB.LoadSnapshotFile(ctx, filename)
	require.NoError(t, err)
	assert.Equal(t, "title", name)
	assert.Equal(t, 1, restoredDB.Stats()["title"].LiveCount)
}

func TestLoadSnapshotRejectsGarbage(t *testing.T) {
	db := newTestDB(t)

	_, err := db.LoadSnapshot(context.Background(), bytes.NewReader([]byte("not a snapshot")))
	assert.Error(t, err)
}

func TestLoadSnapshotExistingField(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.CreateIndex("title", IndexConfig{Metric: MetricCosine, Dimension: 2}))

	var buf bytes.Buffer
	require.NoError(t, db.SaveSnapshot(ctx, "title", &buf))

	_, err := db.LoadSnapshot(ctx, &buf)
	assert.ErrorIs(t, err, ErrFieldExists)
}
