package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func popDistance(t *testing.T, q *Queue) float32 {
	t.Helper()

	item, ok := q.PopItem()
	require.True(t, ok)
	return item.Distance
}

func TestMinQueue(t *testing.T) {
	q := NewMin(4)

	q.PushItem(Item{Node: 1, Distance: 3.0})
	q.PushItem(Item{Node: 2, Distance: 1.0})
	q.PushItem(Item{Node: 3, Distance: 2.0})

	require.Equal(t, 3, q.Len())
	top, ok := q.TopItem()
	require.True(t, ok)
	assert.Equal(t, uint32(2), top.Node)

	assert.Equal(t, float32(1.0), popDistance(t, q))
	assert.Equal(t, float32(2.0), popDistance(t, q))
	assert.Equal(t, float32(3.0), popDistance(t, q))
	assert.Equal(t, 0, q.Len())
}

func TestMaxQueue(t *testing.T) {
	q := NewMax(4)

	q.PushItem(Item{Node: 1, Distance: 3.0})
	q.PushItem(Item{Node: 2, Distance: 1.0})
	q.PushItem(Item{Node: 3, Distance: 2.0})

	top, ok := q.TopItem()
	require.True(t, ok)
	assert.Equal(t, uint32(1), top.Node)

	assert.Equal(t, float32(3.0), popDistance(t, q))
	assert.Equal(t, float32(2.0), popDistance(t, q))
	assert.Equal(t, float32(1.0), popDistance(t, q))
}

func TestPushItemBounded(t *testing.T) {
	q := NewMax(3)

	for i, d := range []float32{5, 3, 8, 1, 9, 2} {
		q.PushItemBounded(Item{Node: uint32(i), Distance: d}, 3)
	}

	// The three smallest survive; the root is the largest of them.
	require.Equal(t, 3, q.Len())
	assert.Equal(t, float32(3.0), popDistance(t, q))
	assert.Equal(t, float32(2.0), popDistance(t, q))
	assert.Equal(t, float32(1.0), popDistance(t, q))
}

func TestEmptyQueue(t *testing.T) {
	q := NewMin(4)

	_, ok := q.TopItem()
	assert.False(t, ok)
	_, ok = q.PopItem()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	q := NewMin(4)
	q.PushItem(Item{Node: 1, Distance: 1.0})
	q.Reset()
	assert.Equal(t, 0, q.Len())

	q.PushItem(Item{Node: 2, Distance: 2.0})
	top, ok := q.TopItem()
	require.True(t, ok)
	assert.Equal(t, uint32(2), top.Node)
}
