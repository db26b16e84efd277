// Package queue provides the distance-ordered priority queues used by the
// index search loops.
package queue

// Item represents an item in the priority queue.
// Value-based (no pointers) for cache locality and zero allocations.
type Item struct {
	Node     uint32  // Node is a dense, index-local slot identifier.
	Distance float32 // Distance is the priority of the item in the queue.
}

// Queue is a binary heap of Items ordered by distance.
// A max heap keeps the worst candidate on top (bounded result sets);
// a min heap keeps the best candidate on top (expansion frontiers).
type Queue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin creates a min heap with the given initial capacity.
func NewMin(capacity int) *Queue {
	return &Queue{items: make([]Item, 0, capacity)}
}

// NewMax creates a max heap with the given initial capacity.
func NewMax(capacity int) *Queue {
	return &Queue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// TopItem returns the top element of the heap.
func (q *Queue) TopItem() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (q *Queue) PushItem(item Item) {
	q.items = append(q.items, item)
	q.siftUp(len(q.items) - 1)
}

// PushItemBounded inserts an item into a bounded heap.
// If the heap is full and the new item is worse than the top, it is skipped.
// If the heap is full and the new item is better, the top is replaced.
func (q *Queue) PushItemBounded(item Item, capacity int) {
	if len(q.items) < capacity {
		q.PushItem(item)
		return
	}

	top, _ := q.TopItem()
	if q.isMaxHeap {
		// Top is the largest distance (worst candidate); keep smaller.
		if item.Distance < top.Distance {
			q.items[0] = item
			q.siftDown(0)
		}
	} else {
		if item.Distance > top.Distance {
			q.items[0] = item
			q.siftDown(0)
		}
	}
}

// PopItem removes and returns the top element from the heap.
func (q *Queue) PopItem() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}

	item := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]

	if len(q.items) > 0 {
		q.siftDown(0)
	}

	return item, true
}

// Len returns the number of elements in the heap.
func (q *Queue) Len() int {
	return len(q.items)
}

// Reset clears the queue without releasing its backing storage.
func (q *Queue) Reset() {
	q.items = q.items[:0]
}

func (q *Queue) less(i, j int) bool {
	if q.isMaxHeap {
		return q.items[i].Distance > q.items[j].Distance
	}
	return q.items[i].Distance < q.items[j].Distance
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && q.less(right, left) {
			child = right
		}
		if !q.less(child, i) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}
}
