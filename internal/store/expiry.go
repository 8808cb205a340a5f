package store

import (
	"container/heap"
	"time"
)

// expiryItem is one row of the expirations index: a (time, key) pair,
// ordered primarily by time and secondarily by key so identical
// instants remain deterministically iterable (§3 invariant on
// expirations).
type expiryItem struct {
	key       string
	expiresAt time.Time
	index     int // position in the heap, maintained by container/heap
}

// expiryIndex is a min-heap over expiryItem ordered by (expiresAt,
// key), plus an index for O(log n) removal of a specific key's
// pending row (used when a SET replaces a key's expiry before it
// fires).
type expiryIndex struct {
	items  expiryHeap
	byKey  map[string]*expiryItem
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{byKey: make(map[string]*expiryItem)}
}

// insert adds or replaces the expiry row for key, removing any prior
// row first. It reports whether the new expiry is now the earliest in
// the index (the caller uses this to decide whether to wake the
// purger early).
func (idx *expiryIndex) insert(key string, at time.Time) (becameEarliest bool) {
	idx.remove(key)

	item := &expiryItem{key: key, expiresAt: at}
	heap.Push(&idx.items, item)
	idx.byKey[key] = item

	return idx.items[0] == item
}

// remove drops key's pending expiry row, if any.
func (idx *expiryIndex) remove(key string) {
	item, ok := idx.byKey[key]
	if !ok {
		return
	}
	heap.Remove(&idx.items, item.index)
	delete(idx.byKey, key)
}

// peek returns the earliest (time, key) pair without removing it.
func (idx *expiryIndex) peek() (key string, at time.Time, ok bool) {
	if len(idx.items) == 0 {
		return "", time.Time{}, false
	}
	top := idx.items[0]
	return top.key, top.expiresAt, true
}

// popDue removes and returns every key whose expiry is at or before
// now, in (time, key) order.
func (idx *expiryIndex) popDue(now time.Time) []string {
	var due []string
	for len(idx.items) > 0 && !idx.items[0].expiresAt.After(now) {
		item := heap.Pop(&idx.items).(*expiryItem)
		delete(idx.byKey, item.key)
		due = append(due, item.key)
	}
	return due
}

// expiryHeap implements container/heap.Interface over *expiryItem.
type expiryHeap []*expiryItem

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].key < h[j].key
	}
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	item := x.(*expiryItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
