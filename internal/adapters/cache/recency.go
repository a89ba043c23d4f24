package cache

import (
	"container/heap"

	"github.com/Amund211/memocache/internal/deferred"
)

type cacheEntry[K comparable, V any] struct {
	key   K
	value *deferred.Deferred[V]

	lastAccessSequence uint64

	// Position in the recency heap, -1 when not resident
	index int
}

// Min-heap of resident entries ordered by lastAccessSequence.
// Sequence numbers are unique, so the order is total.
type recencyHeap[K comparable, V any] []*cacheEntry[K, V]

func (h recencyHeap[K, V]) Len() int {
	return len(h)
}

func (h recencyHeap[K, V]) Less(i, j int) bool {
	return h[i].lastAccessSequence < h[j].lastAccessSequence
}

func (h recencyHeap[K, V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *recencyHeap[K, V]) Push(x any) {
	entry := x.(*cacheEntry[K, V])
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *recencyHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}

func (h *recencyHeap[K, V]) touch(entry *cacheEntry[K, V], sequence uint64) {
	entry.lastAccessSequence = sequence
	heap.Fix(h, entry.index)
}

func (h *recencyHeap[K, V]) add(entry *cacheEntry[K, V]) {
	heap.Push(h, entry)
}

func (h *recencyHeap[K, V]) remove(entry *cacheEntry[K, V]) {
	heap.Remove(h, entry.index)
}

func (h *recencyHeap[K, V]) popOldest() *cacheEntry[K, V] {
	return heap.Pop(h).(*cacheEntry[K, V])
}
