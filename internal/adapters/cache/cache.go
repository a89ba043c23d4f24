package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Amund211/memocache/internal/deferred"
	"github.com/Amund211/memocache/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrGetterPanic = errors.New("getter panicked")

// Getter produces the value for a key. args are the extra arguments passed to Get.
type Getter[K comparable, V any] func(ctx context.Context, key K, args ...any) (V, error)

// Stats counts accesses since the cache was created. Evictions include invalidations and clears.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Capacity  int
	Bounded   bool
}

// KeyedCache maps keys to the eventual result of a single getter call.
//
// The getter is called at most once per key while the key is resident, no matter how
// many goroutines ask for it concurrently. Failed results are cached like successful
// ones. When the cache holds more keys than its capacity the least recently accessed
// key is evicted.
type KeyedCache[K comparable, V any] struct {
	getter Getter[K, V]

	name     string
	capacity int
	bounded  bool

	mu              sync.Mutex
	entries         map[K]*cacheEntry[K, V]
	recency         recencyHeap[K, V]
	sequenceCounter uint64
	onEvict         func(key K, reason EvictionReason)

	hits      uint64
	misses    uint64
	evictions uint64

	metricAttributes metric.MeasurementOption
}

type eviction[K comparable] struct {
	key    K
	reason EvictionReason
}

// New creates a cache calling getter on misses. The cache is unbounded unless WithCapacity is given.
func New[K comparable, V any](getter Getter[K, V], opts ...Option) *KeyedCache[K, V] {
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}

	return &KeyedCache[K, V]{
		getter: getter,

		name:     o.name,
		capacity: o.capacity,
		bounded:  o.bounded,

		entries: make(map[K]*cacheEntry[K, V]),
		recency: recencyHeap[K, V]{},

		metricAttributes: metric.WithAttributes(attribute.String("cache", o.name)),
	}
}

// OnEvict registers a function called for every entry removed from the cache
func (c *KeyedCache[K, V]) OnEvict(onEvict func(key K, reason EvictionReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvict = onEvict
}

// Get returns the result of the getter for key, calling it if key is not resident.
//
// ctx only bounds how long this caller waits. The getter runs with a context that is
// never canceled, so other callers waiting on the same key are unaffected.
func (c *KeyedCache[K, V]) Get(ctx context.Context, key K, args ...any) (V, error) {
	return c.Lookup(ctx, key, args...).Await(ctx)
}

// Lookup is like Get, but returns the pending result instead of waiting for it
func (c *KeyedCache[K, V]) Lookup(ctx context.Context, key K, args ...any) *deferred.Deferred[V] {
	logger := logging.FromContext(ctx)

	c.mu.Lock()
	c.sequenceCounter++
	sequence := c.sequenceCounter

	if entry, ok := c.entries[key]; ok {
		c.recency.touch(entry, sequence)
		c.hits++
		evicted := c.evictOverCapacityLocked()
		onEvict := c.onEvict
		c.mu.Unlock()

		c.afterEvict(ctx, onEvict, evicted)

		metrics.hits.Add(ctx, 1, c.metricAttributes)
		if entry.value.Settled() {
			logger.InfoContext(ctx, "Getting cache entry", "cache", "hit", "cacheName", c.name)
		} else {
			logger.InfoContext(ctx, "Waiting for cache", "cacheName", c.name)
		}

		return entry.value
	}

	entry := &cacheEntry[K, V]{
		key:                key,
		value:              deferred.New[V](),
		lastAccessSequence: sequence,
	}
	c.entries[key] = entry
	c.recency.add(entry)
	c.misses++
	evicted := c.evictOverCapacityLocked()
	onEvict := c.onEvict
	c.mu.Unlock()

	c.afterEvict(ctx, onEvict, evicted)

	metrics.misses.Add(ctx, 1, c.metricAttributes)
	logger.InfoContext(ctx, "Getting cache entry", "cache", "miss", "cacheName", c.name)

	go c.produce(context.WithoutCancel(ctx), key, entry.value, args)

	return entry.value
}

func (c *KeyedCache[K, V]) produce(ctx context.Context, key K, result *deferred.Deferred[V], args []any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.getterFailures.Add(ctx, 1, c.metricAttributes)
			result.Reject(fmt.Errorf("%w: key %v: %v", ErrGetterPanic, key, r))
		}
	}()

	value, err := c.getter(ctx, key, args...)
	if err != nil {
		metrics.getterFailures.Add(ctx, 1, c.metricAttributes)
		result.Reject(err)
		return
	}

	result.Resolve(value)
}

// Must hold c.mu
func (c *KeyedCache[K, V]) evictOverCapacityLocked() []eviction[K] {
	if !c.bounded {
		return nil
	}

	var evicted []eviction[K]
	for len(c.entries) > c.capacity {
		oldest := c.recency.popOldest()
		delete(c.entries, oldest.key)
		c.evictions++
		evicted = append(evicted, eviction[K]{key: oldest.key, reason: EvictionReasonCapacity})
	}
	return evicted
}

func (c *KeyedCache[K, V]) afterEvict(ctx context.Context, onEvict func(K, EvictionReason), evicted []eviction[K]) {
	if len(evicted) == 0 {
		return
	}

	logger := logging.FromContext(ctx)
	for _, e := range evicted {
		metrics.evictions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("cache", c.name),
			attribute.String("reason", e.reason.String()),
		))
		logger.InfoContext(ctx, "Evicted cache entry", slog.String("cacheName", c.name), slog.String("reason", e.reason.String()))
		if onEvict != nil {
			onEvict(e.key, e.reason)
		}
	}
}

// Invalidate removes key from the cache.
//
// Callers already waiting on the entry still receive its result. The next Get for key
// calls the getter again.
func (c *KeyedCache[K, V]) Invalidate(ctx context.Context, key K) bool {
	return c.invalidate(ctx, key, nil)
}

// InvalidateResult removes key only while result is still the resident value for it.
//
// Use it to drop a result obtained from Lookup without racing a newer entry for the
// same key that another caller may already have started.
func (c *KeyedCache[K, V]) InvalidateResult(ctx context.Context, key K, result *deferred.Deferred[V]) bool {
	if result == nil {
		return false
	}
	return c.invalidate(ctx, key, result)
}

// A nil result removes key regardless of its value
func (c *KeyedCache[K, V]) invalidate(ctx context.Context, key K, result *deferred.Deferred[V]) bool {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok || (result != nil && entry.value != result) {
		c.mu.Unlock()
		return false
	}

	c.recency.remove(entry)
	delete(c.entries, key)
	c.evictions++
	onEvict := c.onEvict
	c.mu.Unlock()

	c.afterEvict(ctx, onEvict, []eviction[K]{{key: key, reason: EvictionReasonInvalidated}})

	return true
}

// Clear removes every entry. The access sequence keeps counting from where it was.
func (c *KeyedCache[K, V]) Clear(ctx context.Context) {
	c.mu.Lock()
	evicted := make([]eviction[K], 0, len(c.entries))
	for _, entry := range c.recency {
		evicted = append(evicted, eviction[K]{key: entry.key, reason: EvictionReasonCleared})
	}
	c.entries = make(map[K]*cacheEntry[K, V])
	c.recency = recencyHeap[K, V]{}
	c.evictions += uint64(len(evicted))
	onEvict := c.onEvict
	c.mu.Unlock()

	c.afterEvict(ctx, onEvict, evicted)
}

// Len returns the number of resident keys, pending ones included
func (c *KeyedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Capacity returns the maximum number of resident keys, and false if there is no limit
func (c *KeyedCache[K, V]) Capacity() (int, bool) {
	return c.capacity, c.bounded
}

// Contains reports whether key is resident. It does not count as an access.
func (c *KeyedCache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	return ok
}

// Keys returns the resident keys from least to most recently accessed
func (c *KeyedCache[K, V]) Keys() []K {
	type residentKey struct {
		key      K
		sequence uint64
	}

	c.mu.Lock()
	resident := make([]residentKey, len(c.recency))
	for i, entry := range c.recency {
		resident[i] = residentKey{key: entry.key, sequence: entry.lastAccessSequence}
	}
	c.mu.Unlock()

	slices.SortFunc(resident, func(a, b residentKey) int {
		return cmp.Compare(a.sequence, b.sequence)
	})

	keys := make([]K, len(resident))
	for i, r := range resident {
		keys[i] = r.key
	}
	return keys
}

// Stats returns a snapshot of the cache counters
func (c *KeyedCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Bounded:   c.bounded,
	}
}
