package cache

import (
	"math/rand"
	"testing"

	"github.com/Amund211/memocache/internal/deferred"
	"github.com/stretchr/testify/require"
)

func TestRecencyHeap(t *testing.T) {
	t.Parallel()

	newEntry := func(key string, sequence uint64) *cacheEntry[string, int] {
		return &cacheEntry[string, int]{
			key:                key,
			value:              deferred.New[int](),
			lastAccessSequence: sequence,
		}
	}

	t.Run("pops in sequence order", func(t *testing.T) {
		t.Parallel()

		h := recencyHeap[string, int]{}
		rng := rand.New(rand.NewSource(42))
		for _, i := range rng.Perm(100) {
			h.add(newEntry("key", uint64(i)))
		}

		for i := range 100 {
			entry := h.popOldest()
			require.Equal(t, uint64(i), entry.lastAccessSequence)
			require.Equal(t, -1, entry.index)
		}
		require.Equal(t, 0, h.Len())
	})

	t.Run("touch moves entry to the back", func(t *testing.T) {
		t.Parallel()

		h := recencyHeap[string, int]{}
		a := newEntry("a", 1)
		b := newEntry("b", 2)
		c := newEntry("c", 3)
		h.add(a)
		h.add(b)
		h.add(c)

		h.touch(a, 4)

		require.Equal(t, "b", h.popOldest().key)
		require.Equal(t, "c", h.popOldest().key)
		require.Equal(t, "a", h.popOldest().key)
	})

	t.Run("remove keeps indices consistent", func(t *testing.T) {
		t.Parallel()

		h := recencyHeap[string, int]{}
		entries := []*cacheEntry[string, int]{}
		for i, key := range []string{"a", "b", "c", "d", "e"} {
			entry := newEntry(key, uint64(i+1))
			entries = append(entries, entry)
			h.add(entry)
		}

		h.remove(entries[2])
		require.Equal(t, -1, entries[2].index)

		for i, entry := range h {
			require.Equal(t, i, entry.index)
		}

		keys := []string{}
		for h.Len() > 0 {
			keys = append(keys, h.popOldest().key)
		}
		require.Equal(t, []string{"a", "b", "d", "e"}, keys)
	})
}
