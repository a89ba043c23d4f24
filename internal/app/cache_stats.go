package app

import (
	"context"

	"github.com/Amund211/memocache/internal/adapters/cache"
)

type GetCacheStats func(ctx context.Context) cache.Stats

func BuildGetCacheStats(entryCache EntryCache) GetCacheStats {
	return func(ctx context.Context) cache.Stats {
		return entryCache.Stats()
	}
}
