package app

import (
	"context"
	"fmt"

	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/strutils"
)

// Drop the cached entry for the key. Reports whether there was one.
type InvalidateEntry func(ctx context.Context, key string) (bool, error)

func BuildInvalidateEntry(entryCache EntryCache) InvalidateEntry {
	return func(ctx context.Context, key string) (bool, error) {
		if !strutils.KeyIsNormalized(key) {
			return false, fmt.Errorf("%w: key is not normalized", domain.ErrInvalidKey)
		}

		invalidated := entryCache.Invalidate(ctx, key)

		logging.FromContext(ctx).InfoContext(ctx, "Invalidated entry", "invalidated", invalidated)

		return invalidated, nil
	}
}
