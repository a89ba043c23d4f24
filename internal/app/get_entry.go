package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/memocache/internal/adapters/cache"
	"github.com/Amund211/memocache/internal/adapters/entryprovider"
	"github.com/Amund211/memocache/internal/adapters/entryrepository"
	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/reporting"
	"github.com/Amund211/memocache/internal/strutils"
)

// Stored entries older than this are not served when the origin is unavailable
const fallbackMaxAge = 24 * time.Hour

const storeTimeout = 1 * time.Second

type EntryCache = *cache.KeyedCache[string, domain.Entry]

type GetEntryWithCache func(ctx context.Context, key string) (domain.Entry, error)

func BuildGetEntryWithoutCache(provider entryprovider.EntryProvider, repo entryrepository.EntryRepository, nowFunc func() time.Time) cache.Getter[string, domain.Entry] {
	return func(ctx context.Context, key string, args ...any) (domain.Entry, error) {
		logger := logging.FromContext(ctx)

		entry, err := provider.GetEntry(ctx, key)
		if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			stored, repoErr := repo.GetEntry(ctx, key)
			if repoErr != nil {
				// NOTE: EntryRepository implementations handle their own error reporting
				return domain.Entry{}, fmt.Errorf("could not get entry: %w", err)
			}

			age := stored.Age(nowFunc())
			if age > fallbackMaxAge {
				return domain.Entry{}, fmt.Errorf("could not get entry, stored entry is too old (%s): %w", age, err)
			}

			logger.WarnContext(ctx, "Serving stored entry while origin is unavailable", "age", age.String(), "error", err.Error())
			return stored, nil
		}
		if err != nil {
			// NOTE: EntryProvider implementations handle their own error reporting
			return domain.Entry{}, fmt.Errorf("could not get entry: %w", err)
		}

		// Take a maximum of 1 second to not block the request for too long
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		err = repo.StoreEntry(storeCtx, entry)
		if err != nil {
			// NOTE: EntryRepository implementations handle their own error reporting
			logger.ErrorContext(ctx, "Failed to store entry", "error", err.Error())

			// NOTE: We still return the entry to fulfill the request even though storing failed
		}

		return entry, nil
	}
}

// NewEntryCache creates the entry cache. A non-positive capacity disables caching entirely.
func NewEntryCache(ctx context.Context, capacity int, getter cache.Getter[string, domain.Entry]) EntryCache {
	if capacity <= 0 {
		logging.FromContext(ctx).WarnContext(ctx, "Cache capacity is not positive, every request will reach the origin", "capacity", capacity)
	}

	return cache.New(getter, cache.WithCapacity(capacity), cache.WithName("entries"))
}

// Failures worth retrying on the next request instead of serving from the cache
func isTransientError(err error) bool {
	return errors.Is(err, domain.ErrTemporarilyUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// BuildGetEntryWithCache gets entries through the cache.
//
// Transient failures are dropped from the cache once settled, and cached entries older than
// fallbackMaxAge are refetched instead of served.
func BuildGetEntryWithCache(entryCache EntryCache, nowFunc func() time.Time) GetEntryWithCache {
	return func(ctx context.Context, key string) (domain.Entry, error) {
		logger := logging.FromContext(ctx)

		if !strutils.KeyIsNormalized(key) {
			logger.ErrorContext(ctx, "Key is not normalized", "key", key)
			err := fmt.Errorf("%w: key is not normalized", domain.ErrInvalidKey)
			reporting.Report(ctx, err)
			return domain.Entry{}, err
		}

		var entry domain.Entry
		for attempt := range 2 {
			result := entryCache.Lookup(ctx, key)

			var err error
			entry, err = result.Await(ctx)
			if err != nil {
				// Only the settled result is shared with other callers. Our own ctx ending
				// leaves the pending entry in place.
				if _, settled, resultErr := result.Result(); settled && isTransientError(resultErr) {
					logger.InfoContext(ctx, "Dropping transient failure from cache", "error", resultErr.Error())
					entryCache.InvalidateResult(ctx, key, result)
				}
				// NOTE: The getter handles its own error reporting
				return domain.Entry{}, fmt.Errorf("failed to get entry through cache: %w", err)
			}

			age := entry.Age(nowFunc())
			if age <= fallbackMaxAge || attempt > 0 {
				break
			}

			logger.InfoContext(ctx, "Cached entry is too old, refetching", "age", age.String())
			entryCache.InvalidateResult(ctx, key, result)
		}

		return entry, nil
	}
}
