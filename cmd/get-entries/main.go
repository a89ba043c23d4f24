package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/memocache/internal/adapters/cache"
	"github.com/Amund211/memocache/internal/adapters/entryprovider"
	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/strutils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type result struct {
	key   string
	entry domain.Entry
	err   error
}

// getEntries fetches every key through the cache. Duplicate keys share a single origin request.
func getEntries(ctx context.Context, entryCache *cache.KeyedCache[string, domain.Entry], keys []string, concurrency int) []result {
	results := make([]result, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, rawKey := range keys {
		g.Go(func() error {
			key, err := strutils.NormalizeKey(rawKey)
			if err != nil {
				results[i] = result{key: rawKey, err: err}
				return nil
			}

			entry, err := entryCache.Get(ctx, key)
			results[i] = result{key: key, entry: entry, err: err}
			// Per-key failures are reported, not fatal
			return nil
		})
	}

	// The goroutines never return an error
	_ = g.Wait()

	return results
}

func main() {
	originURL := flag.String("origin", os.Getenv("ORIGIN_URL"), "base url of the origin")
	apiKey := flag.String("api-key", os.Getenv("ORIGIN_API_KEY"), "api key sent to the origin")
	capacity := flag.Int("capacity", 128, "cache capacity")
	concurrency := flag.Int("concurrency", 8, "maximum concurrent lookups")
	requestsPerSecond := flag.Float64("rps", 10, "maximum origin requests per second")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *originURL == "" {
		logger.Error("No origin url provided")
		os.Exit(2)
	}
	keys := flag.Args()
	if len(keys) == 0 {
		logger.Error("No keys provided")
		os.Exit(2)
	}
	if *concurrency < 1 || *requestsPerSecond <= 0 {
		logger.Error("Concurrency and rps must be positive")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logging.AddToContext(ctx, logger)

	limiter := rate.NewLimiter(rate.Limit(*requestsPerSecond), max(int(*requestsPerSecond), 1))
	origin, err := entryprovider.NewOrigin(&http.Client{Timeout: 10 * time.Second}, *originURL, *apiKey, limiter, time.Now)
	if err != nil {
		logger.Error("Failed to create origin", "error", err.Error())
		os.Exit(1)
	}

	entryCache := cache.New(
		func(ctx context.Context, key string, args ...any) (domain.Entry, error) {
			return origin.GetEntry(ctx, key)
		},
		cache.WithCapacity(*capacity),
		cache.WithName("cli"),
	)

	failed := false
	for _, r := range getEntries(ctx, entryCache, keys, *concurrency) {
		if r.err != nil {
			failed = true
			fmt.Printf("%s\terror\t%s\n", r.key, r.err)
			continue
		}
		fmt.Printf("%s\t%s\t%d bytes\t%s\n", r.key, r.entry.ContentType, len(r.entry.Value), r.entry.FetchedAt.Format(time.RFC3339))
	}

	stats := entryCache.Stats()
	fmt.Printf("hits=%d misses=%d evictions=%d size=%d\n", stats.Hits, stats.Misses, stats.Evictions, stats.Size)

	if failed {
		os.Exit(1)
	}
}
