package cache

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	hits           metric.Int64Counter
	misses         metric.Int64Counter
	evictions      metric.Int64Counter
	getterFailures metric.Int64Counter
}

var metrics cacheMetricsCollection

func init() {
	const name = "memocache/cache"
	meter := otel.Meter(name)

	hits, err := meter.Int64Counter(
		"cache/hits",
		metric.WithDescription("Lookups served by a resident entry"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create hits metric: %w", err))
	}

	misses, err := meter.Int64Counter(
		"cache/misses",
		metric.WithDescription("Lookups that invoked the getter"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create misses metric: %w", err))
	}

	evictions, err := meter.Int64Counter(
		"cache/evictions",
		metric.WithDescription("Entries removed from the cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create evictions metric: %w", err))
	}

	getterFailures, err := meter.Int64Counter(
		"cache/getter_failures",
		metric.WithDescription("Getter invocations that returned an error"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create getter failures metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		hits:           hits,
		misses:         misses,
		evictions:      evictions,
		getterFailures: getterFailures,
	}
}
