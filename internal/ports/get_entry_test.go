package ports_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Amund211/memocache/internal/adapters/cache"
	"github.com/Amund211/memocache/internal/app"
	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noopMiddleware = func(next http.HandlerFunc) http.HandlerFunc {
	return next
}

func newTestMux(getEntry app.GetEntryWithCache, invalidateEntry app.InvalidateEntry, getCacheStats app.GetCacheStats) *http.ServeMux {
	endpointMiddleware := ports.NewEndpointMiddleware(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		noopMiddleware,
		nil,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/entry/{key}", ports.MakeGetEntryHandler(getEntry, endpointMiddleware("getentry")))
	mux.HandleFunc("DELETE /v1/entry/{key}", ports.MakeInvalidateEntryHandler(invalidateEntry, endpointMiddleware("invalidateentry")))
	mux.HandleFunc("GET /v1/cache/stats", ports.MakeGetCacheStatsHandler(getCacheStats, endpointMiddleware("cachestats")))
	return mux
}

func TestGetEntryHandler(t *testing.T) {
	t.Parallel()

	fetchedAt := time.Date(2026, time.June, 7, 8, 9, 10, 0, time.UTC)

	makeGetEntry := func(t *testing.T, expectedKey string, entry domain.Entry, err error) (app.GetEntryWithCache, *int) {
		calls := 0
		return func(ctx context.Context, key string) (domain.Entry, error) {
			calls++
			assert.Equal(t, expectedKey, key)
			return entry, err
		}, &calls
	}

	request := func(t *testing.T, getEntry app.GetEntryWithCache, rawKey string) *httptest.ResponseRecorder {
		t.Helper()
		mux := newTestMux(getEntry, nil, nil)

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/entry/%s", rawKey), nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		getEntry, calls := makeGetEntry(t, "some-key", domain.Entry{
			Key:         "some-key",
			Value:       []byte("hello"),
			ContentType: "text/plain",
			FetchedAt:   fetchedAt,
		}, nil)

		w := request(t, getEntry, "Some-Key")

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		require.JSONEq(t, `{"success":true,"key":"some-key","value":"aGVsbG8=","contentType":"text/plain","fetchedAt":"2026-06-07T08:09:10Z"}`, w.Body.String())
		require.Equal(t, 1, *calls)
	})

	t.Run("empty value", func(t *testing.T) {
		t.Parallel()

		getEntry, _ := makeGetEntry(t, "empty", domain.Entry{
			Key:         "empty",
			ContentType: "text/plain",
			FetchedAt:   fetchedAt,
		}, nil)

		w := request(t, getEntry, "empty")

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"key":"empty","value":"","contentType":"text/plain","fetchedAt":"2026-06-07T08:09:10Z"}`, w.Body.String())
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			err        error
			statusCode int
			cause      string
		}{
			{err: domain.ErrEntryNotFound, statusCode: http.StatusNotFound, cause: "not found"},
			{err: fmt.Errorf("wrapped: %w", domain.ErrEntryNotFound), statusCode: http.StatusNotFound, cause: "not found"},
			{err: domain.ErrTemporarilyUnavailable, statusCode: http.StatusServiceUnavailable, cause: "temporarily unavailable"},
			{err: domain.ErrInvalidKey, statusCode: http.StatusBadRequest, cause: "invalid key"},
			{err: assert.AnError, statusCode: http.StatusInternalServerError, cause: "internal server error"},
			{err: cache.ErrGetterPanic, statusCode: http.StatusInternalServerError, cause: "internal server error"},
			{err: context.Canceled, statusCode: 499, cause: "request canceled"},
			{err: fmt.Errorf("failed to get entry through cache: %w", context.Canceled), statusCode: 499, cause: "request canceled"},
			{err: context.DeadlineExceeded, statusCode: http.StatusGatewayTimeout, cause: "request timed out"},
		}

		for _, c := range cases {
			t.Run(c.err.Error(), func(t *testing.T) {
				t.Parallel()

				getEntry, _ := makeGetEntry(t, "key", domain.Entry{}, c.err)

				w := request(t, getEntry, "key")

				require.Equal(t, c.statusCode, w.Code)
				require.JSONEq(t, fmt.Sprintf(`{"success":false,"cause":"%s"}`, c.cause), w.Body.String())
			})
		}
	})

	t.Run("invalid keys are rejected before the cache", func(t *testing.T) {
		t.Parallel()

		for _, rawKey := range []string{"with%20inner%20space", "k%C3%A6y", "x%21"} {
			getEntry, calls := makeGetEntry(t, "never", domain.Entry{}, nil)

			w := request(t, getEntry, rawKey)

			require.Equal(t, http.StatusBadRequest, w.Code, "key %s", rawKey)
			require.JSONEq(t, `{"success":false,"cause":"invalid key"}`, w.Body.String())
			require.Equal(t, 0, *calls)
		}
	})
}

func TestInvalidateEntryHandler(t *testing.T) {
	t.Parallel()

	for _, invalidated := range []bool{true, false} {
		t.Run(fmt.Sprintf("invalidated=%t", invalidated), func(t *testing.T) {
			t.Parallel()

			invalidateEntry := func(ctx context.Context, key string) (bool, error) {
				assert.Equal(t, "some-key", key)
				return invalidated, nil
			}
			mux := newTestMux(nil, invalidateEntry, nil)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/entry/SOME-KEY", nil))

			require.Equal(t, http.StatusOK, w.Code)
			require.JSONEq(t, fmt.Sprintf(`{"success":true,"invalidated":%t}`, invalidated), w.Body.String())
		})
	}

	t.Run("invalid key", func(t *testing.T) {
		t.Parallel()

		invalidateEntry := func(ctx context.Context, key string) (bool, error) {
			t.Error("should not be called")
			return false, nil
		}
		mux := newTestMux(nil, invalidateEntry, nil)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/entry/bad%20key", nil))

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid key"}`, w.Body.String())
	})
}

func TestGetCacheStatsHandler(t *testing.T) {
	t.Parallel()

	t.Run("bounded", func(t *testing.T) {
		t.Parallel()

		getCacheStats := func(ctx context.Context) cache.Stats {
			return cache.Stats{Hits: 5, Misses: 2, Evictions: 1, Size: 1, Capacity: 1, Bounded: true}
		}
		mux := newTestMux(nil, nil, getCacheStats)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"hits":5,"misses":2,"evictions":1,"size":1,"capacity":1}`, w.Body.String())
	})

	t.Run("unbounded", func(t *testing.T) {
		t.Parallel()

		getCacheStats := func(ctx context.Context) cache.Stats {
			return cache.Stats{Misses: 3, Size: 3}
		}
		mux := newTestMux(nil, nil, getCacheStats)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"hits":0,"misses":3,"evictions":0,"size":3,"capacity":null}`, w.Body.String())
	})
}
