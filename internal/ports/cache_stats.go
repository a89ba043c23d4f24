package ports

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Amund211/memocache/internal/app"
	"github.com/Amund211/memocache/internal/reporting"
)

type cacheStatsResponse struct {
	Success   bool   `json:"success"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  *int   `json:"capacity"`
}

func MakeGetCacheStatsHandler(getCacheStats app.GetCacheStats, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats := getCacheStats(ctx)

		response := cacheStatsResponse{
			Success:   true,
			Hits:      stats.Hits,
			Misses:    stats.Misses,
			Evictions: stats.Evictions,
			Size:      stats.Size,
		}
		// Unbounded caches report a null capacity
		if stats.Bounded {
			response.Capacity = &stats.Capacity
		}

		data, err := json.Marshal(response)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal cache stats response: %w", err))
			writeErrorResponse(ctx, w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, data)
	}

	return middleware(handler)
}
