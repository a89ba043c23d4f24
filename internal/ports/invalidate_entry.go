package ports

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Amund211/memocache/internal/app"
	"github.com/Amund211/memocache/internal/reporting"
)

type invalidateResponse struct {
	Success     bool `json:"success"`
	Invalidated bool `json:"invalidated"`
}

func MakeInvalidateEntryHandler(invalidateEntry app.InvalidateEntry, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, key, err := withRequestKey(r)
		if err != nil {
			writeErrorResponse(ctx, w, "invalid key", http.StatusBadRequest)
			return
		}

		invalidated, err := invalidateEntry(ctx, key)
		if err != nil {
			writeErrorResponse(ctx, w, "invalid key", http.StatusBadRequest)
			return
		}

		data, err := json.Marshal(invalidateResponse{Success: true, Invalidated: invalidated})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal invalidate response: %w", err))
			writeErrorResponse(ctx, w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, data)
	}

	return middleware(handler)
}
