package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Amund211/memocache/internal/app"
	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/reporting"
	"github.com/Amund211/memocache/internal/strutils"
)

// Non-standard status for clients that went away before the response was ready
const statusClientClosedRequest = 499

type entryResponse struct {
	Success     bool      `json:"success"`
	Key         string    `json:"key"`
	Value       []byte    `json:"value"`
	ContentType string    `json:"contentType"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, cause string, statusCode int) {
	data, err := json.Marshal(errorResponse{Success: false, Cause: cause})
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal error response: %w", err))
		writeJSON(w, http.StatusInternalServerError, []byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	writeJSON(w, statusCode, data)
}

// withRequestKey normalizes the key path value and adds it to the request meta
func withRequestKey(r *http.Request) (context.Context, string, error) {
	ctx := r.Context()
	rawKey := r.PathValue("key")

	clientID := r.Header.Get("X-Client-Id")
	ctx = reporting.SetClientIDInContext(ctx, clientID)
	ctx = reporting.AddExtrasToContext(ctx,
		map[string]string{
			"rawKey": rawKey,
		},
	)

	key, err := strutils.NormalizeKey(rawKey)
	if err != nil {
		return ctx, "", err
	}

	ctx = logging.AddMetaToContext(ctx, slog.String("normalizedKey", key))
	ctx = reporting.AddExtrasToContext(ctx,
		map[string]string{
			"key": key,
		},
	)

	return ctx, key, nil
}

func MakeGetEntryHandler(getEntry app.GetEntryWithCache, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, key, err := withRequestKey(r)
		if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Invalid key", "error", err.Error())
			writeErrorResponse(ctx, w, "invalid key", http.StatusBadRequest)
			return
		}

		entry, err := getEntry(ctx, key)
		if errors.Is(err, domain.ErrEntryNotFound) {
			writeErrorResponse(ctx, w, "not found", http.StatusNotFound)
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			writeErrorResponse(ctx, w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		} else if errors.Is(err, domain.ErrInvalidKey) {
			writeErrorResponse(ctx, w, "invalid key", http.StatusBadRequest)
			return
		} else if errors.Is(err, context.Canceled) {
			logging.FromContext(ctx).InfoContext(ctx, "Request canceled while getting entry", "error", err.Error())
			writeErrorResponse(ctx, w, "request canceled", statusClientClosedRequest)
			return
		} else if errors.Is(err, context.DeadlineExceeded) {
			logging.FromContext(ctx).InfoContext(ctx, "Request timed out while getting entry", "error", err.Error())
			writeErrorResponse(ctx, w, "request timed out", http.StatusGatewayTimeout)
			return
		}

		if err != nil {
			// NOTE: GetEntryWithCache implementations handle their own error reporting
			writeErrorResponse(ctx, w, "internal server error", http.StatusInternalServerError)
			return
		}

		value := entry.Value
		if value == nil {
			// Empty values are "" rather than null
			value = []byte{}
		}

		data, err := json.Marshal(entryResponse{
			Success:     true,
			Key:         entry.Key,
			Value:       value,
			ContentType: entry.ContentType,
			FetchedAt:   entry.FetchedAt,
		})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal entry response: %w", err))
			writeErrorResponse(ctx, w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, data)
	}

	return middleware(handler)
}
