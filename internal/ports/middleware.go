package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/ratelimiting"
	"github.com/Amund211/memocache/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 0 {
		return func(h http.HandlerFunc) http.HandlerFunc {
			return h
		}
	}
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

func onRateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).InfoContext(r.Context(), "Rate limit exceeded")
	writeJSON(w, http.StatusTooManyRequests, []byte(`{"success":false,"cause":"rate limit exceeded"}`))
}

// EndpointMiddleware returns the middleware stack for the named operation
type EndpointMiddleware func(operation string) func(http.HandlerFunc) http.HandlerFunc

func NewEndpointMiddleware(
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	allowedOrigins *DomainSuffixes,
	rateLimiters ...ratelimiting.RequestRateLimiter,
) EndpointMiddleware {
	return func(operation string) func(http.HandlerFunc) http.HandlerFunc {
		middlewares := []func(http.HandlerFunc) http.HandlerFunc{
			buildMetricsMiddleware(operation),
			logging.NewRequestLoggerMiddleware(rootLogger),
			sentryMiddleware,
			reporting.NewAddMetaMiddleware(operation),
			BuildCORSMiddleware(allowedOrigins),
		}
		for _, rateLimiter := range rateLimiters {
			middlewares = append(middlewares, NewRateLimitMiddleware(rateLimiter, onRateLimitExceeded))
		}
		return ComposeMiddlewares(middlewares...)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
