package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/memocache/internal/adapters/database"
	"github.com/Amund211/memocache/internal/adapters/entryprovider"
	"github.com/Amund211/memocache/internal/adapters/entryrepository"
	"github.com/Amund211/memocache/internal/app"
	"github.com/Amund211/memocache/internal/config"
	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/ports"
	"github.com/Amund211/memocache/internal/ratelimiting"
	"github.com/Amund211/memocache/internal/reporting"
	"github.com/Amund211/memocache/internal/telemetry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "memocache"

func main() {
	// Local overrides for development. Missing file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.New().String()
	jsonLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	fail := func(msg string, args ...any) {
		jsonLogger.ErrorContext(ctx, msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	logger := slog.New(
		logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil), conf.GCPProjectID()),
	).With("instanceID", instanceID)
	ctx = logging.AddToContext(ctx, logger)

	logger.InfoContext(ctx, "Loaded config", "config", conf.NonSensitiveString())

	if !conf.IsDevelopment() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.ErrorContext(shutdownCtx, "Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.InfoContext(ctx, "Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.InfoContext(ctx, "Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	provider, err := entryprovider.NewOriginOrMock(conf, httpClient, time.Now)
	if err != nil {
		fail("Failed to initialize origin", "error", err.Error())
	}
	logger.InfoContext(ctx, "Initialized origin")

	var repo entryrepository.EntryRepository
	logger.InfoContext(ctx, "Initializing database connection")
	db, err := database.NewCloudsqlPostgresDatabase(conf)
	switch {
	case err != nil && conf.IsDevelopment():
		logger.WarnContext(ctx, "Failed to connect to database, entries will not be stored", "error", err.Error())
		repo = entryrepository.NewStubRepository()
	case err != nil:
		fail("Failed to initialize database", "error", err.Error())
	default:
		defer db.Close()
		logger.InfoContext(ctx, "Initialized database connection")

		repositorySchemaName := database.GetSchemaName(!conf.IsProduction())

		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, repositorySchemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		repo = entryrepository.NewPostgres(db, repositorySchemaName)
	}
	logger.InfoContext(ctx, "Initialized EntryRepository")

	allowedOrigins, err := ports.NewDomainSuffixes(conf.CORSAllowedDomains()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	ipLimiter, stopIPLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
	)
	defer stopIPLimiter()
	// NOTE: Rate limiting based on user controlled value
	clientIDLimiter, stopClientIDLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(120),
	)
	defer stopClientIDLimiter()

	endpointMiddleware := ports.NewEndpointMiddleware(
		logger,
		sentryMiddleware,
		allowedOrigins,
		ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc),
		ratelimiting.NewRequestBasedRateLimiter(clientIDLimiter, ratelimiting.ClientIDKeyFunc),
	)

	entryCache := app.NewEntryCache(
		ctx,
		conf.CacheCapacity(),
		app.BuildGetEntryWithoutCache(provider, repo, time.Now),
	)
	getEntryWithCache := app.BuildGetEntryWithCache(entryCache, time.Now)
	invalidateEntry := app.BuildInvalidateEntry(entryCache)
	getCacheStats := app.BuildGetCacheStats(entryCache)

	mux := http.NewServeMux()

	mux.HandleFunc("OPTIONS /v1/entry/{key}", ports.BuildCORSHandler(allowedOrigins))
	mux.HandleFunc(
		"GET /v1/entry/{key}",
		ports.MakeGetEntryHandler(getEntryWithCache, endpointMiddleware("getentry")),
	)
	mux.HandleFunc(
		"DELETE /v1/entry/{key}",
		ports.MakeInvalidateEntryHandler(invalidateEntry, endpointMiddleware("invalidateentry")),
	)

	mux.HandleFunc("OPTIONS /v1/cache/stats", ports.BuildCORSHandler(allowedOrigins))
	mux.HandleFunc(
		"GET /v1/cache/stats",
		ports.MakeGetCacheStatsHandler(getCacheStats, endpointMiddleware("cachestats")),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", conf.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "Failed to shut down server", "error", err.Error())
		}
	}()

	logger.InfoContext(ctx, "Init complete", "port", conf.Port())
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.InfoContext(ctx, "Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
