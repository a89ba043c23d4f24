package entryprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/memocache/internal/config"
	"github.com/Amund211/memocache/internal/constants"
	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/logging"
	"github.com/Amund211/memocache/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const defaultContentType = "application/octet-stream"

// Responses larger than this are rejected
const maxBodySize = 10 << 20

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type RequestLimiter interface {
	Wait(ctx context.Context) error
}

type originMetricsCollection struct {
	requestCount metric.Int64Counter
	rateLimited  metric.Int64Counter
}

func setupOriginMetrics(meter metric.Meter) (originMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("entryprovider/origin/request_count")
	if err != nil {
		return originMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	rateLimited, err := meter.Int64Counter("entryprovider/origin/rate_limited")
	if err != nil {
		return originMetricsCollection{}, fmt.Errorf("failed to create rate limited metric: %w", err)
	}

	return originMetricsCollection{
		requestCount: requestCount,
		rateLimited:  rateLimited,
	}, nil
}

type origin struct {
	httpClient HttpClient
	baseURL    string
	apiKey     string
	limiter    RequestLimiter
	nowFunc    func() time.Time

	metrics originMetricsCollection
	tracer  trace.Tracer
}

func NewOrigin(httpClient HttpClient, baseURL string, apiKey string, limiter RequestLimiter, nowFunc func() time.Time) (*origin, error) {
	const name = "memocache/entryprovider/origin"

	metrics, err := setupOriginMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &origin{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    limiter,
		nowFunc:    nowFunc,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

func (o *origin) GetEntry(ctx context.Context, key string) (domain.Entry, error) {
	ctx, span := o.tracer.Start(ctx, "Origin.GetEntry")
	defer span.End()

	logger := logging.FromContext(ctx)

	if err := o.limiter.Wait(ctx); err != nil {
		o.metrics.rateLimited.Add(ctx, 1)
		logger.WarnContext(ctx, "Did not query origin due to rate limiting", "error", err.Error(), "ctx_error", ctx.Err())
		return domain.Entry{}, fmt.Errorf("%w: too many requests to origin: %w", domain.ErrTemporarilyUnavailable, err)
	}

	requestURL := fmt.Sprintf("%s/%s", o.baseURL, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return domain.Entry{}, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	if o.apiKey != "" {
		req.Header.Set("API-Key", o.apiKey)
	}

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		if !errors.Is(err, context.Canceled) {
			reporting.Report(ctx, err)
		}
		return domain.Entry{}, err
	}
	defer resp.Body.Close()

	fetchedAt := o.nowFunc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return domain.Entry{}, err
	}

	logger.InfoContext(ctx, "Origin request completed", "url", requestURL, "status", resp.StatusCode, "duration", time.Since(start).String())

	o.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
	))

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusNoContent:
		return domain.Entry{}, fmt.Errorf("%w: origin returned status %d", domain.ErrEntryNotFound, resp.StatusCode)
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.Entry{}, fmt.Errorf("%w: origin returned status %d", domain.ErrTemporarilyUnavailable, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("origin returned unexpected status %d", resp.StatusCode)
		reporting.Report(ctx, err, map[string]string{
			"key":    key,
			"status": strconv.Itoa(resp.StatusCode),
			"data":   string(data),
		})
		return domain.Entry{}, err
	}

	if len(data) > maxBodySize {
		err := fmt.Errorf("origin response exceeds %d bytes", maxBodySize)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return domain.Entry{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return domain.Entry{
		Key:         key,
		Value:       data,
		ContentType: contentType,
		FetchedAt:   fetchedAt,
	}, nil
}

type mockedOrigin struct {
	nowFunc func() time.Time
}

func (m *mockedOrigin) GetEntry(ctx context.Context, key string) (domain.Entry, error) {
	return domain.Entry{
		Key:         key,
		Value:       []byte(fmt.Sprintf(`{"key":"%s"}`, key)),
		ContentType: "application/json",
		FetchedAt:   m.nowFunc(),
	}, nil
}

// NewOriginOrMock returns a mocked origin echoing the key when running locally without an origin
func NewOriginOrMock(conf config.Config, httpClient HttpClient, nowFunc func() time.Time) (EntryProvider, error) {
	if conf.OriginURL() != "" {
		// Allow a burst of one second worth of requests
		burst := max(int(conf.OriginRequestsPerSecond()), 1)
		limiter := rate.NewLimiter(rate.Limit(conf.OriginRequestsPerSecond()), burst)
		return NewOrigin(httpClient, conf.OriginURL(), conf.OriginAPIKey(), limiter, nowFunc)
	}
	if conf.IsDevelopment() {
		return &mockedOrigin{nowFunc: nowFunc}, nil
	}
	return nil, fmt.Errorf("missing origin url in non-development environment")
}
