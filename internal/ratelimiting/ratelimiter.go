package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

// Token bucket per key. Buckets for idle keys are dropped after limiterTTL.
type tokenBucketRateLimiter struct {
	limiters        *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burstSize       int
}

const limiterTTL = 30 * time.Minute

func (rateLimiter *tokenBucketRateLimiter) Consume(key string) bool {
	limiter, _ := rateLimiter.limiters.GetOrSet(key, rate.NewLimiter(rate.Limit(rateLimiter.refillPerSecond), rateLimiter.burstSize))
	return limiter.Value().Allow()
}

type RefillPerSecond float64
type BurstSize int

// NewTokenBucketRateLimiter returns the limiter and a function stopping its cleanup goroutine
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](limiterTTL),
	)
	go limiters.Start()

	return &tokenBucketRateLimiter{
		limiters:        limiters,
		refillPerSecond: float64(refillPerSecond),
		burstSize:       int(burstSize),
	}, limiters.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (rateLimiter *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return rateLimiter.limiter.Consume(rateLimiter.keyFunc(r))
}

func (rateLimiter *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return rateLimiter.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

// IPKeyFunc keys on the address of the connecting peer
//
// X-Forwarded-For is ignored since clients can put anything in it.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// No port
		host = r.RemoteAddr
	}

	return fmt.Sprintf("ip: %s", host)
}

// ClientIDKeyFunc keys on the X-Client-Id header
//
// NOTE: The value is user controlled, so only use this in addition to IPKeyFunc
func ClientIDKeyFunc(r *http.Request) string {
	clientID := r.Header.Get("X-Client-Id")
	if clientID == "" {
		clientID = "<missing>"
	}
	return fmt.Sprintf("client-id: %.50s", clientID)
}
