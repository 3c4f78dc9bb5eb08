package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	limiterByKey    *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burstSize       int
}

func (rateLimiter *tokenBucketRateLimiter) Consume(key string) bool {
	limiter, _ := rateLimiter.limiterByKey.GetOrSet(key, rate.NewLimiter(rate.Limit(rateLimiter.refillPerSecond), rateLimiter.burstSize))
	return limiter.Value().Allow()
}

type RefillPerSecond float64
type BurstSize int

// NewTokenBucketRateLimiter returns a per-key token bucket limiter and a function
// stopping the cleanup of idle keys.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	// Idle buckets are full again long before they expire
	limiterTTLCache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](30 * time.Minute),
	)
	go limiterTTLCache.Start()

	return &tokenBucketRateLimiter{
		limiterByKey:    limiterTTLCache,
		refillPerSecond: float64(refillPerSecond),
		burstSize:       int(burstSize),
	}, limiterTTLCache.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

// Consume always allows requests the key func returns an empty key for
func (rateLimiter *requestBasedRateLimiter) Consume(r *http.Request) bool {
	key := rateLimiter.keyFunc(r)
	if key == "" {
		return true
	}
	return rateLimiter.limiter.Consume(key)
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

// IPKeyFunc keys on the client ip.
// Behind a load balancer the peer address is the last entry of X-Forwarded-For.
// Earlier entries are sent by the client and can not be trusted.
func IPKeyFunc(r *http.Request) string {
	forwardedFor := r.Header.Values("X-Forwarded-For")
	if len(forwardedFor) > 0 {
		last := forwardedFor[len(forwardedFor)-1]
		if index := strings.LastIndexByte(last, ','); index != -1 {
			last = last[index+1:]
		}
		if clientIP := strings.TrimSpace(last); clientIP != "" {
			return fmt.Sprintf("ip: %s", clientIP)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// No port
		host = r.RemoteAddr
	}

	return fmt.Sprintf("ip: %s", host)
}

// UserIDKeyFunc keys on the X-User-Id header.
// Requests without the header get an empty key and are only limited by ip.
func UserIDKeyFunc(r *http.Request) string {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return ""
	}
	return fmt.Sprintf("user-id: %.50s", userID)
}
