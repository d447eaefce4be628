package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"fitclass/internal/api"
)

// clientLimiters holds one token bucket per client IP. Entries idle
// longer than ttl are dropped by a background sweep so the map does not
// grow without bound.
type clientLimiters struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rate    rate.Limit
	burst   int
	ttl     time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(rps float64, burst int, ttl time.Duration) *clientLimiters {
	cl := &clientLimiters{
		buckets: make(map[string]*clientBucket),
		rate:    rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
	}
	go cl.sweep()
	return cl
}

func (cl *clientLimiters) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cl.mu.Lock()
		for ip, b := range cl.buckets {
			if time.Since(b.lastSeen) > cl.ttl {
				delete(cl.buckets, ip)
			}
		}
		cl.mu.Unlock()
	}
}

func (cl *clientLimiters) allow(ip string) bool {
	cl.mu.Lock()
	b, ok := cl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(cl.rate, cl.burst)}
		cl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	cl.mu.Unlock()

	return b.limiter.Allow()
}

// RateLimitMiddleware rejects requests above rps per client IP with 429.
// Burst allows short spikes, which booking traffic around class opening
// times tends to produce.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rps, burst, 3*time.Minute)

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, api.ErrorResponse{Error: "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
