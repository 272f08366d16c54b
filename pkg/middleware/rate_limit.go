package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
	"golang.org/x/time/rate"
)

// keyFor picks the limiter key: the authenticated subject when the auth
// middleware ran before (NAT-friendly per-user limiting), the client IP otherwise.
func keyFor(c *gin.Context) string {
	if v, ok := c.Get("claims"); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			if sub, ok := cm["sub"].(string); ok && sub != "" {
				return "sub:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// keyedLimiters holds one token bucket per key. Buckets idle for longer
// than limiterIdleTTL are dropped on the next sweep.
type keyedLimiters struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	items     map[string]*limiterEntry
	lastSweep time.Time
}

func newKeyedLimiters(rps float64, burst int) *keyedLimiters {
	return &keyedLimiters{rps: rate.Limit(rps), burst: burst, items: make(map[string]*limiterEntry), lastSweep: time.Now()}
}

func (k *keyedLimiters) allow(key string) bool {
	now := time.Now()
	k.mu.Lock()
	if now.Sub(k.lastSweep) > limiterIdleTTL {
		for stale, e := range k.items {
			if now.Sub(e.seen) > limiterIdleTTL {
				delete(k.items, stale)
			}
		}
		k.lastSweep = now
	}
	e, ok := k.items[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(k.rps, k.burst)}
		k.items[key] = e
	}
	e.seen = now
	k.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// RateLimitMiddleware returns a Gin middleware enforcing an in-memory
// token bucket per key (see keyFor). rps = allowed events per second,
// burst = maximum tokens in bucket. Every call gets its own buckets.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newKeyedLimiters(rps, burst)
	return func(c *gin.Context) {
		if !limiters.allow(keyFor(c)) {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
