package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"dsr-backend/internal/shared/server/respond"
)

const defaultRateLimitGroup = "DEFAULT"

// RateLimitRule is a token bucket: Rate tokens per second, up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

const (
	defaultMaxBuckets = 10000
	bucketIdleTTL     = 10 * time.Minute
	sweepEvery        = time.Minute
)

// RateLimiter keeps one token bucket per principal and group. Buckets idle
// for longer than bucketIdleTTL are dropped, and the map never grows past
// maxBuckets.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	now        func() time.Time
	maxBuckets int
	lastSweep  time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		now:        now,
		maxBuckets: defaultMaxBuckets,
	}
}

// RateLimit rejects requests over the rule of their group with 429. Groups
// without a rule are not limited.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.groupOf(c)
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		allowed, wait := cfg.Limiter.Allow(principalOf(c)+"|"+group, rule)
		if !allowed {
			tooManyRequests(c, wait)
			return
		}
		c.Next()
	}
}

func (cfg RateLimitConfig) groupOf(c *gin.Context) string {
	if cfg.GroupFor != nil {
		if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
			return g
		}
	}
	return cfg.DefaultGroup
}

// principalOf prefers the session user and falls back to the client address.
func principalOf(c *gin.Context) string {
	if id := strings.TrimSpace(UserIDFromContext(c)); id != "" {
		return id
	}
	return strings.TrimSpace(c.ClientIP())
}

func tooManyRequests(c *gin.Context, wait time.Duration) {
	if wait <= 0 {
		wait = time.Second
	}
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	respond.Error(c, http.StatusTooManyRequests, respond.CodeRateLimited, "Too many requests", gin.H{
		"retryAfterMs": wait.Milliseconds(),
	})
}

// Allow takes one token for key and reports how long to wait when none is left.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		l.makeRoom(now)
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst)}
		l.buckets[key] = b
	}
	b.seen = now
	lim := b.lim
	l.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// makeRoom sweeps idle buckets once per sweepEvery, or sooner when the map is
// full, then evicts the least recently seen bucket if it is still full.
// Callers hold l.mu.
func (l *RateLimiter) makeRoom(now time.Time) {
	full := len(l.buckets) >= l.maxBuckets
	if !full && now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
	if len(l.buckets) < l.maxBuckets {
		return
	}
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, b := range l.buckets {
		if oldestKey == "" || b.seen.Before(oldest) {
			oldestKey, oldest = key, b.seen
		}
	}
	delete(l.buckets, oldestKey)
}
