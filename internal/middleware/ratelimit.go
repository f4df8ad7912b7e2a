package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"goal-tracker/internal/action"
	"goal-tracker/internal/presentation/http/respond"
)

// KeyedLimiter keeps one token bucket per key, forgetting keys idle for
// longer than the configured TTL.
type KeyedLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewKeyedLimiter allows perMinute events per key with the given burst.
func NewKeyedLimiter(perMinute, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		every:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		ttl:     10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow spends one token for key.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.sweep) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.sweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Len reports how many keys are tracked.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// LimitRule says how RateLimit keys a request and how a rejection reads.
type LimitRule struct {
	Key     func(*http.Request) string
	Field   string
	Message string
}

// RateLimit rejects requests over the per-key budget with 429 and a
// VALIDATION_ERROR envelope naming rule.Field.
func RateLimit(l *KeyedLimiter, rule LimitRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(rule.Key(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				e := action.Invalid("Too many requests", action.FieldError{
					Field:   rule.Field,
					Message: rule.Message,
				})
				respond.JSON(w, http.StatusTooManyRequests, e)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
