package tools

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per user. A nil *RateLimiter allows
// everything. Buckets idle long enough to have refilled are dropped, so the
// map only holds users active within the last refill window.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
	buckets   map[string]*bucket
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter returns nil when perMinute is not positive.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perMinute / 60)
	return &RateLimiter{
		limit:     limit,
		burst:     burst,
		idleAfter: time.Duration(float64(burst) / float64(limit) * float64(time.Second)),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Allow consumes one token from userID's bucket.
func (l *RateLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.idleAfter {
		l.sweep(now)
	}
	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets untouched for idleAfter; they are full again and
// indistinguishable from new ones. Callers hold mu.
func (l *RateLimiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.seen) >= l.idleAfter {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
