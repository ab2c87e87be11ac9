package ratelimiter

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MapLimiter applies a token bucket per string key. Keys without an
// explicit rate share the default rate but get their own bucket.
type MapLimiter struct {
	limit     rate.Limit
	burst     int
	overrides map[string]rate.Limit
	mu        sync.Mutex
	byKey     map[string]*rate.Limiter
}

// New creates a key-based limiter; returns nil if args are invalid.
// A nil limiter never throttles.
func New(rps float64, burst int, overrides map[string]float64) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	l := &MapLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		overrides: make(map[string]rate.Limit, len(overrides)),
		byKey:     make(map[string]*rate.Limiter),
	}
	for key, v := range overrides {
		key = strings.TrimSpace(key)
		if key == "" || v <= 0 {
			continue
		}
		l.overrides[key] = rate.Limit(v)
	}
	return l
}

// Wait blocks until one token is available for key or ctx is done.
func (l *MapLimiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return l.limiterFor(key).Wait(ctx)
}

// Allow reports whether one token can be consumed for the key at now.
func (l *MapLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	return l.limiterFor(key).AllowN(now, 1)
}

func (l *MapLimiter) limiterFor(key string) *rate.Limiter {
	key = strings.TrimSpace(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.byKey[key]
	if !ok {
		limit := l.limit
		if v, ok := l.overrides[key]; ok {
			limit = v
		}
		lim = rate.NewLimiter(limit, l.burst)
		l.byKey[key] = lim
	}
	return lim
}
