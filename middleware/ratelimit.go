package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter is a set of token buckets, one per key (client IP, player id).
// Buckets unused for a while are dropped by Sweep.
type KeyedLimiter struct {
	mu      sync.Mutex
	r       rate.Limit
	b       int
	entries map[string]*keyedEntry
}

// NewKeyedLimiter creates a limiter allowing r events per second with burst b per key.
func NewKeyedLimiter(r rate.Limit, b int) *KeyedLimiter {
	return &KeyedLimiter{r: r, b: b, entries: make(map[string]*keyedEntry)}
}

// Allow reports whether key may proceed now.
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	e, ok := kl.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(kl.r, kl.b)}
		kl.entries[key] = e
	}
	e.lastSeen = time.Now()
	kl.mu.Unlock()
	return e.limiter.Allow()
}

// Forget drops the bucket of key.
func (kl *KeyedLimiter) Forget(key string) {
	kl.mu.Lock()
	delete(kl.entries, key)
	kl.mu.Unlock()
}

// Sweep drops buckets not used since cutoff and returns how many were removed.
func (kl *KeyedLimiter) Sweep(cutoff time.Time) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	n := 0
	for k, e := range kl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(kl.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

// RateLimit provides per-IP token-bucket rate limiting.
// r = requests per second, b = burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	kl := NewKeyedLimiter(r, b)

	go func() {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for range ticker.C {
			kl.Sweep(time.Now().Add(-limiterIdleAfter))
		}
	}()

	return func(c *gin.Context) {
		if !kl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
