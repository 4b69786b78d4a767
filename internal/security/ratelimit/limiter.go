package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-key token bucket limiter
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	staleFor time.Duration
	cleanup  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows maxRequests per window per key, with the whole window as burst
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		staleFor: 3 * window,
		cleanup:  time.NewTicker(5 * time.Minute),
		done:     make(chan struct{}),
	}
	go l.cleanupOldBuckets()
	return l
}

// Allow reports whether one more request for key fits in its budget
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

func (l *Limiter) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			threshold := time.Now().Add(-l.staleFor)
			for key, b := range l.buckets {
				if b.lastSeen.Before(threshold) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		l.cleanup.Stop()
		close(l.done)
	})
}
