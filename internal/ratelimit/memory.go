package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps a token bucket per subject inside the process. It is
// used when no Redis is configured; limits are per replica.
type MemoryLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*memoryBucket
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	lastScan time.Time
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(capacity int, window time.Duration) (*MemoryLimiter, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}

	return &MemoryLimiter{
		buckets: make(map[string]*memoryBucket),
		limit:   rate.Every(window / time.Duration(capacity)),
		burst:   capacity,
		idleTTL: 2 * window,
		now:     time.Now,
	}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, subject string) (Decision, error) {
	subject = normalizeSubject(subject)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	bucket, ok := l.buckets[subject]
	if !ok {
		bucket = &memoryBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[subject] = bucket
	}
	bucket.lastSeen = now

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, RetryAfter: l.idleTTL}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}

	remaining := int64(bucket.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// evictIdle drops buckets that have been idle long enough to be full again.
// It scans at most once per idle period.
func (l *MemoryLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastScan) < l.idleTTL {
		return
	}
	l.lastScan = now
	for subject, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= l.idleTTL {
			delete(l.buckets, subject)
		}
	}
}
