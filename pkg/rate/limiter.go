// Package rate throttles operations per key, such as purchase attempts per
// buyer.
package rate

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/code-payments/content-purchase/pkg/cache"
)

// DefaultMaxKeys bounds the number of buckets a KeyedLimiter tracks. The
// least recently used bucket is dropped first.
const DefaultMaxKeys = 100_000

// Limiter decides whether the operation identified by key may proceed now
type Limiter interface {
	Allow(key string) (bool, error)
}

// KeyedLimiter keeps an independent token bucket per key, refilled at
// perSecond tokens a second and holding at most burst tokens. At most
// maxKeys buckets are kept; an evicted key starts over with a full bucket.
type KeyedLimiter struct {
	perSecond rate.Limit
	burst     int

	mu      sync.Mutex
	buckets cache.Cache
}

// NewLocalRateLimiter returns an in memory KeyedLimiter whose burst equals
// its per second rate
func NewLocalRateLimiter(perSecond uint64) *KeyedLimiter {
	return NewKeyedLimiter(rate.Limit(perSecond), int(perSecond))
}

func NewKeyedLimiter(perSecond rate.Limit, burst int) *KeyedLimiter {
	return NewBoundedKeyedLimiter(perSecond, burst, DefaultMaxKeys)
}

func NewBoundedKeyedLimiter(perSecond rate.Limit, burst, maxKeys int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	if maxKeys < 1 {
		maxKeys = 1
	}
	return &KeyedLimiter{
		perSecond: perSecond,
		burst:     burst,
		buckets:   cache.NewCache(maxKeys),
	}
}

// Allow implements Limiter.Allow
func (l *KeyedLimiter) Allow(key string) (bool, error) {
	return l.bucket(key).Allow(), nil
}

func (l *KeyedLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.buckets.Retrieve(key); ok {
		return cached.(*rate.Limiter)
	}

	bucket := rate.NewLimiter(l.perSecond, l.burst)
	l.buckets.Insert(key, bucket, 1)
	return bucket
}

func (l *KeyedLimiter) size() int {
	return l.buckets.GetWeight()
}

// NoLimiter allows every operation
type NoLimiter struct{}

// Allow implements Limiter.Allow
func (NoLimiter) Allow(string) (bool, error) {
	return true, nil
}
