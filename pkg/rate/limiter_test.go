package rate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func allowN(l Limiter, key string, n int) (allowed int) {
	for i := 0; i < n; i++ {
		ok, err := l.Allow(key)
		if err == nil && ok {
			allowed++
		}
	}
	return allowed
}

func TestNoLimiter(t *testing.T) {
	assert.Equal(t, 1000, allowN(NoLimiter{}, "buyer", 1000))
}

func TestLocalRateLimiter_PerBuyer(t *testing.T) {
	l := NewLocalRateLimiter(2)

	assert.Equal(t, 2, allowN(l, "buyer_1", 5))
	assert.Equal(t, 2, allowN(l, "buyer_2", 5))
	assert.Equal(t, 0, allowN(l, "buyer_1", 1))
}

func TestKeyedLimiter_Burst(t *testing.T) {
	l := NewKeyedLimiter(rate.Limit(0.001), 3)
	assert.Equal(t, 3, allowN(l, "buyer", 10))

	// A burst below one still lets the first operation through
	l = NewKeyedLimiter(rate.Limit(0.001), 0)
	assert.Equal(t, 1, allowN(l, "buyer", 10))
}

func TestKeyedLimiter_BoundedKeys(t *testing.T) {
	l := NewBoundedKeyedLimiter(rate.Limit(0.001), 1, 10)

	for i := 0; i < 1000; i++ {
		assert.Equal(t, 1, allowN(l, fmt.Sprintf("buyer_%d", i), 2))
	}
	assert.Equal(t, 10, l.size())

	// Recently seen buyers keep their drained bucket
	assert.Equal(t, 0, allowN(l, "buyer_999", 1))

	// Evicted buyers start over with a full bucket
	assert.Equal(t, 1, allowN(l, "buyer_0", 1))
	assert.Equal(t, 10, l.size())
}
