// Package backoff computes the delay before a retry
package backoff

import (
	"math"
	"time"
)

// Strategy returns the delay after the given attempt, counted from 1
type Strategy func(attempts uint) time.Duration

func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Exponential grows as baseDelay * factor^(attempts-1), saturating at the
// largest representable duration
func Exponential(baseDelay time.Duration, factor float64) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}
		delay := float64(baseDelay) * math.Pow(factor, float64(attempts-1))
		if delay >= math.MaxInt64 {
			return math.MaxInt64
		}
		return time.Duration(delay)
	}
}

// BinaryExponential doubles the delay on each attempt
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}
