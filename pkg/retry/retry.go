// Package retry runs fallible actions until they succeed or a strategy gives
// up.
package retry

// Action is an operation to retry. A nil error ends the loop.
type Action func() error

// Strategy is consulted after each failed attempt, numbered from 1, and
// reports whether another attempt should run. Strategies may sleep.
type Strategy func(attempts uint, err error) bool

// Retrier retries actions with a fixed set of strategies
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier []Strategy

// NewRetrier binds strategies for reuse across calls. Without strategies an
// action is retried until it succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return retrier(strategies)
}

func (r retrier) Retry(action Action) (uint, error) {
	return Retry(action, r...)
}

// Retry runs action until it succeeds or any strategy declines another
// attempt, returning the attempt count and the last error. Strategies run in
// order, so delaying strategies belong last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil {
			return attempts, nil
		}

		for _, strategy := range strategies {
			if !strategy(attempts, err) {
				return attempts, err
			}
		}
	}
}
