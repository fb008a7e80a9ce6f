package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

type converter[T any] func(raw interface{}) (T, error)

// typed caches the last successfully converted value of an underlying
// config so readers keep a usable setting while the source misbehaves.
type typed[T any] struct {
	source       config.Config
	convert      converter[T]
	defaultValue T

	stateMu   sync.RWMutex
	lastValue T
}

func newTyped[T any](source config.Config, defaultValue T, convert converter[T]) *typed[T] {
	return &typed[T]{
		source:       source,
		convert:      convert,
		defaultValue: defaultValue,
		lastValue:    defaultValue,
	}
}

// GetSafe implements config.Value.GetSafe
func (c *typed[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := c.source.Get(ctx)
	if err == config.ErrNoValue {
		c.remember(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return c.last(), err
	}

	value, err := c.convert(raw)
	if err != nil {
		return c.last(), err
	}

	c.remember(value)
	return value, nil
}

// Get implements config.Value.Get
func (c *typed[T]) Get(ctx context.Context) T {
	value, _ := c.GetSafe(ctx)
	return value
}

// Shutdown implements config.Value.Shutdown
func (c *typed[T]) Shutdown() {
	c.source.Shutdown()
}

func (c *typed[T]) last() T {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastValue
}

func (c *typed[T]) remember(value T) {
	c.stateMu.Lock()
	c.lastValue = value
	c.stateMu.Unlock()
}

// NewStringConfig wraps a config yielding string or []byte values
func NewStringConfig(source config.Config, defaultValue string) config.String {
	return newTyped(source, defaultValue, func(raw interface{}) (string, error) {
		switch v := raw.(type) {
		case []byte:
			return string(v), nil
		case string:
			return v, nil
		}
		return "", ErrUnsuportedConversion
	})
}

// NewBoolConfig wraps a config yielding bool values or strconv.ParseBool text
func NewBoolConfig(source config.Config, defaultValue bool) config.Bool {
	return newTyped(source, defaultValue, func(raw interface{}) (bool, error) {
		switch v := raw.(type) {
		case []byte:
			return strconv.ParseBool(string(v))
		case bool:
			return v, nil
		}
		return false, ErrUnsuportedConversion
	})
}

// NewUint64Config wraps a config yielding unsigned integers or base 10 text
func NewUint64Config(source config.Config, defaultValue uint64) config.Uint64 {
	return newTyped(source, defaultValue, func(raw interface{}) (uint64, error) {
		switch v := raw.(type) {
		case []byte:
			return strconv.ParseUint(string(v), 10, 64)
		case uint64:
			return v, nil
		case uint:
			return uint64(v), nil
		case int:
			if v < 0 {
				return 0, errors.Errorf("config: negative value %d for unsigned config", v)
			}
			return uint64(v), nil
		}
		return 0, ErrUnsuportedConversion
	})
}

// NewDurationConfig wraps a config yielding time.Duration values or
// time.ParseDuration text such as "250ms"
func NewDurationConfig(source config.Config, defaultValue time.Duration) config.Duration {
	return newTyped(source, defaultValue, func(raw interface{}) (time.Duration, error) {
		switch v := raw.(type) {
		case []byte:
			return time.ParseDuration(string(v))
		case time.Duration:
			return v, nil
		}
		return 0, ErrUnsuportedConversion
	})
}
