package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/content-purchase/pkg/config"
)

var errInduced = errors.New("in memory config: induced error")

// Config is a mutable in memory config source, used to pin settings in tests
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	fail     bool
	shutdown bool
}

// NewConfig returns a config holding value. A nil value reads as unset.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// Get implements config.Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.fail:
		return nil, errInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements config.Config.Shutdown
func (c *Config) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

func (c *Config) SetValue(value interface{}) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

// ClearValue makes subsequent reads return config.ErrNoValue
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors makes subsequent reads fail until StopInducingErrors
func (c *Config) InduceErrors() {
	c.mu.Lock()
	c.fail = true
	c.mu.Unlock()
}

func (c *Config) StopInducingErrors() {
	c.mu.Lock()
	c.fail = false
	c.mu.Unlock()
}
