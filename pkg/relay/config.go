package relay

import (
	"time"

	"github.com/code-payments/content-purchase/pkg/config"
	"github.com/code-payments/content-purchase/pkg/config/env"
	"github.com/code-payments/content-purchase/pkg/config/memory"
	"github.com/code-payments/content-purchase/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RELAY_CLIENT_"

	BaseUrlConfigEnvName = envConfigPrefix + "BASE_URL"
	defaultBaseUrl       = "http://localhost:6001/solana/"

	RequestTimeoutConfigEnvName = envConfigPrefix + "REQUEST_TIMEOUT"
	defaultRequestTimeout       = 10 * time.Second

	MaxRetriesConfigEnvName = envConfigPrefix + "MAX_RETRIES"
	defaultMaxRetries       = 2
)

type conf struct {
	baseUrl        config.String
	requestTimeout config.Duration
	maxRetries     config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			baseUrl:        env.NewStringConfig(BaseUrlConfigEnvName, defaultBaseUrl),
			requestTimeout: env.NewDurationConfig(RequestTimeoutConfigEnvName, defaultRequestTimeout),
			maxRetries:     env.NewUint64Config(MaxRetriesConfigEnvName, defaultMaxRetries),
		}
	}
}

type testOverrides struct {
	baseUrl        string
	requestTimeout time.Duration
	maxRetries     uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		timeout := overrides.requestTimeout
		if timeout == 0 {
			timeout = defaultRequestTimeout
		}

		return &conf{
			baseUrl:        wrapper.NewStringConfig(memory.NewConfig(overrides.baseUrl), defaultBaseUrl),
			requestTimeout: wrapper.NewDurationConfig(memory.NewConfig(timeout), defaultRequestTimeout),
			maxRetries:     wrapper.NewUint64Config(memory.NewConfig(overrides.maxRetries), defaultMaxRetries),
		}
	}
}
