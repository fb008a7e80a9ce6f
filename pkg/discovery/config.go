package discovery

import (
	"time"

	"github.com/code-payments/content-purchase/pkg/config"
	"github.com/code-payments/content-purchase/pkg/config/env"
	"github.com/code-payments/content-purchase/pkg/config/memory"
	"github.com/code-payments/content-purchase/pkg/config/wrapper"
)

const (
	envConfigPrefix = "DISCOVERY_CLIENT_"

	BaseUrlConfigEnvName = envConfigPrefix + "BASE_URL"
	defaultBaseUrl       = "http://localhost:5000/v1/full/"

	RequestTimeoutConfigEnvName = envConfigPrefix + "REQUEST_TIMEOUT"
	defaultRequestTimeout       = 5 * time.Second
)

type conf struct {
	baseUrl        config.String
	requestTimeout config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			baseUrl:        env.NewStringConfig(BaseUrlConfigEnvName, defaultBaseUrl),
			requestTimeout: env.NewDurationConfig(RequestTimeoutConfigEnvName, defaultRequestTimeout),
		}
	}
}

type testOverrides struct {
	baseUrl        string
	requestTimeout time.Duration
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
		}
	}
}
