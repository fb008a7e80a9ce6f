package purchase

import (
	"github.com/code-payments/content-purchase/pkg/config"
	"github.com/code-payments/content-purchase/pkg/config/env"
	"github.com/code-payments/content-purchase/pkg/config/memory"
	"github.com/code-payments/content-purchase/pkg/config/wrapper"
	"github.com/code-payments/content-purchase/pkg/usdc"
)

const (
	envConfigPrefix = "PURCHASE_SERVICE_"

	UsdcMintConfigEnvName = envConfigPrefix + "USDC_MINT"
	defaultUsdcMint       = usdc.Mint

	ContentTypeConfigEnvName = envConfigPrefix + "CONTENT_TYPE"
	defaultContentType       = string(ContentTypeTrack)

	MaxAttemptsPerBuyerPerSecondConfigEnvName = envConfigPrefix + "MAX_ATTEMPTS_PER_BUYER_PER_SECOND"
	defaultMaxAttemptsPerBuyerPerSecond       = 5

	DisableAttemptRecordingConfigEnvName = envConfigPrefix + "DISABLE_ATTEMPT_RECORDING"
	defaultDisableAttemptRecording       = false

	RelayFeePayerOverrideConfigEnvName = envConfigPrefix + "RELAY_FEE_PAYER_OVERRIDE"
	defaultRelayFeePayerOverride       = ""
)

type conf struct {
	usdcMint                     config.String
	contentType                  config.String
	maxAttemptsPerBuyerPerSecond config.Uint64 // Zero disables the limit
	disableAttemptRecording      config.Bool
	relayFeePayerOverride        config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			usdcMint:                     env.NewStringConfig(UsdcMintConfigEnvName, defaultUsdcMint),
			contentType:                  env.NewStringConfig(ContentTypeConfigEnvName, defaultContentType),
			maxAttemptsPerBuyerPerSecond: env.NewUint64Config(MaxAttemptsPerBuyerPerSecondConfigEnvName, defaultMaxAttemptsPerBuyerPerSecond),
			disableAttemptRecording:      env.NewBoolConfig(DisableAttemptRecordingConfigEnvName, defaultDisableAttemptRecording),
			relayFeePayerOverride:        env.NewStringConfig(RelayFeePayerOverrideConfigEnvName, defaultRelayFeePayerOverride),
		}
	}
}

type testOverrides struct {
	usdcMint                     string
	maxAttemptsPerBuyerPerSecond uint64
	disableAttemptRecording      bool
	relayFeePayerOverride        string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		mint := overrides.usdcMint
		if len(mint) == 0 {
			mint = defaultUsdcMint
		}

		return &conf{
			usdcMint:                     wrapper.NewStringConfig(memory.NewConfig(mint), defaultUsdcMint),
			contentType:                  wrapper.NewStringConfig(memory.NewConfig(defaultContentType), defaultContentType),
			maxAttemptsPerBuyerPerSecond: wrapper.NewUint64Config(memory.NewConfig(overrides.maxAttemptsPerBuyerPerSecond), defaultMaxAttemptsPerBuyerPerSecond),
			disableAttemptRecording:      wrapper.NewBoolConfig(memory.NewConfig(overrides.disableAttemptRecording), defaultDisableAttemptRecording),
			relayFeePayerOverride:        wrapper.NewStringConfig(memory.NewConfig(overrides.relayFeePayerOverride), defaultRelayFeePayerOverride),
		}
	}
}
