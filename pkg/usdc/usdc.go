package usdc

import (
	"crypto/ed25519"
	"math"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	Mint          = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	QuarksPerUsdc = 1000000
	QuarksPerCent = QuarksPerUsdc / 100
	Decimals      = 6
)

var (
	TokenMint = ed25519.PublicKey{198, 250, 122, 243, 190, 219, 173, 58, 61, 101, 243, 106, 171, 201, 116, 49, 177, 187, 228, 194, 210, 246, 224, 228, 124, 166, 2, 3, 69, 47, 93, 97}
)

var (
	ErrNegativeAmount = errors.New("amount is negative")
	ErrAmountTooLarge = errors.New("amount cannot be represented in quarks")
)

var maxQuarks = fromUint64(math.MaxUint64)

// DollarsToQuarks converts a dollar amount to quarks. Anything below one
// quark is truncated.
func DollarsToQuarks(dollars decimal.Decimal) (uint64, error) {
	if dollars.IsNegative() {
		return 0, ErrNegativeAmount
	}

	quarks := dollars.Shift(Decimals).Truncate(0)
	if quarks.GreaterThan(maxQuarks) {
		return 0, ErrAmountTooLarge
	}

	return quarks.BigInt().Uint64(), nil
}

// QuarksToDollars converts quarks to an exact dollar amount.
func QuarksToDollars(quarks uint64) decimal.Decimal {
	return fromUint64(quarks).Shift(-Decimals)
}

// CentsToQuarks converts an integer cent price to quarks.
func CentsToQuarks(cents uint64) (uint64, error) {
	if cents > math.MaxUint64/QuarksPerCent {
		return 0, ErrAmountTooLarge
	}
	return cents * QuarksPerCent, nil
}

// StrToQuarks parses a dollar string, such as "4.99", into quarks. Values
// with more precision than a quark are rejected rather than truncated.
func StrToQuarks(val string) (uint64, error) {
	dollars, err := decimal.NewFromString(val)
	if err != nil {
		return 0, errors.Wrap(err, "invalid usdc value")
	}

	if !dollars.Shift(Decimals).IsInteger() {
		return 0, errors.New("value cannot be represented")
	}

	return DollarsToQuarks(dollars)
}

// StrFromQuarks formats quarks as a dollar string with every decimal place.
func StrFromQuarks(quarks uint64) string {
	return QuarksToDollars(quarks).StringFixed(Decimals)
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
