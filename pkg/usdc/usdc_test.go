package usdc

import (
	"math"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenMint(t *testing.T) {
	assert.Equal(t, Mint, base58.Encode(TokenMint))
}

func TestDollarsToQuarks(t *testing.T) {
	for in, expected := range map[string]uint64{
		"0":         0,
		"0.000001":  1,
		"0.0000019": 1,
		"4.99":      4_990_000,
		"5":         5_000_000,
		"5.00":      5_000_000,
		"1.5":       1_500_000,
		"12345.67":  12_345_670_000,
	} {
		actual, err := DollarsToQuarks(decimal.RequireFromString(in))
		require.NoError(t, err, in)
		assert.Equal(t, expected, actual, in)
	}

	_, err := DollarsToQuarks(decimal.RequireFromString("-0.01"))
	assert.Equal(t, ErrNegativeAmount, err)

	_, err = DollarsToQuarks(decimal.RequireFromString("100000000000000000"))
	assert.Equal(t, ErrAmountTooLarge, err)
}

func TestCentsToQuarks(t *testing.T) {
	quarks, err := CentsToQuarks(500)
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000, quarks)

	_, err = CentsToQuarks(math.MaxUint64 / 100)
	assert.True(t, errors.Is(err, ErrAmountTooLarge))
}

func TestStrQuarks(t *testing.T) {
	for in, expected := range map[string]uint64{
		"0.000001": 1,
		"0.01":     10_000,
		"5.00":     5_000_000,
		"6":        6_000_000,
	} {
		actual, err := StrToQuarks(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, actual, in)
	}

	for _, in := range []string{"", "abc", "0.0000001", "-1"} {
		_, err := StrToQuarks(in)
		assert.Error(t, err, in)
	}

	assert.Equal(t, "0.000001", StrFromQuarks(1))
	assert.Equal(t, "6.000000", StrFromQuarks(6_000_000))
	assert.True(t, QuarksToDollars(4_990_000).Equal(decimal.RequireFromString("4.99")))
}
