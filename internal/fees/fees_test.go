package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

func TestComputeSplit(t *testing.T) {
	cases := []struct {
		name       string
		amount     int64
		rate       string
		wantFee    int64
		wantVendor int64
	}{
		{name: "five percent of ten thousand naira", amount: 1_000_000, rate: "5", wantFee: 50_000, wantVendor: 950_000},
		{name: "zero rate", amount: 1234, rate: "0", wantFee: 0, wantVendor: 1234},
		{name: "full rate", amount: 1234, rate: "100", wantFee: 1234, wantVendor: 0},
		{name: "half rounds up", amount: 10, rate: "5", wantFee: 1, wantVendor: 9},
		{name: "below half rounds down", amount: 9, rate: "5", wantFee: 0, wantVendor: 9},
		{name: "fractional rate", amount: 99_999, rate: "2.5", wantFee: 2500, wantVendor: 97_499},
		{name: "four decimal rate", amount: 1_000_000, rate: "1.2345", wantFee: 12_345, wantVendor: 987_655},
		{name: "one minor unit", amount: 1, rate: "50", wantFee: 1, wantVendor: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := ComputeSplit(tc.amount, decimal.RequireFromString(tc.rate))
			require.NoError(t, err)
			assert.Equal(t, tc.wantFee, split.PlatformFeeCents)
			assert.Equal(t, tc.wantVendor, split.VendorAmountCents)
			assert.Equal(t, tc.amount, split.PlatformFeeCents+split.VendorAmountCents)
			assert.GreaterOrEqual(t, split.PlatformFeeCents, int64(0))
			assert.GreaterOrEqual(t, split.VendorAmountCents, int64(0))
		})
	}
}

func TestComputeSplitRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		rate   string
	}{
		{name: "zero amount", amount: 0, rate: "5"},
		{name: "negative amount", amount: -100, rate: "5"},
		{name: "negative rate", amount: 100, rate: "-0.01"},
		{name: "rate above hundred", amount: 100, rate: "100.01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeSplit(tc.amount, decimal.RequireFromString(tc.rate))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidAmount))
		})
	}
}

func TestComputeSplitIsDeterministic(t *testing.T) {
	rate := decimal.RequireFromString("7.5")
	first, err := ComputeSplit(33_333, rate)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ComputeSplit(33_333, rate)
		require.NoError(t, err)
		assert.Equal(t, first.PlatformFeeCents, again.PlatformFeeCents)
	}
}
