// Package fees splits an order total into the platform commission and the
// vendor's share.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Split is the result of applying a fee rate to a gross amount.
// PlatformFeeCents + VendorAmountCents always equals AmountCents.
type Split struct {
	AmountCents       int64           `json:"amount_cents"`
	PlatformFeeCents  int64           `json:"platform_fee_cents"`
	VendorAmountCents int64           `json:"vendor_amount_cents"`
	RatePercent       decimal.Decimal `json:"rate_percent"`
}

// ComputeSplit rounds the platform fee half away from zero to the nearest
// minor unit; the vendor receives the remainder.
func ComputeSplit(amountCents int64, ratePercent decimal.Decimal) (Split, error) {
	if amountCents <= 0 {
		return Split{}, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be positive").
			WithDetails(map[string]any{"amount_cents": amountCents})
	}
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return Split{}, pkgerrors.New(pkgerrors.CodeInvalidAmount, fmt.Sprintf("fee rate %s must be between 0 and 100", ratePercent.String())).
			WithDetails(map[string]any{"fee_rate_percent": ratePercent.String()})
	}

	fee := decimal.NewFromInt(amountCents).Mul(ratePercent).Shift(-2).Round(0).IntPart()
	return Split{
		AmountCents:       amountCents,
		PlatformFeeCents:  fee,
		VendorAmountCents: amountCents - fee,
		RatePercent:       ratePercent,
	}, nil
}
