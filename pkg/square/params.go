package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// RefundParams describes a refund of a captured buyer payment.
type RefundParams struct {
	IdempotencyKey string
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
}

func (p RefundParams) toSquareRequest(idempotencyKey, locationID string) *sq.RefundPaymentRequest {
	return &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountCents, p.Currency),
		PaymentID:      ptrString(p.PaymentID),
		LocationID:     ptrString(locationID),
		Reason:         ptrString(truncate(p.Reason, maxRefundReasonLen)),
	}
}

const maxRefundReasonLen = 192

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max]
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
