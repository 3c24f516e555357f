package square

import (
	"context"
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

// RefundResult is the provider's view of a submitted refund.
type RefundResult struct {
	ID     string
	Status string
}

// RefundPayment returns funds for a captured payment back to the buyer. Square
// deduplicates on the idempotency key so replaying the same key is safe.
func (c *Client) RefundPayment(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if strings.TrimSpace(params.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "refund amount must be positive")
	}

	req := params.toSquareRequest(c.ensureIdempotencyKey("refund", params.IdempotencyKey), c.LocationID())
	c.log(ctx, "request", "refund_payment", map[string]any{
		"payment_id":   params.PaymentID,
		"amount_cents": params.AmountCents,
		"currency":     params.Currency,
	})

	resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
	if err != nil {
		c.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "refund payment")
	}

	result, err := decodeRefund(resp.GetRefund())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode square refund")
	}
	c.log(ctx, "response", "refund_payment", map[string]any{
		"refund_id": result.ID,
		"status":    result.Status,
	})
	return result, nil
}

func decodeRefund(refund any) (*RefundResult, error) {
	raw, err := json.Marshal(refund)
	if err != nil {
		return nil, err
	}
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return &RefundResult{ID: body.ID, Status: body.Status}, nil
}
