package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/payout"
)

// PayoutMetadataKey carries the settlement payout id on Stripe payouts so
// webhooks can be matched back to the ledger.
const PayoutMetadataKey = "payout_id"

// PayoutRequest is a payout from a connected account balance to its bank.
type PayoutRequest struct {
	IdempotencyKey   string
	ConnectedAccount string
	AmountCents      int64
	Currency         string
	Description      string
	Metadata         map[string]string
}

type PayoutResult struct {
	ID     string
	Status string
}

// CreatePayout submits a payout. Retries with the same idempotency key return
// the original Stripe payout.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	if c == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, errors.New("payout idempotency key is required")
	}
	if req.AmountCents <= 0 {
		return nil, errors.New("payout amount must be positive")
	}

	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.ConnectedAccount != "" {
		params.SetStripeAccount(req.ConnectedAccount)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	created, err := payout.New(params)
	if err != nil {
		return nil, err
	}
	return &PayoutResult{ID: created.ID, Status: string(created.Status)}, nil
}
