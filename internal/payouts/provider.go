package payouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgstripe "github.com/angelmondragon/settlement-engine/pkg/stripe"
)

// Provider moves money from the platform to a vendor's external account.
// Submit must be idempotent on PayoutID.
type Provider interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
}

type SubmitRequest struct {
	PayoutID    uuid.UUID
	VendorID    uuid.UUID
	AmountCents int64
	Currency    string
	Destination Destination
}

type SubmitResult struct {
	ProviderReference string
	Status            string
}

type stripePayouts interface {
	CreatePayout(ctx context.Context, req pkgstripe.PayoutRequest) (*pkgstripe.PayoutResult, error)
}

type stripeProvider struct {
	client stripePayouts
}

// NewStripeProvider submits payouts to the vendor's connected Stripe account.
func NewStripeProvider(client stripePayouts) Provider {
	return &stripeProvider{client: client}
}

func (p *stripeProvider) Name() string { return "stripe" }

func (p *stripeProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if p.client == nil {
		return nil, fmt.Errorf("stripe client not configured")
	}
	result, err := p.client.CreatePayout(ctx, pkgstripe.PayoutRequest{
		IdempotencyKey:   req.PayoutID.String(),
		ConnectedAccount: req.Destination.AccountID,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		Description:      "vendor payout " + req.PayoutID.String(),
		Metadata: map[string]string{
			pkgstripe.PayoutMetadataKey: req.PayoutID.String(),
			"vendor_id":                 req.VendorID.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	return &SubmitResult{ProviderReference: result.ID, Status: result.Status}, nil
}
