package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

type payoutRequester interface {
	RequestPayout(ctx context.Context, input payouts.RequestInput) (*models.Payout, error)
}

type payoutLister interface {
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[models.Payout], error)
}

type payoutDestinationRequest struct {
	AccountID    string `json:"account_id" validate:"max=255"`
	BankName     string `json:"bank_name" validate:"max=128"`
	AccountName  string `json:"account_name" validate:"max=128"`
	AccountLast4 string `json:"account_last4" validate:"omitempty,len=4,numeric"`
}

type createPayoutRequest struct {
	AmountCents int64                    `json:"amount_cents"`
	Reference   string                   `json:"reference" validate:"required,max=64"`
	Destination payoutDestinationRequest `json:"destination"`
}

// VendorRequestPayout debits the caller's wallet and queues a payout. A
// repeated reference with the same amount returns the original payout.
func VendorRequestPayout(svc payoutRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		actor, vendorID, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createPayoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.RequestPayout(r.Context(), payouts.RequestInput{
			VendorID:    vendorID,
			AmountCents: req.AmountCents,
			Reference:   validators.SanitizeString(req.Reference, 64),
			Destination: payouts.Destination{
				AccountID:    validators.SanitizeString(req.Destination.AccountID, 255),
				BankName:     validators.SanitizeString(req.Destination.BankName, 128),
				AccountName:  validators.SanitizeString(req.Destination.AccountName, 128),
				AccountLast4: req.Destination.AccountLast4,
			},
			Actor: actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, toPayoutResponse(payout))
	}
}

func VendorListPayouts(svc payoutLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		_, vendorID, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListByVendor(r.Context(), vendorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]payoutResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, toPayoutResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, pagination.Page[payoutResponse]{Items: items, NextCursor: page.NextCursor})
	}
}
