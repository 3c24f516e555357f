package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/disputes"
	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type disputeResolver interface {
	Resolve(ctx context.Context, input disputes.ResolveInput) (*models.Dispute, error)
}

type escrowOverrider interface {
	ForceRelease(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	ForceRefund(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
}

type payoutOutcomeRecorder interface {
	RecordManualOutcome(ctx context.Context, input payouts.ManualOutcomeInput) (*models.Payout, error)
}

type walletAdmin interface {
	Adjust(ctx context.Context, input wallet.AdjustInput) (*models.WalletTransaction, error)
	VerifyChain(ctx context.Context, vendorID uuid.UUID) (*wallet.Reconciliation, error)
}

type resolveDisputeRequest struct {
	Outcome    string `json:"outcome" validate:"required,oneof=release refund"`
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

func AdminResolveDispute(svc disputeResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := uuidParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outcome, err := enums.ParseDisputeOutcome(req.Outcome)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid outcome"))
			return
		}
		dispute, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			DisputeID:  disputeID,
			Outcome:    outcome,
			Resolution: validators.SanitizeString(req.Resolution, 2000),
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}

type overrideRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type overrideFunc func(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)

func escrowOverride(fn overrideFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		escrowID, err := uuidParam(r, "escrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req overrideRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := fn(r.Context(), escrowID, validators.SanitizeString(req.Reason, 500), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toEscrowResponse(record))
	}
}

// AdminForceRelease pays a held or disputed escrow out to the vendor.
func AdminForceRelease(svc escrowOverrider, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("escrow service unavailable", logg)
	}
	return escrowOverride(svc.ForceRelease, logg)
}

// AdminForceRefund returns a held or disputed escrow to the buyer.
func AdminForceRefund(svc escrowOverrider, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("escrow service unavailable", logg)
	}
	return escrowOverride(svc.ForceRefund, logg)
}

type payoutStatusRequest struct {
	Outcome           string `json:"outcome" validate:"required,oneof=success failure"`
	ProviderReference string `json:"provider_reference" validate:"max=255"`
	Note              string `json:"note" validate:"required,max=500"`
}

// AdminPayoutStatus records a payout outcome for providers without callbacks.
func AdminPayoutStatus(svc payoutOutcomeRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req payoutStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outcome, err := enums.ParsePayoutOutcome(req.Outcome)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid outcome"))
			return
		}
		payout, err := svc.RecordManualOutcome(r.Context(), payouts.ManualOutcomeInput{
			PayoutID:          payoutID,
			Outcome:           outcome,
			ProviderReference: validators.SanitizeString(req.ProviderReference, 255),
			Note:              validators.SanitizeString(req.Note, 500),
			Actor:             actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPayoutResponse(payout))
	}
}

type walletAdjustmentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note" validate:"required,max=500"`
}

func AdminWalletAdjustment(svc walletAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := uuidParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req walletAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Adjust(r.Context(), wallet.AdjustInput{
			VendorID:    vendorID,
			AmountCents: req.AmountCents,
			Note:        validators.SanitizeString(req.Note, 500),
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toWalletEntryResponse(entry))
	}
}

func AdminWalletReconciliation(svc walletAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		vendorID, err := uuidParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.VerifyChain(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func unavailable(msg string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}
