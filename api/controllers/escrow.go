package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type escrowReader interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
}

type holdCreator interface {
	CreateHold(ctx context.Context, input escrow.HoldInput) (*models.EscrowTransaction, error)
}

// canViewEscrow limits escrow visibility to the order's parties and admins.
// Outsiders get NotFound so order ids cannot be enumerated.
func canViewEscrow(actor types.Actor, e *models.EscrowTransaction) bool {
	switch {
	case actor.IsAdmin(), actor.IsSystem():
		return true
	case actor.ActsFor(e.VendorID):
		return true
	default:
		return actor.ID == e.BuyerID
	}
}

func loadVisibleEscrow(r *http.Request, svc escrowReader, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	actor, err := requireActor(r)
	if err != nil {
		return nil, err
	}
	record, err := svc.Get(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if !canViewEscrow(actor, record) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
	}
	return record, nil
}

// EscrowByOrder returns the escrow hold for an order.
func EscrowByOrder(svc escrowReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := loadVisibleEscrow(r, svc, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toEscrowResponse(record))
	}
}

type createHoldRequest struct {
	OrderID          string `json:"order_id" validate:"required"`
	BuyerID          string `json:"buyer_id" validate:"required"`
	VendorID         string `json:"vendor_id" validate:"required"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency" validate:"required,len=3"`
	PaymentReference string `json:"payment_reference" validate:"max=255"`
}

func (req createHoldRequest) toInput(actor types.Actor) (escrow.HoldInput, error) {
	orderID, err := parseUUIDField(req.OrderID, "order_id")
	if err != nil {
		return escrow.HoldInput{}, err
	}
	buyerID, err := parseUUIDField(req.BuyerID, "buyer_id")
	if err != nil {
		return escrow.HoldInput{}, err
	}
	vendorID, err := parseUUIDField(req.VendorID, "vendor_id")
	if err != nil {
		return escrow.HoldInput{}, err
	}
	return escrow.HoldInput{
		OrderID:          orderID,
		BuyerID:          buyerID,
		VendorID:         vendorID,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		PaymentReference: validators.SanitizeString(req.PaymentReference, 255),
		Actor:            actor,
	}, nil
}

// InternalCreateHold lets the payment service open a hold synchronously
// instead of over Pub/Sub.
func InternalCreateHold(svc holdCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createHoldRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.CreateHold(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toEscrowResponse(record))
	}
}
