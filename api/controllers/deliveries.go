package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/delivery"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

type deliveryHistory interface {
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusEvent, error)
}

type proofHandler interface {
	HandleProofOfDelivery(ctx context.Context, input delivery.ProofInput) (*delivery.Result, error)
}

// OrderDeliveries lists the delivery events recorded for an order. Only
// parties that can see the order's escrow may read them.
func OrderDeliveries(escrows escrowReader, svc deliveryHistory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if escrows == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := loadVisibleEscrow(r, escrows, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.ListHistory(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]deliveryEventResponse, 0, len(events))
		for i := range events {
			items = append(items, toDeliveryEventResponse(&events[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type proofOfDeliveryRequest struct {
	RecipientName string `json:"recipient_name" validate:"required,max=255"`
	PhotoRef      string `json:"photo_ref" validate:"required,max=1024"`
}

type deliveryResultResponse struct {
	Event    deliveryEventResponse `json:"event"`
	Outcome  string                `json:"outcome"`
	Replayed bool                  `json:"replayed"`
}

// VendorProofOfDelivery records a vendor-uploaded proof and releases the
// escrow when it is still held.
func VendorProofOfDelivery(svc proofHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		_, vendorID, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req proofOfDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.HandleProofOfDelivery(r.Context(), delivery.ProofInput{
			OrderID:       orderID,
			RecipientName: validators.SanitizeString(req.RecipientName, 255),
			PhotoRef:      validators.SanitizeString(req.PhotoRef, 1024),
			VendorID:      &vendorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deliveryResultResponse{
			Event:    toDeliveryEventResponse(&result.Event),
			Outcome:  string(result.Outcome),
			Replayed: result.Replayed,
		})
	}
}
