package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/disputes"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type disputeFiler interface {
	FileDispute(ctx context.Context, input disputes.FileInput) (*models.Dispute, error)
}

type disputeReader interface {
	Get(ctx context.Context, disputeID uuid.UUID, viewer types.Actor) (*models.Dispute, error)
}

type fileDisputeRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Reason  string `json:"reason" validate:"required,min=3,max=2000"`
}

// FileDispute freezes the order's escrow until an admin resolves it.
func FileDispute(svc disputeFiler, logg *logger.Logger) http.HandlerFunc {
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
		var req fileDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDField(req.OrderID, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispute, err := svc.FileDispute(r.Context(), disputes.FileInput{
			OrderID: orderID,
			Reason:  validators.SanitizeString(req.Reason, 2000),
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeResponse(dispute))
	}
}

func DisputeDetail(svc disputeReader, logg *logger.Logger) http.HandlerFunc {
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
		dispute, err := svc.Get(r.Context(), disputeID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}
