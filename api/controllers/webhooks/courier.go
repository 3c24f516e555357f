package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/internal/delivery"
	courierwebhook "github.com/angelmondragon/settlement-engine/internal/webhooks/courier"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

const maxCourierPayload = 64 << 10

type CourierWebhookService interface {
	Verify(payload []byte, signature string) bool
	HandleEvent(ctx context.Context, event *courierwebhook.Event) (*delivery.Result, error)
}

// CourierWebhook verifies the courier's HMAC signature, drops redelivered
// callbacks and hands the status to the delivery trigger.
func CourierWebhook(svc CourierWebhookService, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCourierPayload))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}
		if !svc.Verify(payload, r.Header.Get(courierwebhook.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid courier signature"))
			return
		}

		event, err := courierwebhook.Decode(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		key := event.GuardKey()
		alreadyProcessed, err := guard.CheckAndMark(ctx, key)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, map[string]any{"duplicate": true})
			return
		}

		result, err := svc.HandleEvent(ctx, event)
		if err != nil {
			_ = guard.Delete(ctx, key)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"courier_event_key": key,
				"order_id":          event.OrderID,
				"outcome":           string(result.Outcome),
			})
			logg.Info(logCtx, "courier event processed")
		}
		responses.WriteSuccess(w, map[string]any{
			"outcome":  result.Outcome,
			"replayed": result.Replayed,
		})
	}
}
