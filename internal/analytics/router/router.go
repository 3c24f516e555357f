package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/settlement-engine/internal/analytics/types"
	"github.com/angelmondragon/settlement-engine/internal/analytics/writer"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
)

var ErrUnsupportedAggregate = errors.New("unsupported analytics aggregate")

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertSettlement(ctx context.Context, row types.SettlementEventRow) error
}

type rowBuilder func(row *types.SettlementEventRow, payload json.RawMessage) error

// Router turns settlement envelopes into settlement_events rows, decoding the
// payload by aggregate type.
type Router struct {
	writer   Writer
	builders map[enums.OutboxAggregateType]rowBuilder
	logg     *logger.Logger
}

func NewRouter(w Writer, logg *logger.Logger) (*Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		writer: w,
		builders: map[enums.OutboxAggregateType]rowBuilder{
			enums.AggregateEscrow:  escrowRow,
			enums.AggregatePayout:  payoutRow,
			enums.AggregateDispute: disputeRow,
		},
		logg: logg,
	}, nil
}

// Handle writes one row for the envelope.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	build, ok := r.builders[envelope.AggregateType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAggregate, envelope.AggregateType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}

	payloadJSON, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return err
	}
	row := types.SettlementEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt,
		Payload:       payloadJSON,
	}
	if err := build(&row, envelope.Payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	if err := r.writer.InsertSettlement(ctx, row); err != nil {
		return err
	}
	r.logg.Debug(ctx, "settlement row written")
	return nil
}

func escrowRow(row *types.SettlementEventRow, payload json.RawMessage) error {
	var event payloads.EscrowEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	row.EscrowID = uuidPtr(event.EscrowID.String())
	row.OrderID = uuidPtr(event.OrderID.String())
	row.BuyerID = uuidPtr(event.BuyerID.String())
	row.VendorID = uuidPtr(event.VendorID.String())
	row.Status = stringPtr(string(event.Status))
	row.AmountCents = int64Ptr(event.AmountCents)
	row.PlatformFeeCents = int64Ptr(event.PlatformFeeCents)
	row.VendorAmountCents = int64Ptr(event.VendorAmountCents)
	row.Currency = stringPtr(event.Currency)
	row.Reason = stringPtr(event.Reason)
	return nil
}

func payoutRow(row *types.SettlementEventRow, payload json.RawMessage) error {
	var event payloads.PayoutEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	row.PayoutID = uuidPtr(event.PayoutID.String())
	row.VendorID = uuidPtr(event.VendorID.String())
	row.Status = stringPtr(string(event.Status))
	row.AmountCents = int64Ptr(event.AmountCents)
	row.Currency = stringPtr(event.Currency)
	row.Reason = stringPtr(event.FailureReason)
	return nil
}

func disputeRow(row *types.SettlementEventRow, payload json.RawMessage) error {
	var event payloads.DisputeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	row.DisputeID = uuidPtr(event.DisputeID.String())
	row.EscrowID = uuidPtr(event.EscrowID.String())
	row.OrderID = uuidPtr(event.OrderID.String())
	row.Status = stringPtr(string(event.Status))
	if event.Outcome != nil {
		row.Status = stringPtr(string(event.Status) + ":" + string(*event.Outcome))
	}
	row.Reason = stringPtr(event.Reason)
	return nil
}
