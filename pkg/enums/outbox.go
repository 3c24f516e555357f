package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateEscrow  OutboxAggregateType = "escrow"
	AggregatePayout  OutboxAggregateType = "payout"
	AggregateDispute OutboxAggregateType = "dispute"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	AggregateEscrow,
	AggregatePayout,
	AggregateDispute,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validOutboxAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventEscrowHeld      OutboxEventType = "escrow_held"
	EventEscrowReleased  OutboxEventType = "escrow_released"
	EventEscrowRefunded  OutboxEventType = "escrow_refunded"
	EventEscrowDisputed  OutboxEventType = "escrow_disputed"
	EventPayoutRequested OutboxEventType = "payout_requested"
	EventPayoutCompleted OutboxEventType = "payout_completed"
	EventPayoutFailed    OutboxEventType = "payout_failed"
	EventDisputeFiled    OutboxEventType = "dispute_filed"
	EventDisputeResolved OutboxEventType = "dispute_resolved"
)

var validOutboxEventTypes = []OutboxEventType{
	EventEscrowHeld,
	EventEscrowReleased,
	EventEscrowRefunded,
	EventEscrowDisputed,
	EventPayoutRequested,
	EventPayoutCompleted,
	EventPayoutFailed,
	EventDisputeFiled,
	EventDisputeResolved,
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
