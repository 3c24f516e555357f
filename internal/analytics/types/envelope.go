package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Envelope is a settlement event as received from the Pub/Sub topic, with the
// routing attributes folded in.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
