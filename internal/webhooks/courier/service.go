// Package courierwebhook verifies and decodes courier delivery callbacks.
package courierwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/delivery"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Courier-Signature"

// Event is the courier's callback body. EventID is optional.
type Event struct {
	EventID       string    `json:"eventId"`
	DeliveryID    string    `json:"deliveryId"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
	RecipientName string    `json:"recipientName,omitempty"`
	PhotoRef      string    `json:"photoRef,omitempty"`
}

type statusHandler interface {
	HandleStatus(ctx context.Context, event delivery.StatusEvent) (*delivery.Result, error)
}

type Service struct {
	delivery statusHandler
	secret   []byte
}

func NewService(handler statusHandler, secret string) (*Service, error) {
	if handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "delivery service required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook secret required")
	}
	return &Service{delivery: handler, secret: []byte(secret)}, nil
}

// Sign returns the signature the courier is expected to send for payload.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature header against the raw body. A "sha256="
// prefix is accepted.
func (s *Service) Verify(payload []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(s.secret, payload))
	return hmac.Equal(got, want)
}

// Decode parses and validates a verified body.
func Decode(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid courier payload")
	}
	event.DeliveryID = strings.TrimSpace(event.DeliveryID)
	if event.DeliveryID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deliveryId is required")
	}
	status, err := enums.ParseDeliveryStatus(event.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid courier status")
	}
	event.Status = string(status)
	return &event, nil
}

// GuardKey identifies the callback for redelivery checks. Couriers that send
// no event id are keyed like the stored history, by delivery id and status.
func (e *Event) GuardKey() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return e.DeliveryID + ":" + strings.ToLower(strings.TrimSpace(e.Status))
}

// HandleEvent hands a decoded event to the delivery trigger.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (*delivery.Result, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(event.OrderID))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId must be a uuid")
	}
	status, err := enums.ParseDeliveryStatus(event.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid courier status")
	}
	return s.delivery.HandleStatus(ctx, delivery.StatusEvent{
		DeliveryID:    event.DeliveryID,
		OrderID:       orderID,
		Status:        status,
		OccurredAt:    event.OccurredAt,
		Source:        enums.DeliverySourceCourierWebhook,
		RecipientName: event.RecipientName,
		PhotoRef:      event.PhotoRef,
	})
}
