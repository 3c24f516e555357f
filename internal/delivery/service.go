// Package delivery turns courier and proof-of-delivery updates into escrow
// releases. A delivered status is the only automatic path to release.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// ReleaseReason is recorded on escrows released by a delivery confirmation.
const ReleaseReason = "delivery confirmed"

// ProofDeliveryPrefix prefixes the synthetic delivery id used for vendor proof uploads.
const ProofDeliveryPrefix = "proof:"

type Service interface {
	HandleStatus(ctx context.Context, event StatusEvent) (*Result, error)
	HandleProofOfDelivery(ctx context.Context, input ProofInput) (*Result, error)
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusEvent, error)
}

type escrowReleaser interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatusEvent is one courier status update.
type StatusEvent struct {
	DeliveryID    string
	OrderID       uuid.UUID
	Status        enums.DeliveryStatus
	OccurredAt    time.Time
	Source        enums.DeliverySource
	RecipientName string
	PhotoRef      string
}

// ProofInput is a vendor-uploaded proof of delivery. VendorID, when set, must
// own the order's escrow.
type ProofInput struct {
	OrderID       uuid.UUID
	RecipientName string
	PhotoRef      string
	VendorID      *uuid.UUID
}

// Result reports what the trigger did. Replayed results carry the outcome
// recorded the first time the event was seen.
type Result struct {
	Event    models.DeliveryStatusEvent `json:"event"`
	Outcome  enums.DeliveryOutcome      `json:"outcome"`
	Replayed bool                       `json:"replayed"`
}

type ServiceParams struct {
	Repo     Repository
	Escrow   escrowReleaser
	TxRunner txRunner
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
}

type service struct {
	repo     Repository
	escrow   escrowReleaser
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
	now      func() time.Time
}

var errReplayRace = errors.New("delivery event recorded concurrently")

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		escrow:   params.Escrow,
		txRunner: params.TxRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

func (s *service) HandleStatus(ctx context.Context, event StatusEvent) (*Result, error) {
	event.DeliveryID = strings.TrimSpace(event.DeliveryID)
	if event.DeliveryID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	if event.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	status, err := enums.ParseDeliveryStatus(string(event.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status")
	}
	event.Status = status
	if event.Source == "" {
		event.Source = enums.DeliverySourceCourierWebhook
	}
	if !event.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown delivery source %q", event.Source))
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	ctx = context.WithoutCancel(ctx)
	if replay, err := s.replay(ctx, event); replay != nil || err != nil {
		return replay, err
	}

	record := models.DeliveryStatusEvent{
		ID:            uuid.New(),
		DeliveryID:    event.DeliveryID,
		OrderID:       event.OrderID,
		Status:        event.Status,
		Source:        event.Source,
		Outcome:       enums.DeliveryOutcomeRecorded,
		RecipientName: optional(event.RecipientName),
		PhotoRef:      optional(event.PhotoRef),
		OccurredAt:    event.OccurredAt.UTC(),
	}

	var escrowID uuid.UUID
	if event.Status == enums.DeliveryStatusDelivered {
		escrow, err := s.escrow.Get(ctx, event.OrderID)
		switch {
		case err == nil:
			escrowID = escrow.ID
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			s.logSkip(ctx, event.OrderID, uuid.Nil, "no escrow for delivered order")
			record.Outcome = enums.DeliveryOutcomeSkipped
		default:
			return nil, err
		}
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if escrowID != uuid.Nil {
			outcome, err := s.release(ctx, tx, event.OrderID, escrowID)
			if err != nil {
				return err
			}
			record.Outcome = outcome
		}
		if err := s.repo.WithTx(tx).Insert(ctx, &record); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errReplayRace
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery event")
		}
		return nil
	})
	if errors.Is(err, errReplayRace) {
		replay, replayErr := s.replay(ctx, event)
		if replayErr != nil {
			return nil, replayErr
		}
		if replay == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConcurrency, "delivery event raced, retry")
		}
		return replay, nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.DeliveryEvent(string(record.Outcome))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"delivery_id": record.DeliveryID,
			"order_id":    record.OrderID.String(),
			"status":      record.Status,
			"source":      record.Source,
			"outcome":     record.Outcome,
		})
		s.logg.Info(logCtx, "delivery status recorded")
	}
	return &Result{Event: record, Outcome: record.Outcome}, nil
}

// release moves the escrow to released inside tx. Disputed, refunded or
// already released escrows are skipped: delivery never overrides a dispute.
func (s *service) release(ctx context.Context, tx *gorm.DB, orderID, escrowID uuid.UUID) (enums.DeliveryOutcome, error) {
	_, err := s.escrow.ReleaseTx(ctx, tx, escrowID, ReleaseReason, types.SystemActor())
	switch {
	case err == nil:
		return enums.DeliveryOutcomeReleased, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyReleased), pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
		s.logSkip(ctx, orderID, escrowID, "delivery confirmation skipped: "+err.Error())
		return enums.DeliveryOutcomeSkipped, nil
	default:
		return "", err
	}
}

func (s *service) replay(ctx context.Context, event StatusEvent) (*Result, error) {
	existing, err := s.repo.FindByReplayKey(ctx, event.DeliveryID, event.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check delivery replay")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"delivery_id": existing.DeliveryID,
			"status":      existing.Status,
			"outcome":     existing.Outcome,
		})
		s.logg.Info(logCtx, "delivery event replayed")
	}
	return &Result{Event: *existing, Outcome: existing.Outcome, Replayed: true}, nil
}

func (s *service) HandleProofOfDelivery(ctx context.Context, input ProofInput) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if strings.TrimSpace(input.RecipientName) == "" || strings.TrimSpace(input.PhotoRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient name and photo are required")
	}
	if input.VendorID != nil {
		escrow, err := s.escrow.Get(ctx, input.OrderID)
		if err != nil {
			return nil, err
		}
		if escrow.VendorID != *input.VendorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")
		}
	}
	return s.HandleStatus(ctx, StatusEvent{
		DeliveryID:    ProofDeliveryPrefix + input.OrderID.String(),
		OrderID:       input.OrderID,
		Status:        enums.DeliveryStatusDelivered,
		Source:        enums.DeliverySourceManualProofUpload,
		OccurredAt:    s.now(),
		RecipientName: strings.TrimSpace(input.RecipientName),
		PhotoRef:      strings.TrimSpace(input.PhotoRef),
	})
}

func (s *service) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusEvent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	events, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery history")
	}
	if events == nil {
		events = []models.DeliveryStatusEvent{}
	}
	return events, nil
}

func (s *service) logSkip(ctx context.Context, orderID, escrowID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{"order_id": orderID.String()}
	if escrowID != uuid.Nil {
		fields["escrow_id"] = escrowID.String()
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
