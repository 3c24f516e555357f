package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			escrowEvent(t, uuid.New(), enums.EventEscrowHeld, 0),
			escrowEvent(t, uuid.New(), enums.EventEscrowHeld, 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: escrowResolved()}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != repo.events[0].AggregateID.String() {
		t.Fatalf("expected ordering key resumed after failure, got %v", pub.resumed)
	}
}

func TestServiceProcessBatchHoldsBackLaterEventsOfFailedAggregate(t *testing.T) {
	escrowID := uuid.New()
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			escrowEvent(t, escrowID, enums.EventEscrowHeld, 0),
			escrowEvent(t, escrowID, enums.EventEscrowReleased, 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: escrowResolved()}, &fakeDLQRepo{}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.published) != 0 {
		t.Fatalf("release must not overtake the failed hold, published %v", repo.published)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected a single publish attempt, got %d", len(pub.messages))
	}
}

func TestPublishSetsOrderingKeyAndReusesPublisher(t *testing.T) {
	first := escrowEvent(t, uuid.New(), enums.EventEscrowHeld, 0)
	second := escrowEvent(t, uuid.New(), enums.EventEscrowHeld, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: escrowResolved()}, &fakeDLQRepo{}, nil)

	calls := 0
	service.factory = func(topic string) publisher {
		calls++
		if topic != "settlement-events" {
			t.Fatalf("unexpected topic %q", topic)
		}
		return pub
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected publisher created once, got %d", calls)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.OrderingKey != first.AggregateID.String() {
		t.Fatalf("ordering key %q, want aggregate id", msg.OrderingKey)
	}
	if msg.Attributes["event_type"] != string(enums.EventEscrowHeld) {
		t.Fatalf("unexpected event_type attribute %q", msg.Attributes["event_type"])
	}
	if !bytes.Equal(msg.Data, first.Payload) {
		t.Fatalf("message data should be the stored envelope")
	}
}

func TestServiceProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := escrowEvent(t, uuid.New(), enums.EventEscrowHeld, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakePublisher{}, reg, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row retired, got %d", len(repo.terminal))
	}
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := escrowEvent(t, uuid.New(), enums.EventEscrowRefunded, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: escrowResolved()}, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	if dlqRepo.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", dlqRepo.entries[0].ErrorReason)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal rows should not also be marked failed")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("expected doubling from base, got %s", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(_ string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func escrowEvent(tb testing.TB, escrowID uuid.UUID, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	tb.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   escrowID,
		Payload:       mustEnvelopePayload(tb, uuid.NewString()),
		AttemptCount:  attempts,
	}
}

func escrowResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "settlement-events",
			AggregateType: enums.AggregateEscrow,
		},
		Envelope: outbox.PayloadEnvelope{OccurredAt: time.Now()},
		Payload:  &payloads.EscrowEvent{},
	}
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func (f *fakePublisher) Resume(orderingKey string) {
	f.resumed = append(f.resumed, orderingKey)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
