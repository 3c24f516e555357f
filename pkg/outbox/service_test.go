package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client, conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	escrowID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "system"}
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventEscrowHeld,
			AggregateType: enums.AggregateEscrow,
			AggregateID:   escrowID,
			Actor:         actor,
			Data:          map[string]any{"amount_cents": 10000},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(nil, escrowID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.True(t, envelope.OccurredAt.Equal(fixed))
	assert.Equal(t, "system", envelope.Actor.Role)
	assert.JSONEq(t, `{"amount_cents":10000}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	client, conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	aggregateID := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregatePayout,
			AggregateID:   aggregateID,
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	rows, err := repo.ListByAggregate(nil, aggregateID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsMissingTxAndUnknownTypes(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	_, conn := dbtest.Open(t)
	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.OutboxEventType("order_created"),
		AggregateType: enums.AggregateEscrow,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestPublishBookkeeping(t *testing.T) {
	_, conn := dbtest.Open(t)
	repo := NewRepository(conn)

	old := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventEscrowReleased,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	exhausted := old
	exhausted.ID = uuid.New()
	exhausted.AttemptCount = 3
	require.NoError(t, repo.Insert(conn, old))
	require.NoError(t, repo.Insert(conn, exhausted))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, old.ID, pending[0].ID)

	require.NoError(t, repo.MarkFailedTx(conn, old.ID, assert.AnError))
	require.NoError(t, repo.MarkPublishedTx(conn, old.ID))
	require.NoError(t, repo.MarkTerminalTx(conn, exhausted.ID, assert.AnError))

	pending, err = repo.FetchUnpublishedForPublish(conn, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", old.ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	assert.NotNil(t, reloaded.PublishedAt)

	deleted, err := repo.DeletePublishedBefore(conn, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}
