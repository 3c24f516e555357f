package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type deliveryFixture struct {
	conn   *gorm.DB
	svc    Service
	escrow escrow.Service
	wallet wallet.Service
	vendor models.Vendor
}

func newDeliveryFixture(t *testing.T) deliveryFixture {
	t.Helper()
	client, conn := dbtest.Open(t)
	walletSvc, err := wallet.NewService(wallet.ServiceParams{Repo: wallet.NewRepository(conn), TxRunner: client})
	require.NoError(t, err)
	escrowSvc, err := escrow.NewService(escrow.ServiceParams{
		Repo:     escrow.NewRepository(conn),
		Wallet:   walletSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		TxRunner: client,
		FeeRate:  decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Escrow: escrowSvc, TxRunner: client})
	require.NoError(t, err)
	return deliveryFixture{
		conn:   conn,
		svc:    svc,
		escrow: escrowSvc,
		wallet: walletSvc,
		vendor: dbtest.SeedVendor(t, conn, "NGN"),
	}
}

func (f deliveryFixture) hold(t *testing.T, amount int64) *models.EscrowTransaction {
	t.Helper()
	held, err := f.escrow.CreateHold(context.Background(), escrow.HoldInput{
		OrderID:     uuid.New(),
		BuyerID:     uuid.New(),
		VendorID:    f.vendor.ID,
		AmountCents: amount,
		Actor:       types.SystemActor(),
	})
	require.NoError(t, err)
	return held
}

func (f deliveryFixture) balance(t *testing.T) int64 {
	t.Helper()
	view, err := f.wallet.Balance(context.Background(), f.vendor.ID)
	require.NoError(t, err)
	return view.BalanceCents
}

func TestDeliveredStatusReleasesEscrow(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	held := f.hold(t, 1_000_000)

	transit, err := f.svc.HandleStatus(ctx, StatusEvent{DeliveryID: "dlv-1", OrderID: held.OrderID, Status: enums.DeliveryStatusInTransit})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeRecorded, transit.Outcome)
	assert.Zero(t, f.balance(t))

	result, err := f.svc.HandleStatus(ctx, StatusEvent{
		DeliveryID: "dlv-1",
		OrderID:    held.OrderID,
		Status:     enums.DeliveryStatusDelivered,
		OccurredAt: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeReleased, result.Outcome)
	assert.False(t, result.Replayed)
	assert.Equal(t, enums.DeliverySourceCourierWebhook, result.Event.Source)
	assert.Equal(t, int64(950_000), f.balance(t))

	stored, err := f.escrow.Get(ctx, held.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusReleased, stored.Status)
	require.NotNil(t, stored.ReleaseReason)
	assert.Equal(t, ReleaseReason, *stored.ReleaseReason)

	history, err := f.svc.ListHistory(ctx, held.OrderID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, enums.DeliveryStatusInTransit, history[0].Status)
	assert.Equal(t, enums.DeliveryStatusDelivered, history[1].Status)
}

func TestReplayedDeliveryReturnsOriginalOutcome(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	held := f.hold(t, 1_000_000)
	event := StatusEvent{DeliveryID: "dlv-replay", OrderID: held.OrderID, Status: enums.DeliveryStatusDelivered}

	first, err := f.svc.HandleStatus(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeReleased, first.Outcome)

	second, err := f.svc.HandleStatus(ctx, event)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, enums.DeliveryOutcomeReleased, second.Outcome)
	assert.Equal(t, first.Event.ID, second.Event.ID)

	var entries int64
	require.NoError(t, f.conn.Model(&models.WalletTransaction{}).Where("vendor_id = ?", f.vendor.ID).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
	assert.Equal(t, int64(950_000), f.balance(t))
}

func TestDeliveredOnDisputedEscrowIsSkipped(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	held := f.hold(t, 1_000_000)

	_, err := f.escrow.MarkDisputed(ctx, held.ID, "wrong item", types.Actor{ID: held.BuyerID, Role: enums.ActorRoleBuyer})
	require.NoError(t, err)

	result, err := f.svc.HandleStatus(ctx, StatusEvent{DeliveryID: "dlv-2", OrderID: held.OrderID, Status: enums.DeliveryStatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeSkipped, result.Outcome)
	assert.Zero(t, f.balance(t))

	stored, err := f.escrow.Get(ctx, held.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusDisputed, stored.Status)
}

func TestDeliveredWithoutEscrowIsRecordedAsSkipped(t *testing.T) {
	f := newDeliveryFixture(t)
	result, err := f.svc.HandleStatus(context.Background(), StatusEvent{DeliveryID: "dlv-3", OrderID: uuid.New(), Status: enums.DeliveryStatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeSkipped, result.Outcome)
}

func TestHandleStatusValidatesInput(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	_, err := f.svc.HandleStatus(ctx, StatusEvent{OrderID: uuid.New(), Status: enums.DeliveryStatusDelivered})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.HandleStatus(ctx, StatusEvent{DeliveryID: "x", Status: enums.DeliveryStatusDelivered})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.HandleStatus(ctx, StatusEvent{DeliveryID: "x", OrderID: uuid.New(), Status: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUnlistedStatusIsRecordedAsHistoryOnly(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	held := f.hold(t, 1_000_000)

	result, err := f.svc.HandleStatus(ctx, StatusEvent{DeliveryID: "dlv-hub", OrderID: held.OrderID, Status: "At_Pickup_Hub"})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeRecorded, result.Outcome)
	assert.Equal(t, enums.DeliveryStatus("at_pickup_hub"), result.Event.Status)
	assert.Zero(t, f.balance(t))

	stored, err := f.escrow.Get(ctx, held.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusHeld, stored.Status)

	history, err := f.svc.ListHistory(ctx, held.OrderID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.DeliveryStatus("at_pickup_hub"), history[0].Status)
}

func TestProofOfDeliveryReleasesForOwningVendor(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()
	held := f.hold(t, 20_000)

	other := uuid.New()
	_, err := f.svc.HandleProofOfDelivery(ctx, ProofInput{OrderID: held.OrderID, RecipientName: "Ada", PhotoRef: "gs://proofs/1.jpg", VendorID: &other})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.HandleProofOfDelivery(ctx, ProofInput{OrderID: held.OrderID, PhotoRef: "gs://proofs/1.jpg"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	vendorID := f.vendor.ID
	result, err := f.svc.HandleProofOfDelivery(ctx, ProofInput{OrderID: held.OrderID, RecipientName: "Ada", PhotoRef: "gs://proofs/1.jpg", VendorID: &vendorID})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryOutcomeReleased, result.Outcome)
	assert.Equal(t, enums.DeliverySourceManualProofUpload, result.Event.Source)
	assert.Equal(t, ProofDeliveryPrefix+held.OrderID.String(), result.Event.DeliveryID)
	require.NotNil(t, result.Event.RecipientName)
	assert.Equal(t, "Ada", *result.Event.RecipientName)
	assert.Equal(t, int64(19_000), f.balance(t))
}
