package disputes

import (
	"context"
	"testing"

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

type disputeFixture struct {
	conn   *gorm.DB
	svc    Service
	escrow escrow.Service
	wallet wallet.Service
	vendor models.Vendor
}

func newDisputeFixture(t *testing.T) disputeFixture {
	t.Helper()
	client, conn := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	walletSvc, err := wallet.NewService(wallet.ServiceParams{Repo: wallet.NewRepository(conn), TxRunner: client})
	require.NoError(t, err)
	escrowSvc, err := escrow.NewService(escrow.ServiceParams{
		Repo:     escrow.NewRepository(conn),
		Wallet:   walletSvc,
		Outbox:   emitter,
		TxRunner: client,
		FeeRate:  decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Escrow: escrowSvc, Outbox: emitter, TxRunner: client})
	require.NoError(t, err)
	return disputeFixture{conn: conn, svc: svc, escrow: escrowSvc, wallet: walletSvc, vendor: dbtest.SeedVendor(t, conn, "NGN")}
}

func (f disputeFixture) hold(t *testing.T, amount int64) *models.EscrowTransaction {
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

func buyer(held *models.EscrowTransaction) types.Actor {
	return types.Actor{ID: held.BuyerID, Role: enums.ActorRoleBuyer}
}

func admin() types.Actor {
	return types.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
}

func TestFileDisputeFreezesEscrow(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	held := f.hold(t, 50_000)

	dispute, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "wrong size", Actor: buyer(held)})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, enums.DisputePartyBuyer, dispute.FiledByType)
	assert.Equal(t, held.ID, dispute.EscrowID)

	stored, err := f.escrow.GetByID(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusDisputed, stored.Status)

	_, err = f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "still wrong", Actor: buyer(held)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	list, err := f.svc.ListByOrder(ctx, held.OrderID, buyer(held))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFileDisputeChecksParty(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	held := f.hold(t, 50_000)

	stranger := types.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer}
	_, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "x", Actor: stranger})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	otherVendor := uuid.New()
	_, err = f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "x", Actor: types.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor, VendorID: &otherVendor}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "x", Actor: types.SystemActor()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: " ", Actor: buyer(held)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	vendorID := f.vendor.ID
	dispute, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "buyer unreachable", Actor: types.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor, VendorID: &vendorID}})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputePartyVendor, dispute.FiledByType)
}

func TestResolveReleaseCreditsVendor(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	held := f.hold(t, 50_000)
	dispute, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "not received", Actor: buyer(held)})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Outcome: enums.DisputeOutcomeRelease, Resolution: "tracking shows delivered", Actor: buyer(held)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	decider := admin()
	resolved, err := f.svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Outcome: enums.DisputeOutcomeRelease, Resolution: "tracking shows delivered", Actor: decider})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Outcome)
	assert.Equal(t, enums.DisputeOutcomeRelease, *resolved.Outcome)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, decider.ID, *resolved.ResolvedBy)

	stored, err := f.svc.Get(ctx, dispute.ID, buyer(held))
	require.NoError(t, err)
	require.NotNil(t, stored.Resolution)
	assert.Equal(t, "tracking shows delivered", *stored.Resolution)

	view, err := f.wallet.Balance(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(47_500), view.BalanceCents)

	_, err = f.svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Outcome: enums.DisputeOutcomeRefund, Resolution: "changed mind", Actor: decider})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestResolveRefundLeavesWalletUntouched(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	held := f.hold(t, 50_000)
	dispute, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "damaged", Actor: buyer(held)})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Outcome: enums.DisputeOutcomeRefund, Resolution: "photos confirm damage", Actor: admin()})
	require.NoError(t, err)

	stored, err := f.escrow.GetByID(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusRefunded, stored.Status)

	view, err := f.wallet.Balance(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Zero(t, view.BalanceCents)

	events, err := outbox.NewRepository(f.conn).ListByAggregate(nil, dispute.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enums.EventDisputeFiled, events[0].EventType)
	assert.Equal(t, enums.EventDisputeResolved, events[1].EventType)
}

func TestGetHidesDisputesFromOutsiders(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	held := f.hold(t, 50_000)
	dispute, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "late", Actor: buyer(held)})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, dispute.ID, types.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, uuid.New(), admin())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := f.svc.Get(ctx, dispute.ID, admin())
	require.NoError(t, err)
	assert.Equal(t, dispute.ID, got.ID)
}

func TestForceRefundClosesOpenDispute(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	held := f.hold(t, 50_000)

	dispute, err := f.svc.FileDispute(ctx, FileInput{OrderID: held.OrderID, Reason: "never arrived", Actor: buyer(held)})
	require.NoError(t, err)

	operator := admin()
	refunded, err := f.escrow.ForceRefund(ctx, held.ID, "courier confirmed loss", operator)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusRefunded, refunded.Status)

	closed, err := f.svc.Get(ctx, dispute.ID, operator)
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, closed.Status)
	require.NotNil(t, closed.Outcome)
	assert.Equal(t, enums.DisputeOutcomeRefund, *closed.Outcome)
	require.NotNil(t, closed.Resolution)
	assert.Equal(t, "courier confirmed loss", *closed.Resolution)
	require.NotNil(t, closed.ResolvedBy)
	assert.Equal(t, operator.ID, *closed.ResolvedBy)
	assert.NotNil(t, closed.ResolvedAt)

	_, err = f.svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Outcome: enums.DisputeOutcomeRelease, Resolution: "late", Actor: admin()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ? AND event_type = ?", dispute.ID, enums.EventDisputeResolved).Find(&events).Error)
	assert.Len(t, events, 1)

	var open int64
	require.NoError(t, f.conn.Model(&models.Dispute{}).Where("escrow_id = ? AND status = ?", held.ID, enums.DisputeStatusOpen).Count(&open).Error)
	assert.Zero(t, open)
}
