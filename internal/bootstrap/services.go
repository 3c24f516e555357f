// Package bootstrap assembles the settlement services shared by the binaries.
package bootstrap

import (
	"fmt"

	"github.com/angelmondragon/settlement-engine/internal/delivery"
	"github.com/angelmondragon/settlement-engine/internal/disputes"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
)

// Params carries the infrastructure a binary has already opened. Provider
// may be nil, in which case payouts stay pending until an admin records the
// outcome.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Provider payouts.Provider
	Metrics  *metrics.SettlementMetrics
}

type Services struct {
	Outbox   *outbox.Service
	Wallet   wallet.Service
	Escrow   escrow.Service
	Payouts  payouts.Service
	Disputes disputes.Service
	Delivery delivery.Service

	WalletRepo wallet.Repository
}

func NewServices(p Params) (*Services, error) {
	if p.Config == nil || p.DB == nil {
		return nil, fmt.Errorf("config and database are required")
	}
	conn := p.DB.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), p.Logger)
	walletRepo := wallet.NewRepository(conn)

	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		Repo:     walletRepo,
		TxRunner: p.DB,
		Logger:   p.Logger,
		Metrics:  p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	escrowSvc, err := escrow.NewService(escrow.ServiceParams{
		Repo:            escrow.NewRepository(conn),
		Wallet:          walletSvc,
		Outbox:          outboxSvc,
		TxRunner:        p.DB,
		FeeRate:         p.Config.Settlement.FeeRate(),
		DefaultCurrency: p.Config.Settlement.Currency,
		Logger:          p.Logger,
		Metrics:         p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}

	payoutSvc, err := payouts.NewService(payouts.ServiceParams{
		Repo:           payouts.NewRepository(conn),
		Wallet:         walletSvc,
		Outbox:         outboxSvc,
		TxRunner:       p.DB,
		Provider:       p.Provider,
		MinPayoutCents: p.Config.Settlement.MinPayoutCents,
		AutoDispatch:   p.Config.FeatureFlags.AutoDispatchPayouts,
		Logger:         p.Logger,
		Metrics:        p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("payout service: %w", err)
	}

	disputeSvc, err := disputes.NewService(disputes.ServiceParams{
		Repo:     disputes.NewRepository(conn),
		Escrow:   escrowSvc,
		Outbox:   outboxSvc,
		TxRunner: p.DB,
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("dispute service: %w", err)
	}

	deliverySvc, err := delivery.NewService(delivery.ServiceParams{
		Repo:     delivery.NewRepository(conn),
		Escrow:   escrowSvc,
		TxRunner: p.DB,
		Logger:   p.Logger,
		Metrics:  p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("delivery service: %w", err)
	}

	return &Services{
		Outbox:     outboxSvc,
		Wallet:     walletSvc,
		Escrow:     escrowSvc,
		Payouts:    payoutSvc,
		Disputes:   disputeSvc,
		Delivery:   deliverySvc,
		WalletRepo: walletRepo,
	}, nil
}
