package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

type vendorLister interface {
	ListVendorIDs(ctx context.Context) ([]uuid.UUID, error)
}

type chainVerifier interface {
	VerifyChain(ctx context.Context, vendorID uuid.UUID) (*wallet.Reconciliation, error)
}

type WalletReconcileJobParams struct {
	Logger  *logger.Logger
	Vendors vendorLister
	Wallet  chainVerifier
}

// NewWalletReconcileJob replays every vendor ledger against the cached wallet
// columns. Mismatches are counted by the wallet service; the job fails when any
// wallet is inconsistent so the cron failure counter pages someone.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendor lister required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	return &walletReconcileJob{logg: params.Logger, vendors: params.Vendors, wallet: params.Wallet}, nil
}

type walletReconcileJob struct {
	logg    *logger.Logger
	vendors vendorLister
	wallet  chainVerifier
}

func (j *walletReconcileJob) Name() string { return "wallet-reconciliation" }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	ids, err := j.vendors.ListVendorIDs(ctx)
	if err != nil {
		return fmt.Errorf("list vendors: %w", err)
	}

	var errs error
	inconsistent := 0
	for _, id := range ids {
		report, err := j.wallet.VerifyChain(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", id, err))
			continue
		}
		if !report.Consistent {
			inconsistent++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"vendors":      len(ids),
		"inconsistent": inconsistent,
	})
	j.logg.Info(logCtx, "wallet reconciliation complete")

	if inconsistent > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d wallet(s) failed reconciliation", inconsistent))
	}
	return errs
}
