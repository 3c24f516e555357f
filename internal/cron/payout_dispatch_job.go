package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

const (
	defaultDispatchAge   = 5 * time.Minute
	defaultDispatchBatch = 100
)

type payoutDispatcher interface {
	DispatchPending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type PayoutDispatchJobParams struct {
	Logger    *logger.Logger
	Payouts   payoutDispatcher
	Age       time.Duration
	BatchSize int
}

// NewPayoutDispatchJob resubmits payouts that stayed pending past the grace
// period, usually because the provider was down when they were requested.
func NewPayoutDispatchJob(params PayoutDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	age := params.Age
	if age <= 0 {
		age = defaultDispatchAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDispatchBatch
	}
	return &payoutDispatchJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		age:     age,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type payoutDispatchJob struct {
	logg    *logger.Logger
	payouts payoutDispatcher
	age     time.Duration
	batch   int
	now     func() time.Time
}

func (j *payoutDispatchJob) Name() string { return "payout-dispatch" }

func (j *payoutDispatchJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	dispatched, err := j.payouts.DispatchPending(ctx, cutoff, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"dispatched": dispatched,
	})
	if err != nil {
		return fmt.Errorf("dispatch pending payouts: %w", err)
	}
	if dispatched > 0 {
		j.logg.Info(logCtx, "pending payouts resubmitted")
	}
	return nil
}
