package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	cutoff time.Time
	limit  int
	count  int
	err    error
}

func (f *fakeDispatcher) DispatchPending(_ context.Context, olderThan time.Time, limit int) (int, error) {
	f.cutoff = olderThan
	f.limit = limit
	return f.count, f.err
}

func TestPayoutDispatchJobPassesGracePeriod(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	dispatcher := &fakeDispatcher{count: 3}
	jobIface, err := NewPayoutDispatchJob(PayoutDispatchJobParams{
		Logger:  testLogger(),
		Payouts: dispatcher,
		Age:     10 * time.Minute,
	})
	require.NoError(t, err)
	job := jobIface.(*payoutDispatchJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-10*time.Minute), dispatcher.cutoff)
	assert.Equal(t, defaultDispatchBatch, dispatcher.limit)
	assert.Equal(t, "payout-dispatch", job.Name())
}

func TestPayoutDispatchJobReportsFailures(t *testing.T) {
	dispatcher := &fakeDispatcher{count: 1, err: errors.New("provider unavailable")}
	job, err := NewPayoutDispatchJob(PayoutDispatchJobParams{Logger: testLogger(), Payouts: dispatcher})
	require.NoError(t, err)
	assert.ErrorContains(t, job.Run(context.Background()), "provider unavailable")
}

func TestPayoutDispatchJobRequiresDeps(t *testing.T) {
	_, err := NewPayoutDispatchJob(PayoutDispatchJobParams{Logger: testLogger()})
	assert.Error(t, err)
	_, err = NewPayoutDispatchJob(PayoutDispatchJobParams{Payouts: &fakeDispatcher{}})
	assert.Error(t, err)
}
