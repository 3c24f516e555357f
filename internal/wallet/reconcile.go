package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

const (
	MismatchSequenceGap   = "sequence_gap"
	MismatchBalanceChain  = "balance_chain"
	MismatchCachedBalance = "cached_balance"
	MismatchCachedSeq     = "cached_sequence"
	MismatchCompletedSum  = "completed_sum"
)

// Mismatch describes one broken reconciliation rule.
type Mismatch struct {
	Kind     string `json:"kind"`
	Sequence int64  `json:"sequence,omitempty"`
	Detail   string `json:"detail"`
}

// Reconciliation is the result of replaying a vendor's ledger against the
// cached wallet columns.
type Reconciliation struct {
	VendorID           uuid.UUID  `json:"vendor_id"`
	Entries            int        `json:"entries"`
	CachedBalanceCents int64      `json:"cached_balance_cents"`
	LedgerBalanceCents int64      `json:"ledger_balance_cents"`
	CompletedSumCents  int64      `json:"completed_sum_cents"`
	Consistent         bool       `json:"consistent"`
	Mismatches         []Mismatch `json:"mismatches"`
}

// VerifyChain walks the vendor's entries in sequence order and checks that
// each balance_after equals the previous one plus the entry amount.
func (s *service) VerifyChain(ctx context.Context, vendorID uuid.UUID) (*Reconciliation, error) {
	vendor, err := s.findVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAllEntries(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet entries")
	}

	report := &Reconciliation{
		VendorID:           vendorID,
		Entries:            len(entries),
		CachedBalanceCents: vendor.WalletBalanceCents,
		Mismatches:         []Mismatch{},
	}

	var running int64
	var expectedSeq int64 = 1
	for _, entry := range entries {
		if entry.Sequence != expectedSeq {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Kind:     MismatchSequenceGap,
				Sequence: entry.Sequence,
				Detail:   fmt.Sprintf("expected sequence %d", expectedSeq),
			})
		}
		expectedSeq = entry.Sequence + 1

		if entry.BalanceAfterCents != running+entry.AmountCents {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Kind:     MismatchBalanceChain,
				Sequence: entry.Sequence,
				Detail:   fmt.Sprintf("balance_after %d, expected %d", entry.BalanceAfterCents, running+entry.AmountCents),
			})
		}
		running = entry.BalanceAfterCents

		if entry.Status == enums.WalletEntryStatusCompleted {
			report.CompletedSumCents += entry.AmountCents
		}
	}
	report.LedgerBalanceCents = running

	if vendor.WalletBalanceCents != running {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Kind:   MismatchCachedBalance,
			Detail: fmt.Sprintf("cached %d, ledger %d", vendor.WalletBalanceCents, running),
		})
	}
	if len(entries) > 0 && vendor.WalletSequence != entries[len(entries)-1].Sequence {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Kind:   MismatchCachedSeq,
			Detail: fmt.Sprintf("cached %d, ledger %d", vendor.WalletSequence, entries[len(entries)-1].Sequence),
		})
	}
	if report.CompletedSumCents != vendor.WalletBalanceCents {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Kind:   MismatchCompletedSum,
			Detail: fmt.Sprintf("completed entries sum to %d, cached %d", report.CompletedSumCents, vendor.WalletBalanceCents),
		})
	}

	report.Consistent = len(report.Mismatches) == 0
	for _, m := range report.Mismatches {
		s.metrics.ReconciliationMismatch(m.Kind)
	}
	if !report.Consistent && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"vendor_id":  vendorID.String(),
			"mismatches": len(report.Mismatches),
		})
		s.logg.Warn(logCtx, "wallet ledger failed reconciliation")
	}
	return report, nil
}
