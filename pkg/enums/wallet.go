package enums

import "fmt"

// WalletEntryType classifies a wallet ledger entry.
type WalletEntryType string

const (
	WalletEntryCredit     WalletEntryType = "credit"
	WalletEntryDebit      WalletEntryType = "debit"
	WalletEntryAdjustment WalletEntryType = "adjustment"
)

var validWalletEntryTypes = []WalletEntryType{
	WalletEntryCredit,
	WalletEntryDebit,
	WalletEntryAdjustment,
}

// String implements fmt.Stringer.
func (w WalletEntryType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletEntryType.
func (w WalletEntryType) IsValid() bool {
	for _, candidate := range validWalletEntryTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletEntryType converts raw input into a WalletEntryType.
func ParseWalletEntryType(value string) (WalletEntryType, error) {
	for _, candidate := range validWalletEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet entry type %q", value)
}

// WalletReferenceType identifies the record a wallet entry settles.
type WalletReferenceType string

const (
	WalletReferenceEscrow WalletReferenceType = "escrow"
	WalletReferencePayout WalletReferenceType = "payout"
	WalletReferenceManual WalletReferenceType = "manual"
)

var validWalletReferenceTypes = []WalletReferenceType{
	WalletReferenceEscrow,
	WalletReferencePayout,
	WalletReferenceManual,
}

// String implements fmt.Stringer.
func (w WalletReferenceType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletReferenceType.
func (w WalletReferenceType) IsValid() bool {
	for _, candidate := range validWalletReferenceTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletReferenceType converts raw input into a WalletReferenceType.
func ParseWalletReferenceType(value string) (WalletReferenceType, error) {
	for _, candidate := range validWalletReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet reference type %q", value)
}

// WalletEntryStatus is the settlement state of a wallet entry.
type WalletEntryStatus string

const (
	WalletEntryStatusPending   WalletEntryStatus = "pending"
	WalletEntryStatusCompleted WalletEntryStatus = "completed"
	WalletEntryStatusFailed    WalletEntryStatus = "failed"
)

var validWalletEntryStatuses = []WalletEntryStatus{
	WalletEntryStatusPending,
	WalletEntryStatusCompleted,
	WalletEntryStatusFailed,
}

// String implements fmt.Stringer.
func (w WalletEntryStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletEntryStatus.
func (w WalletEntryStatus) IsValid() bool {
	for _, candidate := range validWalletEntryStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletEntryStatus converts raw input into a WalletEntryStatus.
func ParseWalletEntryStatus(value string) (WalletEntryStatus, error) {
	for _, candidate := range validWalletEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet entry status %q", value)
}
