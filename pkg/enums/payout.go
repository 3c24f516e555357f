package enums

import "fmt"

// PayoutStatus tracks a vendor withdrawal through the provider.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusCompleted,
	PayoutStatusFailed,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

// IsTerminal reports whether the payout has reached a final provider outcome.
func (p PayoutStatus) IsTerminal() bool {
	return p == PayoutStatusCompleted || p == PayoutStatusFailed
}

// PayoutOutcome is the result reported by the payout provider.
type PayoutOutcome string

const (
	PayoutOutcomeSuccess PayoutOutcome = "success"
	PayoutOutcomeFailure PayoutOutcome = "failure"
)

var validPayoutOutcomes = []PayoutOutcome{
	PayoutOutcomeSuccess,
	PayoutOutcomeFailure,
}

// String implements fmt.Stringer.
func (p PayoutOutcome) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutOutcome.
func (p PayoutOutcome) IsValid() bool {
	for _, candidate := range validPayoutOutcomes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutOutcome converts raw input into a PayoutOutcome.
func ParsePayoutOutcome(value string) (PayoutOutcome, error) {
	for _, candidate := range validPayoutOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout outcome %q", value)
}
