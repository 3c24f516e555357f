package enums

import "fmt"

// DisputeStatus is the review state of a dispute.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusResolved,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeOutcome is the admin decision on a disputed escrow.
type DisputeOutcome string

const (
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomeRefund  DisputeOutcome = "refund"
)

var validDisputeOutcomes = []DisputeOutcome{
	DisputeOutcomeRelease,
	DisputeOutcomeRefund,
}

// String implements fmt.Stringer.
func (d DisputeOutcome) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeOutcome.
func (d DisputeOutcome) IsValid() bool {
	for _, candidate := range validDisputeOutcomes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeOutcome converts raw input into a DisputeOutcome.
func ParseDisputeOutcome(value string) (DisputeOutcome, error) {
	for _, candidate := range validDisputeOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute outcome %q", value)
}

// EscrowAction maps a dispute outcome onto the escrow transition it drives.
func (d DisputeOutcome) EscrowAction() EscrowAction {
	if d == DisputeOutcomeRefund {
		return EscrowActionResolveRefund
	}
	return EscrowActionResolveRelease
}

// DisputeParty identifies who filed a dispute.
type DisputeParty string

const (
	DisputePartyBuyer  DisputeParty = "buyer"
	DisputePartyVendor DisputeParty = "vendor"
	DisputePartyAdmin  DisputeParty = "admin"
)

var validDisputeParties = []DisputeParty{
	DisputePartyBuyer,
	DisputePartyVendor,
	DisputePartyAdmin,
}

// String implements fmt.Stringer.
func (d DisputeParty) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeParty.
func (d DisputeParty) IsValid() bool {
	for _, candidate := range validDisputeParties {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeParty converts raw input into a DisputeParty.
func ParseDisputeParty(value string) (DisputeParty, error) {
	for _, candidate := range validDisputeParties {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute party %q", value)
}
