package enums

import "fmt"

// EscrowStatus is the lifecycle state of an escrow hold.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusDisputed EscrowStatus = "disputed"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusHeld,
	EscrowStatusReleased,
	EscrowStatusRefunded,
	EscrowStatusDisputed,
}

// String implements fmt.Stringer.
func (e EscrowStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowStatus.
func (e EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into an EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}

// IsTerminal reports whether no further transition may leave the status.
func (e EscrowStatus) IsTerminal() bool {
	return e == EscrowStatusReleased || e == EscrowStatusRefunded
}

// EscrowAction names an edge of the escrow transition table.
type EscrowAction string

const (
	EscrowActionRelease        EscrowAction = "release"
	EscrowActionRefund         EscrowAction = "refund"
	EscrowActionDispute        EscrowAction = "dispute"
	EscrowActionResolveRelease EscrowAction = "resolve_release"
	EscrowActionResolveRefund  EscrowAction = "resolve_refund"
)

var validEscrowActions = []EscrowAction{
	EscrowActionRelease,
	EscrowActionRefund,
	EscrowActionDispute,
	EscrowActionResolveRelease,
	EscrowActionResolveRefund,
}

// String implements fmt.Stringer.
func (e EscrowAction) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowAction.
func (e EscrowAction) IsValid() bool {
	for _, candidate := range validEscrowActions {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowAction converts raw input into an EscrowAction.
func ParseEscrowAction(value string) (EscrowAction, error) {
	for _, candidate := range validEscrowActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow action %q", value)
}

var escrowTransitions = map[EscrowStatus]map[EscrowAction]EscrowStatus{
	EscrowStatusHeld: {
		EscrowActionRelease: EscrowStatusReleased,
		EscrowActionRefund:  EscrowStatusRefunded,
		EscrowActionDispute: EscrowStatusDisputed,
	},
	EscrowStatusDisputed: {
		EscrowActionResolveRelease: EscrowStatusReleased,
		EscrowActionResolveRefund:  EscrowStatusRefunded,
		EscrowActionRefund:         EscrowStatusRefunded,
	},
}

// NextEscrowStatus returns the status reached by applying action to from.
// The boolean is false when the transition table has no such edge.
func NextEscrowStatus(from EscrowStatus, action EscrowAction) (EscrowStatus, bool) {
	edges, ok := escrowTransitions[from]
	if !ok {
		return "", false
	}
	next, ok := edges[action]
	return next, ok
}

// CanTransition reports whether action is legal from the current status.
func (e EscrowStatus) CanTransition(action EscrowAction) bool {
	_, ok := NextEscrowStatus(e, action)
	return ok
}
