package enums

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// DeliveryStatus is a courier status string. The constants below are the
// statuses the courier is known to send; any other non-empty value is kept as
// history. Only DeliveryStatusDelivered triggers a release.
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "pending"
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusPickedUp       DeliveryStatus = "picked_up"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusFailed         DeliveryStatus = "failed"
	DeliveryStatusReturned       DeliveryStatus = "returned"
	DeliveryStatusCancelled      DeliveryStatus = "cancelled"
)

const maxDeliveryStatusLen = 64

var knownDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusAssigned,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
	DeliveryStatusReturned,
	DeliveryStatusCancelled,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value can be stored: non-empty, lower case,
// at most 64 characters and free of whitespace.
func (d DeliveryStatus) IsValid() bool {
	s := string(d)
	if s == "" || len(s) > maxDeliveryStatusLen || s != strings.ToLower(s) {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}

// IsKnown reports whether the value is one of the documented courier statuses.
func (d DeliveryStatus) IsKnown() bool {
	return slices.Contains(knownDeliveryStatuses, d)
}

// ParseDeliveryStatus trims and lower-cases raw courier input.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	status := DeliveryStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid delivery status %q", value)
	}
	return status, nil
}

// DeliverySource identifies where a delivery event came from.
type DeliverySource string

const (
	DeliverySourceCourierWebhook    DeliverySource = "courier_webhook"
	DeliverySourceManualProofUpload DeliverySource = "manual_proof_upload"
)

var validDeliverySources = []DeliverySource{
	DeliverySourceCourierWebhook,
	DeliverySourceManualProofUpload,
}

// String implements fmt.Stringer.
func (d DeliverySource) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliverySource.
func (d DeliverySource) IsValid() bool {
	for _, candidate := range validDeliverySources {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliverySource converts raw input into a DeliverySource.
func ParseDeliverySource(value string) (DeliverySource, error) {
	for _, candidate := range validDeliverySources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery source %q", value)
}

// DeliveryOutcome records what the trigger did with a delivery event.
type DeliveryOutcome string

const (
	DeliveryOutcomeRecorded DeliveryOutcome = "recorded"
	DeliveryOutcomeReleased DeliveryOutcome = "released"
	DeliveryOutcomeSkipped  DeliveryOutcome = "skipped"
)

var validDeliveryOutcomes = []DeliveryOutcome{
	DeliveryOutcomeRecorded,
	DeliveryOutcomeReleased,
	DeliveryOutcomeSkipped,
}

// String implements fmt.Stringer.
func (d DeliveryOutcome) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryOutcome.
func (d DeliveryOutcome) IsValid() bool {
	for _, candidate := range validDeliveryOutcomes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryOutcome converts raw input into a DeliveryOutcome.
func ParseDeliveryOutcome(value string) (DeliveryOutcome, error) {
	for _, candidate := range validDeliveryOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery outcome %q", value)
}
