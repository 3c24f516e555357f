package types

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Actor is whoever asked for a money movement: a user from the API, or the
// system itself for webhook and job driven transitions. VendorID is set for
// vendor tokens.
type Actor struct {
	ID       uuid.UUID       `json:"id"`
	Role     enums.ActorRole `json:"role"`
	VendorID *uuid.UUID      `json:"vendor_id,omitempty"`
}

// SystemActor is used by courier webhooks, consumers and cron jobs.
func SystemActor() Actor {
	return Actor{ID: uuid.Nil, Role: enums.ActorRoleSystem}
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.Role == enums.ActorRoleSystem
}

// ActsFor reports whether a vendor actor represents vendorID.
func (a Actor) ActsFor(vendorID uuid.UUID) bool {
	return a.Role == enums.ActorRoleVendor && a.VendorID != nil && *a.VendorID == vendorID
}

// IDPtr returns nil for the system actor so settled_by stays empty.
func (a Actor) IDPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// RolePtr returns the role for persistence, nil when unset.
func (a Actor) RolePtr() *enums.ActorRole {
	if strings.TrimSpace(string(a.Role)) == "" {
		return nil
	}
	role := a.Role
	return &role
}
