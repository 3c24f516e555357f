package enums

import "fmt"

// ActorRole is the platform role carried by an authenticated caller.
type ActorRole string

const (
	ActorRoleAdmin  ActorRole = "admin"
	ActorRoleVendor ActorRole = "vendor"
	ActorRoleBuyer  ActorRole = "buyer"
	ActorRoleSystem ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleVendor,
	ActorRoleBuyer,
	ActorRoleSystem,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
