package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.ActorRole
	VendorID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by API callers.
// VendorID is set for vendor staff and scopes wallet and payout access.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	Role     enums.ActorRole `json:"role"`
	VendorID *uuid.UUID      `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}
