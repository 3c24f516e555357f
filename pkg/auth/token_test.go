package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "settlement",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()
	vendorID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:   userID,
		Role:     enums.ActorRoleVendor,
		VendorID: &vendorID,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.ActorRoleVendor {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.VendorID == nil || *claims.VendorID != vendorID {
		t.Fatalf("vendor id not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer mismatch: %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleVendor}); err == nil {
		t.Fatal("expected vendor token without vendor id to fail")
	}
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleAdmin}); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestParseAccessTokenRejectsTamperingAndExpiry(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature mismatch")
	}

	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(wrongIssuer, token); err == nil {
		t.Fatal("expected issuer mismatch")
	}

	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleBuyer})
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}
	if _, err := ParseAccessToken(cfg, expired); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}
