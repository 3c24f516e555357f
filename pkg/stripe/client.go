package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// keyPrefixes lists the secret and restricted key prefixes accepted per mode.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client holds the Stripe credentials used for payouts and webhook checks.
type Client struct {
	mode          string
	signingSecret string
}

// NewClient validates the credentials against the configured mode and sets
// the package-level key used by the stripe-go resource packages.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := cfg.Environment()
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("unknown stripe environment %q", mode)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe %s mode requires a key starting with %s", mode, strings.Join(prefixes, " or "))
	}

	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client ready")
	}
	return &Client{mode: mode, signingSecret: secret}, nil
}

// Mode reports "test" or "live".
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
