package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when running in dev with
// SETTLEMENT_AUTO_MIGRATE set. Every other environment migrates through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	versions, err := EmbeddedVersions()
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"migrations": len(versions),
		"service":    cfg.Service.Kind,
	})
	logg.Info(ctx, "applying embedded ledger migrations")

	if err := RunEmbedded(ctx, sqlDB, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "ledger migrations applied")
	return nil
}
