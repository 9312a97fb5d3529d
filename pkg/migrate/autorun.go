package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot when running in dev
// with ENXOVAL_AUTO_MIGRATE on. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	applied, err := Up(ctx, sqlDB, "")
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied_versions", applied), "dev auto-migrate finished")
	return nil
}
