package initialize

import (
	"context"

	"babcia/config"
	"babcia/internal/database"
	"babcia/internal/logger"
	"babcia/internal/repositories"
)

// InitializeTables writes the reference rows every deployment needs: the
// single settings row seeded from the environment
func InitializeTables(ctx context.Context, db database.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Initializing essential production data")

	settings, err := repositories.NewSettingsRepository(db).GetOrSeed(ctx, config.DefaultSettings())
	if err != nil {
		return log.Err("failed to initialize settings", err)
	}

	log.Info("Table initialization complete",
		"persona", settings.SelectedPersona,
		"hasCredential", settings.HasCredential(),
		"bridgeConfigured", settings.BridgeConfigured(),
	)
	return nil
}
