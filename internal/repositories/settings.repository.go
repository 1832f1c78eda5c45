package repositories

import (
	"context"
	"errors"

	"babcia/internal/database"
	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/types"

	"gorm.io/gorm"
)

type SettingsRepository interface {
	// GetOrSeed returns the stored settings, writing defaults on first use
	GetOrSeed(ctx context.Context, defaults models.Settings) (models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

type settingsRepository struct {
	db  database.DB
	log logger.Logger
}

func NewSettingsRepository(db database.DB) SettingsRepository {
	return &settingsRepository{
		db:  db,
		log: logger.New("settingsRepository"),
	}
}

func (r *settingsRepository) GetOrSeed(ctx context.Context, defaults models.Settings) (models.Settings, error) {
	log := r.log.Function("GetOrSeed")

	var settings models.Settings
	err := r.db.SQLWithContext(ctx).First(&settings, "id = ?", models.SettingsID).Error
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Settings{}, log.ErrorWithType(types.ErrStorage, "failed to load settings", "error", err)
	}

	settings = defaults
	settings.ID = models.SettingsID
	if settings.SelectedPersona == "" {
		settings.SelectedPersona = models.PersonaClassic
	}
	if err := r.db.SQLWithContext(ctx).Create(&settings).Error; err != nil {
		return models.Settings{}, log.ErrorWithType(types.ErrStorage, "failed to seed settings", "error", err)
	}

	log.Info("Seeded settings", "bridgeConfigured", settings.BridgeConfigured(), "persona", settings.SelectedPersona)
	return settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *models.Settings) error {
	log := r.log.Function("Save")

	settings.ID = models.SettingsID
	if err := r.db.SQLWithContext(ctx).Save(settings).Error; err != nil {
		return log.ErrorWithType(types.ErrStorage, "failed to save settings", "error", err)
	}
	return nil
}
