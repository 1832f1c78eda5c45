package database

import (
	"babcia/internal/logger"
	"babcia/internal/models"
)

// MigrateModels runs GORM AutoMigrate for every persisted model
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	modelsToMigrate := []any{
		&models.RoomRecord{},
		&models.Settings{},
		&models.Interaction{},
	}

	for _, model := range modelsToMigrate {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("Failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes creates the composite indexes AutoMigrate does not
func (db *DB) CreateIndexes() error {
	log := logger.New("database").Function("CreateIndexes")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_interactions_persona_timestamp ON interactions(persona, timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_rooms_next_run ON rooms(next_run_at) WHERE next_run_at IS NOT NULL",
	}

	for _, indexSQL := range indexes {
		if err := db.SQL.Exec(indexSQL).Error; err != nil {
			log.Warn("Failed to create index", "sql", indexSQL, "error", err)
		}
	}

	log.Info("Additional database indexes created")
	return nil
}
