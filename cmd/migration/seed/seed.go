package seed

import (
	"context"

	"babcia/config"
	"babcia/internal/database"
	"babcia/internal/logger"
	. "babcia/internal/models"
	"babcia/internal/repositories"
	"babcia/internal/utils"
)

// demoRooms is development data covering each image source and a scheduled room
func demoRooms() []Room {
	kitchen := NewRoom("Kitchen", PersonaClassic, ImageSourceCamera, nil)
	kitchen.Tasks = []CleaningTask{
		NewCleaningTask("Wipe the counters"),
		NewCleaningTask("Load the dishwasher"),
	}

	living := NewRoom("Living Room", PersonaBaroness, ImageSourceHomeAssistant, utils.Ptr("camera.living_room"))
	living.ScanSchedule = &ScanSchedule{Enabled: true, Cadence: CadenceDaily}

	office := NewRoom("Office", PersonaWarrior, ImageSourceCamera, nil)

	return []Room{kitchen, living, office}
}

func Seed(ctx context.Context, db database.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	repos := repositories.New(db)

	return db.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := repos.Settings.GetOrSeed(ctx, config.DefaultSettings()); err != nil {
			return log.Err("failed to seed settings", err)
		}

		existing, err := repos.Room.LoadAll(ctx)
		if err != nil {
			return log.Err("failed to load rooms", err)
		}
		if len(existing) > 0 {
			log.Info("Rooms already exist, skipping demo rooms", "count", len(existing))
			return nil
		}

		rooms := demoRooms()
		if err := repos.Room.SaveAll(ctx, rooms); err != nil {
			return log.Err("failed to seed rooms", err)
		}

		log.Info("Seeded demo rooms", "count", len(rooms))
		return nil
	})
}
