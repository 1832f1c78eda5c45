package repositories

import (
	"babcia/internal/database"
)

type Repository struct {
	Room        RoomRepository
	Settings    SettingsRepository
	Interaction InteractionRepository
}

func New(db database.DB) Repository {
	return Repository{
		Room:        NewRoomRepository(db),
		Settings:    NewSettingsRepository(db),
		Interaction: NewInteractionRepository(db),
	}
}
