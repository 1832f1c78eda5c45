package services

import (
	"babcia/config"
	"babcia/internal/database"
	"babcia/internal/events"
)

type Service struct {
	Analysis    AnalysisService
	Auth        *AuthService
	Bridge      CameraBridge
	Images      ImageStore
	FileCleanup *FileCleanupService
	Scheduler   *SchedulerService
}

func New(db database.DB, config config.Config, eventBus *events.EventBus) (Service, error) {
	images, err := NewDiskImageStore(config.ImageDir)
	if err != nil {
		return Service{}, err
	}

	var publisher events.Publisher
	if eventBus != nil {
		publisher = eventBus
	}

	return Service{
		Analysis:    NewGeminiService(config.GeminiModel, config.GeminiImageModel),
		Auth:        NewAuthService(config.APIJWTSecret),
		Bridge:      NewHomeAssistantService(db.Cache.ClientAPI),
		Images:      images,
		FileCleanup: NewFileCleanupService(images),
		Scheduler:   NewSchedulerService(publisher, config.BackgroundWakeBudget),
	}, nil
}
