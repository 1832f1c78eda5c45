package jobs

import (
	"babcia/config"
	"babcia/internal/logger"
	"babcia/internal/services"
)

const (
	Daily  = services.Daily
	Hourly = services.Hourly
)

// RegisterAllJobs registers the maintenance jobs with the scheduler service
func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	services services.Service,
	rooms RoomSnapshotter,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.SchedulerEnabled {
		log.Info("Scheduler disabled, skipping job registration")
		return nil
	}

	imageCleanupJob := NewImageCleanupJob(rooms, services.FileCleanup, Daily)
	if err := schedulerService.AddJob(imageCleanupJob); err != nil {
		return log.Err("failed to register image cleanup job", err)
	}
	log.Info("Registered image cleanup job", "schedule", "daily")

	wakeCatchupJob := NewWakeCatchupJob(schedulerService, Hourly)
	if err := schedulerService.AddJob(wakeCatchupJob); err != nil {
		return log.Err("failed to register wake catch-up job", err)
	}
	log.Info("Registered wake catch-up job", "schedule", "hourly")

	return nil
}
