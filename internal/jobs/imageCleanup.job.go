package jobs

import (
	"context"

	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/services"
)

type RoomSnapshotter interface {
	Snapshot(ctx context.Context) ([]models.Room, error)
}

// ImageCleanupJob removes stored images no room references any more
type ImageCleanupJob struct {
	rooms       RoomSnapshotter
	fileCleanup *services.FileCleanupService
	log         logger.Logger
	schedule    services.Schedule
}

func NewImageCleanupJob(
	rooms RoomSnapshotter,
	fileCleanup *services.FileCleanupService,
	schedule services.Schedule,
) *ImageCleanupJob {
	log := logger.New("imageCleanupJob")
	log.Info("Creating new image cleanup job", "schedule", schedule)

	return &ImageCleanupJob{
		rooms:       rooms,
		fileCleanup: fileCleanup,
		log:         log,
		schedule:    schedule,
	}
}

func (j *ImageCleanupJob) Name() string {
	return "DailyImageCleanup"
}

func (j *ImageCleanupJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	rooms, err := j.rooms.Snapshot(ctx)
	if err != nil {
		return log.Err("failed to snapshot rooms", err)
	}

	referenced := make(map[string]bool)
	for _, room := range rooms {
		for _, path := range room.ImagePaths() {
			referenced[path] = true
		}
	}

	result, err := j.fileCleanup.CleanupOrphans(ctx, referenced)
	if err != nil {
		return log.Err("scheduled image cleanup failed", err)
	}

	log.Info("Scheduled image cleanup completed", "referenced", len(referenced), "removed", result.Removed)
	return nil
}

func (j *ImageCleanupJob) Schedule() services.Schedule {
	return j.schedule
}
