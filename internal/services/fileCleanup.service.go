package services

import (
	"context"
	"time"

	"babcia/internal/logger"
)

const (
	OrphanGracePeriod = 24 * time.Hour
	TempFileMaxAge    = time.Hour
)

// FileCleanupService removes stored images no room refers to any more, plus
// temp files left behind by interrupted writes
type FileCleanupService struct {
	images ImageStore
	log    logger.Logger
	now    func() time.Time
}

type CleanupResult struct {
	Scanned     int `json:"scanned"`
	Removed     int `json:"removed"`
	Failed      int `json:"failed"`
	TempRemoved int `json:"tempRemoved"`
}

func NewFileCleanupService(images ImageStore) *FileCleanupService {
	return &FileCleanupService{
		images: images,
		log:    logger.New("fileCleanupService"),
		now:    time.Now,
	}
}

// CleanupOrphans deletes images that are not in referenced and are older
// than the grace period. Young files are kept since a scan may have written
// them but not committed the room yet.
func (fcs *FileCleanupService) CleanupOrphans(ctx context.Context, referenced map[string]bool) (CleanupResult, error) {
	log := fcs.log.Function("CleanupOrphans")

	var result CleanupResult

	tempRemoved, err := fcs.images.PurgeTemp(ctx, TempFileMaxAge)
	if err != nil {
		log.Er("failed to purge temp files", err)
	}
	result.TempRemoved = tempRemoved

	images, err := fcs.images.List(ctx)
	if err != nil {
		return result, log.Err("failed to list stored images", err)
	}

	now := fcs.now()
	result.Scanned = len(images)
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if referenced[image.Name] || now.Sub(image.ModifiedAt) <= OrphanGracePeriod {
			continue
		}
		if err := fcs.images.Delete(ctx, image.Name); err != nil {
			result.Failed++
			log.Er("failed to remove orphaned image", err, "name", image.Name)
			continue
		}
		result.Removed++
	}

	log.Info(
		"Image cleanup completed",
		"scanned", result.Scanned,
		"removed", result.Removed,
		"failed", result.Failed,
		"tempRemoved", result.TempRemoved,
	)
	return result, nil
}
