package scanController

import (
	"context"
	"strings"
	"time"

	"babcia/internal/logger"
	. "babcia/internal/models"
	"babcia/internal/repositories"
	"babcia/internal/services"
	"babcia/internal/types"
	"babcia/internal/utils"

	"github.com/google/uuid"
)

type ScanRequest struct {
	Room       Room
	Image      []byte
	Credential string
	Source     CaptureSource
}

type ScanControllerInterface interface {
	Scan(ctx context.Context, request ScanRequest) (Room, error)
}

type ScanController struct {
	analysis     services.AnalysisService
	images       services.ImageStore
	interactions repositories.InteractionRepository
	log          logger.Logger
	now          func() time.Time
}

func New(services services.Service, repos repositories.Repository) ScanControllerInterface {
	return &ScanController{
		analysis:     services.Analysis,
		images:       services.Images,
		interactions: repos.Interaction,
		log:          logger.New("scanController"),
		now:          time.Now,
	}
}

// Scan analyses a fresh image of the room and returns the room with a new
// task list. The request's room is left untouched; on error no room is
// returned and the caller commits nothing.
func (c *ScanController) Scan(ctx context.Context, request ScanRequest) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("Scan")

	if strings.TrimSpace(request.Credential) == "" {
		return Room{}, log.ErrorWithType(types.ErrMissingCredential, "no analysis credential configured",
			"roomID", request.Room.ID)
	}
	if request.Source == "" {
		request.Source = CaptureSourceScan
	}

	room := request.Room.Clone()
	now := c.now()

	if room.ArchiveCurrentScan(now) {
		log.Debug("Archived previous scan", "roomID", room.ID, "history", len(room.ScanHistory))
	}

	if capture, ok := c.saveCapture(ctx, log, room.ID, request.Image, request.Source, now); ok {
		room.UserCaptures = append(room.UserCaptures, capture)
	}

	done := log.Timer("Room analysis")
	analysis, err := c.analysis.Analyze(ctx, request.Image, room.Persona, request.Credential)
	done()
	if err != nil {
		return Room{}, log.Err("room analysis failed", err, "roomID", room.ID)
	}

	room.Tasks = make([]CleaningTask, 0, len(analysis.Tasks))
	for _, title := range analysis.Tasks {
		room.Tasks = append(room.Tasks, NewCleaningTask(title))
	}
	room.Advice = utils.Ptr(analysis.Advice)
	room.LastScanDate = &now
	room.VerificationAttempts = 0

	if path, ok := c.saveVision(ctx, log, room, request); ok {
		room.VisionImagePath = &path
	}

	c.remember(ctx, log, room, analysis.Advice, now)

	log.Info("Room scanned", "roomID", room.ID, "tasks", len(room.Tasks), "source", request.Source)
	return room, nil
}

func (c *ScanController) saveCapture(
	ctx context.Context,
	log logger.Logger,
	roomID uuid.UUID,
	image []byte,
	source CaptureSource,
	now time.Time,
) (UserCapture, bool) {
	normalized, err := utils.NormalizeJPEG(image)
	if err != nil {
		log.Warn("Could not encode capture, continuing without it", "roomID", roomID, "error", err)
		return UserCapture{}, false
	}

	name := services.NewImageName(services.ImageKindCapture, roomID)
	if err := c.images.Save(ctx, name, normalized); err != nil {
		log.Warn("Could not store capture, continuing without it", "roomID", roomID, "error", err)
		return UserCapture{}, false
	}

	return UserCapture{
		ID:     uuid.New(),
		RoomID: roomID,
		Date:   now,
		Path:   name,
		Source: source,
	}, true
}

func (c *ScanController) saveVision(
	ctx context.Context,
	log logger.Logger,
	room Room,
	request ScanRequest,
) (string, bool) {
	vision, err := c.analysis.Stylize(ctx, request.Image, room.Persona, request.Credential)
	if err != nil {
		log.Warn("Vision image unavailable, keeping tasks", "roomID", room.ID, "error", err)
		return "", false
	}

	name := services.NewImageName(services.ImageKindVision, room.ID)
	if err := c.images.Save(ctx, name, vision); err != nil {
		log.Warn("Could not store vision image", "roomID", room.ID, "error", err)
		return "", false
	}
	return name, true
}

func (c *ScanController) remember(ctx context.Context, log logger.Logger, room Room, advice string, now time.Time) {
	if c.interactions == nil {
		return
	}
	roomID := room.ID
	err := c.interactions.Create(ctx, &Interaction{
		Timestamp: now,
		Persona:   room.Persona,
		RoomID:    &roomID,
		Action:    InteractionScan,
		Response:  advice,
	})
	if err != nil {
		log.Warn("Could not record persona memory", "roomID", room.ID, "error", err)
	}
}
