package verifyController

import (
	"context"
	"fmt"
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

const (
	NoteLowConfidence = "Low confidence"
	NoteTrustedManual = "Trusted manual"
	NoteSelfDeclared  = "Self-declared completion"
	NoteManualCheck   = "Manual check"
	noteSeparator     = " • "
	trustedConfidence = 1.0
)

type VerifyRequest struct {
	Room          Room
	Image         []byte
	Credential    string
	ActivePersona Persona
	Source        CaptureSource
}

type VerifyControllerInterface interface {
	Verify(ctx context.Context, request VerifyRequest) (VerificationOutcome, error)
	Override(room Room, activePersona Persona, now time.Time) (Room, int)
	SetManualTask(
		room Room,
		taskID uuid.UUID,
		completed bool,
		activePersona Persona,
		now time.Time,
	) (Room, int, error)
}

type VerifyController struct {
	analysis     services.AnalysisService
	images       services.ImageStore
	interactions repositories.InteractionRepository
	log          logger.Logger
	now          func() time.Time
}

func New(services services.Service, repos repositories.Repository) VerifyControllerInterface {
	return &VerifyController{
		analysis:     services.Analysis,
		images:       services.Images,
		interactions: repos.Interaction,
		log:          logger.New("verifyController"),
		now:          time.Now,
	}
}

// Verify checks an after-image against the room's tasks and applies the
// verdicts. Locked tasks never change. XP is granted for every task that
// becomes verified in this call; the persona threshold only annotates low
// confidence verdicts.
func (c *VerifyController) Verify(ctx context.Context, request VerifyRequest) (VerificationOutcome, error) {
	log := c.log.TraceFromContext(ctx).Function("Verify")

	if strings.TrimSpace(request.Credential) == "" {
		return VerificationOutcome{}, log.ErrorWithType(types.ErrMissingCredential,
			"no analysis credential configured", "roomID", request.Room.ID)
	}
	if request.Source == "" {
		request.Source = CaptureSourceVerify
	}

	room := request.Room.Clone()
	now := c.now()

	after, err := utils.NormalizeJPEG(request.Image)
	if err != nil {
		return VerificationOutcome{}, log.ErrorWithType(types.ErrImageProcessing,
			"could not encode verification image", "roomID", room.ID, "error", err)
	}

	afterName := services.NewImageName(services.ImageKindVerify, room.ID)
	if err := c.images.Save(ctx, afterName, after); err != nil {
		return VerificationOutcome{}, log.Err("failed to store verification image", err, "roomID", room.ID)
	}
	room.UserCaptures = append(room.UserCaptures, UserCapture{
		ID:     uuid.New(),
		RoomID: room.ID,
		Date:   now,
		Path:   afterName,
		Source: request.Source,
	})

	before := c.loadBefore(ctx, log, room)

	done := log.Timer("Room verification")
	result, err := c.analysis.Verify(ctx, services.VerifyImagesRequest{
		Before:     before,
		After:      after,
		Tasks:      room.Tasks,
		Persona:    request.ActivePersona,
		Credential: request.Credential,
	})
	done()
	if err != nil {
		return VerificationOutcome{}, log.Err("room verification failed", err, "roomID", room.ID)
	}

	gained := applyVerdicts(&room, result.Tasks, request.ActivePersona.ConfidenceThreshold(), now)
	if gained > 0 {
		room.GrantXP(gained)
		room.RecordActivity(now)
	}

	if room.PendingTaskCount() == 0 {
		room.VerificationAttempts = 0
		room.LastVerifiedAt = &now
		room.LastVerifiedImagePath = &afterName
	} else {
		room.VerificationAttempts++
	}

	c.remember(ctx, log, room.ID, request.ActivePersona, result.Summary, now)

	log.Info("Room verified",
		"roomID", room.ID,
		"gainedXP", gained,
		"pending", room.PendingTaskCount(),
		"attempts", room.VerificationAttempts,
		"needsRescan", result.NeedsRescan,
	)

	return VerificationOutcome{
		Room:        room,
		NeedsRescan: result.NeedsRescan,
		Summary:     result.Summary,
		GainedXP:    gained,
	}, nil
}

func applyVerdicts(room *Room, verdicts []TaskVerificationResult, threshold float64, now time.Time) int {
	gained := 0
	for _, verdict := range verdicts {
		task, ok := room.TaskByID(verdict.TaskID)
		if !ok || task.IsLocked() {
			continue
		}

		confidence := verdict.Confidence
		task.VerificationConfidence = &confidence

		if verdict.Status != VerdictVerified {
			task.SetState(VerificationPending)
			task.VerificationNote = utils.CopyPtr(verdict.Note)
			continue
		}

		var notes []string
		if verdict.Note != nil && strings.TrimSpace(*verdict.Note) != "" {
			notes = append(notes, strings.TrimSpace(*verdict.Note))
		}
		if confidence < threshold {
			notes = append(notes, NoteLowConfidence)
		}

		task.IsCompleted = true
		task.CompletedAt = utils.Ptr(now)
		task.SetState(VerificationVerified)
		task.VerificationNote = joinNotes(notes)
		gained += task.XPReward
	}
	return gained
}

// Override completes every unlocked task by hand. A trusted persona counts
// it as a verified pass with XP; any other persona records a self-declared
// completion without XP.
func (c *VerifyController) Override(room Room, activePersona Persona, now time.Time) (Room, int) {
	room = room.Clone()
	trusted := activePersona.IsTrusted()

	gained, verified := 0, 0
	for i := range room.Tasks {
		task := &room.Tasks[i]
		if task.IsLocked() {
			continue
		}
		task.IsCompleted = true
		task.CompletedAt = utils.Ptr(now)
		if trusted {
			task.SetState(VerificationVerified)
			task.VerificationConfidence = utils.Ptr(trustedConfidence)
			task.VerificationNote = utils.Ptr(NoteTrustedManual)
			gained += task.XPReward
			verified++
		} else {
			task.SetState(VerificationManual)
			task.VerificationNote = utils.Ptr(NoteSelfDeclared)
		}
	}

	if gained > 0 {
		room.GrantXP(gained)
	}
	if verified > 0 {
		room.RecordActivity(now)
		room.LastVerifiedAt = &now
	}
	room.VerificationAttempts = 0

	c.log.Function("Override").Info("Manual override applied",
		"roomID", room.ID, "persona", activePersona, "trusted", trusted, "gainedXP", gained)
	return room, gained
}

// SetManualTask ticks or unticks a single task. Verified tasks are left alone.
func (c *VerifyController) SetManualTask(
	room Room,
	taskID uuid.UUID,
	completed bool,
	activePersona Persona,
	now time.Time,
) (Room, int, error) {
	room = room.Clone()

	task, ok := room.TaskByID(taskID)
	if !ok {
		return Room{}, 0, fmt.Errorf("%w: task %s in room %s", types.ErrNotFound, taskID, room.ID)
	}
	if task.IsLocked() {
		return room, 0, nil
	}

	if !completed {
		task.IsCompleted = false
		task.CompletedAt = nil
		task.SetState(VerificationPending)
		task.VerificationNote = nil
		task.VerificationConfidence = nil
		return room, 0, nil
	}

	task.IsCompleted = true
	task.CompletedAt = utils.Ptr(now)
	if !activePersona.IsTrusted() {
		task.SetState(VerificationManual)
		task.VerificationNote = utils.Ptr(NoteManualCheck)
		return room, 0, nil
	}

	task.SetState(VerificationVerified)
	task.VerificationConfidence = utils.Ptr(trustedConfidence)
	task.VerificationNote = utils.Ptr(NoteTrustedManual)
	gained := task.XPReward
	room.GrantXP(gained)
	room.RecordActivity(now)
	room.LastVerifiedAt = &now
	return room, gained, nil
}

func (c *VerifyController) loadBefore(ctx context.Context, log logger.Logger, room Room) []byte {
	if room.LastVerifiedImagePath == nil {
		return nil
	}
	before, err := c.images.Load(ctx, *room.LastVerifiedImagePath)
	if err != nil {
		log.Warn("Previous verification image unavailable, verifying without it",
			"roomID", room.ID, "path", *room.LastVerifiedImagePath, "error", err)
		return nil
	}
	return before
}

func (c *VerifyController) remember(
	ctx context.Context,
	log logger.Logger,
	roomID uuid.UUID,
	persona Persona,
	summary string,
	now time.Time,
) {
	if c.interactions == nil || strings.TrimSpace(summary) == "" {
		return
	}
	err := c.interactions.Create(ctx, &Interaction{
		Timestamp: now,
		Persona:   persona,
		RoomID:    &roomID,
		Action:    InteractionVerify,
		Response:  summary,
	})
	if err != nil {
		log.Warn("Could not record persona memory", "roomID", roomID, "error", err)
	}
}

func joinNotes(notes []string) *string {
	if len(notes) == 0 {
		return nil
	}
	return utils.Ptr(strings.Join(notes, noteSeparator))
}
