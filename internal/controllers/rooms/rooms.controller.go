package roomsController

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"babcia/config"
	autoscanController "babcia/internal/controllers/autoscan"
	scanController "babcia/internal/controllers/scan"
	verifyController "babcia/internal/controllers/verify"
	"babcia/internal/events"
	"babcia/internal/logger"
	. "babcia/internal/models"
	"babcia/internal/repositories"
	"babcia/internal/services"
	"babcia/internal/state"
	"babcia/internal/types"

	"github.com/google/uuid"
)

const (
	MaxRoomNameLength  = 80
	cameraEntityPrefix = "camera."
)

type CreateRoomRequest struct {
	Name        string  `json:"name"`
	Persona     string  `json:"persona"`
	ImageSource string  `json:"imageSource"`
	CameraID    *string `json:"cameraId,omitempty"`
}

type UpdateCameraRequest struct {
	ImageSource string  `json:"imageSource"`
	CameraID    *string `json:"cameraId,omitempty"`
}

type UpdateScheduleRequest struct {
	Enabled bool   `json:"enabled"`
	Cadence string `json:"cadence"`
}

type RoomsControllerInterface interface {
	List(ctx context.Context) ([]Room, error)
	Get(ctx context.Context, roomID uuid.UUID) (Room, error)
	Create(ctx context.Context, request CreateRoomRequest) (Room, error)
	Delete(ctx context.Context, roomID uuid.UUID) error
	UpdateCamera(ctx context.Context, roomID uuid.UUID, request UpdateCameraRequest) (Room, error)
	Scan(ctx context.Context, roomID uuid.UUID, image []byte, source CaptureSource) (Room, error)
	ScanFromCamera(ctx context.Context, roomID uuid.UUID) (Room, error)
	Verify(ctx context.Context, roomID uuid.UUID, image []byte, source CaptureSource) (VerificationOutcome, error)
	VerifyFromCamera(ctx context.Context, roomID uuid.UUID) (VerificationOutcome, error)
	Override(ctx context.Context, roomID uuid.UUID) (Room, error)
	SetTaskCompletion(ctx context.Context, roomID uuid.UUID, taskID uuid.UUID, completed bool) (Room, error)
	UpdateSchedule(ctx context.Context, roomID uuid.UUID, request UpdateScheduleRequest) (Room, error)
	Progress(ctx context.Context) (Progress, error)
	Image(ctx context.Context, name string) ([]byte, error)

	GetSettings(ctx context.Context) (SettingsView, error)
	UpdateSettings(ctx context.Context, update SettingsUpdate) (SettingsView, error)
	TestCredential(ctx context.Context, request TestCredentialRequest) (bool, error)
	TestBridge(ctx context.Context, request TestBridgeRequest) (bool, error)
	ListCameras(ctx context.Context) ([]Camera, error)
	Personas() []PersonaInfo
	Interactions(ctx context.Context, persona string, limit int) ([]Interaction, error)
}

type RoomsController struct {
	store        *state.Store
	scan         scanController.ScanControllerInterface
	verify       verifyController.VerifyControllerInterface
	autoscan     autoscanController.AutoscanControllerInterface
	analysis     services.AnalysisService
	bridge       services.CameraBridge
	images       services.ImageStore
	settings     repositories.SettingsRepository
	interactions repositories.InteractionRepository
	defaults     Settings
	publisher    events.Publisher
	log          logger.Logger
	now          func() time.Time
}

func New(
	store *state.Store,
	services services.Service,
	repos repositories.Repository,
	scan scanController.ScanControllerInterface,
	verify verifyController.VerifyControllerInterface,
	autoscan autoscanController.AutoscanControllerInterface,
	publisher events.Publisher,
	config config.Config,
) RoomsControllerInterface {
	return &RoomsController{
		store:        store,
		scan:         scan,
		verify:       verify,
		autoscan:     autoscan,
		analysis:     services.Analysis,
		bridge:       services.Bridge,
		images:       services.Images,
		settings:     repos.Settings,
		interactions: repos.Interaction,
		defaults:     config.DefaultSettings(),
		publisher:    publisher,
		log:          logger.New("roomsController"),
		now:          time.Now,
	}
}

func (c *RoomsController) List(ctx context.Context) ([]Room, error) {
	return c.store.Snapshot(ctx)
}

func (c *RoomsController) Get(ctx context.Context, roomID uuid.UUID) (Room, error) {
	return c.store.Get(ctx, roomID)
}

func (c *RoomsController) Create(ctx context.Context, request CreateRoomRequest) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("Create")

	name, err := validateName(request.Name)
	if err != nil {
		return Room{}, err
	}
	persona, err := ParsePersona(request.Persona)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	source, err := ParseImageSource(request.ImageSource)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	cameraID, err := validateCameraID(request.CameraID)
	if err != nil {
		return Room{}, err
	}

	room := NewRoom(name, persona, source, cameraID)
	err = c.store.Update(ctx, func(rooms []Room) ([]Room, error) {
		return append(rooms, room), nil
	})
	if err != nil {
		return Room{}, log.Err("failed to create room", err, "name", name)
	}

	log.Info("Room created", "roomID", room.ID, "persona", persona, "source", source)
	c.publish(events.ROOM_UPDATED, room.ID, nil)
	return room.Clone(), nil
}

// Delete removes the room and every image it references
func (c *RoomsController) Delete(ctx context.Context, roomID uuid.UUID) error {
	log := c.log.TraceFromContext(ctx).Function("Delete")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return err
	}
	defer unlock()

	var removed Room
	err = c.store.Update(ctx, func(rooms []Room) ([]Room, error) {
		for i := range rooms {
			if rooms[i].ID == roomID {
				removed = rooms[i]
				return append(rooms[:i], rooms[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: room %s", types.ErrNotFound, roomID)
	})
	if err != nil {
		return log.Err("failed to delete room", err, "roomID", roomID)
	}

	for _, path := range removed.ImagePaths() {
		if err := c.images.Delete(ctx, path); err != nil {
			log.Warn("Could not delete room image", "roomID", roomID, "path", path, "error", err)
		}
	}

	log.Info("Room deleted", "roomID", roomID, "images", len(removed.ImagePaths()))
	c.publish(events.ROOM_DELETED, roomID, nil)
	if removed.ScanSchedule != nil && removed.ScanSchedule.Enabled {
		c.recompute(ctx, log)
	}
	return nil
}

func (c *RoomsController) UpdateCamera(ctx context.Context, roomID uuid.UUID, request UpdateCameraRequest) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("UpdateCamera")

	source, err := ParseImageSource(request.ImageSource)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	cameraID, err := validateCameraID(request.CameraID)
	if err != nil {
		return Room{}, err
	}

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return Room{}, err
	}
	defer unlock()

	room, err := c.store.UpdateRoom(ctx, roomID, func(room *Room) error {
		room.ImageSource = source
		room.CameraID = cameraID
		return nil
	})
	if err != nil {
		return Room{}, log.Err("failed to update camera", err, "roomID", roomID)
	}

	c.publish(events.ROOM_UPDATED, roomID, nil)
	c.recompute(ctx, log)
	return room, nil
}

func (c *RoomsController) Scan(ctx context.Context, roomID uuid.UUID, image []byte, source CaptureSource) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("Scan")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return Room{}, err
	}
	defer unlock()

	settings, room, err := c.load(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	return c.scanLocked(ctx, log, settings, room, image, source)
}

// ScanFromCamera pulls a fresh snapshot from the room's camera, or the
// default camera, and scans it
func (c *RoomsController) ScanFromCamera(ctx context.Context, roomID uuid.UUID) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("ScanFromCamera")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return Room{}, err
	}
	defer unlock()

	settings, room, err := c.load(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	image, err := c.snapshot(ctx, settings, room)
	if err != nil {
		return Room{}, log.Err("failed to capture snapshot", err, "roomID", roomID)
	}
	return c.scanLocked(ctx, log, settings, room, image, CaptureSourceHomeAssistant)
}

func (c *RoomsController) scanLocked(
	ctx context.Context,
	log logger.Logger,
	settings Settings,
	room Room,
	image []byte,
	source CaptureSource,
) (Room, error) {
	if source == "" {
		source = CaptureSourceScan
	}

	scanned, err := c.scan.Scan(ctx, scanController.ScanRequest{
		Room:       room,
		Image:      image,
		Credential: settings.GeminiAPIKey,
		Source:     source,
	})
	if err != nil {
		return Room{}, err
	}
	if err := c.store.Commit(ctx, scanned); err != nil {
		return Room{}, log.Err("failed to commit scan", err, "roomID", room.ID)
	}

	c.publish(events.SCAN_COMPLETE, room.ID, map[string]any{"source": source, "tasks": len(scanned.Tasks)})
	return scanned, nil
}

func (c *RoomsController) Verify(
	ctx context.Context,
	roomID uuid.UUID,
	image []byte,
	source CaptureSource,
) (VerificationOutcome, error) {
	log := c.log.TraceFromContext(ctx).Function("Verify")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return VerificationOutcome{}, err
	}
	defer unlock()

	settings, room, err := c.load(ctx, roomID)
	if err != nil {
		return VerificationOutcome{}, err
	}
	return c.verifyLocked(ctx, log, settings, room, image, source)
}

func (c *RoomsController) VerifyFromCamera(ctx context.Context, roomID uuid.UUID) (VerificationOutcome, error) {
	log := c.log.TraceFromContext(ctx).Function("VerifyFromCamera")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return VerificationOutcome{}, err
	}
	defer unlock()

	settings, room, err := c.load(ctx, roomID)
	if err != nil {
		return VerificationOutcome{}, err
	}
	image, err := c.snapshot(ctx, settings, room)
	if err != nil {
		return VerificationOutcome{}, log.Err("failed to capture snapshot", err, "roomID", roomID)
	}
	return c.verifyLocked(ctx, log, settings, room, image, CaptureSourceHomeAssistant)
}

func (c *RoomsController) verifyLocked(
	ctx context.Context,
	log logger.Logger,
	settings Settings,
	room Room,
	image []byte,
	source CaptureSource,
) (VerificationOutcome, error) {
	outcome, err := c.verify.Verify(ctx, verifyController.VerifyRequest{
		Room:          room,
		Image:         image,
		Credential:    settings.GeminiAPIKey,
		ActivePersona: settings.ActivePersona(),
		Source:        source,
	})
	if err != nil {
		return VerificationOutcome{}, err
	}
	if err := c.store.Commit(ctx, outcome.Room); err != nil {
		return VerificationOutcome{}, log.Err("failed to commit verification", err, "roomID", room.ID)
	}

	c.publish(events.VERIFIED, room.ID, map[string]any{
		"gainedXP": outcome.GainedXP,
		"pending":  outcome.Room.PendingTaskCount(),
		"summary":  outcome.Summary,
	})
	if outcome.NeedsRescan {
		c.publish(events.NEEDS_RESCAN, room.ID, map[string]any{"summary": outcome.Summary})
	}
	return outcome, nil
}

// Override applies the manual override once verification has failed twice
func (c *RoomsController) Override(ctx context.Context, roomID uuid.UUID) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("Override")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return Room{}, err
	}
	defer unlock()

	settings, room, err := c.load(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	if !room.ManualOverrideAvailable() {
		return Room{}, fmt.Errorf("%w: room %s has %d attempts and %d pending tasks",
			types.ErrOverrideUnavailable, roomID, room.VerificationAttempts, room.PendingTaskCount())
	}

	now := c.now()
	persona := settings.ActivePersona()
	updated, gained := c.verify.Override(room, persona, now)
	if err := c.store.Commit(ctx, updated); err != nil {
		return Room{}, log.Err("failed to commit override", err, "roomID", roomID)
	}

	if c.interactions != nil {
		err := c.interactions.Create(ctx, &Interaction{
			Timestamp: now,
			Persona:   persona,
			RoomID:    &roomID,
			Action:    InteractionOverride,
			Response:  fmt.Sprintf("Manual override, %d XP", gained),
		})
		if err != nil {
			log.Warn("Could not record persona memory", "roomID", roomID, "error", err)
		}
	}

	c.publish(events.ROOM_UPDATED, roomID, map[string]any{"gainedXP": gained})
	return updated, nil
}

func (c *RoomsController) SetTaskCompletion(
	ctx context.Context,
	roomID uuid.UUID,
	taskID uuid.UUID,
	completed bool,
) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("SetTaskCompletion")

	unlock, err := c.store.TryLock(roomID)
	if err != nil {
		return Room{}, err
	}
	defer unlock()

	settings, room, err := c.load(ctx, roomID)
	if err != nil {
		return Room{}, err
	}

	updated, gained, err := c.verify.SetManualTask(room, taskID, completed, settings.ActivePersona(), c.now())
	if err != nil {
		return Room{}, err
	}
	if err := c.store.Commit(ctx, updated); err != nil {
		return Room{}, log.Err("failed to commit task change", err, "roomID", roomID, "taskID", taskID)
	}

	c.publish(events.ROOM_UPDATED, roomID, map[string]any{"taskId": taskID, "gainedXP": gained})
	return updated, nil
}

func (c *RoomsController) UpdateSchedule(
	ctx context.Context,
	roomID uuid.UUID,
	request UpdateScheduleRequest,
) (Room, error) {
	cadence, err := ParseCadence(request.Cadence)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}

	room, err := c.autoscan.UpdateSchedule(ctx, roomID, request.Enabled, cadence)
	if err != nil {
		return Room{}, err
	}
	c.publish(events.ROOM_UPDATED, roomID, nil)
	return room, nil
}

// Progress aggregates XP and streaks over every room
func (c *RoomsController) Progress(ctx context.Context) (Progress, error) {
	rooms, err := c.store.Snapshot(ctx)
	if err != nil {
		return Progress{}, err
	}
	return NewProgress(rooms), nil
}

func (c *RoomsController) Image(ctx context.Context, name string) ([]byte, error) {
	return c.images.Load(ctx, name)
}

func (c *RoomsController) load(ctx context.Context, roomID uuid.UUID) (Settings, Room, error) {
	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		return Settings{}, Room{}, err
	}
	room, err := c.store.Get(ctx, roomID)
	if err != nil {
		return Settings{}, Room{}, err
	}
	return settings, room, nil
}

func (c *RoomsController) snapshot(ctx context.Context, settings Settings, room Room) ([]byte, error) {
	if !settings.BridgeConfigured() {
		return nil, fmt.Errorf("%w: camera bridge is not configured", types.ErrValidation)
	}

	cameraID := room.CameraID
	if cameraID == nil || *cameraID == "" {
		cameraID = settings.DefaultCameraID
	}
	if cameraID == nil || *cameraID == "" {
		return nil, fmt.Errorf("%w: room %s has no camera assigned", types.ErrValidation, room.ID)
	}

	return c.bridge.Snapshot(ctx, services.BridgeConfigFromSettings(settings), *cameraID)
}

func (c *RoomsController) recompute(ctx context.Context, log logger.Logger) {
	if c.autoscan == nil {
		return
	}
	if _, err := c.autoscan.Recompute(ctx); err != nil {
		log.Warn("Could not recompute scan schedule", "error", err)
	}
}

func (c *RoomsController) publish(messageType events.MessageType, roomID uuid.UUID, data map[string]any) {
	if c.publisher == nil {
		return
	}
	event := events.Event{Type: messageType, RoomID: &roomID, Data: data}
	if err := c.publisher.Publish(events.ROOMS_CHANNEL, event); err != nil {
		c.log.Function("publish").Warn("Could not publish event", "type", messageType, "roomID", roomID, "error", err)
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: room name is required", types.ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return "", fmt.Errorf("%w: room name longer than %d characters", types.ErrValidation, MaxRoomNameLength)
	}
	return name, nil
}

func validateCameraID(cameraID *string) (*string, error) {
	if cameraID == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*cameraID)
	if id == "" {
		return nil, nil
	}
	if !strings.HasPrefix(id, cameraEntityPrefix) {
		return nil, fmt.Errorf("%w: camera id %q must start with %q", types.ErrValidation, id, cameraEntityPrefix)
	}
	return &id, nil
}
