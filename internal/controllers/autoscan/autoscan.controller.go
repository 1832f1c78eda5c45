package autoscanController

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"babcia/config"
	scanController "babcia/internal/controllers/scan"
	"babcia/internal/events"
	"babcia/internal/logger"
	. "babcia/internal/models"
	"babcia/internal/repositories"
	"babcia/internal/services"
	"babcia/internal/state"
	"babcia/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	ReminderBody        = "Time for a fresh room scan."
	defaultConcurrency  = 2
	reminderTitlePrefix = "Scan "
)

// Plan is the outcome of a recompute: the armed background wake, if any
// room is eligible, and the reminders issued for every other scheduled room
type Plan struct {
	WakeAt    *time.Time          `json:"wakeAt,omitempty"`
	Reminders []services.Reminder `json:"reminders"`
}

type AutoscanControllerInterface interface {
	Register()
	Recompute(ctx context.Context) (Plan, error)
	RunWake(ctx context.Context) bool
	NormalizeSchedules(ctx context.Context) error
	UpdateSchedule(ctx context.Context, roomID uuid.UUID, enabled bool, cadence ScanCadence) (Room, error)
}

type AutoscanController struct {
	store       *state.Store
	host        services.ScanHost
	bridge      services.CameraBridge
	scan        scanController.ScanControllerInterface
	settings    repositories.SettingsRepository
	defaults    Settings
	publisher   events.Publisher
	concurrency int
	recomputeMu sync.Mutex
	log         logger.Logger
	now         func() time.Time
}

func New(
	store *state.Store,
	host services.ScanHost,
	services services.Service,
	repos repositories.Repository,
	scan scanController.ScanControllerInterface,
	publisher events.Publisher,
	config config.Config,
) AutoscanControllerInterface {
	concurrency := config.AutoScanConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &AutoscanController{
		store:       store,
		host:        host,
		bridge:      services.Bridge,
		scan:        scan,
		settings:    repos.Settings,
		defaults:    config.DefaultSettings(),
		publisher:   publisher,
		concurrency: concurrency,
		log:         logger.New("autoscanController"),
		now:         time.Now,
	}
}

// Register hands the wake handler to the host
func (c *AutoscanController) Register() {
	c.host.RegisterBackgroundHandler(c.RunWake)
}

// Recompute rebuilds every reminder and the single background wake from the
// current rooms and settings
func (c *AutoscanController) Recompute(ctx context.Context) (Plan, error) {
	c.recomputeMu.Lock()
	defer c.recomputeMu.Unlock()

	log := c.log.TraceFromContext(ctx).Function("Recompute")

	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		return Plan{}, log.Err("failed to load settings", err)
	}
	rooms, err := c.store.Snapshot(ctx)
	if err != nil {
		return Plan{}, log.Err("failed to snapshot rooms", err)
	}

	c.host.CancelAllReminders(ctx)
	c.host.CancelBackgroundWake()

	now := c.now()
	plan := Plan{Reminders: []services.Reminder{}}
	notify := true
	asked := false

	for _, room := range rooms {
		schedule := room.ScanSchedule
		if schedule == nil || !schedule.Enabled {
			continue
		}

		nextRun := now.Add(schedule.Cadence.Interval())
		if schedule.NextRun != nil {
			nextRun = *schedule.NextRun
		}

		if room.EligibleForBackgroundScan(settings) {
			if plan.WakeAt == nil || nextRun.Before(*plan.WakeAt) {
				at := nextRun
				plan.WakeAt = &at
			}
			continue
		}

		if !asked {
			notify = c.host.RequestNotificationPermission(ctx)
			asked = true
			if !notify {
				log.Warn("Notifications unavailable, reminders not scheduled")
			}
		}
		if !notify {
			continue
		}

		reminder := services.Reminder{
			ID:     room.ID.String(),
			RoomID: room.ID,
			Title:  reminderTitlePrefix + room.Name,
			Body:   ReminderBody,
			At:     nextRun,
		}
		if err := c.host.ScheduleReminder(ctx, reminder); err != nil {
			log.Warn("Could not schedule reminder", "roomID", room.ID, "error", err)
			continue
		}
		plan.Reminders = append(plan.Reminders, reminder)
	}

	if plan.WakeAt != nil {
		if err := c.host.ScheduleBackgroundWake(*plan.WakeAt); err != nil {
			return Plan{}, log.Err("failed to arm background wake", err, "at", *plan.WakeAt)
		}
	}

	log.Info("Scan schedule recomputed", "wakeAt", plan.WakeAt, "reminders", len(plan.Reminders))
	return plan, nil
}

// RunWake scans every due room the bridge can photograph and reports whether
// any room was scanned. Each room commits on its own; an expired ctx abandons
// the rooms still in flight.
func (c *AutoscanController) RunWake(ctx context.Context) bool {
	log := c.log.TraceFromContext(ctx).Function("RunWake")

	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		log.Er("failed to load settings", err)
		return false
	}
	if !settings.HasCredential() {
		log.Info("No analysis credential, skipping background scan")
		return false
	}

	rooms, err := c.store.Snapshot(ctx)
	if err != nil {
		log.Er("failed to snapshot rooms", err)
		return false
	}

	now := c.now()
	bridge := services.BridgeConfigFromSettings(settings)

	var (
		group   errgroup.Group
		scanned atomic.Int32
	)
	group.SetLimit(c.concurrency)

	for _, room := range rooms {
		if !room.EligibleForBackgroundScan(settings) || !room.ScanSchedule.IsDue(now) {
			continue
		}
		roomID := room.ID
		group.Go(func() error {
			if c.scanRoom(ctx, log, roomID, settings, bridge) {
				scanned.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait()

	count := int(scanned.Load())
	if count > 0 {
		if _, err := c.Recompute(context.WithoutCancel(ctx)); err != nil {
			log.Er("failed to recompute after wake", err)
		}
	}

	c.publish(events.WAKE_COMPLETE, nil, map[string]any{"scanned": count})
	log.Info("Background wake processed", "scanned", count, "expired", ctx.Err() != nil)
	return count > 0
}

func (c *AutoscanController) scanRoom(
	ctx context.Context,
	log logger.Logger,
	roomID uuid.UUID,
	settings Settings,
	bridge services.BridgeConfig,
) bool {
	if ctx.Err() != nil {
		return false
	}

	unlock, err := c.store.Lock(ctx, roomID)
	if err != nil {
		log.Info("Wake ended while the room was busy", "roomID", roomID)
		return false
	}
	defer unlock()

	room, err := c.store.Get(ctx, roomID)
	if err != nil {
		log.Warn("Room vanished before its scan", "roomID", roomID, "error", err)
		return false
	}
	if !room.EligibleForBackgroundScan(settings) || !room.ScanSchedule.IsDue(c.now()) {
		return false
	}

	image, err := c.bridge.Snapshot(ctx, bridge, *room.CameraID)
	if err != nil {
		log.Warn("Camera snapshot failed", "roomID", roomID, "cameraID", *room.CameraID, "error", err)
		return false
	}

	scanned, err := c.scan.Scan(ctx, scanController.ScanRequest{
		Room:       room,
		Image:      image,
		Credential: settings.GeminiAPIKey,
		Source:     CaptureSourceHomeAssistant,
	})
	if err != nil {
		log.Warn("Background scan failed", "roomID", roomID, "error", err)
		return false
	}
	if ctx.Err() != nil {
		log.Warn("Wake expired, abandoning scan", "roomID", roomID)
		return false
	}

	scanned.ScanSchedule.MarkRan(c.now())
	if err := c.store.Commit(ctx, scanned); err != nil {
		log.Warn("Background scan not committed", "roomID", roomID, "error", err)
		return false
	}

	c.publish(events.SCAN_COMPLETE, &roomID, map[string]any{
		"source": CaptureSourceHomeAssistant,
		"tasks":  len(scanned.Tasks),
	})
	return true
}

// NormalizeSchedules gives every enabled schedule without a next run one
// interval from now
func (c *AutoscanController) NormalizeSchedules(ctx context.Context) error {
	now := c.now()
	return c.store.Update(ctx, func(rooms []Room) ([]Room, error) {
		for i := range rooms {
			schedule := rooms[i].ScanSchedule
			if schedule != nil && schedule.Enabled && schedule.NextRun == nil {
				schedule.RefreshNextRun(now)
			}
		}
		return rooms, nil
	})
}

// UpdateSchedule turns a room's automatic scans on or off and recomputes.
// Disabling clears the next run; enabling keeps an existing one.
func (c *AutoscanController) UpdateSchedule(
	ctx context.Context,
	roomID uuid.UUID,
	enabled bool,
	cadence ScanCadence,
) (Room, error) {
	log := c.log.TraceFromContext(ctx).Function("UpdateSchedule")

	if cadence != CadenceHourly && cadence != CadenceDaily {
		return Room{}, fmt.Errorf("%w: unknown cadence %q", types.ErrValidation, cadence)
	}

	unlock, err := c.store.Lock(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	defer unlock()

	now := c.now()
	room, err := c.store.UpdateRoom(ctx, roomID, func(room *Room) error {
		if room.ScanSchedule == nil {
			room.ScanSchedule = &ScanSchedule{}
		}
		schedule := room.ScanSchedule
		schedule.Cadence = cadence
		schedule.Enabled = enabled
		switch {
		case !enabled:
			schedule.NextRun = nil
		case schedule.NextRun == nil:
			schedule.RefreshNextRun(now)
		}
		return nil
	})
	if err != nil {
		return Room{}, log.Err("failed to update schedule", err, "roomID", roomID)
	}

	if _, err := c.Recompute(ctx); err != nil {
		log.Er("failed to recompute after schedule change", err, "roomID", roomID)
	}
	return room, nil
}

func (c *AutoscanController) publish(messageType events.MessageType, roomID *uuid.UUID, data map[string]any) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(events.ROOMS_CHANNEL, events.Event{Type: messageType, RoomID: roomID, Data: data})
	if err != nil {
		c.log.Function("publish").Warn("Could not publish event", "type", messageType, "error", err)
	}
}
