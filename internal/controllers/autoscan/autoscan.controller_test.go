package autoscanController

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"babcia/config"
	scanController "babcia/internal/controllers/scan"
	"babcia/internal/mocks"
	. "babcia/internal/models"
	"babcia/internal/repositories"
	"babcia/internal/services"
	"babcia/internal/state"
	"babcia/internal/types"
	"babcia/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var wakeTime = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

type fakeScanner struct {
	mu    sync.Mutex
	calls []scanController.ScanRequest
	err   error
}

func (f *fakeScanner) Scan(ctx context.Context, request scanController.ScanRequest) (Room, error) {
	f.mu.Lock()
	f.calls = append(f.calls, request)
	f.mu.Unlock()
	if f.err != nil {
		return Room{}, f.err
	}
	room := request.Room.Clone()
	room.Tasks = []CleaningTask{NewCleaningTask("Scanned task")}
	return room, nil
}

func (f *fakeScanner) Calls() []scanController.ScanRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scanController.ScanRequest(nil), f.calls...)
}

type autoscanFixture struct {
	controller *AutoscanController
	store      *state.Store
	repo       *mocks.MemoryRoomRepository
	host       *mocks.RecordingScanHost
	bridge     *mocks.MockCameraBridge
	scanner    *fakeScanner
	settings   *mocks.MemorySettingsRepository
}

func bridgeSettings() Settings {
	return Settings{
		GeminiAPIKey:       "key",
		HomeAssistantURL:   "http://ha.local:8123",
		HomeAssistantToken: "token",
		SelectedPersona:    PersonaClassic,
	}
}

func newAutoscanFixture(t *testing.T, settings Settings, rooms ...Room) autoscanFixture {
	t.Helper()
	repo := mocks.NewMemoryRoomRepository(rooms...)
	store, err := state.New(context.Background(), repo)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	host := &mocks.RecordingScanHost{Permission: true}
	bridge := &mocks.MockCameraBridge{}
	scanner := &fakeScanner{}
	settingsRepo := mocks.NewMemorySettingsRepository(settings)

	controller := New(
		store,
		host,
		services.Service{Bridge: bridge},
		repositories.Repository{Settings: settingsRepo},
		scanner,
		nil,
		config.Config{AutoScanConcurrency: 2},
	).(*AutoscanController)
	controller.now = func() time.Time { return wakeTime }
	controller.Register()

	return autoscanFixture{
		controller: controller,
		store:      store,
		repo:       repo,
		host:       host,
		bridge:     bridge,
		scanner:    scanner,
		settings:   settingsRepo,
	}
}

func cameraRoom(name string, nextRun *time.Time) Room {
	room := NewRoom(name, PersonaClassic, ImageSourceHomeAssistant, utils.Ptr("camera."+name))
	room.ScanSchedule = &ScanSchedule{Cadence: CadenceHourly, Enabled: true, NextRun: utils.CopyPtr(nextRun)}
	return room
}

func manualRoom(name string, schedule *ScanSchedule) Room {
	room := NewRoom(name, PersonaClassic, ImageSourceCamera, nil)
	room.ScanSchedule = schedule
	return room
}

func TestRecompute_ArmsEarliestWakeAndRemindsTheRest(t *testing.T) {
	later := wakeTime.Add(2 * time.Hour)
	sooner := wakeTime.Add(time.Hour)
	reminderAt := wakeTime.Add(3 * time.Hour)

	rooms := []Room{
		cameraRoom("hall", &later),
		cameraRoom("porch", &sooner),
		manualRoom("Kitchen", &ScanSchedule{Cadence: CadenceDaily, Enabled: true}),
		manualRoom("Bath", &ScanSchedule{Cadence: CadenceDaily, Enabled: true, NextRun: &reminderAt}),
		manualRoom("Attic", &ScanSchedule{Cadence: CadenceDaily, Enabled: false, NextRun: &sooner}),
		manualRoom("Cellar", nil),
	}

	tests := []struct {
		name          string
		settings      Settings
		permission    bool
		wantWake      *time.Time
		wantReminders map[string]time.Time
	}{
		{
			name:       "bridge configured",
			settings:   bridgeSettings(),
			permission: true,
			wantWake:   &sooner,
			wantReminders: map[string]time.Time{
				"Scan Kitchen": wakeTime.Add(24 * time.Hour),
				"Scan Bath":    reminderAt,
			},
		},
		{
			name:       "no bridge token",
			settings:   Settings{HomeAssistantURL: "http://ha.local:8123"},
			permission: true,
			wantReminders: map[string]time.Time{
				"Scan hall":    later,
				"Scan porch":   sooner,
				"Scan Kitchen": wakeTime.Add(24 * time.Hour),
				"Scan Bath":    reminderAt,
			},
		},
		{
			name:          "notifications denied",
			settings:      bridgeSettings(),
			permission:    false,
			wantWake:      &sooner,
			wantReminders: map[string]time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAutoscanFixture(t, tt.settings, rooms...)
			f.host.Permission = tt.permission
			require.NoError(t, f.host.ScheduleBackgroundWake(wakeTime.Add(99*time.Hour)))

			plan, err := f.controller.Recompute(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantWake, plan.WakeAt)
			assert.Equal(t, tt.wantWake, f.host.WakeAt())

			got := make(map[string]time.Time)
			for _, reminder := range f.host.Reminders() {
				assert.Equal(t, ReminderBody, reminder.Body)
				got[reminder.Title] = reminder.At
			}
			assert.Equal(t, tt.wantReminders, got)
			assert.Len(t, plan.Reminders, len(tt.wantReminders))
		})
	}
}

func TestRunWake_ScansDueRooms(t *testing.T) {
	past := wakeTime.Add(-time.Minute)
	future := wakeTime.Add(30 * time.Minute)

	due := cameraRoom("hall", &past)
	broken := cameraRoom("porch", &past)
	notDue := cameraRoom("garage", &future)

	f := newAutoscanFixture(t, bridgeSettings(), due, broken, notDue)
	cfg := services.BridgeConfig{BaseURL: "http://ha.local:8123", Token: "token"}
	f.bridge.On("Snapshot", mock.Anything, cfg, "camera.hall").Return(mocks.PNG(4, 4), nil)
	f.bridge.On("Snapshot", mock.Anything, cfg, "camera.porch").Return(nil, types.NewServiceError("homeAssistant", 500, "boom"))

	assert.True(t, f.host.Fire(context.Background()))
	f.bridge.AssertExpectations(t)

	calls := f.scanner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, due.ID, calls[0].Room.ID)
	assert.Equal(t, CaptureSourceHomeAssistant, calls[0].Source)
	assert.Equal(t, "key", calls[0].Credential)

	rooms, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	byID := make(map[uuid.UUID]Room)
	for _, room := range rooms {
		byID[room.ID] = room
	}

	scanned := byID[due.ID]
	assert.Equal(t, "Scanned task", scanned.Tasks[0].Title)
	assert.Equal(t, wakeTime, *scanned.ScanSchedule.LastRun)
	assert.Equal(t, wakeTime.Add(time.Hour), *scanned.ScanSchedule.NextRun)

	failed := byID[broken.ID]
	assert.Empty(t, failed.Tasks)
	assert.Equal(t, past, *failed.ScanSchedule.NextRun, "failed rooms keep their schedule")

	require.NotNil(t, f.host.WakeAt(), "wake re-armed after a successful scan")
	assert.Equal(t, past, *f.host.WakeAt())
}

func TestRunWake_NothingToDo(t *testing.T) {
	past := wakeTime.Add(-time.Minute)

	tests := []struct {
		name     string
		settings Settings
		ctx      func() context.Context
		scanErr  error
		snapshot bool
	}{
		{
			name:     "no credential",
			settings: Settings{HomeAssistantURL: "http://ha.local:8123", HomeAssistantToken: "token"},
			ctx:      context.Background,
		},
		{
			name:     "expired wake",
			settings: bridgeSettings(),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
		{
			name:     "analysis fails",
			settings: bridgeSettings(),
			ctx:      context.Background,
			scanErr:  errors.New("analysis down"),
			snapshot: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := cameraRoom("hall", &past)
			f := newAutoscanFixture(t, tt.settings, room)
			f.scanner.err = tt.scanErr
			if tt.snapshot {
				f.bridge.On("Snapshot", mock.Anything, mock.Anything, "camera.hall").Return(mocks.PNG(4, 4), nil)
			}

			assert.False(t, f.controller.RunWake(tt.ctx()))

			assert.Zero(t, f.repo.Saves)
			assert.Nil(t, f.host.WakeAt())
		})
	}
}

func TestRunWake_BusyRoom(t *testing.T) {
	past := wakeTime.Add(-time.Minute)

	t.Run("waits for the holder to finish", func(t *testing.T) {
		room := cameraRoom("hall", &past)
		f := newAutoscanFixture(t, bridgeSettings(), room)
		f.bridge.On("Snapshot", mock.Anything, mock.Anything, "camera.hall").Return(mocks.PNG(4, 4), nil)

		unlock, err := f.store.TryLock(room.ID)
		require.NoError(t, err)
		go func() {
			time.Sleep(20 * time.Millisecond)
			unlock()
		}()

		assert.True(t, f.controller.RunWake(context.Background()))
		assert.Len(t, f.scanner.Calls(), 1)
	})

	t.Run("gives up when the wake expires", func(t *testing.T) {
		room := cameraRoom("hall", &past)
		f := newAutoscanFixture(t, bridgeSettings(), room)

		unlock, err := f.store.TryLock(room.ID)
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		assert.False(t, f.controller.RunWake(ctx))
		assert.Empty(t, f.scanner.Calls())
		assert.Zero(t, f.repo.Saves)
	})
}

func TestNormalizeSchedules(t *testing.T) {
	existing := wakeTime.Add(10 * time.Minute)
	missing := manualRoom("Kitchen", &ScanSchedule{Cadence: CadenceDaily, Enabled: true})
	kept := manualRoom("Bath", &ScanSchedule{Cadence: CadenceHourly, Enabled: true, NextRun: &existing})
	disabled := manualRoom("Attic", &ScanSchedule{Cadence: CadenceHourly})
	f := newAutoscanFixture(t, bridgeSettings(), missing, kept, disabled)

	require.NoError(t, f.controller.NormalizeSchedules(context.Background()))

	rooms := f.repo.Stored()
	assert.Equal(t, wakeTime.Add(24*time.Hour), *rooms[0].ScanSchedule.NextRun)
	assert.Equal(t, existing, *rooms[1].ScanSchedule.NextRun)
	assert.Nil(t, rooms[2].ScanSchedule.NextRun)
}

func TestUpdateSchedule(t *testing.T) {
	room := manualRoom("Kitchen", nil)
	f := newAutoscanFixture(t, bridgeSettings(), room)
	ctx := context.Background()

	enabled, err := f.controller.UpdateSchedule(ctx, room.ID, true, CadenceHourly)
	require.NoError(t, err)
	require.NotNil(t, enabled.ScanSchedule.NextRun)
	assert.Equal(t, wakeTime.Add(time.Hour), *enabled.ScanSchedule.NextRun)
	require.Len(t, f.host.Reminders(), 1)

	again, err := f.controller.UpdateSchedule(ctx, room.ID, true, CadenceDaily)
	require.NoError(t, err)
	assert.Equal(t, wakeTime.Add(time.Hour), *again.ScanSchedule.NextRun, "existing next run is kept")
	assert.Equal(t, CadenceDaily, again.ScanSchedule.Cadence)

	disabled, err := f.controller.UpdateSchedule(ctx, room.ID, false, CadenceDaily)
	require.NoError(t, err)
	assert.Nil(t, disabled.ScanSchedule.NextRun)
	assert.Empty(t, f.host.Reminders())

	_, err = f.controller.UpdateSchedule(ctx, room.ID, true, ScanCadence("weekly"))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = f.controller.UpdateSchedule(ctx, uuid.New(), true, CadenceDaily)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
