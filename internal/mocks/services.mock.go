// Package mocks holds test doubles for the service and repository
// interfaces shared by the controller, job and handler tests.
package mocks

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"babcia/internal/models"
	"babcia/internal/parser"
	"babcia/internal/services"

	"github.com/stretchr/testify/mock"
)

type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(
	ctx context.Context,
	image []byte,
	persona models.Persona,
	credential string,
) (parser.Analysis, error) {
	args := m.Called(ctx, image, persona, credential)
	return args.Get(0).(parser.Analysis), args.Error(1)
}

func (m *MockAnalysisService) Stylize(
	ctx context.Context,
	image []byte,
	persona models.Persona,
	credential string,
) ([]byte, error) {
	args := m.Called(ctx, image, persona, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockAnalysisService) Verify(
	ctx context.Context,
	req services.VerifyImagesRequest,
) (models.RoomVerificationResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.RoomVerificationResult), args.Error(1)
}

func (m *MockAnalysisService) TestCredential(ctx context.Context, credential string) (bool, error) {
	args := m.Called(ctx, credential)
	return args.Bool(0), args.Error(1)
}

type MockCameraBridge struct {
	mock.Mock
}

func (m *MockCameraBridge) ListCameras(ctx context.Context, cfg services.BridgeConfig) ([]models.Camera, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Camera), args.Error(1)
}

func (m *MockCameraBridge) Snapshot(ctx context.Context, cfg services.BridgeConfig, cameraID string) ([]byte, error) {
	args := m.Called(ctx, cfg, cameraID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCameraBridge) TestConnection(ctx context.Context, cfg services.BridgeConfig) (bool, error) {
	args := m.Called(ctx, cfg)
	return args.Bool(0), args.Error(1)
}

// RecordingScanHost keeps scheduling calls in memory instead of arming timers
type RecordingScanHost struct {
	mu         sync.Mutex
	handler    services.WakeHandler
	wakeAt     *time.Time
	reminders  []services.Reminder
	Permission bool
}

func (h *RecordingScanHost) RegisterBackgroundHandler(handler services.WakeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

func (h *RecordingScanHost) ScheduleBackgroundWake(at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakeAt = &at
	return nil
}

func (h *RecordingScanHost) CancelBackgroundWake() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakeAt = nil
}

func (h *RecordingScanHost) RequestNotificationPermission(ctx context.Context) bool {
	return h.Permission
}

func (h *RecordingScanHost) ScheduleReminder(ctx context.Context, reminder services.Reminder) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reminders = append(h.reminders, reminder)
	return nil
}

func (h *RecordingScanHost) CancelAllReminders(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reminders = nil
}

func (h *RecordingScanHost) WakeAt() *time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wakeAt == nil {
		return nil
	}
	at := *h.wakeAt
	return &at
}

func (h *RecordingScanHost) Reminders() []services.Reminder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]services.Reminder(nil), h.reminders...)
}

// Fire runs the registered wake handler the way the host would
func (h *RecordingScanHost) Fire(ctx context.Context) bool {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	if handler == nil {
		return false
	}
	return handler(ctx)
}

// PNG returns a small decodable image
func PNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
