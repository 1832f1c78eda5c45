package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"babcia/config"
	"babcia/internal/app"
	"babcia/internal/controllers"
	roomsController "babcia/internal/controllers/rooms"
	"babcia/internal/handlers/middleware"
	. "babcia/internal/models"
	"babcia/internal/services"
	"babcia/internal/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRoomsController struct {
	mock.Mock
}

var _ roomsController.RoomsControllerInterface = (*MockRoomsController)(nil)

func (m *MockRoomsController) List(ctx context.Context) ([]Room, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockRoomsController) Get(ctx context.Context, roomID uuid.UUID) (Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) Create(ctx context.Context, request roomsController.CreateRoomRequest) (Room, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) Delete(ctx context.Context, roomID uuid.UUID) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *MockRoomsController) UpdateCamera(ctx context.Context, roomID uuid.UUID, request roomsController.UpdateCameraRequest) (Room, error) {
	args := m.Called(ctx, roomID, request)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) Scan(ctx context.Context, roomID uuid.UUID, image []byte, source CaptureSource) (Room, error) {
	args := m.Called(ctx, roomID, image, source)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) ScanFromCamera(ctx context.Context, roomID uuid.UUID) (Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) Verify(ctx context.Context, roomID uuid.UUID, image []byte, source CaptureSource) (VerificationOutcome, error) {
	args := m.Called(ctx, roomID, image, source)
	return args.Get(0).(VerificationOutcome), args.Error(1)
}

func (m *MockRoomsController) VerifyFromCamera(ctx context.Context, roomID uuid.UUID) (VerificationOutcome, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(VerificationOutcome), args.Error(1)
}

func (m *MockRoomsController) Override(ctx context.Context, roomID uuid.UUID) (Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) SetTaskCompletion(ctx context.Context, roomID uuid.UUID, taskID uuid.UUID, completed bool) (Room, error) {
	args := m.Called(ctx, roomID, taskID, completed)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) UpdateSchedule(ctx context.Context, roomID uuid.UUID, request roomsController.UpdateScheduleRequest) (Room, error) {
	args := m.Called(ctx, roomID, request)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRoomsController) Progress(ctx context.Context) (Progress, error) {
	args := m.Called(ctx)
	return args.Get(0).(Progress), args.Error(1)
}

func (m *MockRoomsController) Image(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockRoomsController) GetSettings(ctx context.Context) (SettingsView, error) {
	args := m.Called(ctx)
	return args.Get(0).(SettingsView), args.Error(1)
}

func (m *MockRoomsController) UpdateSettings(ctx context.Context, update SettingsUpdate) (SettingsView, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(SettingsView), args.Error(1)
}

func (m *MockRoomsController) TestCredential(ctx context.Context, request roomsController.TestCredentialRequest) (bool, error) {
	args := m.Called(ctx, request)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomsController) TestBridge(ctx context.Context, request roomsController.TestBridgeRequest) (bool, error) {
	args := m.Called(ctx, request)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomsController) ListCameras(ctx context.Context) ([]Camera, error) {
	args := m.Called(ctx)
	cameras, _ := args.Get(0).([]Camera)
	return cameras, args.Error(1)
}

func (m *MockRoomsController) Personas() []PersonaInfo {
	return m.Called().Get(0).([]PersonaInfo)
}

func (m *MockRoomsController) Interactions(ctx context.Context, persona string, limit int) ([]Interaction, error) {
	args := m.Called(ctx, persona, limit)
	interactions, _ := args.Get(0).([]Interaction)
	return interactions, args.Error(1)
}

func newTestApp(t *testing.T, secret string) (*fiber.App, *MockRoomsController, *services.AuthService) {
	t.Helper()

	rooms := &MockRoomsController{}
	t.Cleanup(func() { rooms.AssertExpectations(t) })

	cfg := config.Config{GeneralVersion: "test", APIJWTSecret: secret}
	svc := services.Service{Auth: services.NewAuthService(secret)}
	application := &app.App{
		Config:      cfg,
		Services:    svc,
		Controllers: controllers.Controllers{Rooms: rooms},
		Middleware:  middleware.New(cfg, svc),
	}

	server := fiber.New()
	require.NoError(t, Router(server, application))
	return server, rooms, svc.Auth
}

func doRequest(t *testing.T, server *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := server.Test(req, int((5 * time.Second).Milliseconds()))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string]any
	if len(body) > 0 && resp.Header.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON {
		require.NoError(t, json.Unmarshal(body, &payload))
	}
	return resp.StatusCode, payload
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func uploadRequest(t *testing.T, target string, image []byte, source string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if image != nil {
		part, err := writer.CreateFormFile(imageFormField, "room.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	if source != "" {
		require.NoError(t, writer.WriteField(sourceFormField, source))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestApp(t, "secret")

	status, payload := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "test", payload["version"])
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     func(auth *services.AuthService) string
		wantStatus int
	}{
		{
			name:       "missing header",
			header:     func(*services.AuthService) string { return "" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			header:     func(*services.AuthService) string { return "Token abc" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad token",
			header:     func(*services.AuthService) string { return "Bearer nope" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "valid token",
			header: func(auth *services.AuthService) string {
				token, _ := auth.IssueToken("tablet", time.Hour)
				return "Bearer " + token
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rooms, auth := newTestApp(t, "secret")
			if tt.wantStatus == http.StatusOK {
				rooms.On("List", mock.Anything).Return([]Room{}, nil).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
			if header := tt.header(auth); header != "" {
				req.Header.Set(fiber.HeaderAuthorization, header)
			}

			status, _ := doRequest(t, server, req)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestCreateRoom(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	request := roomsController.CreateRoomRequest{Name: "Kitchen", ImageSource: "camera"}
	room := NewRoom("Kitchen", PersonaClassic, ImageSourceCamera, nil)
	rooms.On("Create", mock.Anything, request).Return(room, nil).Once()

	status, payload := doRequest(t, server, jsonRequest(http.MethodPost, "/api/rooms", request))

	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, room.ID.String(), payload["room"].(map[string]any)["id"])
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantDetails bool
	}{
		{name: "not found", err: types.ErrNotFound, wantStatus: http.StatusNotFound, wantDetails: true},
		{name: "busy", err: types.ErrRoomBusy, wantStatus: http.StatusConflict, wantDetails: true},
		{name: "missing key", err: types.ErrMissingCredential, wantStatus: http.StatusPreconditionFailed, wantDetails: true},
		{name: "internal", err: types.ErrStorage, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rooms, _ := newTestApp(t, "")
			roomID := uuid.New()
			rooms.On("Get", mock.Anything, roomID).Return(Room{}, tt.err).Once()

			status, payload := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/rooms/"+roomID.String(), nil))

			assert.Equal(t, tt.wantStatus, status)
			_, hasDetails := payload["details"]
			assert.Equal(t, tt.wantDetails, hasDetails)
		})
	}
}

func TestGetRoom_InvalidID(t *testing.T) {
	server, _, _ := newTestApp(t, "")

	status, payload := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/rooms/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, payload["details"], "invalid id")
}

func TestScanUpload(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0}

	tests := []struct {
		name       string
		image      []byte
		source     string
		wantSource CaptureSource
		wantStatus int
	}{
		{name: "defaults to scan source", image: image, wantSource: CaptureSourceScan, wantStatus: http.StatusOK},
		{name: "manual upload", image: image, source: "manual", wantSource: CaptureSourceManual, wantStatus: http.StatusOK},
		{name: "unknown source", image: image, source: "drone", wantStatus: http.StatusBadRequest},
		{name: "missing image", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rooms, _ := newTestApp(t, "")
			roomID := uuid.New()
			if tt.wantStatus == http.StatusOK {
				rooms.On("Scan", mock.Anything, roomID, tt.image, tt.wantSource).Return(Room{ID: roomID}, nil).Once()
			}

			status, _ := doRequest(t, server, uploadRequest(t, "/api/rooms/"+roomID.String()+"/scan", tt.image, tt.source))
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestVerifyUpload_ReturnsOutcome(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	roomID := uuid.New()
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	rooms.On("Verify", mock.Anything, roomID, image, CaptureSourceVerify).
		Return(VerificationOutcome{Room: Room{ID: roomID}, NeedsRescan: true, Summary: "Dust remains"}, nil).Once()

	status, payload := doRequest(t, server, uploadRequest(t, "/api/rooms/"+roomID.String()+"/verify", image, ""))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, payload["needsRescan"])
	assert.Equal(t, "Dust remains", payload["summary"])
}

func TestSetTaskCompletion(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	roomID, taskID := uuid.New(), uuid.New()
	rooms.On("SetTaskCompletion", mock.Anything, roomID, taskID, true).Return(Room{ID: roomID}, nil).Once()

	target := "/api/rooms/" + roomID.String() + "/tasks/" + taskID.String()
	status, _ := doRequest(t, server, jsonRequest(http.MethodPatch, target, setTaskRequest{Completed: true}))

	assert.Equal(t, http.StatusOK, status)
}

func TestDeleteRoom(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	roomID := uuid.New()
	rooms.On("Delete", mock.Anything, roomID).Return(nil).Once()

	status, _ := doRequest(t, server, httptest.NewRequest(http.MethodDelete, "/api/rooms/"+roomID.String(), nil))

	assert.Equal(t, http.StatusNoContent, status)
}

func TestTestKey_EmptyBody(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	rooms.On("TestCredential", mock.Anything, roomsController.TestCredentialRequest{}).Return(true, nil).Once()

	status, payload := doRequest(t, server, httptest.NewRequest(http.MethodPost, "/api/settings/test-key", nil))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, payload["ok"])
}

func TestListInteractions_PassesLimit(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	rooms.On("Interactions", mock.Anything, "drill", 5).Return([]Interaction{}, nil).Once()

	status, _ := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/personas/drill/interactions?limit=5", nil))

	assert.Equal(t, http.StatusOK, status)
}

func TestGetImage(t *testing.T) {
	server, rooms, _ := newTestApp(t, "")
	name := services.NewImageName(services.ImageKindCapture, uuid.New())
	rooms.On("Image", mock.Anything, name).Return([]byte("jpeg-bytes"), nil).Once()

	resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/api/images/"+name, nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderCacheControl), "immutable")
}
