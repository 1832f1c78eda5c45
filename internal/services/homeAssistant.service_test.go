package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"babcia/internal/models"
	"babcia/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "ha-token"

func newHubServer(t *testing.T, snapshot []byte, statesCalls *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/states", func(w http.ResponseWriter, r *http.Request) {
		if statesCalls != nil {
			atomic.AddInt32(statesCalls, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"entity_id":"camera.living_room","state":"idle","attributes":{}},
			{"entity_id":"light.kitchen","state":"on","attributes":{"friendly_name":"Kitchen Light"}},
			{"entity_id":"camera.hall","state":"streaming","attributes":{"friendly_name":"Front Hall"}}
		]`))
	})
	mux.HandleFunc("/api/camera_proxy/camera.hall", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(snapshot)
	})
	mux.HandleFunc("/api/camera_proxy/camera.broken", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"message":"API running."}`))
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHomeAssistantService_ListCameras(t *testing.T) {
	var calls int32
	server := newHubServer(t, nil, &calls)
	service := NewHomeAssistantService(nil)

	cameras, err := service.ListCameras(context.Background(), BridgeConfig{BaseURL: server.URL, Token: testToken})
	require.NoError(t, err)
	assert.Equal(t, []models.Camera{
		{EntityID: "camera.living_room", Name: "Living Room", State: "idle"},
		{EntityID: "camera.hall", Name: "Front Hall", State: "streaming"},
	}, cameras)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHomeAssistantService_Errors(t *testing.T) {
	server := newHubServer(t, nil, nil)
	service := NewHomeAssistantService(nil)
	ctx := context.Background()

	_, err := service.ListCameras(ctx, BridgeConfig{BaseURL: server.URL, Token: "wrong"})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = service.ListCameras(ctx, BridgeConfig{BaseURL: server.URL})
	assert.ErrorIs(t, err, types.ErrMissingCredential)

	_, err = service.Snapshot(ctx, BridgeConfig{BaseURL: server.URL, Token: testToken}, "camera.missing")
	var serviceErr *types.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusNotFound, serviceErr.StatusCode)

	_, err = service.Snapshot(ctx, BridgeConfig{BaseURL: server.URL, Token: testToken}, "camera.broken")
	assert.ErrorIs(t, err, types.ErrImageProcessing)

	_, err = service.Snapshot(ctx, BridgeConfig{BaseURL: server.URL, Token: testToken}, "../api/states")
	assert.ErrorIs(t, err, types.ErrValidation)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = service.ListCameras(ctx, BridgeConfig{BaseURL: closed.URL, Token: testToken})
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, 0, serviceErr.StatusCode)
}

func TestHomeAssistantService_Snapshot(t *testing.T) {
	snapshot := testImage(t, 6, 6)
	server := newHubServer(t, snapshot, nil)
	service := NewHomeAssistantService(nil)

	got, err := service.Snapshot(context.Background(), BridgeConfig{BaseURL: server.URL + "/", Token: testToken}, "camera.hall")
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
}

func TestHomeAssistantService_TestConnection(t *testing.T) {
	server := newHubServer(t, nil, nil)
	service := NewHomeAssistantService(nil)

	tests := []struct {
		name string
		cfg  BridgeConfig
		want bool
	}{
		{name: "accepted", cfg: BridgeConfig{BaseURL: server.URL, Token: testToken}, want: true},
		{name: "rejected token", cfg: BridgeConfig{BaseURL: server.URL, Token: "nope"}, want: false},
		{name: "not configured", cfg: BridgeConfig{}, want: false},
		{name: "unreachable", cfg: BridgeConfig{BaseURL: "http://127.0.0.1:1", Token: testToken}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := service.TestConnection(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCameraDisplayName(t *testing.T) {
	assert.Equal(t, "Living Room", cameraDisplayName("camera.living_room"))
	assert.Equal(t, "Garage", cameraDisplayName("camera.garage"))
}
