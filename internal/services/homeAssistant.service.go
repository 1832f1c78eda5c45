package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"babcia/internal/database"
	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/types"
	"babcia/internal/utils"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	HomeAssistantServiceName = "homeAssistant"

	listCamerasTimeout    = 15 * time.Second
	snapshotTimeout       = 30 * time.Second
	testConnectionTimeout = 10 * time.Second
	cameraEntityPrefix    = "camera."
)

// BridgeConfig addresses one Home Assistant instance
type BridgeConfig struct {
	BaseURL string
	Token   string
}

func (c BridgeConfig) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.Token) != ""
}

func BridgeConfigFromSettings(settings models.Settings) BridgeConfig {
	return BridgeConfig{BaseURL: settings.HomeAssistantURL, Token: settings.HomeAssistantToken}
}

// CameraBridge pulls camera lists and still snapshots from a smart-home hub
type CameraBridge interface {
	ListCameras(ctx context.Context, cfg BridgeConfig) ([]models.Camera, error)
	Snapshot(ctx context.Context, cfg BridgeConfig, cameraID string) ([]byte, error)
	TestConnection(ctx context.Context, cfg BridgeConfig) (bool, error)
}

type haState struct {
	EntityID   string `json:"entity_id"`
	State      string `json:"state"`
	Attributes struct {
		FriendlyName string `json:"friendly_name"`
	} `json:"attributes"`
}

type HomeAssistantService struct {
	client *resty.Client
	cache  database.CacheClient
	group  singleflight.Group
	log    logger.Logger
}

func NewHomeAssistantService(cache database.CacheClient) *HomeAssistantService {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return &HomeAssistantService{
		client: client,
		cache:  cache,
		log:    logger.New("HomeAssistantService"),
	}
}

// ListCameras returns the camera entities of the hub. Results are cached per
// hub and token, and concurrent callers share a single request.
func (s *HomeAssistantService) ListCameras(ctx context.Context, cfg BridgeConfig) ([]models.Camera, error) {
	log := s.log.Function("ListCameras")

	if !cfg.Configured() {
		return nil, log.ErrorWithType(types.ErrMissingCredential, "camera bridge is not configured")
	}

	key := utils.HashFields(map[string]any{"url": normalizeBaseURL(cfg.BaseURL), "token": cfg.Token})

	var cameras []models.Camera
	found, err := s.camerasCache(ctx, key).Get(&cameras)
	if err != nil {
		log.Warn("failed to read camera cache", "error", err)
	}
	if found {
		return cameras, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		fetched, err := s.fetchCameras(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := s.camerasCache(ctx, key).WithStruct(fetched).WithTTL(CamerasCacheTTL).Set(); err != nil {
			log.Warn("failed to cache camera list", "error", err)
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]models.Camera), nil
}

func (s *HomeAssistantService) fetchCameras(ctx context.Context, cfg BridgeConfig) ([]models.Camera, error) {
	log := s.log.Function("fetchCameras")

	ctx, cancel := context.WithTimeout(ctx, listCamerasTimeout)
	defer cancel()

	var states []haState
	resp, err := s.request(ctx, cfg).SetResult(&states).Get(endpoint(cfg.BaseURL, "api/states"))
	if err := s.checkResponse(log, resp, err, "failed to fetch states"); err != nil {
		return nil, err
	}

	cameras := make([]models.Camera, 0)
	for _, state := range states {
		if !strings.HasPrefix(state.EntityID, cameraEntityPrefix) {
			continue
		}
		name := state.Attributes.FriendlyName
		if name == "" {
			name = cameraDisplayName(state.EntityID)
		}
		cameras = append(cameras, models.Camera{EntityID: state.EntityID, Name: name, State: state.State})
	}

	log.Info("Fetched cameras", "count", len(cameras), "entities", len(states))
	return cameras, nil
}

// Snapshot fetches the current still image of a camera entity
func (s *HomeAssistantService) Snapshot(ctx context.Context, cfg BridgeConfig, cameraID string) ([]byte, error) {
	log := s.log.Function("Snapshot")

	if !cfg.Configured() {
		return nil, log.ErrorWithType(types.ErrMissingCredential, "camera bridge is not configured")
	}
	if !strings.HasPrefix(cameraID, cameraEntityPrefix) || strings.ContainsAny(cameraID, "/?#") {
		return nil, log.ErrorWithType(types.ErrValidation, "invalid camera entity id", "cameraID", cameraID)
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	resp, err := s.request(ctx, cfg).
		SetHeader("Accept", "image/*").
		Get(endpoint(cfg.BaseURL, "api/camera_proxy/"+url.PathEscape(cameraID)))
	if err := s.checkResponse(log, resp, err, "failed to fetch snapshot", "cameraID", cameraID); err != nil {
		return nil, err
	}

	body := resp.Body()
	if _, err := utils.DetectImageFormat(body); err != nil {
		return nil, log.ErrorWithType(types.ErrImageProcessing, "snapshot is not an image",
			"cameraID", cameraID, "error", err)
	}
	return body, nil
}

// TestConnection reports whether the hub accepts the token. Unreachable hubs
// and rejected tokens are both false.
func (s *HomeAssistantService) TestConnection(ctx context.Context, cfg BridgeConfig) (bool, error) {
	log := s.log.Function("TestConnection")

	if !cfg.Configured() {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, testConnectionTimeout)
	defer cancel()

	resp, err := s.request(ctx, cfg).Get(endpoint(cfg.BaseURL, "api/"))
	if err != nil {
		log.Warn("camera bridge unreachable", "error", err)
		return false, nil
	}
	return resp.StatusCode() == http.StatusOK, nil
}

func (s *HomeAssistantService) request(ctx context.Context, cfg BridgeConfig) *resty.Request {
	return s.client.R().SetContext(ctx).SetAuthToken(cfg.Token)
}

func (s *HomeAssistantService) checkResponse(
	log logger.Logger,
	resp *resty.Response,
	err error,
	msg string,
	args ...any,
) error {
	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = "request timed out"
		}
		return log.Err(msg, types.NewServiceError(HomeAssistantServiceName, 0, message), args...)
	}
	if resp.IsSuccess() {
		return nil
	}
	return log.Err(
		msg,
		types.NewServiceError(HomeAssistantServiceName, resp.StatusCode(), strings.TrimSpace(resp.Status())),
		append(args, "status", resp.StatusCode())...,
	)
}

func (s *HomeAssistantService) camerasCache(ctx context.Context, key string) *database.CacheBuilder {
	return database.NewCacheBuilder(s.cache, key).WithHash(CAMERAS_CACHE_HASH).WithContext(ctx)
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}

func endpoint(baseURL, path string) string {
	return fmt.Sprintf("%s%s", normalizeBaseURL(baseURL), path)
}

// cameraDisplayName derives "Living Room" from "camera.living_room"
func cameraDisplayName(entityID string) string {
	name := strings.ReplaceAll(strings.TrimPrefix(entityID, cameraEntityPrefix), "_", " ")
	return cases.Title(language.English).String(name)
}
