package roomsController

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	. "babcia/internal/models"
	"babcia/internal/services"
	"babcia/internal/types"
)

// TestCredentialRequest tests APIKey when given, otherwise the stored key
type TestCredentialRequest struct {
	APIKey *string `json:"apiKey,omitempty"`
}

// TestBridgeRequest overrides the stored bridge address and token
type TestBridgeRequest struct {
	URL   *string `json:"url,omitempty"`
	Token *string `json:"token,omitempty"`
}

func (c *RoomsController) GetSettings(ctx context.Context) (SettingsView, error) {
	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		return SettingsView{}, err
	}
	return settings.View(), nil
}

// UpdateSettings saves a partial change and recomputes the scan schedule when
// credentials or the bridge changed
func (c *RoomsController) UpdateSettings(ctx context.Context, update SettingsUpdate) (SettingsView, error) {
	log := c.log.TraceFromContext(ctx).Function("UpdateSettings")

	if update.SelectedPersona != nil {
		persona, err := ParsePersona(string(*update.SelectedPersona))
		if err != nil {
			return SettingsView{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
		}
		update.SelectedPersona = &persona
	}
	if update.HomeAssistantURL != nil {
		if err := validateBridgeURL(*update.HomeAssistantURL); err != nil {
			return SettingsView{}, err
		}
	}
	if update.DefaultCameraID != nil {
		cameraID, err := validateCameraID(update.DefaultCameraID)
		if err != nil {
			return SettingsView{}, err
		}
		if cameraID == nil {
			cameraID = new(string)
		}
		update.DefaultCameraID = cameraID
	}

	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		return SettingsView{}, err
	}

	schedulingChanged := update.Apply(&settings)
	if settings.DefaultCameraID != nil && *settings.DefaultCameraID == "" {
		settings.DefaultCameraID = nil
	}
	if err := c.settings.Save(ctx, &settings); err != nil {
		return SettingsView{}, log.Err("failed to save settings", err)
	}

	log.Info("Settings updated", "schedulingChanged", schedulingChanged, "persona", settings.ActivePersona())
	if schedulingChanged {
		c.recompute(ctx, log)
	}
	return settings.View(), nil
}

func (c *RoomsController) TestCredential(ctx context.Context, request TestCredentialRequest) (bool, error) {
	credential := ""
	if request.APIKey != nil {
		credential = *request.APIKey
	} else {
		settings, err := c.settings.GetOrSeed(ctx, c.defaults)
		if err != nil {
			return false, err
		}
		credential = settings.GeminiAPIKey
	}

	if strings.TrimSpace(credential) == "" {
		return false, fmt.Errorf("%w: no API key to test", types.ErrMissingCredential)
	}
	return c.analysis.TestCredential(ctx, strings.TrimSpace(credential))
}

func (c *RoomsController) TestBridge(ctx context.Context, request TestBridgeRequest) (bool, error) {
	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		return false, err
	}

	cfg := services.BridgeConfigFromSettings(settings)
	if request.URL != nil {
		if err := validateBridgeURL(*request.URL); err != nil {
			return false, err
		}
		cfg.BaseURL = strings.TrimSpace(*request.URL)
	}
	if request.Token != nil {
		cfg.Token = strings.TrimSpace(*request.Token)
	}
	return c.bridge.TestConnection(ctx, cfg)
}

func (c *RoomsController) ListCameras(ctx context.Context) ([]Camera, error) {
	settings, err := c.settings.GetOrSeed(ctx, c.defaults)
	if err != nil {
		return nil, err
	}
	if !settings.BridgeConfigured() {
		return nil, fmt.Errorf("%w: camera bridge is not configured", types.ErrValidation)
	}
	return c.bridge.ListCameras(ctx, services.BridgeConfigFromSettings(settings))
}

func (c *RoomsController) Personas() []PersonaInfo {
	personas := make([]PersonaInfo, 0, len(AllPersonas))
	for _, persona := range AllPersonas {
		personas = append(personas, persona.Info())
	}
	return personas
}

// Interactions returns a persona's remembered exchanges, oldest first
func (c *RoomsController) Interactions(ctx context.Context, persona string, limit int) ([]Interaction, error) {
	parsed, err := ParsePersona(persona)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	return c.interactions.History(ctx, parsed, limit)
}

func validateBridgeURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: bridge url %q must be an http(s) address", types.ErrValidation, raw)
	}
	return nil
}
