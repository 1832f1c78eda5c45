package models

import "strings"

// SettingsID is the primary key of the single settings row
const SettingsID = 1

type Settings struct {
	BaseModel
	GeminiAPIKey       string  `gorm:"type:text"                                 json:"-"`
	HomeAssistantURL   string  `gorm:"type:text"                                 json:"homeAssistantUrl"`
	HomeAssistantToken string  `gorm:"type:text"                                 json:"-"`
	DefaultCameraID    *string `gorm:"type:text"                                 json:"defaultCameraId,omitempty"`
	SelectedPersona    Persona `gorm:"type:varchar(32);not null;default:classic" json:"selectedPersona"`
}

func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.GeminiAPIKey) != ""
}

// BridgeConfigured reports whether the camera bridge has both an address and a token
func (s Settings) BridgeConfigured() bool {
	return strings.TrimSpace(s.HomeAssistantURL) != "" && strings.TrimSpace(s.HomeAssistantToken) != ""
}

// ActivePersona is the persona verifications run under
func (s Settings) ActivePersona() Persona {
	if _, ok := personaProfiles[s.SelectedPersona]; ok {
		return s.SelectedPersona
	}
	return PersonaClassic
}

// SettingsView is the API shape of Settings: secrets are reported by presence only
type SettingsView struct {
	HasGeminiAPIKey       bool    `json:"hasGeminiApiKey"`
	HomeAssistantURL      string  `json:"homeAssistantUrl"`
	HasHomeAssistantToken bool    `json:"hasHomeAssistantToken"`
	DefaultCameraID       *string `json:"defaultCameraId,omitempty"`
	SelectedPersona       Persona `json:"selectedPersona"`
}

func (s Settings) View() SettingsView {
	return SettingsView{
		HasGeminiAPIKey:       s.HasCredential(),
		HomeAssistantURL:      s.HomeAssistantURL,
		HasHomeAssistantToken: strings.TrimSpace(s.HomeAssistantToken) != "",
		DefaultCameraID:       s.DefaultCameraID,
		SelectedPersona:       s.ActivePersona(),
	}
}

// SettingsUpdate carries a partial settings change; nil fields are left alone
type SettingsUpdate struct {
	GeminiAPIKey       *string  `json:"geminiApiKey,omitempty"`
	HomeAssistantURL   *string  `json:"homeAssistantUrl,omitempty"`
	HomeAssistantToken *string  `json:"homeAssistantToken,omitempty"`
	DefaultCameraID    *string  `json:"defaultCameraId,omitempty"`
	SelectedPersona    *Persona `json:"selectedPersona,omitempty"`
}

// Apply merges the update into s and reports whether anything the scheduler
// depends on changed
func (u SettingsUpdate) Apply(s *Settings) (schedulingChanged bool) {
	if u.GeminiAPIKey != nil && *u.GeminiAPIKey != s.GeminiAPIKey {
		s.GeminiAPIKey = strings.TrimSpace(*u.GeminiAPIKey)
		schedulingChanged = true
	}
	if u.HomeAssistantURL != nil && *u.HomeAssistantURL != s.HomeAssistantURL {
		s.HomeAssistantURL = strings.TrimSpace(*u.HomeAssistantURL)
		schedulingChanged = true
	}
	if u.HomeAssistantToken != nil && *u.HomeAssistantToken != s.HomeAssistantToken {
		s.HomeAssistantToken = strings.TrimSpace(*u.HomeAssistantToken)
		schedulingChanged = true
	}
	if u.DefaultCameraID != nil {
		id := *u.DefaultCameraID
		s.DefaultCameraID = &id
	}
	if u.SelectedPersona != nil {
		s.SelectedPersona = *u.SelectedPersona
	}
	return schedulingChanged
}
