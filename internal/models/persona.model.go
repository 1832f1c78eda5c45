package models

import (
	"fmt"
	"strings"
)

// Persona is a personality profile. It sets the tone of every prompt and
// how much evidence a verification needs before the persona is satisfied.
type Persona string

const (
	PersonaClassic        Persona = "classic"
	PersonaBaroness       Persona = "baroness"
	PersonaToughLifecoach Persona = "toughLifecoach"
	PersonaWarrior        Persona = "warrior"
	PersonaWellnessX      Persona = "wellnessX"
)

var AllPersonas = []Persona{
	PersonaClassic,
	PersonaBaroness,
	PersonaToughLifecoach,
	PersonaWarrior,
	PersonaWellnessX,
}

type personaProfile struct {
	displayName      string
	tagline          string
	description      string
	voiceGuidance    string
	visionStyle      string
	verificationMode string
	threshold        float64
}

var personaProfiles = map[Persona]personaProfile{
	PersonaClassic: {
		displayName:      "Babcia",
		tagline:          "Guilt with love",
		description:      "Your traditional Polish grandmother who just stopped by with food and happened to notice everything.",
		voiceGuidance:    "Speak like a loving Polish grandmother. Use 'Oj' and gentle guilt. Mention that you brought food. Be warm but notice everything.",
		visionStyle:      "STYLE (Medium: Traditional Chinese Paper Cut): intricate red paper cutting (jianzhi), red paper on white background, delicate cut paper with fine details, traditional folk art silhouette.",
		verificationMode: "Supportive",
		threshold:        0.3,
	},
	PersonaBaroness: {
		displayName:      "The Baroness",
		tagline:          "Old money shade",
		description:      "Elegance personified. She is not mad, just disappointed in a very expensive way.",
		voiceGuidance:    "Speak with refined aristocratic disappointment. Use 'darling' and subtle shade.",
		visionStyle:      "STYLE (Medium: Victorian Oil Painting): rich jewel tones of burgundy, gold, emerald and royal purple, dramatic golden hour warmth with visible brushstrokes, aristocratic atmosphere.",
		verificationMode: "Ruthless",
		threshold:        0.7,
	},
	PersonaToughLifecoach: {
		displayName:      "Tough Lifecoach",
		tagline:          "Fixes your mess",
		description:      "Direct, competent, and relentless about getting it done.",
		voiceGuidance:    "Speak like an efficient office manager. Be direct, slightly exasperated.",
		visionStyle:      "STYLE (Medium: Ink and Watercolor Illustration): clean black ink outlines in an architectural style, soft washes of sage green, warm beige and dusty rose, visible paper texture.",
		verificationMode: "Hard",
		threshold:        0.6,
	},
	PersonaWarrior: {
		displayName:      "Warrior Babcia",
		tagline:          "Attack the mess",
		description:      "Every cleaning task is an epic quest. Your mess is the final boss.",
		voiceGuidance:    "Speak like a battle commander. Use caps for emphasis. Treat cleaning as an epic quest.",
		visionStyle:      "STYLE (Medium: Art Deco Illustration): bold poster style in gold, black, cream and deep teal, geometric shapes and bold lines, 1920s glamour.",
		verificationMode: "Standard",
		threshold:        0.45,
	},
	PersonaWellnessX: {
		displayName:      "Wellness-X",
		tagline:          "Baymax vibes",
		description:      "Gentle robot companion. No judgment, just systematic support.",
		voiceGuidance:    "Speak like a calm robot companion. Use 'initiating' and 'protocol'.",
		visionStyle:      "STYLE (Medium: 1950s Retro Advertisement): vintage magazine advertisement, bright cheerful pastels and primary colors, clean mid-century modern illustration, optimistic Atomic Age mood.",
		verificationMode: "Trusted",
		threshold:        0.2,
	},
}

// ParsePersona validates a persona name. Empty input resolves to classic.
func ParsePersona(value string) (Persona, error) {
	if strings.TrimSpace(value) == "" {
		return PersonaClassic, nil
	}
	persona := Persona(value)
	if _, ok := personaProfiles[persona]; !ok {
		return "", fmt.Errorf("unknown persona %q", value)
	}
	return persona, nil
}

func (p Persona) profile() personaProfile {
	if profile, ok := personaProfiles[p]; ok {
		return profile
	}
	return personaProfiles[PersonaClassic]
}

func (p Persona) DisplayName() string          { return p.profile().displayName }
func (p Persona) Tagline() string              { return p.profile().tagline }
func (p Persona) Description() string          { return p.profile().description }
func (p Persona) VoiceGuidance() string        { return p.profile().voiceGuidance }
func (p Persona) VisionStylePrompt() string    { return p.profile().visionStyle }
func (p Persona) VerificationModeName() string { return p.profile().verificationMode }

// ConfidenceThreshold is the confidence below which an accepted verdict is
// annotated as low confidence.
func (p Persona) ConfidenceThreshold() float64 { return p.profile().threshold }

// IsTrusted reports whether a manual override by this persona counts as a
// verified pass.
func (p Persona) IsTrusted() bool { return p == PersonaWellnessX }

// PersonaInfo is the public view of a persona served by the API.
type PersonaInfo struct {
	ID                  Persona `json:"id"`
	DisplayName         string  `json:"displayName"`
	Tagline             string  `json:"tagline"`
	Description         string  `json:"description"`
	VerificationMode    string  `json:"verificationMode"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	Trusted             bool    `json:"trusted"`
}

func (p Persona) Info() PersonaInfo {
	return PersonaInfo{
		ID:                  p,
		DisplayName:         p.DisplayName(),
		Tagline:             p.Tagline(),
		Description:         p.Description(),
		VerificationMode:    p.VerificationModeName(),
		ConfidenceThreshold: p.ConfidenceThreshold(),
		Trusted:             p.IsTrusted(),
	}
}
