package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/parser"
	"babcia/internal/types"
	"babcia/internal/utils"

	"google.golang.org/genai"
)

const (
	GeminiServiceName    = "gemini"
	GeminiRequestTimeout = 30 * time.Second
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultImageModel    = "gemini-2.0-flash-preview-image-generation"
)

// AnalysisService is the vision capability the scan and verify flows run on
type AnalysisService interface {
	Analyze(ctx context.Context, image []byte, persona models.Persona, credential string) (parser.Analysis, error)
	Stylize(ctx context.Context, image []byte, persona models.Persona, credential string) ([]byte, error)
	Verify(ctx context.Context, req VerifyImagesRequest) (models.RoomVerificationResult, error)
	TestCredential(ctx context.Context, credential string) (bool, error)
}

// VerifyImagesRequest carries the evidence for one verification. Before is
// optional.
type VerifyImagesRequest struct {
	Before     []byte
	After      []byte
	Tasks      []models.CleaningTask
	Persona    models.Persona
	Credential string
}

// generateFunc is the single GenerateContent round trip every operation makes
type generateFunc func(
	ctx context.Context,
	credential string,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error)

type listModelsFunc func(ctx context.Context, credential string) error

type GeminiService struct {
	log        logger.Logger
	model      string
	imageModel string
	timeout    time.Duration
	generate   generateFunc
	listModels listModelsFunc
}

func NewGeminiService(model, imageModel string) *GeminiService {
	if model == "" {
		model = DefaultGeminiModel
	}
	if imageModel == "" {
		imageModel = DefaultImageModel
	}

	return &GeminiService{
		log:        logger.New("GeminiService"),
		model:      model,
		imageModel: imageModel,
		timeout:    GeminiRequestTimeout,
		generate:   generateWithGenAI,
		listModels: listModelsWithGenAI,
	}
}

func newGenAIClient(ctx context.Context, credential string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
}

func generateWithGenAI(
	ctx context.Context,
	credential string,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	client, err := newGenAIClient(ctx, credential)
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent(ctx, model, contents, config)
}

func listModelsWithGenAI(ctx context.Context, credential string) error {
	client, err := newGenAIClient(ctx, credential)
	if err != nil {
		return err
	}
	_, err = client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	return err
}

func (s *GeminiService) Analyze(
	ctx context.Context,
	image []byte,
	persona models.Persona,
	credential string,
) (parser.Analysis, error) {
	log := s.log.Function("Analyze")

	if strings.TrimSpace(credential) == "" {
		return parser.Analysis{}, log.ErrorWithType(types.ErrMissingCredential, "analysis requires a credential")
	}

	prepared, err := utils.PrepareForAnalysis(image)
	if err != nil {
		return parser.Analysis{}, log.ErrorWithType(types.ErrImageProcessing, "failed to prepare room image", "error", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(analysisPrompt(persona)),
		genai.NewPartFromBytes(prepared, "image/jpeg"),
	}

	text, err := s.generateText(ctx, credential, parts)
	if err != nil {
		return parser.Analysis{}, err
	}

	analysis := parser.ParseAnalysis(text)
	log.Info("Room analysed", "persona", persona, "tasks", len(analysis.Tasks))
	return analysis, nil
}

func (s *GeminiService) Verify(ctx context.Context, req VerifyImagesRequest) (models.RoomVerificationResult, error) {
	log := s.log.Function("Verify")

	if strings.TrimSpace(req.Credential) == "" {
		return models.RoomVerificationResult{}, log.ErrorWithType(
			types.ErrMissingCredential,
			"verification requires a credential",
		)
	}

	after, err := utils.PrepareForAnalysis(req.After)
	if err != nil {
		return models.RoomVerificationResult{}, log.ErrorWithType(
			types.ErrImageProcessing,
			"failed to prepare after image",
			"error", err,
		)
	}

	prompt, err := verificationPrompt(req.Persona, req.Tasks)
	if err != nil {
		return models.RoomVerificationResult{}, log.ErrorWithType(types.ErrValidation, "failed to encode task list", "error", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(req.Before) > 0 {
		before, err := utils.PrepareForAnalysis(req.Before)
		if err != nil {
			log.Warn("before image unusable, verifying without it", "error", err)
		} else {
			parts = append(parts, genai.NewPartFromBytes(before, "image/jpeg"))
		}
	}
	parts = append(parts, genai.NewPartFromBytes(after, "image/jpeg"))

	text, err := s.generateText(ctx, req.Credential, parts)
	if err != nil {
		return models.RoomVerificationResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return models.RoomVerificationResult{}, log.ErrorWithType(types.ErrParsingFailed, "model reply carried no text")
	}

	return parser.ParseVerification(text)
}

// Stylize asks the image model for the persona's rendering of the room and
// returns the first image part of the reply
func (s *GeminiService) Stylize(
	ctx context.Context,
	image []byte,
	persona models.Persona,
	credential string,
) ([]byte, error) {
	log := s.log.Function("Stylize")

	if strings.TrimSpace(credential) == "" {
		return nil, log.ErrorWithType(types.ErrMissingCredential, "stylize requires a credential")
	}

	prepared, err := utils.PrepareForAnalysis(image)
	if err != nil {
		return nil, log.ErrorWithType(types.ErrImageProcessing, "failed to prepare room image", "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(stylizePrompt(persona)),
		genai.NewPartFromBytes(prepared, "image/jpeg"),
	}, genai.RoleUser)}

	resp, err := s.generate(ctx, credential, s.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, s.mapError(log, err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, log.ErrorWithType(types.ErrImageProcessing, "stylize reply carried no image", "persona", persona)
}

// TestCredential reports whether the key is accepted. A rejected key is a
// false result, other failures are errors.
func (s *GeminiService) TestCredential(ctx context.Context, credential string) (bool, error) {
	log := s.log.Function("TestCredential")

	if strings.TrimSpace(credential) == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.listModels(ctx, credential); err != nil {
		mapped := s.mapError(log, err)
		var serviceErr *types.ServiceError
		if errors.Is(mapped, types.ErrUnauthorized) ||
			(errors.As(mapped, &serviceErr) && serviceErr.StatusCode == 400) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

func (s *GeminiService) generateText(ctx context.Context, credential string, parts []*genai.Part) (string, error) {
	log := s.log.Function("generateText")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := s.generate(ctx, credential, s.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", s.mapError(log, err)
	}

	return resp.Text(), nil
}

// mapError converts genai failures into the service error taxonomy
func (s *GeminiService) mapError(log logger.Logger, err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	case errors.Is(err, context.DeadlineExceeded):
		return log.Err("gemini request timed out", types.NewServiceError(GeminiServiceName, 0, "request timed out"))
	case errors.Is(err, context.Canceled):
		return log.Err("gemini request cancelled", err)
	default:
		return log.Err("gemini request failed", types.NewServiceError(GeminiServiceName, 0, err.Error()))
	}

	message := apiErr.Message
	if message == "" {
		message = apiErr.Status
	}
	return log.Err(
		"gemini rejected request",
		types.NewServiceError(GeminiServiceName, apiErr.Code, message),
		"status", apiErr.Code,
	)
}

func analysisPrompt(persona models.Persona) string {
	return fmt.Sprintf(`You are %s, with this personality: %s.

Look at this room photo and:

1. Identify 3-5 specific cleaning/tidying tasks based on what you actually SEE.
Be specific (e.g., "Pick up the blue shirt from the floor" not "Tidy up").
Each task should be completable in under 5 minutes.
Avoid repeating wording across tasks. Each task must be distinct and grounded in visible items.

2. Write a 2-3 sentence reaction in your character's voice about what you notice.
%s
Avoid clichés and repeated phrases. Keep it fresh each time.

Respond with this EXACT JSON format:
{
    "tasks": ["task 1", "task 2", "task 3"],
    "advice": "Your 2-3 sentence character reaction here."
}`, persona.DisplayName(), persona.Tagline(), persona.VoiceGuidance())
}

type promptTask struct {
	ID   string `json:"id"`
	Task string `json:"task"`
}

func verificationPrompt(persona models.Persona, tasks []models.CleaningTask) (string, error) {
	payload := make([]promptTask, 0, len(tasks))
	for _, task := range tasks {
		payload = append(payload, promptTask{ID: task.ID.String(), Task: task.Title})
	}
	tasksJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are verifying whether cleaning tasks were completed. You are %s, with this personality: %s.

You will receive:
- A BEFORE image (last verified room scan) if available.
- An AFTER image (current scan) to verify against.
- A task list with IDs.

Task list JSON:
%s

For each task, decide if it is done based on what you can SEE in the AFTER image compared to BEFORE.
Only set needsRescan=true if the AFTER image is unusable for most tasks (too dark, too blurry, or clearly not the room).
If a specific task is unclear, mark that task as "unclear" but keep needsRescan=false.
Use "verified" when evidence is visible. Use "not_done" when the mess is still present.
Provide a confidence score from 0.0 to 1.0. Low confidence is acceptable when the evidence is still visible.
%s

Respond with this EXACT JSON format:
{
  "needsRescan": false,
  "summary": "1-2 short sentences in your character voice. Avoid repeating phrasing.",
  "tasks": [
    {"id": "UUID", "status": "verified|not_done|unclear", "confidence": 0.0, "note": "short reason"}
  ]
}`, persona.DisplayName(), persona.Tagline(), tasksJSON, persona.VoiceGuidance()), nil
}

func stylizePrompt(persona models.Persona) string {
	return fmt.Sprintf(`Reimagine this room photo as %s would dream it: the same room, fully clean and tidy.

1. COMPOSITION:
   - Keep the room's layout, furniture and camera angle recognisable
   - Remove clutter, mess and stray items
   - Do not add people or text

%s

Return a single image.`, persona.DisplayName(), persona.VisionStylePrompt())
}
