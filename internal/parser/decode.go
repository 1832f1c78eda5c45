package parser

import (
	"encoding/json"
	"strings"

	"babcia/internal/models"

	"github.com/google/uuid"
)

// decodeAnalysis accepts an object with a string array "tasks" and a string
// "advice"; both must be present.
func decodeAnalysis(text string) (Analysis, bool) {
	var raw struct {
		Tasks  *[]string `json:"tasks"`
		Advice *string   `json:"advice"`
	}
	if text == "" || json.Unmarshal([]byte(text), &raw) != nil {
		return Analysis{}, false
	}
	if raw.Tasks == nil || raw.Advice == nil {
		return Analysis{}, false
	}

	tasks := make([]string, 0, len(*raw.Tasks))
	for _, task := range *raw.Tasks {
		if title := strings.TrimSpace(task); title != "" {
			tasks = append(tasks, title)
		}
	}
	return Analysis{Tasks: tasks, Advice: strings.TrimSpace(*raw.Advice)}, true
}

// decodeVerification reads fields one at a time so that one mistyped field
// does not throw away the rest of the reply. Verdicts without a valid task
// id or a status are dropped; a reply left with none is rejected.
func decodeVerification(text string) (models.RoomVerificationResult, bool) {
	var fields map[string]json.RawMessage
	if text == "" || json.Unmarshal([]byte(text), &fields) != nil {
		return models.RoomVerificationResult{}, false
	}

	var items []map[string]json.RawMessage
	if raw, ok := fields["tasks"]; !ok || json.Unmarshal(raw, &items) != nil {
		return models.RoomVerificationResult{}, false
	}

	result := models.RoomVerificationResult{Tasks: make([]models.TaskVerificationResult, 0, len(items))}
	lenient(fields["summary"], &result.Summary)
	lenient(fields["needsRescan"], &result.NeedsRescan)

	for _, item := range items {
		if verdict, ok := decodeVerdict(item); ok {
			result.Tasks = append(result.Tasks, verdict)
		}
	}

	if len(result.Tasks) == 0 {
		return models.RoomVerificationResult{}, false
	}
	return result, true
}

func decodeVerdict(item map[string]json.RawMessage) (models.TaskVerificationResult, bool) {
	var id, status string
	if !lenient(item["id"], &id) || !lenient(item["status"], &status) {
		return models.TaskVerificationResult{}, false
	}

	taskID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return models.TaskVerificationResult{}, false
	}

	verdict := models.TaskVerificationResult{
		TaskID: taskID,
		Status: models.NormalizeVerdict(status),
	}
	lenient(item["confidence"], &verdict.Confidence)

	var note string
	if lenient(item["note"], &note) && strings.TrimSpace(note) != "" {
		verdict.Note = &note
	}
	return verdict, true
}

// lenient decodes raw into target and reports success. Missing, null or
// mistyped values leave target untouched.
func lenient[T any](raw json.RawMessage, target *T) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}
	*target = value
	return true
}
