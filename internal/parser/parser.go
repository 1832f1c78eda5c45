// Package parser turns free-form analysis replies into tasks, advice and
// per-task verification verdicts. Models do not always honour the requested
// JSON shape, so each reply is run through an ordered list of strategies and
// the first one that succeeds wins.
package parser

import (
	"strings"

	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/types"
	"babcia/internal/utils"
)

const FallbackAdvice = "Start small. You have got this."

var FallbackTasks = []string{
	"Clear one surface",
	"Put away any loose items",
	"Wipe down a visible spot",
}

// Analysis is a scan reply: the task titles and the persona's reaction
type Analysis struct {
	Tasks  []string `json:"tasks"`
	Advice string   `json:"advice"`
}

// Strategy is one way of reading a reply. Parse reports false when the text
// is not in the shape the strategy understands.
type Strategy[T any] struct {
	Name  string
	Parse func(text string) (T, bool)
}

var AnalysisStrategies = []Strategy[Analysis]{
	{Name: "json", Parse: decodeAnalysis},
	{Name: "braces", Parse: func(text string) (Analysis, bool) {
		return decodeAnalysis(braceSubstring(text))
	}},
	{Name: "lines", Parse: parseAnalysisLines},
}

var VerificationStrategies = []Strategy[models.RoomVerificationResult]{
	{Name: "json", Parse: decodeVerification},
	{Name: "braces", Parse: func(text string) (models.RoomVerificationResult, bool) {
		return decodeVerification(braceSubstring(text))
	}},
}

// Run applies strategies in order to the fence-stripped text
func Run[T any](strategies []Strategy[T], text string) (T, string, bool) {
	cleaned := StripCodeFence(sanitize(text))
	for _, strategy := range strategies {
		if result, ok := strategy.Parse(cleaned); ok {
			return result, strategy.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// ParseAnalysis never fails: replies with no usable tasks get the generic
// fallback list and an empty reaction gets the fallback advice.
func ParseAnalysis(text string) Analysis {
	log := logger.New("parser").Function("ParseAnalysis")

	analysis, strategy, ok := Run(AnalysisStrategies, text)
	if !ok {
		analysis = Analysis{}
	}
	if len(analysis.Tasks) == 0 {
		log.Warn("No tasks found in analysis reply, using fallback tasks", "strategy", strategy)
		analysis.Tasks = append([]string(nil), FallbackTasks...)
	}
	if strings.TrimSpace(analysis.Advice) == "" {
		analysis.Advice = FallbackAdvice
	}

	log.Debug("Parsed analysis reply", "strategy", strategy, "tasks", len(analysis.Tasks))
	return analysis
}

// ParseVerification has no heuristic layer: verdicts are tied to task ids,
// which cannot be recovered from prose.
func ParseVerification(text string) (models.RoomVerificationResult, error) {
	log := logger.New("parser").Function("ParseVerification")

	result, strategy, ok := Run(VerificationStrategies, text)
	if !ok {
		return models.RoomVerificationResult{}, log.ErrorWithType(
			types.ErrParsingFailed,
			"verification reply has no usable verdicts",
			"length", len(text),
		)
	}

	log.Debug("Parsed verification reply", "strategy", strategy, "verdicts", len(result.Tasks))
	return result, nil
}

// StripCodeFence removes a leading ```json or ``` marker and a trailing ```
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = cleaned[len("```json"):]
	case strings.HasPrefix(cleaned, "```"):
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(cleaned, "```")

	return strings.TrimSpace(cleaned)
}

// braceSubstring returns the text from the first '{' to the last '}', or ""
func braceSubstring(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func sanitize(text string) string {
	cleaned, _ := utils.CleanUTF8(text)
	return cleaned
}
