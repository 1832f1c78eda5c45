package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTaskLength = 3

// parseAnalysisLines is the last resort for replies that are not JSON:
// bullet-looking lines become tasks and everything else becomes advice.
// It always succeeds; an empty task list is handled by the caller.
func parseAnalysisLines(text string) (Analysis, bool) {
	var tasks, adviceLines []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if task, ok := ParseBulletTask(line); ok {
			tasks = append(tasks, task)
		} else {
			adviceLines = append(adviceLines, line)
		}
	}

	return Analysis{
		Tasks:  tasks,
		Advice: strings.TrimSpace(strings.Join(adviceLines, " ")),
	}, true
}

// ParseBulletTask strips one leading bullet character and an "N." or "N)"
// marker from line. Remainders shorter than three characters or that start
// with "tasks" or "advice" are headings, not tasks.
func ParseBulletTask(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}

	if first, size := utf8.DecodeRuneInString(trimmed); !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		trimmed = strings.TrimSpace(trimmed[size:])
	}

	trimmed = stripNumberMarker(trimmed)

	if utf8.RuneCountInString(trimmed) < minTaskLength {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "tasks") || strings.HasPrefix(lower, "advice") {
		return "", false
	}
	return trimmed, true
}

func stripNumberMarker(text string) string {
	digits := 0
	for digits < len(text) && text[digits] >= '0' && text[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits == len(text) {
		return text
	}
	if text[digits] == '.' || text[digits] == ')' {
		return strings.TrimSpace(text[digits+1:])
	}
	return text
}
