package models

import (
	"strings"

	"github.com/google/uuid"
)

type TaskVerdict string

const (
	VerdictVerified TaskVerdict = "verified"
	VerdictNotDone  TaskVerdict = "notDone"
	VerdictUnclear  TaskVerdict = "unclear"
)

// NormalizeVerdict folds the free-form status a model returns onto the
// three known verdicts. Anything unrecognised is unclear.
func NormalizeVerdict(status string) TaskVerdict {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "verified", "done", "complete":
		return VerdictVerified
	case "not_done", "notdone", "incomplete":
		return VerdictNotDone
	default:
		return VerdictUnclear
	}
}

type TaskVerificationResult struct {
	TaskID     uuid.UUID   `json:"taskId"`
	Status     TaskVerdict `json:"status"`
	Confidence float64     `json:"confidence"`
	Note       *string     `json:"note,omitempty"`
}

type RoomVerificationResult struct {
	Tasks       []TaskVerificationResult `json:"tasks"`
	Summary     string                   `json:"summary"`
	NeedsRescan bool                     `json:"needsRescan"`
}

// VerificationOutcome is what a verify run hands back: the updated room plus
// the model's verdict on whether the evidence was usable at all.
type VerificationOutcome struct {
	Room        Room   `json:"room"`
	NeedsRescan bool   `json:"needsRescan"`
	Summary     string `json:"summary"`
	GainedXP    int    `json:"gainedXP"`
}
