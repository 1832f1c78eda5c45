package models

import (
	"encoding/json"
	"time"

	"babcia/internal/utils"

	"github.com/google/uuid"
)

const DefaultTaskXPReward = 10

type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationManual   VerificationState = "manual"
	VerificationVerified VerificationState = "verified"
)

type CleaningTask struct {
	ID                     uuid.UUID          `json:"id"`
	Title                  string             `json:"title"`
	IsCompleted            bool               `json:"isCompleted"`
	VerificationState      *VerificationState `json:"verificationState,omitempty"`
	VerificationConfidence *float64           `json:"verificationConfidence,omitempty"`
	VerificationNote       *string            `json:"verificationNote,omitempty"`
	XPReward               int                `json:"xpReward"`
	CompletedAt            *time.Time         `json:"completedAt,omitempty"`
}

func NewCleaningTask(title string) CleaningTask {
	return CleaningTask{
		ID:       uuid.New(),
		Title:    title,
		XPReward: DefaultTaskXPReward,
	}
}

// ResolvedState derives the effective state when none was stored: a
// completed task without one counts as manual, anything else as pending.
func (t CleaningTask) ResolvedState() VerificationState {
	if t.VerificationState != nil {
		return *t.VerificationState
	}
	if t.IsCompleted {
		return VerificationManual
	}
	return VerificationPending
}

// IsLocked reports whether the task is verified and so immune to further edits
func (t CleaningTask) IsLocked() bool {
	return t.ResolvedState() == VerificationVerified
}

func (t *CleaningTask) SetState(state VerificationState) {
	t.VerificationState = &state
}

func (t CleaningTask) Clone() CleaningTask {
	clone := t
	clone.VerificationState = utils.CopyPtr(t.VerificationState)
	clone.VerificationConfidence = utils.CopyPtr(t.VerificationConfidence)
	clone.VerificationNote = utils.CopyPtr(t.VerificationNote)
	clone.CompletedAt = utils.CopyPtr(t.CompletedAt)
	return clone
}

// UnmarshalJSON fills in the default reward for documents written before
// tasks carried one.
func (t *CleaningTask) UnmarshalJSON(data []byte) error {
	type alias CleaningTask
	decoded := struct {
		*alias
		XPReward *int `json:"xpReward"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	t.XPReward = DefaultTaskXPReward
	if decoded.XPReward != nil {
		t.XPReward = *decoded.XPReward
	}
	return nil
}

func cloneTasks(tasks []CleaningTask) []CleaningTask {
	if tasks == nil {
		return nil
	}
	cloned := make([]CleaningTask, len(tasks))
	for i, task := range tasks {
		cloned[i] = task.Clone()
	}
	return cloned
}
