package models

import (
	"fmt"
	"time"

	"babcia/internal/utils"

	"github.com/google/uuid"
)

type ImageSource string

const (
	ImageSourceCamera        ImageSource = "camera"
	ImageSourceLibrary       ImageSource = "library"
	ImageSourceHomeAssistant ImageSource = "homeAssistant"
	ImageSourceStream        ImageSource = "stream"
)

func ParseImageSource(value string) (ImageSource, error) {
	switch ImageSource(value) {
	case ImageSourceCamera, ImageSourceLibrary, ImageSourceHomeAssistant, ImageSourceStream:
		return ImageSource(value), nil
	case "":
		return ImageSourceCamera, nil
	default:
		return "", fmt.Errorf("unknown image source %q", value)
	}
}

// SupportsUnattendedCapture reports whether snapshots can be pulled without a
// person holding the camera
func (s ImageSource) SupportsUnattendedCapture() bool {
	return s == ImageSourceHomeAssistant
}

type CaptureSource string

const (
	CaptureSourceScan          CaptureSource = "scan"
	CaptureSourceVerify        CaptureSource = "verify"
	CaptureSourceManual        CaptureSource = "manual"
	CaptureSourceHomeAssistant CaptureSource = "homeAssistant"
	CaptureSourceCamera        CaptureSource = "camera"
)

// ScanHistory is an archived scan. It is never edited after creation.
type ScanHistory struct {
	ID              uuid.UUID      `json:"id"`
	Date            time.Time      `json:"date"`
	VisionImagePath string         `json:"visionImagePath"`
	Tasks           []CleaningTask `json:"tasks"`
	Advice          *string        `json:"advice,omitempty"`
}

func (h ScanHistory) CompletedTaskCount() int {
	return countCompleted(h.Tasks)
}

// UserCapture is an audit record of a raw image a room received
type UserCapture struct {
	ID     uuid.UUID     `json:"id"`
	RoomID uuid.UUID     `json:"roomId"`
	Date   time.Time     `json:"date"`
	Path   string        `json:"path"`
	Source CaptureSource `json:"source"`
}

type Room struct {
	ID                    uuid.UUID      `json:"id"`
	Name                  string         `json:"name"`
	Persona               Persona        `json:"persona"`
	ImageSource           ImageSource    `json:"imageSource"`
	CameraID              *string        `json:"cameraId,omitempty"`
	VisionImagePath       *string        `json:"visionImagePath,omitempty"`
	Tasks                 []CleaningTask `json:"tasks"`
	Advice                *string        `json:"advice,omitempty"`
	ScanHistory           []ScanHistory  `json:"scanHistory"`
	UserCaptures          []UserCapture  `json:"userCaptures"`
	LastVerifiedImagePath *string        `json:"lastVerifiedImagePath,omitempty"`
	LastVerifiedAt        *time.Time     `json:"lastVerifiedAt,omitempty"`
	VerificationAttempts  int            `json:"verificationAttempts"`
	Streak                int            `json:"streak"`
	TotalXP               int            `json:"totalXP"`
	LastActivityDate      *time.Time     `json:"lastActivityDate,omitempty"`
	LastScanDate          *time.Time     `json:"lastScanDate,omitempty"`
	ScanSchedule          *ScanSchedule  `json:"scanSchedule,omitempty"`
}

func NewRoom(name string, persona Persona, source ImageSource, cameraID *string) Room {
	return Room{
		ID:           uuid.New(),
		Name:         name,
		Persona:      persona,
		ImageSource:  source,
		CameraID:     utils.CopyPtr(cameraID),
		Tasks:        []CleaningTask{},
		ScanHistory:  []ScanHistory{},
		UserCaptures: []UserCapture{},
	}
}

// PendingTaskCount counts tasks that still need verification, manual ones included
func (r Room) PendingTaskCount() int {
	count := 0
	for _, task := range r.Tasks {
		if !task.IsLocked() {
			count++
		}
	}
	return count
}

func (r Room) CompletedTaskCount() int {
	return countCompleted(r.Tasks)
}

func (r Room) ManualOverrideAvailable() bool {
	return r.VerificationAttempts >= 2 && r.PendingTaskCount() > 0
}

func (r *Room) TaskByID(id uuid.UUID) (*CleaningTask, bool) {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i], true
		}
	}
	return nil, false
}

// ArchiveCurrentScan snapshots the current vision image with its tasks and
// advice into the history. Rooms without a vision image have nothing to archive.
func (r *Room) ArchiveCurrentScan(now time.Time) bool {
	if r.VisionImagePath == nil {
		return false
	}
	r.ScanHistory = append(r.ScanHistory, ScanHistory{
		ID:              uuid.New(),
		Date:            now,
		VisionImagePath: *r.VisionImagePath,
		Tasks:           cloneTasks(r.Tasks),
		Advice:          utils.CopyPtr(r.Advice),
	})
	return true
}

// RecordActivity updates the streak by calendar day in now's location:
// same day keeps it, the next day extends it, any longer gap restarts it.
func (r *Room) RecordActivity(now time.Time) {
	if r.LastActivityDate == nil {
		r.Streak = 1
	} else {
		switch days := utils.CalendarDaysBetween(*r.LastActivityDate, now, now.Location()); {
		case days == 0:
		case days == 1:
			r.Streak++
		default:
			r.Streak = 1
		}
	}
	r.LastActivityDate = &now
}

// GrantXP adds a reward. Non-positive amounts are ignored so the total never drops.
func (r *Room) GrantXP(amount int) {
	if amount > 0 {
		r.TotalXP += amount
	}
}

// ImagePaths lists every stored image the room references
func (r Room) ImagePaths() []string {
	var paths []string
	if r.VisionImagePath != nil {
		paths = append(paths, *r.VisionImagePath)
	}
	if r.LastVerifiedImagePath != nil {
		paths = append(paths, *r.LastVerifiedImagePath)
	}
	for _, history := range r.ScanHistory {
		paths = append(paths, history.VisionImagePath)
	}
	for _, capture := range r.UserCaptures {
		paths = append(paths, capture.Path)
	}

	seen := make(map[string]struct{}, len(paths))
	unique := paths[:0]
	for _, path := range paths {
		if _, ok := seen[path]; ok || path == "" {
			continue
		}
		seen[path] = struct{}{}
		unique = append(unique, path)
	}
	return unique
}

// EligibleForBackgroundScan reports whether the scheduler may scan the room
// without a person: the source must support it, the bridge must be
// configured and a camera assigned.
func (r Room) EligibleForBackgroundScan(settings Settings) bool {
	return r.ImageSource.SupportsUnattendedCapture() &&
		settings.BridgeConfigured() &&
		r.CameraID != nil && *r.CameraID != ""
}

// Clone returns a deep copy that shares no memory with r
func (r Room) Clone() Room {
	clone := r
	clone.CameraID = utils.CopyPtr(r.CameraID)
	clone.VisionImagePath = utils.CopyPtr(r.VisionImagePath)
	clone.Tasks = cloneTasks(r.Tasks)
	clone.Advice = utils.CopyPtr(r.Advice)
	clone.LastVerifiedImagePath = utils.CopyPtr(r.LastVerifiedImagePath)
	clone.LastVerifiedAt = utils.CopyPtr(r.LastVerifiedAt)
	clone.LastActivityDate = utils.CopyPtr(r.LastActivityDate)
	clone.LastScanDate = utils.CopyPtr(r.LastScanDate)
	clone.ScanSchedule = r.ScanSchedule.Clone()

	if r.ScanHistory != nil {
		clone.ScanHistory = make([]ScanHistory, len(r.ScanHistory))
		for i, history := range r.ScanHistory {
			history.Tasks = cloneTasks(history.Tasks)
			history.Advice = utils.CopyPtr(history.Advice)
			clone.ScanHistory[i] = history
		}
	}
	if r.UserCaptures != nil {
		clone.UserCaptures = make([]UserCapture, len(r.UserCaptures))
		copy(clone.UserCaptures, r.UserCaptures)
	}
	return clone
}

func CloneRooms(rooms []Room) []Room {
	cloned := make([]Room, len(rooms))
	for i, room := range rooms {
		cloned[i] = room.Clone()
	}
	return cloned
}

func countCompleted(tasks []CleaningTask) int {
	count := 0
	for _, task := range tasks {
		if task.IsCompleted {
			count++
		}
	}
	return count
}
