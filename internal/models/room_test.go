package models

import (
	"encoding/json"
	"testing"
	"time"

	"babcia/internal/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZone = time.FixedZone("test", 1*60*60)

func TestCleaningTask_ResolvedState(t *testing.T) {
	tests := []struct {
		name      string
		completed bool
		stored    *VerificationState
		want      VerificationState
		locked    bool
	}{
		{name: "absent and open", want: VerificationPending},
		{name: "absent and completed", completed: true, want: VerificationManual},
		{name: "stored pending wins over completion", completed: true, stored: utils.Ptr(VerificationPending), want: VerificationPending},
		{name: "verified", completed: true, stored: utils.Ptr(VerificationVerified), want: VerificationVerified, locked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := CleaningTask{IsCompleted: tt.completed, VerificationState: tt.stored}
			assert.Equal(t, tt.want, task.ResolvedState())
			assert.Equal(t, tt.locked, task.IsLocked())
		})
	}
}

func TestCleaningTask_DefaultRewardFromJSON(t *testing.T) {
	var task CleaningTask
	require.NoError(t, json.Unmarshal([]byte(`{"id":"6f1c4f1e-8e7c-4bde-9df4-0c4d1d0b5f11","title":"Dust"}`), &task))
	assert.Equal(t, DefaultTaskXPReward, task.XPReward)
	assert.Equal(t, "Dust", task.Title)

	require.NoError(t, json.Unmarshal([]byte(`{"title":"Mop","xpReward":25}`), &task))
	assert.Equal(t, 25, task.XPReward)
}

func TestRoom_RecordActivity(t *testing.T) {
	last := time.Date(2026, 6, 1, 21, 0, 0, 0, testZone)

	tests := []struct {
		name       string
		last       *time.Time
		streak     int
		now        time.Time
		wantStreak int
	}{
		{name: "first activity", now: last, wantStreak: 1},
		{name: "same day", last: &last, streak: 4, now: last.Add(2 * time.Hour), wantStreak: 4},
		{name: "next day", last: &last, streak: 4, now: time.Date(2026, 6, 2, 0, 30, 0, 0, testZone), wantStreak: 5},
		{name: "two days later", last: &last, streak: 4, now: time.Date(2026, 6, 3, 9, 0, 0, 0, testZone), wantStreak: 1},
		{name: "a week later", last: &last, streak: 9, now: last.AddDate(0, 0, 7), wantStreak: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := Room{Streak: tt.streak, LastActivityDate: utils.CopyPtr(tt.last)}
			room.RecordActivity(tt.now)

			assert.Equal(t, tt.wantStreak, room.Streak)
			require.NotNil(t, room.LastActivityDate)
			assert.Equal(t, tt.now, *room.LastActivityDate)
		})
	}
}

func TestRoom_GrantXPNeverDecreases(t *testing.T) {
	room := Room{TotalXP: 40}

	room.GrantXP(10)
	room.GrantXP(0)
	room.GrantXP(-30)

	assert.Equal(t, 50, room.TotalXP)
}

func TestRoom_ArchiveCurrentScan(t *testing.T) {
	now := time.Date(2026, 2, 2, 10, 0, 0, 0, testZone)
	room := NewRoom("Kitchen", PersonaClassic, ImageSourceCamera, nil)
	room.Tasks = []CleaningTask{NewCleaningTask("Wipe counter")}

	assert.False(t, room.ArchiveCurrentScan(now), "nothing to archive without a vision image")
	assert.Empty(t, room.ScanHistory)

	room.VisionImagePath = utils.Ptr("vision_a.png")
	room.Advice = utils.Ptr("Oj")
	require.True(t, room.ArchiveCurrentScan(now))
	require.Len(t, room.ScanHistory, 1)

	archived := room.ScanHistory[0]
	assert.Equal(t, "vision_a.png", archived.VisionImagePath)
	assert.Equal(t, now, archived.Date)

	room.Tasks[0].Title = "changed"
	*room.Advice = "changed"
	assert.Equal(t, "Wipe counter", archived.Tasks[0].Title)
	assert.Equal(t, "Oj", *archived.Advice)
}

func TestRoom_ManualOverrideAvailable(t *testing.T) {
	verified := NewCleaningTask("done")
	verified.SetState(VerificationVerified)
	open := NewCleaningTask("open")

	tests := []struct {
		name     string
		attempts int
		tasks    []CleaningTask
		want     bool
	}{
		{name: "one attempt", attempts: 1, tasks: []CleaningTask{open}},
		{name: "two attempts with pending", attempts: 2, tasks: []CleaningTask{verified, open}, want: true},
		{name: "two attempts all verified", attempts: 2, tasks: []CleaningTask{verified}},
		{name: "many attempts", attempts: 5, tasks: []CleaningTask{open}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := Room{VerificationAttempts: tt.attempts, Tasks: tt.tasks}
			assert.Equal(t, tt.want, room.ManualOverrideAvailable())
		})
	}
}

func TestRoom_TaskCounts(t *testing.T) {
	verified := NewCleaningTask("done")
	verified.IsCompleted = true
	verified.SetState(VerificationVerified)
	manual := NewCleaningTask("ticked")
	manual.IsCompleted = true
	open := NewCleaningTask("open")

	room := Room{Tasks: []CleaningTask{verified, manual, open}}

	assert.Equal(t, 2, room.CompletedTaskCount())
	assert.Equal(t, 2, room.PendingTaskCount())
}

func TestRoom_CloneIsDeep(t *testing.T) {
	next := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	room := NewRoom("Bath", PersonaBaroness, ImageSourceHomeAssistant, utils.Ptr("camera.bath"))
	room.Tasks = []CleaningTask{NewCleaningTask("Scrub")}
	room.Tasks[0].VerificationNote = utils.Ptr("note")
	room.ScanSchedule = &ScanSchedule{Cadence: CadenceDaily, Enabled: true, NextRun: &next}

	clone := room.Clone()
	assert.Empty(t, cmp.Diff(room, clone))

	*clone.CameraID = "camera.other"
	*clone.Tasks[0].VerificationNote = "other"
	*clone.ScanSchedule.NextRun = next.Add(time.Hour)

	assert.Equal(t, "camera.bath", *room.CameraID)
	assert.Equal(t, "note", *room.Tasks[0].VerificationNote)
	assert.Equal(t, next, *room.ScanSchedule.NextRun)
}

func TestRoom_JSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	room := NewRoom("Office", PersonaWarrior, ImageSourceHomeAssistant, utils.Ptr("camera.office"))
	room.Tasks = []CleaningTask{NewCleaningTask("Stack papers")}
	room.Tasks[0].SetState(VerificationVerified)
	room.Tasks[0].VerificationConfidence = utils.Ptr(0.8)
	room.VisionImagePath = utils.Ptr("vision.png")
	room.ArchiveCurrentScan(now)
	room.UserCaptures = append(room.UserCaptures, UserCapture{ID: room.ID, RoomID: room.ID, Date: now, Path: "c.jpg", Source: CaptureSourceScan})
	room.ScanSchedule = &ScanSchedule{Cadence: CadenceHourly, Enabled: true}
	room.ScanSchedule.MarkRan(now)
	room.LastScanDate = &now

	data, err := json.Marshal(room)
	require.NoError(t, err)

	var decoded Room
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, cmp.Diff(room, decoded))
}

func TestRoom_ImagePaths(t *testing.T) {
	room := Room{
		VisionImagePath:       utils.Ptr("vision_b.png"),
		LastVerifiedImagePath: utils.Ptr("verify_1.jpg"),
		ScanHistory:           []ScanHistory{{VisionImagePath: "vision_a.png"}},
		UserCaptures:          []UserCapture{{Path: "capture_1.jpg"}, {Path: "verify_1.jpg"}},
	}

	assert.ElementsMatch(t,
		[]string{"vision_b.png", "verify_1.jpg", "vision_a.png", "capture_1.jpg"},
		room.ImagePaths(),
	)
}

func TestRoom_EligibleForBackgroundScan(t *testing.T) {
	bridge := Settings{HomeAssistantURL: "http://ha.local", HomeAssistantToken: "token"}

	tests := []struct {
		name     string
		source   ImageSource
		camera   *string
		settings Settings
		want     bool
	}{
		{name: "eligible", source: ImageSourceHomeAssistant, camera: utils.Ptr("camera.a"), settings: bridge, want: true},
		{name: "local camera", source: ImageSourceCamera, camera: utils.Ptr("camera.a"), settings: bridge},
		{name: "no camera id", source: ImageSourceHomeAssistant, settings: bridge},
		{name: "empty camera id", source: ImageSourceHomeAssistant, camera: utils.Ptr(""), settings: bridge},
		{name: "no token", source: ImageSourceHomeAssistant, camera: utils.Ptr("camera.a"), settings: Settings{HomeAssistantURL: "http://ha.local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := Room{ImageSource: tt.source, CameraID: tt.camera}
			assert.Equal(t, tt.want, room.EligibleForBackgroundScan(tt.settings))
		})
	}
}

func TestScanSchedule(t *testing.T) {
	now := time.Date(2026, 4, 4, 12, 0, 0, 0, time.UTC)
	schedule := &ScanSchedule{Cadence: CadenceHourly, Enabled: true}

	assert.False(t, schedule.IsDue(now), "no next run yet")

	schedule.RefreshNextRun(now)
	assert.Equal(t, now.Add(time.Hour), *schedule.NextRun)
	assert.False(t, schedule.IsDue(now))
	assert.True(t, schedule.IsDue(now.Add(time.Hour)))

	ran := now.Add(90 * time.Minute)
	schedule.MarkRan(ran)
	assert.Equal(t, ran, *schedule.LastRun)
	assert.Equal(t, ran.Add(time.Hour), *schedule.NextRun)

	schedule.Enabled = false
	assert.False(t, schedule.IsDue(ran.Add(24*time.Hour)))
	assert.Equal(t, 24*time.Hour, CadenceDaily.Interval())
}

func TestNormalizeVerdict(t *testing.T) {
	tests := map[string]TaskVerdict{
		"verified":   VerdictVerified,
		"DONE":       VerdictVerified,
		" Complete ": VerdictVerified,
		"not_done":   VerdictNotDone,
		"NotDone":    VerdictNotDone,
		"incomplete": VerdictNotDone,
		"unclear":    VerdictUnclear,
		"maybe":      VerdictUnclear,
		"":           VerdictUnclear,
	}

	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, NormalizeVerdict(input))
		})
	}
}
