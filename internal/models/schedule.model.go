package models

import (
	"fmt"
	"time"

	"babcia/internal/utils"
)

type ScanCadence string

const (
	CadenceHourly ScanCadence = "hourly"
	CadenceDaily  ScanCadence = "daily"
)

func ParseCadence(value string) (ScanCadence, error) {
	switch ScanCadence(value) {
	case CadenceHourly, CadenceDaily:
		return ScanCadence(value), nil
	case "":
		return CadenceDaily, nil
	default:
		return "", fmt.Errorf("unknown cadence %q", value)
	}
}

func (c ScanCadence) Interval() time.Duration {
	if c == CadenceHourly {
		return time.Hour
	}
	return 24 * time.Hour
}

type ScanSchedule struct {
	Cadence ScanCadence `json:"cadence"`
	Enabled bool        `json:"enabled"`
	LastRun *time.Time  `json:"lastRun,omitempty"`
	NextRun *time.Time  `json:"nextRun,omitempty"`
}

func (s *ScanSchedule) RefreshNextRun(from time.Time) {
	next := from.Add(s.Cadence.Interval())
	s.NextRun = &next
}

// MarkRan records a completed run and advances NextRun by one interval
func (s *ScanSchedule) MarkRan(at time.Time) {
	s.LastRun = &at
	s.RefreshNextRun(at)
}

// IsDue reports whether an enabled schedule's next run has arrived
func (s *ScanSchedule) IsDue(now time.Time) bool {
	if s == nil || !s.Enabled || s.NextRun == nil {
		return false
	}
	return !s.NextRun.After(now)
}

func (s *ScanSchedule) Clone() *ScanSchedule {
	if s == nil {
		return nil
	}
	clone := *s
	clone.LastRun = utils.CopyPtr(s.LastRun)
	clone.NextRun = utils.CopyPtr(s.NextRun)
	return &clone
}
