package models

const xpPerLevel = 100

type Progress struct {
	TotalXP       int `json:"totalXP"`
	Level         int `json:"level"`
	XPToNextLevel int `json:"xpToNextLevel"`
	BestStreak    int `json:"bestStreak"`
}

func LevelFor(totalXP int) int {
	return max(1, totalXP/xpPerLevel+1)
}

func XPToNextLevel(totalXP int) int {
	return max(0, LevelFor(totalXP)*xpPerLevel-totalXP)
}

// NewProgress aggregates XP and streaks across rooms
func NewProgress(rooms []Room) Progress {
	var progress Progress
	for _, room := range rooms {
		progress.TotalXP += room.TotalXP
		progress.BestStreak = max(progress.BestStreak, room.Streak)
	}
	progress.Level = LevelFor(progress.TotalXP)
	progress.XPToNextLevel = XPToNextLevel(progress.TotalXP)
	return progress
}
