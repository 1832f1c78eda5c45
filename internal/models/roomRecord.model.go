package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RoomRecord is the persisted form of a Room: the full document as JSON plus
// a handful of summary columns for listing and indexing.
type RoomRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"         json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"               json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"               json:"updatedAt"`
	Position    int            `gorm:"not null;default:0;index"     json:"position"`
	Name        string         `gorm:"type:text;not null"           json:"name"`
	Persona     string         `gorm:"type:varchar(32);not null"    json:"persona"`
	ImageSource string         `gorm:"type:varchar(32);not null"    json:"imageSource"`
	CameraID    *string        `gorm:"type:text"                    json:"cameraId,omitempty"`
	TotalXP     int            `gorm:"not null;default:0"           json:"totalXP"`
	Streak      int            `gorm:"not null;default:0"           json:"streak"`
	NextRunAt   *time.Time     `gorm:"index"                        json:"nextRunAt,omitempty"`
	ContentHash string         `gorm:"type:varchar(64);not null"    json:"contentHash"`
	Document    datatypes.JSON `gorm:"not null"                     json:"document"`
}

func (RoomRecord) TableName() string {
	return "rooms"
}

func NewRoomRecord(room Room, position int) (RoomRecord, error) {
	document, err := json.Marshal(room)
	if err != nil {
		return RoomRecord{}, fmt.Errorf("marshal room %s: %w", room.ID, err)
	}

	record := RoomRecord{
		ID:          room.ID,
		Position:    position,
		Name:        room.Name,
		Persona:     string(room.Persona),
		ImageSource: string(room.ImageSource),
		CameraID:    room.CameraID,
		TotalXP:     room.TotalXP,
		Streak:      room.Streak,
		Document:    datatypes.JSON(document),
	}
	if room.ScanSchedule != nil && room.ScanSchedule.Enabled {
		record.NextRunAt = room.ScanSchedule.NextRun
	}
	return record, nil
}

func (r RoomRecord) Room() (Room, error) {
	var room Room
	if err := json.Unmarshal(r.Document, &room); err != nil {
		return Room{}, fmt.Errorf("unmarshal room %s: %w", r.ID, err)
	}
	return room, nil
}

func (r *RoomRecord) GetHashableFields() map[string]any {
	return map[string]any{
		"position": r.Position,
		"document": []byte(r.Document),
	}
}

func (r *RoomRecord) SetContentHash(hash string) { r.ContentHash = hash }
func (r *RoomRecord) GetContentHash() string     { return r.ContentHash }
