package models

import (
	"time"

	"github.com/google/uuid"
)

type InteractionAction string

const (
	InteractionScan     InteractionAction = "scan"
	InteractionVerify   InteractionAction = "verify"
	InteractionOverride InteractionAction = "override"
)

// Interaction is one exchange remembered for a persona
type Interaction struct {
	BaseUUIDModel
	Timestamp time.Time         `gorm:"not null;index"                 json:"timestamp"`
	Persona   Persona           `gorm:"type:varchar(32);not null;index" json:"persona"`
	RoomID    *uuid.UUID        `gorm:"type:uuid;index"                json:"roomId,omitempty"`
	Action    InteractionAction `gorm:"type:varchar(32);not null"      json:"action"`
	Response  string            `gorm:"type:text"                      json:"response"`
}
