package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionRecord is the per-call row; SessionID is the room name.
type SessionRecord struct {
	SessionID      string         `gorm:"primaryKey;column:session_id" json:"sessionId"`
	UserID         *uuid.UUID     `gorm:"type:uuid;index;column:user_id" json:"userId,omitempty"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	StartedAt      time.Time      `gorm:"not null;column:started_at" json:"startedAt"`
	LastActivityAt time.Time      `gorm:"not null;column:last_activity_at" json:"lastActivityAt"`
}

func (SessionRecord) TableName() string {
	return "session_memory"
}
