package types

import (
	"time"

	"github.com/google/uuid"
)

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

func (r ChatRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null;column:user_id" json:"userId"`
	Role      ChatRole  `gorm:"type:varchar(16);not null;column:role" json:"role"`
	Content   string    `gorm:"type:text;column:content" json:"content"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "messages"
}
