package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContactNumber string    `gorm:"uniqueIndex;not null;column:contact_number" json:"contactNumber"`
	Name          string    `gorm:"column:name" json:"name"`
	Email         *string   `gorm:"index;column:email" json:"email,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}
