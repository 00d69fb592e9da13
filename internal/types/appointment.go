package types

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is owned by a contact number, not by a user id.
type Appointment struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ContactNumber   string            `gorm:"index;not null;column:contact_number" json:"contactNumber"`
	AppointmentTime time.Time         `gorm:"not null;column:appointment_time" json:"appointmentTime"`
	Details         string            `gorm:"column:details" json:"details"`
	Status          AppointmentStatus `gorm:"type:varchar(16);not null;index;column:status" json:"status"`
	CreatedAt       time.Time         `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt       time.Time         `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Appointment) TableName() string {
	return "appointments"
}

func (a *Appointment) IsBooked() bool {
	return a != nil && a.Status == AppointmentBooked
}
