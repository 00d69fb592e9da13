package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// AppointmentRepo owns the slot uniqueness rule: at most one booked
// appointment per start time. Writes that would break it fail with
// errordata.ErrConflict. Rows not booked or not owned by the caller are
// reported as errordata.ErrNotFound.
type AppointmentRepo interface {
	// CREATE
	Create(ctx context.Context, appt *types.Appointment) (*types.Appointment, error)

	// READ
	GetByID(ctx context.Context, apptID uuid.UUID) (*types.Appointment, error)
	IsSlotBooked(ctx context.Context, at time.Time) (bool, error)
	ListBookedBetween(ctx context.Context, from, to time.Time) ([]*types.Appointment, error)
	ListBookedByContact(ctx context.Context, contactNumber string) ([]*types.Appointment, error)

	// UPDATE
	Reschedule(ctx context.Context, apptID uuid.UUID, contactNumber string, newTime time.Time) (*types.Appointment, error)
	Cancel(ctx context.Context, apptID uuid.UUID, contactNumber string) error
}

type appointmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAppointmentRepo(db *gorm.DB, baseLog *logger.Logger) AppointmentRepo {
	return &appointmentRepo{db: db, log: baseLog.With("repo", "AppointmentRepo")}
}

func prepareAppointment(appt *types.Appointment) {
	now := time.Now().UTC()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = types.AppointmentBooked
	}
	appt.AppointmentTime = appt.AppointmentTime.UTC().Truncate(time.Minute)
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
}

func (ar *appointmentRepo) Create(ctx context.Context, appt *types.Appointment) (*types.Appointment, error) {
	ar.log.Info("Starting Create Appointment now...")
	if appt == nil || appt.ContactNumber == "" {
		return nil, fmt.Errorf("create appointment: %w", errordata.ErrInvalidInput)
	}
	prepareAppointment(appt)
	if err := ar.db.WithContext(ctx).Create(appt).Error; err != nil {
		ar.log.Warn("Failed to create appointment", "error", err)
		return nil, translate(err, "create appointment")
	}
	ar.log.Info("Successfully created appointment", "appointmentID", appt.ID)
	return appt, nil
}

func (ar *appointmentRepo) GetByID(ctx context.Context, apptID uuid.UUID) (*types.Appointment, error) {
	var appt types.Appointment
	if err := ar.db.WithContext(ctx).Where("id = ?", apptID).First(&appt).Error; err != nil {
		return nil, translate(err, "get appointment")
	}
	return &appt, nil
}

func (ar *appointmentRepo) IsSlotBooked(ctx context.Context, at time.Time) (bool, error) {
	var count int64
	err := ar.db.WithContext(ctx).
		Model(&types.Appointment{}).
		Where("appointment_time = ? AND status = ?", at.UTC().Truncate(time.Minute), types.AppointmentBooked).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "check slot")
	}
	return count > 0, nil
}

func (ar *appointmentRepo) ListBookedBetween(ctx context.Context, from, to time.Time) ([]*types.Appointment, error) {
	var appts []*types.Appointment
	err := ar.db.WithContext(ctx).
		Where("appointment_time >= ? AND appointment_time < ? AND status = ?", from.UTC(), to.UTC(), types.AppointmentBooked).
		Order("appointment_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, translate(err, "list booked appointments")
	}
	return appts, nil
}

func (ar *appointmentRepo) ListBookedByContact(ctx context.Context, contactNumber string) ([]*types.Appointment, error) {
	var appts []*types.Appointment
	err := ar.db.WithContext(ctx).
		Where("contact_number = ? AND status = ?", contactNumber, types.AppointmentBooked).
		Order("appointment_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, translate(err, "list appointments")
	}
	return appts, nil
}

func (ar *appointmentRepo) Reschedule(ctx context.Context, apptID uuid.UUID, contactNumber string, newTime time.Time) (*types.Appointment, error) {
	ar.log.Info("Starting Reschedule Appointment now...", "appointmentID", apptID)
	res := ar.db.WithContext(ctx).
		Model(&types.Appointment{}).
		Where("id = ? AND contact_number = ? AND status = ?", apptID, contactNumber, types.AppointmentBooked).
		Updates(map[string]interface{}{
			"appointment_time": newTime.UTC().Truncate(time.Minute),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		ar.log.Warn("Failed to reschedule appointment", "error", res.Error)
		return nil, translate(res.Error, "reschedule appointment")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("reschedule appointment: %w", errordata.ErrNotFound)
	}
	return ar.GetByID(ctx, apptID)
}

func (ar *appointmentRepo) Cancel(ctx context.Context, apptID uuid.UUID, contactNumber string) error {
	ar.log.Info("Starting Cancel Appointment now...", "appointmentID", apptID)
	res := ar.db.WithContext(ctx).
		Model(&types.Appointment{}).
		Where("id = ? AND contact_number = ? AND status = ?", apptID, contactNumber, types.AppointmentBooked).
		Updates(map[string]interface{}{
			"status":     types.AppointmentCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error, "cancel appointment")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cancel appointment: %w", errordata.ErrNotFound)
	}
	return nil
}
