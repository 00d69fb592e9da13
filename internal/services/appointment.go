package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

const (
	DefaultDurationMinutes = 30
	suggestHorizonDays     = 14
)

// AppointmentService is scoped by owner contact number everywhere. Ids that
// belong to someone else behave exactly like ids that do not exist.
type AppointmentService interface {
	CheckAvailability(ctx context.Context, date, clock string) (bool, error)
	Book(ctx context.Context, owner, startTime string, durationMinutes int, summary string) (*types.Appointment, error)
	Reschedule(ctx context.Context, owner, appointmentID, newTime string) (*types.Appointment, error)
	Cancel(ctx context.Context, owner, appointmentID string) error
	ListActive(ctx context.Context, owner string) ([]*types.Appointment, error)
	SuggestSlots(ctx context.Context, from time.Time, limit int) ([]time.Time, error)
	Location() *time.Location
}

type ClinicHours struct {
	Location    *time.Location
	OpenHour    int
	CloseHour   int
	SlotMinutes int
}

type appointmentService struct {
	log   *logger.Logger
	appts repos.AppointmentRepo
	hours ClinicHours
}

func NewAppointmentService(appts repos.AppointmentRepo, hours ClinicHours, log *logger.Logger) AppointmentService {
	if hours.Location == nil {
		hours.Location = time.UTC
	}
	if hours.SlotMinutes <= 0 {
		hours.SlotMinutes = DefaultDurationMinutes
	}
	if hours.CloseHour <= hours.OpenHour {
		hours.OpenHour, hours.CloseHour = 9, 17
	}
	return &appointmentService{
		log:   log.With("service", "AppointmentService"),
		appts: appts,
		hours: hours,
	}
}

func (as *appointmentService) Location() *time.Location {
	return as.hours.Location
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC3339 or a naive timestamp read in loc. The
// result is UTC at minute precision.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Truncate(time.Minute), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC().Truncate(time.Minute), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, errordata.ErrInvalidInput)
}

func (as *appointmentService) CheckAvailability(ctx context.Context, date, clock string) (bool, error) {
	at, err := ParseTimestamp(strings.TrimSpace(date)+"T"+strings.TrimSpace(clock), as.hours.Location)
	if err != nil {
		return false, err
	}
	booked, err := as.appts.IsSlotBooked(ctx, at)
	if err != nil {
		as.log.Warn("Availability check failed", "error", err)
		return false, fmt.Errorf("check availability: %w", err)
	}
	return !booked, nil
}

func (as *appointmentService) Book(ctx context.Context, owner, startTime string, durationMinutes int, summary string) (*types.Appointment, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("book: no identified owner: %w", errordata.ErrPrecondition)
	}
	at, err := ParseTimestamp(startTime, as.hours.Location)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	details := strings.TrimSpace(summary)
	if details == "" {
		details = fmt.Sprintf("%d minute appointment", durationMinutes)
	}
	appt, err := as.appts.Create(ctx, &types.Appointment{
		ContactNumber:   owner,
		AppointmentTime: at,
		Details:         details,
		Status:          types.AppointmentBooked,
	})
	if err != nil {
		as.log.Warn("Booking failed", "error", err)
		return nil, fmt.Errorf("book: %w", err)
	}
	as.log.Info("Appointment booked", "appointmentID", appt.ID)
	return appt, nil
}

func parseAppointmentID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", what, errordata.ErrNotFound)
	}
	return id, nil
}

func (as *appointmentService) Reschedule(ctx context.Context, owner, appointmentID, newTime string) (*types.Appointment, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("reschedule: no identified owner: %w", errordata.ErrPrecondition)
	}
	id, err := parseAppointmentID(appointmentID, "reschedule")
	if err != nil {
		return nil, err
	}
	at, err := ParseTimestamp(newTime, as.hours.Location)
	if err != nil {
		return nil, err
	}
	appt, err := as.appts.Reschedule(ctx, id, owner, at)
	if err != nil {
		as.log.Warn("Reschedule failed", "appointmentID", id, "error", err)
		return nil, fmt.Errorf("reschedule: %w", err)
	}
	as.log.Info("Appointment rescheduled", "appointmentID", id)
	return appt, nil
}

func (as *appointmentService) Cancel(ctx context.Context, owner, appointmentID string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("cancel: no identified owner: %w", errordata.ErrPrecondition)
	}
	id, err := parseAppointmentID(appointmentID, "cancel")
	if err != nil {
		return err
	}
	if err := as.appts.Cancel(ctx, id, owner); err != nil {
		as.log.Warn("Cancel failed", "appointmentID", id, "error", err)
		return fmt.Errorf("cancel: %w", err)
	}
	as.log.Info("Appointment cancelled", "appointmentID", id)
	return nil
}

func (as *appointmentService) ListActive(ctx context.Context, owner string) ([]*types.Appointment, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("list: no identified owner: %w", errordata.ErrPrecondition)
	}
	appts, err := as.appts.ListBookedByContact(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if appts == nil {
		appts = []*types.Appointment{}
	}
	return appts, nil
}

// SuggestSlots walks clinic hours forward from `from` and returns up to
// limit free slot start times.
func (as *appointmentService) SuggestSlots(ctx context.Context, from time.Time, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 3
	}
	loc := as.hours.Location
	from = from.In(loc)
	horizon := from.AddDate(0, 0, suggestHorizonDays)

	booked, err := as.appts.ListBookedBetween(ctx, from, horizon)
	if err != nil {
		return nil, fmt.Errorf("suggest slots: %w", err)
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		taken[a.AppointmentTime.Unix()] = struct{}{}
	}

	step := time.Duration(as.hours.SlotMinutes) * time.Minute
	var out []time.Time
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(horizon) && len(out) < limit; day = day.AddDate(0, 0, 1) {
		open := day.Add(time.Duration(as.hours.OpenHour) * time.Hour)
		closing := day.Add(time.Duration(as.hours.CloseHour) * time.Hour)
		for slot := open; slot.Before(closing) && len(out) < limit; slot = slot.Add(step) {
			if slot.Before(from) {
				continue
			}
			if _, ok := taken[slot.UTC().Unix()]; ok {
				continue
			}
			out = append(out, slot)
		}
	}
	return out, nil
}
