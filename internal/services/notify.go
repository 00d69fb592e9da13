package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/templates"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type NotificationKind string

const (
	NotifyBooked      NotificationKind = "booked"
	NotifyRescheduled NotificationKind = "rescheduled"
	NotifyCancelled   NotificationKind = "cancelled"
)

// Notifier sends best-effort confirmations after an appointment changes.
type Notifier interface {
	AppointmentChanged(user *types.User, kind NotificationKind, appt *types.Appointment)
	Wait()
}

type notifier struct {
	log     *logger.Logger
	text    TextService
	email   EmailService
	loc     *time.Location
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier accepts nil text or email services; missing channels are skipped.
func NewNotifier(text TextService, email EmailService, loc *time.Location, log *logger.Logger) Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &notifier{
		log:     log.With("service", "Notifier"),
		text:    text,
		email:   email,
		loc:     loc,
		timeout: 10 * time.Second,
	}
}

func (n *notifier) when(appt *types.Appointment) string {
	if appt == nil {
		return ""
	}
	return appt.AppointmentTime.In(n.loc).Format("Monday, January 2 2006 at 3:04 PM MST")
}

func (n *notifier) message(kind NotificationKind, appt *types.Appointment) (subject, body string) {
	switch kind {
	case NotifyBooked:
		return "Appointment confirmed", fmt.Sprintf("Your clinic appointment is booked for %s.", n.when(appt))
	case NotifyRescheduled:
		return "Appointment rescheduled", fmt.Sprintf("Your clinic appointment has moved to %s.", n.when(appt))
	default:
		return "Appointment cancelled", "Your clinic appointment has been cancelled."
	}
}

// html renders the email body, falling back to the plain sentence.
func (n *notifier) html(user *types.User, kind NotificationKind, appt *types.Appointment, body string) string {
	data := templates.AppointmentEmailData{
		ClinicName:  "Clinic Appointments",
		PatientName: user.Name,
		Kind:        templates.AppointmentEmailKind(kind),
		When:        n.when(appt),
	}
	if appt != nil {
		data.Details = appt.Details
	}
	out, err := templates.RenderAppointmentHTML(data)
	if err != nil {
		n.log.Warn("Email template failed", "error", err)
		return "<p>" + body + "</p>"
	}
	return out
}

func (n *notifier) AppointmentChanged(user *types.User, kind NotificationKind, appt *types.Appointment) {
	if user == nil || (n.text == nil && n.email == nil) {
		return
	}
	subject, body := n.message(kind, appt)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if n.text != nil && user.ContactNumber != "" {
			if err := n.text.SendText(ctx, user.ContactNumber, body); err != nil {
				n.log.Warn("Confirmation text failed", "kind", kind, "error", err)
			}
		}
		if n.email != nil && user.Email != nil && *user.Email != "" {
			if err := n.email.SendEmail(ctx, *user.Email, subject, body, n.html(user, kind, appt, body)); err != nil {
				n.log.Warn("Confirmation email failed", "kind", kind, "error", err)
			}
		}
	}()
}

func (n *notifier) Wait() {
	n.wg.Wait()
}
