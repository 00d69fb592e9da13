package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
	"github.com/slotter-org/clinic-voice-scheduler/internal/status"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// UserBinder receives the identity chosen for the call.
type UserBinder interface {
	SetUser(userID uuid.UUID)
}

type Deps struct {
	SessionID    string
	Resolver     services.IdentityResolver
	Appointments services.AppointmentService
	Sessions     services.SessionRegistry
	Identity     *services.IdentityMachine
	Transcript   UserBinder
	Notifier     services.Notifier
	Status       status.Emitter
	Logger       *logger.Logger
	Now          func() time.Time
}

// Dispatcher is the error-to-language boundary: Invoke always returns a
// sentence for the caller and never an error.
type Dispatcher struct {
	d   Deps
	log *logger.Logger
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Identity == nil {
		d.Identity = services.NewIdentityMachine()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Dispatcher{d: d, log: d.Logger.With("component", "ToolDispatcher", "sessionID", d.SessionID)}
}

func (t *Dispatcher) Identity() *services.IdentityMachine {
	return t.d.Identity
}

// flexInt accepts 30 or "30".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type toolArgs struct {
	Identifier    string  `json:"identifier"`
	MobileNumber  string  `json:"mobile_number"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	ContactNumber string  `json:"contact_number"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	StartTime     string  `json:"start_time"`
	Duration      flexInt `json:"duration"`
	Summary       string  `json:"summary"`
	AppointmentID string  `json:"appointment_id"`
	NewTime       string  `json:"new_time"`
}

func (a toolArgs) missing(spec Spec) []string {
	values := map[string]string{
		"identifier":     a.Identifier,
		"mobile_number":  a.MobileNumber,
		"name":           a.Name,
		"email":          a.Email,
		"contact_number": a.ContactNumber,
		"first_name":     a.FirstName,
		"last_name":      a.LastName,
		"date":           a.Date,
		"time":           a.Time,
		"start_time":     a.StartTime,
		"appointment_id": a.AppointmentID,
		"new_time":       a.NewTime,
	}
	var out []string
	for _, p := range spec.Params {
		if p.Required && p.Type == String && strings.TrimSpace(values[p.Name]) == "" {
			out = append(out, p.Name)
		}
	}
	return out
}

const (
	unknownTool  = "I'm sorry, I can't help with that request."
	badArguments = "I didn't quite catch the details for that request. Could you repeat them?"
)

func (t *Dispatcher) emit(e status.Event) {
	if t.d.Status != nil {
		t.d.Status.Emit(e)
	}
}

func (t *Dispatcher) Invoke(ctx context.Context, name string, raw []byte) string {
	spec, ok := lookup(name)
	if !ok {
		t.log.Warn("Unknown tool requested", "tool", name)
		return unknownTool
	}
	var args toolArgs
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			t.log.Warn("Undecodable tool arguments", "tool", name, "error", err)
			return badArguments
		}
	}
	if missing := args.missing(spec); len(missing) > 0 {
		t.log.Warn("Tool arguments missing", "tool", name, "missing", missing)
		return fmt.Sprintf("I still need the %s to do that.", strings.ReplaceAll(strings.Join(missing, ", "), "_", " "))
	}

	t.emit(status.Call(callSummary(name, args)))
	reply, result := t.run(ctx, spec, args)
	t.emit(status.Result(result))
	t.log.Info("Tool completed", "tool", name, "result", result)
	return reply
}

// callSummary describes the invocation without contact details.
func callSummary(name string, a toolArgs) string {
	switch name {
	case IdentifyUser:
		return "Identifying caller"
	case VerifyMobileNumber:
		return "Reading back mobile number"
	case VerifyNameSpelling:
		return "Spelling name"
	case VerifyEmailSpelling:
		return "Spelling email address"
	case CreateUserAccount:
		return "Creating user account"
	case CheckAvailability:
		return fmt.Sprintf("Checking availability for %s at %s", a.Date, a.Time)
	case FetchSlots:
		return "Fetching available slots"
	case BookAppointment:
		return fmt.Sprintf("Booking appointment at %s", a.StartTime)
	case RescheduleAppt:
		return fmt.Sprintf("Rescheduling appointment to %s", a.NewTime)
	case RetrieveAppointment:
		return "Retrieving appointments"
	case CancelAppointment:
		return "Cancelling appointment"
	default:
		return name
	}
}

// run returns the caller-facing reply and the observer-facing result summary.
func (t *Dispatcher) run(ctx context.Context, spec Spec, a toolArgs) (string, string) {
	if spec.RequiresIdentity && !t.d.Identity.Allows(services.OpSchedule) {
		return errordata.Phrase(errordata.ErrPrecondition), "Caller not identified"
	}
	switch spec.Name {
	case VerifyMobileNumber:
		return ReadBackPhone(a.MobileNumber), "Mobile number read back"
	case VerifyNameSpelling:
		return SpellName(a.Name), "Name spelled"
	case VerifyEmailSpelling:
		return SpellEmail(a.Email), "Email spelled"
	case IdentifyUser:
		return t.identify(ctx, a.Identifier)
	case CreateUserAccount:
		return t.enroll(ctx, a)
	case CheckAvailability:
		return t.checkAvailability(ctx, a.Date, a.Time)
	case FetchSlots:
		return t.fetchSlots(ctx)
	case BookAppointment:
		return t.book(ctx, a)
	case RescheduleAppt:
		return t.reschedule(ctx, a.AppointmentID, a.NewTime)
	case RetrieveAppointment:
		return t.retrieve(ctx)
	case CancelAppointment:
		return t.cancel(ctx, a.AppointmentID)
	}
	return unknownTool, "Unknown tool"
}

func (t *Dispatcher) alreadyIdentified() (string, string) {
	_, user := t.d.Identity.Current()
	return fmt.Sprintf("The caller is already identified as %s for this call.", user.Name), "Caller already identified"
}

// bind records the identity in every place that needs it. A store failure
// while tagging the session is logged; the call keeps its in-memory identity.
func (t *Dispatcher) bind(ctx context.Context, user *types.User) error {
	if err := t.d.Identity.Identify(user); err != nil {
		return err
	}
	if t.d.Sessions != nil {
		if err := t.d.Sessions.BindUser(ctx, t.d.SessionID, user.ID); err != nil {
			t.log.Warn("Session tagging failed", "error", err)
		}
	}
	if t.d.Transcript != nil {
		t.d.Transcript.SetUser(user.ID)
	}
	return nil
}

func (t *Dispatcher) identify(ctx context.Context, identifier string) (string, string) {
	if !t.d.Identity.Allows(services.OpResolve) {
		return t.alreadyIdentified()
	}
	t.d.Identity.BeginVerification()
	user, err := t.d.Resolver.Resolve(ctx, identifier)
	switch {
	case errors.Is(err, errordata.ErrNotFound):
		t.d.Identity.MarkNotFound()
		return "No user found with that identifier. The user needs to create an account first.", "User not found in system"
	case err != nil:
		return errordata.Phrase(err), "Lookup failed"
	}
	if err := t.bind(ctx, user); err != nil {
		return t.alreadyIdentified()
	}
	return fmt.Sprintf("User identified: %s.", displayName(user)), "User identified"
}

func (t *Dispatcher) enroll(ctx context.Context, a toolArgs) (string, string) {
	if !t.d.Identity.Allows(services.OpEnroll) {
		return t.alreadyIdentified()
	}
	user, err := t.d.Resolver.Enroll(ctx, services.EnrollInput{
		ContactNumber: a.ContactNumber,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
	})
	switch {
	case errors.Is(err, errordata.ErrConflict):
		return "An account with that mobile number already exists. Let's look it up with identify_user instead.", "Account already exists"
	case errors.Is(err, errordata.ErrInvalidInput):
		return "I need a mobile number to create the account. Could you share it?", "Account details incomplete"
	case err != nil:
		return "I'm sorry, there was an error creating your account. Please try again.", "Failed to create account"
	}
	if err := t.bind(ctx, user); err != nil {
		return t.alreadyIdentified()
	}
	return fmt.Sprintf("Account created successfully! Welcome %s. Your information has been securely saved.", user.Name), "Account created"
}

func (t *Dispatcher) owner() (*types.User, string) {
	_, user := t.d.Identity.Current()
	if user == nil {
		return nil, ""
	}
	return user, user.ContactNumber
}

func (t *Dispatcher) checkAvailability(ctx context.Context, date, clock string) (string, string) {
	free, err := t.d.Appointments.CheckAvailability(ctx, date, clock)
	if err != nil {
		return errordata.Phrase(err), "Availability check failed"
	}
	if free {
		return fmt.Sprintf("Good news! The time slot on %s at %s is available.", date, clock), "Slot available"
	}
	return fmt.Sprintf("I'm sorry, the time slot on %s at %s is already booked. Would you like to try a different time?", date, clock), "Slot taken"
}

func (t *Dispatcher) fetchSlots(ctx context.Context) (string, string) {
	slots, err := t.d.Appointments.SuggestSlots(ctx, t.d.Now(), 3)
	if err != nil {
		return errordata.Phrase(err), "Slot lookup failed"
	}
	if len(slots) == 0 {
		return "I couldn't find any open slots in the next two weeks.", "No open slots"
	}
	loc := t.d.Appointments.Location()
	spoken := make([]string, len(slots))
	for i, s := range slots {
		spoken[i] = SpeakTime(s, loc)
	}
	return "Available slots: " + strings.Join(spoken, "; ") + ".", fmt.Sprintf("Found %d open slots", len(slots))
}

func (t *Dispatcher) book(ctx context.Context, a toolArgs) (string, string) {
	user, owner := t.owner()
	appt, err := t.d.Appointments.Book(ctx, owner, a.StartTime, int(a.Duration), a.Summary)
	if err != nil {
		return errordata.Phrase(err), "Booking failed"
	}
	t.notify(user, services.NotifyBooked, appt)
	return fmt.Sprintf("Appointment booked successfully for %s.", SpeakTime(appt.AppointmentTime, t.d.Appointments.Location())), "Appointment booked successfully"
}

func (t *Dispatcher) reschedule(ctx context.Context, id, newTime string) (string, string) {
	user, owner := t.owner()
	appt, err := t.d.Appointments.Reschedule(ctx, owner, id, newTime)
	switch {
	case errors.Is(err, errordata.ErrNotFound):
		return "I couldn't find that appointment. Please check your appointments and try again.", "Appointment not found"
	case err != nil:
		return errordata.Phrase(err), "Reschedule failed"
	}
	t.notify(user, services.NotifyRescheduled, appt)
	return fmt.Sprintf("Your appointment has been rescheduled to %s.", SpeakTime(appt.AppointmentTime, t.d.Appointments.Location())), "Appointment rescheduled successfully"
}

func (t *Dispatcher) retrieve(ctx context.Context) (string, string) {
	_, owner := t.owner()
	appts, err := t.d.Appointments.ListActive(ctx, owner)
	if err != nil {
		return errordata.Phrase(err), "Retrieval failed"
	}
	if len(appts) == 0 {
		return "No active appointments found.", "Found 0 appointments"
	}
	loc := t.d.Appointments.Location()
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d active appointment(s):", len(appts))
	for _, appt := range appts {
		details := appt.Details
		if details == "" {
			details = "No details"
		}
		fmt.Fprintf(&b, "\n- Appointment on %s - %s (ID: %s)", SpeakTime(appt.AppointmentTime, loc), details, appt.ID)
	}
	return b.String(), fmt.Sprintf("Found %d appointments", len(appts))
}

func (t *Dispatcher) cancel(ctx context.Context, id string) (string, string) {
	user, owner := t.owner()
	err := t.d.Appointments.Cancel(ctx, owner, id)
	switch {
	case errors.Is(err, errordata.ErrNotFound):
		return "I couldn't find an active appointment with that ID. Please check your appointments and try again.", "Appointment not found"
	case err != nil:
		return errordata.Phrase(err), "Cancel failed"
	}
	t.notify(user, services.NotifyCancelled, nil)
	return "Your appointment has been cancelled successfully.", "Appointment cancelled successfully"
}

func (t *Dispatcher) notify(user *types.User, kind services.NotificationKind, appt *types.Appointment) {
	if t.d.Notifier != nil {
		t.d.Notifier.AppointmentChanged(user, kind, appt)
	}
}

func displayName(u *types.User) string {
	if strings.TrimSpace(u.Name) == "" {
		return "Guest"
	}
	return u.Name
}
