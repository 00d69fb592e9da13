package tools

// Tool names form the contract with the policy engine.
const (
	IdentifyUser        = "identify_user"
	VerifyMobileNumber  = "verify_mobile_number"
	VerifyNameSpelling  = "verify_name_spelling"
	VerifyEmailSpelling = "verify_email_spelling"
	CreateUserAccount   = "create_user_account"
	CheckAvailability   = "check_time_slot_availability"
	FetchSlots          = "fetch_slots"
	BookAppointment     = "book_appointment"
	RescheduleAppt      = "reschedule_user_appointment"
	RetrieveAppointment = "retrieve_appointments"
	CancelAppointment   = "cancel_user_appointment"
)

type ParamType string

const (
	String  ParamType = "string"
	Integer ParamType = "integer"
)

type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}

type Spec struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Params           []Param `json:"params"`
	RequiresIdentity bool    `json:"requiresIdentity"`
}

var catalog = []Spec{
	{
		Name:        IdentifyUser,
		Description: "Identify the caller by their contact number or email address. Never creates an account.",
		Params: []Param{
			{Name: "identifier", Type: String, Description: "Mobile number or email address", Required: true},
		},
	},
	{
		Name:        VerifyMobileNumber,
		Description: "Format a mobile number so it can be read back for confirmation.",
		Params: []Param{
			{Name: "mobile_number", Type: String, Description: "The mobile number to read back", Required: true},
		},
	},
	{
		Name:        VerifyNameSpelling,
		Description: "Spell a name letter by letter for confirmation.",
		Params: []Param{
			{Name: "name", Type: String, Description: "The name to spell", Required: true},
		},
	},
	{
		Name:        VerifyEmailSpelling,
		Description: "Spell an email address for confirmation.",
		Params: []Param{
			{Name: "email", Type: String, Description: "The email address to spell", Required: true},
		},
	},
	{
		Name:        CreateUserAccount,
		Description: "Create an account after the caller consented and every detail was confirmed.",
		Params: []Param{
			{Name: "contact_number", Type: String, Description: "Confirmed mobile number", Required: true},
			{Name: "first_name", Type: String, Description: "Confirmed first name", Required: true},
			{Name: "last_name", Type: String, Description: "Confirmed last name", Required: true},
			{Name: "email", Type: String, Description: "Confirmed email address", Required: true},
		},
	},
	{
		Name:             CheckAvailability,
		Description:      "Check whether a date and time slot is free. Reveals nothing about who holds it.",
		RequiresIdentity: true,
		Params: []Param{
			{Name: "date", Type: String, Description: "Date as YYYY-MM-DD", Required: true},
			{Name: "time", Type: String, Description: "Time as HH:MM, 24-hour", Required: true},
		},
	},
	{
		Name:             FetchSlots,
		Description:      "Suggest the next open appointment slots.",
		RequiresIdentity: true,
	},
	{
		Name:             BookAppointment,
		Description:      "Book an appointment for the identified caller.",
		RequiresIdentity: true,
		Params: []Param{
			{Name: "start_time", Type: String, Description: "ISO start time, e.g. 2025-03-01T10:00:00", Required: true},
			{Name: "duration", Type: Integer, Description: "Length in minutes, default 30"},
			{Name: "summary", Type: String, Description: "Short reason for the visit"},
		},
	},
	{
		Name:             RescheduleAppt,
		Description:      "Move one of the caller's booked appointments to a new time. Updates it in place.",
		RequiresIdentity: true,
		Params: []Param{
			{Name: "appointment_id", Type: String, Description: "Id from retrieve_appointments", Required: true},
			{Name: "new_time", Type: String, Description: "ISO time, e.g. 2025-03-01T14:00:00", Required: true},
		},
	},
	{
		Name:             RetrieveAppointment,
		Description:      "List the caller's active appointments.",
		RequiresIdentity: true,
	},
	{
		Name:             CancelAppointment,
		Description:      "Cancel one of the caller's booked appointments.",
		RequiresIdentity: true,
		Params: []Param{
			{Name: "appointment_id", Type: String, Description: "Id from retrieve_appointments", Required: true},
		},
	},
}

// Catalog returns a copy of the tool specs.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

func lookup(name string) (Spec, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}
