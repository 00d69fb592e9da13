package tools

import (
	"fmt"
	"strings"
	"time"
)

// ReadBackPhone formats a number for a spoken confirmation.
func ReadBackPhone(number string) string {
	r := strings.NewReplacer("-", " ", "(", "", ")", "")
	return fmt.Sprintf("I heard your mobile number as: %s. Is that correct?", strings.TrimSpace(r.Replace(number)))
}

func SpellName(name string) string {
	letters := strings.Split(strings.ToUpper(strings.TrimSpace(name)), "")
	return fmt.Sprintf("Let me confirm the spelling: %s. Is that correct?", strings.Join(letters, " - "))
}

func SpellEmail(email string) string {
	email = strings.TrimSpace(email)
	user, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "The email format seems incorrect. Please provide it again with the @ symbol."
	}
	return fmt.Sprintf("Let me confirm your email: %s at %s. That's %s AT %s. Is that correct?",
		user, domain,
		strings.Join(strings.Split(user, ""), " "),
		strings.Join(strings.Split(domain, ""), " "),
	)
}

// SpeakTime renders an instant in the clinic's zone for the caller.
func SpeakTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Monday, January 2 2006 at 3:04 PM")
}
