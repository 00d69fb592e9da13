package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAppointmentHTML(t *testing.T) {
	html, err := RenderAppointmentHTML(AppointmentEmailData{
		ClinicName:  "Clinic",
		PatientName: "Asha <Rao>",
		Kind:        AppointmentEmailBooked,
		When:        "Monday, March 3 2025 at 10:00 AM IST",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "confirmed for")
	assert.Contains(t, html, "10:00 AM IST")
	assert.Contains(t, html, "Asha &lt;Rao&gt;")
	assert.NotContains(t, html, "Notes:")

	html, err = RenderAppointmentHTML(AppointmentEmailData{ClinicName: "Clinic", Kind: AppointmentEmailCancelled})
	require.NoError(t, err)
	assert.Contains(t, html, "has been cancelled")
}
