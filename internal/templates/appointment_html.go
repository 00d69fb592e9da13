package templates

import (
	"bytes"
	"html/template"
)

type AppointmentEmailKind string

const (
	AppointmentEmailBooked      AppointmentEmailKind = "booked"
	AppointmentEmailRescheduled AppointmentEmailKind = "rescheduled"
	AppointmentEmailCancelled   AppointmentEmailKind = "cancelled"
)

type AppointmentEmailData struct {
	ClinicName  string
	PatientName string
	Kind        AppointmentEmailKind
	When        string
	Details     string
}

const appointmentHTML = `
<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8"/>
  <title>{{.ClinicName}} Appointment</title>
  <style>
    body { margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f7f6; color: #2d3a3a; }
    .card { max-width: 560px; margin: 24px auto; background: #ffffff; border-radius: 6px; overflow: hidden; }
    .header { background-color: #1f6f6b; color: #ffffff; padding: 18px 24px; font-size: 20px; }
    .body { padding: 24px; line-height: 1.5; }
    .when { font-weight: bold; color: #1f6f6b; }
    .footer { padding: 12px 24px; font-size: 12px; color: #7a8a8a; }
  </style>
</head>
<body>
  <div class="card">
    <div class="header">{{.ClinicName}}</div>
    <div class="body">
      <p>Hello {{.PatientName}},</p>
      {{if eq .Kind "booked"}}
        <p>Your appointment is confirmed for <span class="when">{{.When}}</span>.</p>
      {{else if eq .Kind "rescheduled"}}
        <p>Your appointment has been moved to <span class="when">{{.When}}</span>.</p>
      {{else}}
        <p>Your appointment has been cancelled. Call us any time to book a new one.</p>
      {{end}}
      {{if .Details}}<p>Notes: {{.Details}}</p>{{end}}
    </div>
    <div class="footer">
      <p>This message was sent after your call with our appointment assistant.</p>
    </div>
  </div>
</body>
</html>
`

var appointmentTmpl = template.Must(template.New("appointment").Parse(appointmentHTML))

func RenderAppointmentHTML(data AppointmentEmailData) (string, error) {
	var buf bytes.Buffer
	if err := appointmentTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
