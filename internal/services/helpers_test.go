package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
)

func newTestStore(t *testing.T) *repos.Store {
	t.Helper()
	bs, err := db.NewBoltService(filepath.Join(t.TempDir(), "services.bolt"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return repos.NewBoltStore(bs.DB(), logger.Nop())
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func newTestAppointments(t *testing.T, store *repos.Store) AppointmentService {
	t.Helper()
	return NewAppointmentService(store.Appointments, ClinicHours{
		Location:    kolkata(t),
		OpenHour:    9,
		CloseHour:   17,
		SlotMinutes: 30,
	}, logger.Nop())
}
