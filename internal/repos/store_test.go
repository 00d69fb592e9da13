package repos

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// stores returns every backend available in this environment. Postgres is
// only exercised when DATABASE_URL is set.
func stores(t *testing.T) map[string]*Store {
	t.Helper()
	log := logger.Nop()
	out := map[string]*Store{}

	bs, err := db.NewBoltService(filepath.Join(t.TempDir(), "clinic.bolt"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	out["bolt"] = NewBoltStore(bs.DB(), log)

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		ps, err := db.NewPostgresService(dsn, log)
		require.NoError(t, err)
		require.NoError(t, ps.AutoMigrateAll())
		require.NoError(t, ps.DB().Exec(`TRUNCATE "messages", "session_memory", "appointments", "users"`).Error)
		t.Cleanup(func() { _ = ps.Close() })
		out["postgres"] = NewPostgresStore(ps.DB(), log)
	}
	return out
}

func mustUser(t *testing.T, s *Store, contact string) *types.User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), &types.User{ContactNumber: contact, Name: "Test User"})
	require.NoError(t, err)
	return u
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			email := "  Jane@Example.com "
			u, err := s.Users.Create(ctx, &types.User{ContactNumber: "9876543210", Name: "Jane Doe", Email: &email})
			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, u.ID)

			got, err := s.Users.GetByContactNumber(ctx, "9876543210")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)

			got, err = s.Users.GetByEmail(ctx, "JANE@example.com")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)

			_, err = s.Users.Create(ctx, &types.User{ContactNumber: "9876543210", Name: "Other"})
			assert.ErrorIs(t, err, errordata.ErrConflict)

			_, err = s.Users.GetByContactNumber(ctx, "0000")
			assert.ErrorIs(t, err, errordata.ErrNotFound)
		})
	}
}

func TestAppointmentRepoSlotUniqueness(t *testing.T) {
	ctx := context.Background()
	slot := time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mustUser(t, s, "111")
			mustUser(t, s, "222")

			first, err := s.Appointments.Create(ctx, &types.Appointment{ContactNumber: "111", AppointmentTime: slot})
			require.NoError(t, err)
			assert.Equal(t, types.AppointmentBooked, first.Status)

			_, err = s.Appointments.Create(ctx, &types.Appointment{ContactNumber: "222", AppointmentTime: slot})
			assert.ErrorIs(t, err, errordata.ErrConflict)

			booked, err := s.Appointments.IsSlotBooked(ctx, slot)
			require.NoError(t, err)
			assert.True(t, booked)

			// Cancelling frees the slot for someone else.
			require.NoError(t, s.Appointments.Cancel(ctx, first.ID, "111"))
			assert.ErrorIs(t, s.Appointments.Cancel(ctx, first.ID, "111"), errordata.ErrNotFound)

			second, err := s.Appointments.Create(ctx, &types.Appointment{ContactNumber: "222", AppointmentTime: slot})
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)
		})
	}
}

func TestAppointmentRepoConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	slot := time.Date(2025, 3, 11, 5, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mustUser(t, s, "333")
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Appointments.Create(ctx, &types.Appointment{ContactNumber: "333", AppointmentTime: slot})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						successes++
					} else if assert.ErrorIs(t, err, errordata.ErrConflict) {
						conflicts++
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, successes)
			assert.Equal(t, 7, conflicts)
		})
	}
}

func TestAppointmentRepoRescheduleAndOwnership(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 3, 12, 6, 0, 0, 0, time.UTC)
	later := at.Add(time.Hour)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mustUser(t, s, "444")
			mustUser(t, s, "555")
			mine, err := s.Appointments.Create(ctx, &types.Appointment{ContactNumber: "444", AppointmentTime: at})
			require.NoError(t, err)
			theirs, err := s.Appointments.Create(ctx, &types.Appointment{ContactNumber: "555", AppointmentTime: later})
			require.NoError(t, err)

			_, err = s.Appointments.Reschedule(ctx, theirs.ID, "444", at.Add(2*time.Hour))
			assert.ErrorIs(t, err, errordata.ErrNotFound)
			assert.ErrorIs(t, s.Appointments.Cancel(ctx, theirs.ID, "444"), errordata.ErrNotFound)

			_, err = s.Appointments.Reschedule(ctx, mine.ID, "444", later)
			assert.ErrorIs(t, err, errordata.ErrConflict)

			moved, err := s.Appointments.Reschedule(ctx, mine.ID, "444", at.Add(3*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, mine.ID, moved.ID)
			assert.True(t, moved.AppointmentTime.Equal(at.Add(3*time.Hour)))

			stillBooked, err := s.Appointments.IsSlotBooked(ctx, at)
			require.NoError(t, err)
			assert.False(t, stillBooked)

			list, err := s.Appointments.ListBookedByContact(ctx, "444")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, mine.ID, list[0].ID)

			between, err := s.Appointments.ListBookedBetween(ctx, at, at.Add(24*time.Hour))
			require.NoError(t, err)
			assert.Len(t, between, 2)
		})
	}
}

func TestSessionRepoBinding(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := mustUser(t, s, "666")
			b := mustUser(t, s, "777")

			rec := &types.SessionRecord{SessionID: "session-abc", StartedAt: now, LastActivityAt: now}
			_, err := s.Sessions.Create(ctx, rec)
			require.NoError(t, err)
			again, err := s.Sessions.Create(ctx, &types.SessionRecord{SessionID: "session-abc", StartedAt: now.Add(time.Minute), LastActivityAt: now})
			require.NoError(t, err)
			assert.True(t, again.StartedAt.Equal(now))

			require.NoError(t, s.Sessions.BindUser(ctx, "session-abc", a.ID, now))
			require.NoError(t, s.Sessions.BindUser(ctx, "session-abc", a.ID, now))
			assert.ErrorIs(t, s.Sessions.BindUser(ctx, "session-abc", b.ID, now), errordata.ErrPrecondition)
			assert.ErrorIs(t, s.Sessions.BindUser(ctx, "missing", a.ID, now), errordata.ErrNotFound)

			got, err := s.Sessions.Get(ctx, "session-abc")
			require.NoError(t, err)
			require.NotNil(t, got.UserID)
			assert.Equal(t, a.ID, *got.UserID)

			require.NoError(t, s.Sessions.Delete(ctx, "session-abc"))
			require.NoError(t, s.Sessions.Delete(ctx, "session-abc"))
			_, err = s.Sessions.Get(ctx, "session-abc")
			assert.ErrorIs(t, err, errordata.ErrNotFound)
		})
	}
}

func TestChatMessageRepo(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			u := mustUser(t, s, "888")
			base := time.Now().UTC()
			_, err := s.Messages.CreateMessages(ctx, []*types.ChatMessage{
				{UserID: u.ID, Role: types.RoleUser, Content: "hi", CreatedAt: base},
				{UserID: u.ID, Role: types.RoleAssistant, Content: "hello", CreatedAt: base.Add(time.Second)},
			})
			require.NoError(t, err)
			msgs, err := s.Messages.GetByUserID(ctx, u.ID)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, "hi", msgs[0].Content)
			assert.Equal(t, "hello", msgs[1].Content)
		})
	}
}
