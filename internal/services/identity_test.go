package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

func TestResolvePhoneThenEmail(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ir := NewIdentityResolver(store.Users, logger.Nop())

	_, err := ir.Resolve(ctx, "555-0100")
	assert.ErrorIs(t, err, errordata.ErrNotFound)

	u, err := ir.Enroll(ctx, EnrollInput{ContactNumber: "555-0100", FirstName: "Asha", LastName: "Rao", Email: "Asha@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", u.Name)

	byPhone, err := ir.Resolve(ctx, " 555-0100 ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byPhone.ID)

	byEmail, err := ir.Resolve(ctx, "asha@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestEnrollValidation(t *testing.T) {
	ctx := context.Background()
	ir := NewIdentityResolver(newTestStore(t).Users, logger.Nop())

	_, err := ir.Enroll(ctx, EnrollInput{FirstName: "No", LastName: "Phone"})
	assert.ErrorIs(t, err, errordata.ErrInvalidInput)

	_, err = ir.Enroll(ctx, EnrollInput{ContactNumber: "1", FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	_, err = ir.Enroll(ctx, EnrollInput{ContactNumber: "1", FirstName: "C", LastName: "D"})
	assert.ErrorIs(t, err, errordata.ErrConflict)
}

func TestIdentityMachineTransitions(t *testing.T) {
	m := NewIdentityMachine()
	state, user := m.Current()
	assert.Equal(t, Unidentified, state)
	assert.Nil(t, user)
	assert.True(t, m.Allows(OpResolve))
	assert.True(t, m.Allows(OpFormat))
	assert.False(t, m.Allows(OpSchedule))

	m.BeginVerification()
	state, _ = m.Current()
	assert.Equal(t, Verifying, state)

	m.MarkNotFound()
	state, _ = m.Current()
	assert.Equal(t, Enrolling, state)
	assert.True(t, m.Allows(OpEnroll))

	a := &types.User{ID: uuid.New(), ContactNumber: "1"}
	b := &types.User{ID: uuid.New(), ContactNumber: "2"}
	require.NoError(t, m.Identify(a))
	require.NoError(t, m.Identify(a))
	assert.ErrorIs(t, m.Identify(b), errordata.ErrPrecondition)

	state, user = m.Current()
	assert.Equal(t, Identified, state)
	assert.Equal(t, a.ID, user.ID)
	assert.True(t, m.Allows(OpSchedule))
	assert.False(t, m.Allows(OpResolve))
	assert.False(t, m.Allows(OpEnroll))

	m.BeginVerification()
	m.MarkNotFound()
	state, _ = m.Current()
	assert.Equal(t, Identified, state)
	assert.Equal(t, "identified", state.String())
}

// Scenario: unknown caller enrolls, gets bound, and has no appointments yet.
func TestEnrollmentScenario(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ir := NewIdentityResolver(store.Users, logger.Nop())
	sessions := NewSessionRegistry(store.Sessions, logger.Nop())
	appts := newTestAppointments(t, store)
	m := NewIdentityMachine()

	_, err := sessions.Create(ctx, "session-000000000001")
	require.NoError(t, err)

	m.BeginVerification()
	_, err = ir.Resolve(ctx, "555-0100")
	require.ErrorIs(t, err, errordata.ErrNotFound)
	m.MarkNotFound()

	u, err := ir.Enroll(ctx, EnrollInput{ContactNumber: "555-0100", FirstName: "Sam", LastName: "Lee"})
	require.NoError(t, err)
	require.NoError(t, m.Identify(u))
	require.NoError(t, sessions.BindUser(ctx, "session-000000000001", u.ID))

	rec, err := sessions.Get(ctx, "session-000000000001")
	require.NoError(t, err)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, u.ID, *rec.UserID)

	list, err := appts.ListActive(ctx, u.ContactNumber)
	require.NoError(t, err)
	assert.Empty(t, list)
}
