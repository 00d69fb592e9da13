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

func TestSessionRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sr := NewSessionRegistry(store.Sessions, logger.Nop())

	first, err := sr.Create(ctx, "session-aaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Nil(t, first.UserID)
	assert.JSONEq(t, `{}`, string(first.Metadata))

	second, err := sr.Create(ctx, "session-aaaaaaaaaaaa")
	require.NoError(t, err)
	assert.True(t, first.StartedAt.Equal(second.StartedAt))

	assert.ErrorIs(t, sr.BindUser(ctx, "session-missing", uuid.New()), errordata.ErrNotFound)

	u, err := store.Users.Create(ctx, &types.User{ContactNumber: "42", Name: "A B"})
	require.NoError(t, err)
	other, err := store.Users.Create(ctx, &types.User{ContactNumber: "43", Name: "C D"})
	require.NoError(t, err)

	require.NoError(t, sr.BindUser(ctx, "session-aaaaaaaaaaaa", u.ID))
	assert.ErrorIs(t, sr.BindUser(ctx, "session-aaaaaaaaaaaa", other.ID), errordata.ErrPrecondition)
	require.NoError(t, sr.Touch(ctx, "session-aaaaaaaaaaaa"))

	require.NoError(t, sr.Destroy(ctx, "session-aaaaaaaaaaaa"))
	_, err = sr.Get(ctx, "session-aaaaaaaaaaaa")
	assert.ErrorIs(t, err, errordata.ErrNotFound)
}
