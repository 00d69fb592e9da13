package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// SessionRegistry tracks one record per live call, keyed by room name.
type SessionRegistry interface {
	Create(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	BindUser(ctx context.Context, sessionID string, userID uuid.UUID) error
	Get(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	Touch(ctx context.Context, sessionID string) error
	Destroy(ctx context.Context, sessionID string) error
}

type sessionRegistry struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	now      func() time.Time
}

func NewSessionRegistry(sessions repos.SessionRepo, log *logger.Logger) SessionRegistry {
	return &sessionRegistry{
		log:      log.With("service", "SessionRegistry"),
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (sr *sessionRegistry) Create(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	now := sr.now()
	rec, err := sr.sessions.Create(ctx, &types.SessionRecord{
		SessionID:      sessionID,
		Metadata:       datatypes.JSON([]byte(`{}`)),
		StartedAt:      now,
		LastActivityAt: now,
	})
	if err != nil {
		sr.log.Error("Failed to create session record", "sessionID", sessionID, "error", err)
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}
	sr.log.Info("Session record ready", "sessionID", sessionID)
	return rec, nil
}

func (sr *sessionRegistry) BindUser(ctx context.Context, sessionID string, userID uuid.UUID) error {
	if err := sr.sessions.BindUser(ctx, sessionID, userID, sr.now()); err != nil {
		sr.log.Warn("Failed to bind user to session", "sessionID", sessionID, "error", err)
		return err
	}
	sr.log.Info("User bound to session", "sessionID", sessionID)
	return nil
}

func (sr *sessionRegistry) Get(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	return sr.sessions.Get(ctx, sessionID)
}

func (sr *sessionRegistry) Touch(ctx context.Context, sessionID string) error {
	if err := sr.sessions.Touch(ctx, sessionID, sr.now()); err != nil {
		sr.log.Debug("Failed to touch session", "sessionID", sessionID, "error", err)
		return err
	}
	return nil
}

func (sr *sessionRegistry) Destroy(ctx context.Context, sessionID string) error {
	if err := sr.sessions.Delete(ctx, sessionID); err != nil {
		sr.log.Error("Failed to destroy session record", "sessionID", sessionID, "error", err)
		return err
	}
	sr.log.Info("Session record destroyed", "sessionID", sessionID)
	return nil
}
