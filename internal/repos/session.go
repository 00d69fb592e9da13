package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type SessionRepo interface {
	// Create inserts the record unless one already exists, then returns
	// whatever is stored.
	Create(ctx context.Context, rec *types.SessionRecord) (*types.SessionRecord, error)
	Get(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	// BindUser fails with ErrPrecondition when the session is already bound
	// to someone else.
	BindUser(ctx context.Context, sessionID string, userID uuid.UUID, at time.Time) error
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (sr *sessionRepo) Create(ctx context.Context, rec *types.SessionRecord) (*types.SessionRecord, error) {
	err := sr.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(rec).Error
	if err != nil {
		sr.log.Error("Failed to create session record", "sessionID", rec.SessionID, "error", err)
		return nil, translate(err, "create session")
	}
	return sr.Get(ctx, rec.SessionID)
}

func (sr *sessionRepo) Get(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	if err := sr.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		return nil, translate(err, "get session")
	}
	return &rec, nil
}

func (sr *sessionRepo) BindUser(ctx context.Context, sessionID string, userID uuid.UUID, at time.Time) error {
	res := sr.db.WithContext(ctx).
		Model(&types.SessionRecord{}).
		Where("session_id = ? AND (user_id IS NULL OR user_id = ?)", sessionID, userID).
		Updates(map[string]interface{}{"user_id": userID, "last_activity_at": at.UTC()})
	if res.Error != nil {
		return translate(res.Error, "bind session user")
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := sr.Get(ctx, sessionID); err != nil {
		return err
	}
	return fmt.Errorf("bind session user: already bound: %w", errordata.ErrPrecondition)
}

func (sr *sessionRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	res := sr.db.WithContext(ctx).
		Model(&types.SessionRecord{}).
		Where("session_id = ?", sessionID).
		Update("last_activity_at", at.UTC())
	if res.Error != nil {
		return translate(res.Error, "touch session")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("touch session: %w", errordata.ErrNotFound)
	}
	return nil
}

func (sr *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	err := sr.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&types.SessionRecord{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return translate(err, "delete session")
	}
	return nil
}
