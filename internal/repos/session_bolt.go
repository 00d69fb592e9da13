package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type boltSessionRepo struct {
	db  *bolt.DB
	log *logger.Logger
}

func NewBoltSessionRepo(bdb *bolt.DB, baseLog *logger.Logger) SessionRepo {
	return &boltSessionRepo{db: bdb, log: baseLog.With("repo", "BoltSessionRepo")}
}

func (r *boltSessionRepo) Create(ctx context.Context, rec *types.SessionRecord) (*types.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stored types.SessionRecord
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.BucketSessions)
		ok, err := boltGet(b, []byte(rec.SessionID), &stored)
		if err != nil || ok {
			return err
		}
		stored = *rec
		return boltPut(b, []byte(rec.SessionID), rec)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *boltSessionRepo) Get(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec types.SessionRecord
	err := r.db.View(func(tx *bolt.Tx) error {
		ok, err := boltGet(tx.Bucket(db.BucketSessions), []byte(sessionID), &rec)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("get session: %w", errordata.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// update applies fn to the stored record inside one write transaction.
func (r *boltSessionRepo) update(ctx context.Context, sessionID, what string, fn func(*types.SessionRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.BucketSessions)
		var rec types.SessionRecord
		ok, err := boltGet(b, []byte(sessionID), &rec)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", what, errordata.ErrNotFound)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		return boltPut(b, []byte(sessionID), &rec)
	})
}

func (r *boltSessionRepo) BindUser(ctx context.Context, sessionID string, userID uuid.UUID, at time.Time) error {
	return r.update(ctx, sessionID, "bind session user", func(rec *types.SessionRecord) error {
		if rec.UserID != nil && *rec.UserID != userID {
			return fmt.Errorf("bind session user: already bound: %w", errordata.ErrPrecondition)
		}
		id := userID
		rec.UserID = &id
		rec.LastActivityAt = at.UTC()
		return nil
	})
}

func (r *boltSessionRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return r.update(ctx, sessionID, "touch session", func(rec *types.SessionRecord) error {
		rec.LastActivityAt = at.UTC()
		return nil
	})
}

func (r *boltSessionRepo) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketSessions).Delete([]byte(sessionID))
	})
}
