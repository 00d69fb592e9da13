package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type boltUserRepo struct {
	db  *bolt.DB
	log *logger.Logger
}

func NewBoltUserRepo(bdb *bolt.DB, baseLog *logger.Logger) UserRepo {
	return &boltUserRepo{db: bdb, log: baseLog.With("repo", "BoltUserRepo")}
}

func (r *boltUserRepo) Create(ctx context.Context, user *types.User) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if user == nil || strings.TrimSpace(user.ContactNumber) == "" {
		return nil, fmt.Errorf("create user: %w", errordata.ErrInvalidInput)
	}
	user.ContactNumber = strings.TrimSpace(user.ContactNumber)
	prepareUser(user)
	err := r.db.Update(func(tx *bolt.Tx) error {
		byContact := tx.Bucket(db.BucketUsersByContact)
		if byContact.Get([]byte(user.ContactNumber)) != nil {
			return fmt.Errorf("create user: %w", errordata.ErrConflict)
		}
		if err := boltPut(tx.Bucket(db.BucketUsers), []byte(user.ID.String()), user); err != nil {
			return err
		}
		return byContact.Put([]byte(user.ContactNumber), []byte(user.ID.String()))
	})
	if err != nil {
		r.log.Warn("Failed to create user", "error", err)
		return nil, err
	}
	return user, nil
}

func (r *boltUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user types.User
	err := r.db.View(func(tx *bolt.Tx) error {
		ok, err := boltGet(tx.Bucket(db.BucketUsers), []byte(userID.String()), &user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("get user by id: %w", errordata.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *boltUserRepo) GetByContactNumber(ctx context.Context, contactNumber string) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user types.User
	err := r.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(db.BucketUsersByContact).Get([]byte(strings.TrimSpace(contactNumber)))
		if id == nil {
			return fmt.Errorf("get user by contact number: %w", errordata.ErrNotFound)
		}
		ok, err := boltGet(tx.Bucket(db.BucketUsers), id, &user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("get user by contact number: %w", errordata.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *boltUserRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(email))
	var found *types.User
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketUsers).ForEach(func(_, v []byte) error {
			var u types.User
			if err := json.Unmarshal(v, &u); err != nil {
				return nil
			}
			if u.Email == nil || *u.Email != want {
				return nil
			}
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = &u
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("get user by email: %w", errordata.ErrNotFound)
	}
	return found, nil
}
