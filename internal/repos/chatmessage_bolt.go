package repos

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type boltChatMessageRepo struct {
	db  *bolt.DB
	log *logger.Logger
}

func NewBoltChatMessageRepo(bdb *bolt.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &boltChatMessageRepo{db: bdb, log: baseLog.With("repo", "BoltChatMessageRepo")}
}

func (r *boltChatMessageRepo) CreateMessages(ctx context.Context, msgs []*types.ChatMessage) ([]*types.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}
	prepareMessages(msgs)
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.BucketMessages)
		for _, m := range msgs {
			if err := boltPut(b, []byte(m.ID.String()), m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("failed to create chat messages", "error", err)
		return nil, err
	}
	return msgs, nil
}

func (r *boltChatMessageRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*types.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*types.ChatMessage
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketMessages).ForEach(func(_, v []byte) error {
			var m types.ChatMessage
			if err := json.Unmarshal(v, &m); err != nil {
				return nil
			}
			if m.UserID == userID {
				out = append(out, &m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
