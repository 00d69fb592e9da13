package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type ChatMessageRepo interface {
	CreateMessages(ctx context.Context, msgs []*types.ChatMessage) ([]*types.ChatMessage, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*types.ChatMessage, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{
		db:  db,
		log: baseLog.With("repo", "ChatMessageRepo"),
	}
}

func prepareMessages(msgs []*types.ChatMessage) {
	now := time.Now().UTC()
	for _, m := range msgs {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
	}
}

func (cmr *chatMessageRepo) CreateMessages(ctx context.Context, msgs []*types.ChatMessage) ([]*types.ChatMessage, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}
	prepareMessages(msgs)
	if err := cmr.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		cmr.log.Error("failed to create chat messages", "error", err)
		return nil, translate(err, "create chat messages")
	}
	return msgs, nil
}

func (cmr *chatMessageRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*types.ChatMessage, error) {
	var msgs []*types.ChatMessage
	if err := cmr.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		cmr.log.Error("failed to get chat messages by userID", "error", err)
		return nil, translate(err, "get chat messages")
	}
	return msgs, nil
}
