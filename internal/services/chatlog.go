package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

const defaultPersistTimeout = 5 * time.Second

// ChatLog is the in-call transcript. Turns are persisted in the background
// once a user is bound; earlier turns stay in memory only.
type ChatLog struct {
	log      *logger.Logger
	messages repos.ChatMessageRepo
	timeout  time.Duration

	mu     sync.Mutex
	turns  []types.ChatMessage
	userID uuid.UUID

	inflight sync.WaitGroup
}

func NewChatLog(messages repos.ChatMessageRepo, log *logger.Logger) *ChatLog {
	return &ChatLog{
		log:      log.With("service", "ChatLog"),
		messages: messages,
		timeout:  defaultPersistTimeout,
	}
}

// SetUser binds the transcript to a user. The first binding wins.
func (c *ChatLog) SetUser(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == uuid.Nil {
		c.userID = userID
	}
}

func (c *ChatLog) UserID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Add records a turn and returns without waiting for persistence.
func (c *ChatLog) Add(role types.ChatRole, content string) error {
	if !role.Valid() {
		return fmt.Errorf("chat role %q: %w", role, errordata.ErrInvalidInput)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	c.mu.Lock()
	msg := types.ChatMessage{
		ID:        uuid.New(),
		UserID:    c.userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	c.turns = append(c.turns, msg)
	persist := c.userID != uuid.Nil && c.messages != nil
	if persist {
		c.inflight.Add(1)
	}
	c.mu.Unlock()

	if persist {
		go c.persist(msg)
	}
	return nil
}

func (c *ChatLog) persist(msg types.ChatMessage) {
	defer c.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if _, err := c.messages.CreateMessages(ctx, []*types.ChatMessage{&msg}); err != nil {
		c.log.Warn("Failed to persist chat turn", "role", msg.Role, "error", err)
	}
}

func (c *ChatLog) Transcript() []types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ChatMessage, len(c.turns))
	copy(out, c.turns)
	return out
}

// Wait blocks until in-flight writes finish.
func (c *ChatLog) Wait() {
	c.inflight.Wait()
}
