package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// BeyAvatar asks the avatar renderer to join a room. Start returns when the
// renderer acknowledges or ctx ends, whichever is first.
type BeyAvatar struct {
	log      *logger.Logger
	apiKey   string
	avatarID string
	http     httpBackend
}

func NewBeyAvatar(apiKey, baseURL, avatarID string, log *logger.Logger) *BeyAvatar {
	l := log.With("provider", "Bey")
	return &BeyAvatar{
		log:      l,
		apiKey:   apiKey,
		avatarID: avatarID,
		http:     newHTTPBackend(baseURL, map[string]string{"x-api-key": apiKey}, l),
	}
}

func (b *BeyAvatar) Start(ctx context.Context, room string) error {
	if err := requireKey("bey", b.apiKey); err != nil {
		return err
	}
	in := map[string]string{"room": room}
	if b.avatarID != "" {
		in["avatar_id"] = b.avatarID
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := b.http.do(ctx, http.MethodPost, "/v1/session", in, &out); err != nil {
		return fmt.Errorf("bey avatar: %w", err)
	}
	b.log.Info("Avatar session started", "room", room, "avatarSession", out.ID)
	return nil
}
