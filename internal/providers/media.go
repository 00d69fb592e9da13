package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// MediaAgent drives the realtime audio sidecar that owns the room
// connection, voice activity detection and speech playback.
type MediaAgent struct {
	log       *logger.Logger
	threshold float64
	http      httpBackend
}

func NewMediaAgent(baseURL string, vadThreshold float64, log *logger.Logger) *MediaAgent {
	l := log.With("provider", "MediaAgent")
	return &MediaAgent{
		log:       l,
		threshold: vadThreshold,
		http:      newHTTPBackend(baseURL, nil, l),
	}
}

// Load prepares the voice activity detector.
func (m *MediaAgent) Load(ctx context.Context) error {
	if m.threshold <= 0 || m.threshold >= 1 {
		return fmt.Errorf("vad threshold %.2f outside (0,1)", m.threshold)
	}
	return m.http.do(ctx, http.MethodPost, "/v1/vad", map[string]float64{"activation_threshold": m.threshold}, nil)
}

func (m *MediaAgent) Start(ctx context.Context, room, instructions string) error {
	return m.http.do(ctx, http.MethodPost, "/v1/sessions", map[string]string{
		"room":         room,
		"instructions": instructions,
	}, nil)
}

func (m *MediaAgent) Say(ctx context.Context, room, text string) error {
	return m.http.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(room)+"/say", map[string]string{"text": text}, nil)
}

func (m *MediaAgent) Close(ctx context.Context, room string) error {
	return m.http.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(room), nil, nil)
}
