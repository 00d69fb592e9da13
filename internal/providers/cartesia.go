package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

const cartesiaVersion = "2024-06-10"

// CartesiaTTS readies text-to-speech by resolving the configured voice.
type CartesiaTTS struct {
	log     *logger.Logger
	apiKey  string
	voiceID string
	http    httpBackend
}

func NewCartesiaTTS(apiKey, baseURL, voiceID string, log *logger.Logger) *CartesiaTTS {
	l := log.With("provider", "Cartesia")
	return &CartesiaTTS{
		log:     l,
		apiKey:  apiKey,
		voiceID: voiceID,
		http: newHTTPBackend(baseURL, map[string]string{
			"X-API-Key":        apiKey,
			"Cartesia-Version": cartesiaVersion,
		}, l),
	}
}

func (c *CartesiaTTS) Initialize(ctx context.Context) error {
	if err := requireKey("cartesia", c.apiKey); err != nil {
		return err
	}
	var voice struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.http.do(ctx, http.MethodGet, "/voices/"+url.PathEscape(c.voiceID), nil, &voice); err != nil {
		return fmt.Errorf("cartesia voice %s: %w", c.voiceID, err)
	}
	c.log.Debug("Cartesia voice resolved", "voice", voice.Name)
	return nil
}
