package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// DeepgramSTT readies the speech-to-text stage by checking the account
// credentials; transcription itself runs in the media agent.
type DeepgramSTT struct {
	log    *logger.Logger
	apiKey string
	http   httpBackend
}

func NewDeepgramSTT(apiKey, baseURL string, log *logger.Logger) *DeepgramSTT {
	l := log.With("provider", "Deepgram")
	return &DeepgramSTT{
		log:    l,
		apiKey: apiKey,
		http:   newHTTPBackend(baseURL, map[string]string{"Authorization": "Token " + apiKey}, l),
	}
}

func (d *DeepgramSTT) Initialize(ctx context.Context) error {
	if err := requireKey("deepgram", d.apiKey); err != nil {
		return err
	}
	var out struct {
		Projects []struct {
			ProjectID string `json:"project_id"`
		} `json:"projects"`
	}
	if err := d.http.do(ctx, http.MethodGet, "/v1/projects", nil, &out); err != nil {
		return fmt.Errorf("deepgram: %w", err)
	}
	d.log.Debug("Deepgram reachable", "projects", len(out.Projects))
	return nil
}
