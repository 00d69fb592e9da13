package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

const defaultHTTPTimeout = 15 * time.Second

// httpBackend is shared by the vendor clients. Non-2xx answers map to
// ErrUpstreamUnavailable and expired contexts to ErrTimeout.
type httpBackend struct {
	log     *logger.Logger
	client  *http.Client
	baseURL string
	headers map[string]string
}

func newHTTPBackend(baseURL string, headers map[string]string, log *logger.Logger) httpBackend {
	return httpBackend{
		log:     log,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		baseURL: baseURL,
		headers: headers,
	}
}

func (b httpBackend) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		b.log.Warn("failed to build new request", "error", err)
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s %s: %w", method, path, errordata.ErrTimeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn("upstream call failed", "path", path, "error", err)
		return fmt.Errorf("%s %s: %v: %w", method, path, err, errordata.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		b.log.Warn("upstream responded with non-2xx", "path", path, "statusCode", resp.StatusCode, "body", string(bodyBytes))
		return fmt.Errorf("%s %s: HTTP %d: %w", method, path, resp.StatusCode, errordata.ErrUpstreamUnavailable)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func requireKey(name, key string) error {
	if key == "" {
		return fmt.Errorf("%s api key not configured: %w", name, errordata.ErrUpstreamUnavailable)
	}
	return nil
}
