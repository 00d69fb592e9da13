package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/tools"
)

func TestDeepgramInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/v1/projects", r.URL.Path)
		_, _ = w.Write([]byte(`{"projects":[{"project_id":"p1"}]}`))
	}))
	defer srv.Close()

	require.NoError(t, NewDeepgramSTT("good", srv.URL, logger.Nop()).Initialize(context.Background()))
	err := NewDeepgramSTT("bad", srv.URL, logger.Nop()).Initialize(context.Background())
	assert.ErrorIs(t, err, errordata.ErrUpstreamUnavailable)
	err = NewDeepgramSTT("", srv.URL, logger.Nop()).Initialize(context.Background())
	assert.ErrorIs(t, err, errordata.ErrUpstreamUnavailable)
}

func TestCartesiaInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		assert.Equal(t, cartesiaVersion, r.Header.Get("Cartesia-Version"))
		if r.URL.Path != "/voices/v-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"v-1","name":"Calm"}`))
	}))
	defer srv.Close()

	require.NoError(t, NewCartesiaTTS("k", srv.URL, "v-1", logger.Nop()).Initialize(context.Background()))
	assert.ErrorIs(t, NewCartesiaTTS("k", srv.URL, "v-2", logger.Nop()).Initialize(context.Background()), errordata.ErrUpstreamUnavailable)
}

func TestBeyAvatarHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"id":"a"}`))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewBeyAvatar("k", srv.URL, "avatar-1", logger.Nop()).Start(ctx, "session-x")
	assert.ErrorIs(t, err, errordata.ErrTimeout)
}

func TestMediaAgentCalls(t *testing.T) {
	var (
		mu      sync.Mutex
		paths   []string
		sayBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/v1/sessions/session-x/say" {
			_ = json.NewDecoder(r.Body).Decode(&sayBody)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewMediaAgent(srv.URL, 0.5, logger.Nop())
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.Start(ctx, "session-x", "be nice"))
	require.NoError(t, m.Say(ctx, "session-x", "Hello!"))
	require.NoError(t, m.Close(ctx, "session-x"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /v1/vad",
		"POST /v1/sessions",
		"POST /v1/sessions/session-x/say",
		"DELETE /v1/sessions/session-x",
	}, paths)
	assert.Equal(t, "Hello!", sayBody["text"])

	assert.Error(t, NewMediaAgent(srv.URL, 1.5, logger.Nop()).Load(ctx))
}

func TestFunctionDeclarationsMirrorCatalog(t *testing.T) {
	decls := FunctionDeclarations(tools.Catalog())
	require.Len(t, decls, len(tools.Catalog()))

	byName := map[string]*genai.FunctionDeclaration{}
	for _, d := range decls {
		byName[d.Name] = d
	}
	book := byName[tools.BookAppointment]
	require.NotNil(t, book)
	assert.Equal(t, []string{"start_time"}, book.Parameters.Required)
	assert.Equal(t, genai.TypeInteger, book.Parameters.Properties["duration"].Type)
	assert.Nil(t, byName[tools.RetrieveAppointment].Parameters)
}

func TestGeminiWithoutKeyFailsStage(t *testing.T) {
	err := NewGeminiLLM("", "", logger.Nop()).Initialize(context.Background())
	assert.ErrorIs(t, err, errordata.ErrUpstreamUnavailable)
}
