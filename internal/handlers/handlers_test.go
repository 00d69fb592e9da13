package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/agent"
	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/middleware"
	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
	"github.com/slotter-org/clinic-voice-scheduler/internal/socket"
	"github.com/slotter-org/clinic-voice-scheduler/internal/status"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeWorker struct {
	mu       sync.Mutex
	rooms    map[string]bool
	lastArgs string
	messages []string
}

func newFakeWorker() *fakeWorker { return &fakeWorker{rooms: map[string]bool{}} }

func (f *fakeWorker) Start(room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[room] {
		return fmt.Errorf("call %s: %w", room, errordata.ErrConflict)
	}
	f.rooms[room] = true
	return nil
}

func (f *fakeWorker) has(room string) error {
	if !f.rooms[room] {
		return fmt.Errorf("call %s: %w", room, errordata.ErrNotFound)
	}
	return nil
}

func (f *fakeWorker) Stop(_ context.Context, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.has(room); err != nil {
		return err
	}
	delete(f.rooms, room)
	return nil
}

func (f *fakeWorker) Invoke(_ context.Context, room, name string, args []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.has(room); err != nil {
		return "", err
	}
	f.lastArgs = string(args)
	return "ran " + name, nil
}

func (f *fakeWorker) AddMessage(_ context.Context, room string, role types.ChatRole, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.has(room); err != nil {
		return err
	}
	if !role.Valid() {
		return errordata.ErrInvalidInput
	}
	f.messages = append(f.messages, content)
	return nil
}

func (f *fakeWorker) State(room string) (*agent.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.has(room); err != nil {
		return nil, err
	}
	return &agent.Snapshot{Room: room, Pipeline: "listening", Identity: "unidentified"}, nil
}

func (f *fakeWorker) Rooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for r := range f.rooms {
		out = append(out, r)
	}
	return out
}

func callRouter(w CallWorker) *gin.Engine {
	ch := NewCallHandler(w)
	r := gin.New()
	r.POST("/calls", ch.StartCall)
	r.GET("/calls", ch.ListCalls)
	r.DELETE("/calls/:room", ch.StopCall)
	r.POST("/calls/:room/tools/:name", ch.InvokeTool)
	r.POST("/calls/:room/messages", ch.AddMessage)
	r.GET("/calls/:room/state", ch.GetState)
	r.GET("/tools", ch.ListTools)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCallLifecycle(t *testing.T) {
	worker := newFakeWorker()
	r := callRouter(worker)

	w := do(r, http.MethodPost, "/calls", `{"room":"session-abc"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"room":"session-abc"}`, w.Body.String())

	w = do(r, http.MethodPost, "/calls", `{"room":"session-abc"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/calls/session-abc/tools/identify_user", `{"identifier":"5550100"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"ran identify_user"}`, w.Body.String())
	assert.Equal(t, `{"identifier":"5550100"}`, worker.lastArgs)

	w = do(r, http.MethodPost, "/calls/session-abc/messages", `{"role":"user","content":"hi"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = do(r, http.MethodPost, "/calls/session-abc/messages", `{"role":"robot","content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/calls/session-abc/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap agent.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "listening", snap.Pipeline)

	w = do(r, http.MethodDelete, "/calls/session-abc", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/calls/session-abc/state", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPost, "/calls/session-abc/tools/identify_user", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartCallGeneratesRoom(t *testing.T) {
	r := callRouter(newFakeWorker())
	w := do(r, http.MethodPost, "/calls", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct{ Room string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Regexp(t, `^session-[0-9a-f]{12}$`, body.Room)
}

func TestListTools(t *testing.T) {
	w := do(callRouter(newFakeWorker()), http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tools []struct{ Name string }
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Tools, 11)
}

func TestGetToken(t *testing.T) {
	tokens, err := services.NewTokenService("key", "secret", time.Hour, logger.Nop())
	require.NoError(t, err)
	th := NewTokenHandler(tokens)
	r := gin.New()
	r.GET("/", th.Root)
	r.GET("/getToken", th.GetToken)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", "").Code)

	w := do(r, http.MethodGet, "/getToken?name=Asha", "")
	require.Equal(t, http.StatusOK, w.Code)
	var grant services.Grant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grant))
	claims, err := tokens.Parse(grant.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", claims.Name)
	assert.Equal(t, grant.Room, claims.Video.Room)
}

func TestReadyz(t *testing.T) {
	r := gin.New()
	r.GET("/ok", Readyz(nil))
	r.GET("/down", Readyz(func(context.Context) error { return errordata.ErrUpstreamUnavailable }))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ok", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/down", "").Code)
}

func TestEventsStreamToObserver(t *testing.T) {
	tokens, err := services.NewTokenService("key", "secret", time.Hour, logger.Nop())
	require.NoError(t, err)
	grant, err := tokens.Issue("observer")
	require.NoError(t, err)

	hub := socket.NewHub(logger.Nop())
	am := middleware.NewAuthMiddleware(logger.Nop(), "agent", tokens)
	r := gin.New()
	r.GET("/calls/:room/events", am.RequireParticipant(), EventsHandler(hub, logger.Nop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/calls/" + grant.Room + "/events?token=" + grant.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	channel := socket.SessionChannel(grant.Room)
	require.Eventually(t, func() bool { return hub.Subscribers(channel) == 1 }, time.Second, 5*time.Millisecond)

	b := status.NewBroadcaster(hub, channel, 0, logger.Nop())
	b.Emit(status.Stage("stt", status.Ready))
	b.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"system_status","component":"stt","status":"ready"}`, string(data))

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/calls/session-other/events?token="+grant.Token, nil)
	assert.Error(t, err)
}
