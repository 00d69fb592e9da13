package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/status"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type stub struct{ err error }

func (s stub) Initialize(context.Context) error { return s.err }
func (s stub) Load(context.Context) error       { return s.err }

type fakeMedia struct {
	mu       sync.Mutex
	startErr error
	sayErr   error
	said     []string
	closed   int
}

func (m *fakeMedia) Close(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeMedia) Start(context.Context, string, string) error { return m.startErr }

func (m *fakeMedia) Say(_ context.Context, _ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.said = append(m.said, text)
	return m.sayErr
}

type avatarFunc func(ctx context.Context, room string) error

func (f avatarFunc) Start(ctx context.Context, room string) error { return f(ctx, room) }

type fakeSessions struct {
	mu        sync.Mutex
	records   map[string]bool
	getErr    error
	destroyed int
}

func newFakeSessions() *fakeSessions { return &fakeSessions{records: map[string]bool{}} }

func (f *fakeSessions) Create(_ context.Context, id string) (*types.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = true
	return &types.SessionRecord{SessionID: id}, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*types.SessionRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &types.SessionRecord{SessionID: id}, nil
}

func (f *fakeSessions) Destroy(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	f.destroyed++
	return nil
}

func (f *fakeSessions) counts() (live, destroyed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), f.destroyed
}

type harness struct {
	cfg      Config
	media    *fakeMedia
	sessions *fakeSessions
	history  *status.History
}

func newHarness() *harness {
	h := &harness{media: &fakeMedia{}, sessions: newFakeSessions(), history: status.NewHistory(0)}
	h.cfg = Config{
		STT:      stub{},
		LLM:      stub{},
		TTS:      stub{},
		VAD:      stub{},
		Media:    h.media,
		Avatar:   avatarFunc(func(context.Context, string) error { return nil }),
		Sessions: h.sessions,
		Status:   h.history,
		Greeting: "hello there",
	}
	return h
}

func (h *harness) start(t *testing.T) (*Sequencer, context.CancelFunc, <-chan error) {
	t.Helper()
	seq, err := New(h.cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx, "session-abc") }()
	return seq, cancel, done
}

func waitFor(t *testing.T, seq *Sequencer, want State, within time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool { return seq.State() == want }, within, 5*time.Millisecond)
}

func stages(events []status.Event) []string {
	var out []string
	for _, e := range events {
		if e.Type == status.SystemStatus {
			out = append(out, e.Component+":"+e.Status)
		}
	}
	return out
}

func count(events []status.Event, component, st string) int {
	n := 0
	for _, e := range events {
		if e.Component == component && e.Status == st {
			n++
		}
	}
	return n
}

func TestRunOrdersStages(t *testing.T) {
	h := newHarness()
	seq, cancel, done := h.start(t)
	waitFor(t, seq, Listening, time.Second)

	assert.Equal(t, []string{
		"stt:initializing", "stt:ready",
		"llm:initializing", "llm:ready",
		"tts:initializing", "tts:ready",
		"database:initializing", "database:ready",
		"vad:initializing", "vad:ready",
		"session:initializing", "session:ready",
		"avatar:initializing", "avatar:ready",
		"greeting:initializing", "greeting:ready",
	}, stages(h.history.Events()))
	assert.Equal(t, []string{"hello there"}, h.media.said)

	live, _ := h.sessions.counts()
	assert.Equal(t, 1, live)

	cancel()
	require.NoError(t, <-done)
	live, destroyed := h.sessions.counts()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, Stopped, seq.State())
	assert.Equal(t, 1, h.media.closed)
}

func TestAvatarTimeoutDegradesToVoiceOnly(t *testing.T) {
	h := newHarness()
	block := make(chan struct{})
	defer close(block)
	h.cfg.Avatar = avatarFunc(func(context.Context, string) error {
		<-block
		return nil
	})
	h.cfg.AvatarTimeout = 50 * time.Millisecond

	seq, cancel, done := h.start(t)
	defer func() {
		cancel()
		<-done
	}()
	waitFor(t, seq, Listening, 50*time.Millisecond+time.Second)

	events := h.history.Events()
	assert.Equal(t, 1, count(events, ComponentAvatar, status.Unavailable))
	assert.Zero(t, count(events, ComponentAvatar, status.Ready))
	assert.Equal(t, 1, count(events, ComponentGreeting, status.Ready))

	got := stages(events)
	assert.Equal(t, "avatar:unavailable", got[len(got)-3])
}

func TestAvatarErrorIsReported(t *testing.T) {
	h := newHarness()
	h.cfg.Avatar = avatarFunc(func(context.Context, string) error { return errors.New("boom") })

	seq, cancel, done := h.start(t)
	waitFor(t, seq, Listening, time.Second)
	cancel()
	require.NoError(t, <-done)

	events := h.history.Events()
	assert.Equal(t, 1, count(events, ComponentAvatar, status.Error))
	assert.Zero(t, count(events, ComponentAvatar, status.Unavailable))
}

func TestNoAvatarIsDisabled(t *testing.T) {
	h := newHarness()
	h.cfg.Avatar = nil

	seq, cancel, done := h.start(t)
	waitFor(t, seq, Listening, time.Second)
	cancel()
	require.NoError(t, <-done)

	events := h.history.Events()
	assert.Equal(t, 1, count(events, ComponentAvatar, status.Disabled))
	assert.Zero(t, count(events, ComponentAvatar, status.Initializing))
}

func TestStoreProbeFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.sessions.getErr = errordata.ErrUpstreamUnavailable

	seq, cancel, done := h.start(t)
	waitFor(t, seq, Listening, time.Second)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, count(h.history.Events(), ComponentDatabase, status.Error))
}

func TestGreetingFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.media.sayErr = errors.New("tts down")

	seq, cancel, done := h.start(t)
	waitFor(t, seq, Listening, time.Second)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, count(h.history.Events(), ComponentGreeting, status.Error))
}

func TestFatalStageStopsAndCleansUp(t *testing.T) {
	h := newHarness()
	h.cfg.STT = stub{err: errordata.ErrUpstreamUnavailable}

	seq, err := New(h.cfg)
	require.NoError(t, err)
	err = seq.Run(context.Background(), "session-abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, errordata.ErrUpstreamUnavailable)

	got := stages(h.history.Events())
	assert.Equal(t, []string{"stt:initializing", "stt:error"}, got)
	live, destroyed := h.sessions.counts()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, destroyed)
}

func TestFatalSessionStartStops(t *testing.T) {
	h := newHarness()
	h.media.startErr = errors.New("room gone")

	seq, err := New(h.cfg)
	require.NoError(t, err)
	require.Error(t, seq.Run(context.Background(), "session-abc"))
	events := h.history.Events()
	assert.Equal(t, 1, count(events, ComponentSession, status.Error))
	assert.Zero(t, count(events, ComponentAvatar, status.Initializing))
}

func TestCancelDuringAvatarWait(t *testing.T) {
	h := newHarness()
	started := make(chan struct{})
	h.cfg.Avatar = avatarFunc(func(ctx context.Context, _ string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	_, cancel, done := h.start(t)
	<-started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	_, destroyed := h.sessions.counts()
	assert.Equal(t, 1, destroyed)
	assert.Zero(t, count(h.history.Events(), ComponentAvatar, status.Unavailable))
}

func TestRunOnlyOnce(t *testing.T) {
	h := newHarness()
	h.cfg.STT = stub{err: errors.New("nope")}
	seq, err := New(h.cfg)
	require.NoError(t, err)
	_ = seq.Run(context.Background(), "s")
	assert.ErrorIs(t, seq.Run(context.Background(), "s"), errordata.ErrConflict)
}

func TestNewRequiresCollaborators(t *testing.T) {
	h := newHarness()
	cfg := h.cfg
	cfg.VAD = nil
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = h.cfg
	cfg.Sessions = nil
	_, err = New(cfg)
	assert.Error(t, err)
}
