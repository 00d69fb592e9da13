package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/status"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

const (
	DefaultAvatarTimeout  = 20 * time.Second
	defaultCleanupTimeout = 5 * time.Second
)

// Stage component names as seen by observers.
const (
	ComponentSTT      = "stt"
	ComponentLLM      = "llm"
	ComponentTTS      = "tts"
	ComponentDatabase = "database"
	ComponentVAD      = "vad"
	ComponentSession  = "session"
	ComponentAvatar   = "avatar"
	ComponentGreeting = "greeting"
)

type Initializer interface {
	Initialize(ctx context.Context) error
}

type VADLoader interface {
	Load(ctx context.Context) error
}

type MediaSession interface {
	Start(ctx context.Context, room, instructions string) error
	Say(ctx context.Context, room, text string) error
}

// MediaCloser is optionally implemented by a MediaSession that holds
// per-room resources.
type MediaCloser interface {
	Close(ctx context.Context, room string) error
}

type AvatarStarter interface {
	Start(ctx context.Context, room string) error
}

type SessionStore interface {
	Create(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	Get(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	Destroy(ctx context.Context, sessionID string) error
}

// Config carries every collaborator explicitly. Avatar may be nil, which
// runs the call voice-only. Zero settle delays mean no wait.
type Config struct {
	STT      Initializer
	LLM      Initializer
	TTS      Initializer
	VAD      VADLoader
	Media    MediaSession
	Avatar   AvatarStarter
	Sessions SessionStore
	Status   status.Emitter

	AvatarTimeout  time.Duration
	SessionSettle  time.Duration
	AvatarSettle   time.Duration
	GreetingDelay  time.Duration
	CleanupTimeout time.Duration

	Greeting     string
	Instructions string
	Logger       *logger.Logger
}

type State int

const (
	Idle State = iota
	STTReady
	LLMReady
	TTSReady
	StoreChecked
	VADReady
	SessionStarted
	AvatarAttempted
	GreetingSent
	Listening
	Stopped
)

var stateNames = [...]string{
	"idle", "stt_ready", "llm_ready", "tts_ready", "store_checked", "vad_ready",
	"session_started", "avatar_attempted", "greeting_sent", "listening", "stopped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sequencer brings one call up stage by stage, then listens until the call
// context is cancelled. It runs once.
type Sequencer struct {
	cfg Config
	log *logger.Logger

	mu    sync.Mutex
	state State
	ran   bool
}

func New(cfg Config) (*Sequencer, error) {
	switch {
	case cfg.STT == nil, cfg.LLM == nil, cfg.TTS == nil:
		return nil, fmt.Errorf("pipeline: speech and language stages are required")
	case cfg.VAD == nil, cfg.Media == nil:
		return nil, fmt.Errorf("pipeline: vad and media session are required")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("pipeline: session store is required")
	}
	if cfg.AvatarTimeout <= 0 {
		cfg.AvatarTimeout = DefaultAvatarTimeout
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = defaultCleanupTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Sequencer{cfg: cfg, log: cfg.Logger.With("component", "PipelineSequencer")}, nil
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug("Pipeline state", "state", st.String())
}

func (s *Sequencer) emit(component, st string) {
	if s.cfg.Status != nil {
		s.cfg.Status.Emit(status.Stage(component, st))
	}
}

// stage brackets fn with initializing and ready/error events.
func (s *Sequencer) stage(ctx context.Context, component string, fn func(context.Context) error) error {
	s.emit(component, status.Initializing)
	if err := fn(ctx); err != nil {
		if ctx.Err() == nil {
			s.emit(component, status.Error)
			s.log.Error("Stage failed", "stage", component, "error", err)
		}
		return fmt.Errorf("%s: %w", component, err)
	}
	s.emit(component, status.Ready)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the startup sequence for sessionID and then blocks until ctx
// is cancelled. The session record is destroyed on every exit path.
// Cancellation is a normal exit and returns nil; a failed fatal stage
// returns its error.
func (s *Sequencer) Run(ctx context.Context, sessionID string) (err error) {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return fmt.Errorf("pipeline already ran: %w", errordata.ErrConflict)
	}
	s.ran = true
	s.mu.Unlock()

	log := s.log.With("sessionID", sessionID)
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CleanupTimeout)
		defer cancel()
		if closer, ok := s.cfg.Media.(MediaCloser); ok {
			if cerr := closer.Close(cctx, sessionID); cerr != nil {
				log.Warn("Media session close failed", "error", cerr)
			}
		}
		if derr := s.cfg.Sessions.Destroy(cctx, sessionID); derr != nil {
			log.Error("Session cleanup failed", "error", derr)
		}
		s.setState(Stopped)
		if ctx.Err() != nil {
			err = nil
		}
	}()

	if _, cerr := s.cfg.Sessions.Create(ctx, sessionID); cerr != nil {
		log.Warn("Session record not created; continuing", "error", cerr)
	}

	fatal := []struct {
		component string
		run       func(context.Context) error
		next      State
	}{
		{ComponentSTT, s.cfg.STT.Initialize, STTReady},
		{ComponentLLM, s.cfg.LLM.Initialize, LLMReady},
		{ComponentTTS, s.cfg.TTS.Initialize, TTSReady},
	}
	for _, st := range fatal {
		if err := s.stage(ctx, st.component, st.run); err != nil {
			return err
		}
		s.setState(st.next)
	}

	// The store probe never stops the call.
	_ = s.stage(ctx, ComponentDatabase, func(ctx context.Context) error {
		_, err := s.cfg.Sessions.Get(ctx, sessionID)
		return err
	})
	if ctx.Err() != nil {
		return nil
	}
	s.setState(StoreChecked)

	if err := s.stage(ctx, ComponentVAD, s.cfg.VAD.Load); err != nil {
		return err
	}
	s.setState(VADReady)

	if err := s.stage(ctx, ComponentSession, func(ctx context.Context) error {
		return s.cfg.Media.Start(ctx, sessionID, s.cfg.Instructions)
	}); err != nil {
		return err
	}
	s.setState(SessionStarted)
	if sleep(ctx, s.cfg.SessionSettle) != nil {
		return nil
	}

	avatarReady, cancelled := s.startAvatar(ctx, sessionID, log)
	if cancelled {
		return nil
	}
	s.setState(AvatarAttempted)

	if avatarReady {
		if sleep(ctx, s.cfg.AvatarSettle+s.cfg.GreetingDelay) != nil {
			return nil
		}
	}
	if s.cfg.Greeting != "" {
		_ = s.stage(ctx, ComponentGreeting, func(ctx context.Context) error {
			return s.cfg.Media.Say(ctx, sessionID, s.cfg.Greeting)
		})
	}
	s.setState(GreetingSent)

	s.setState(Listening)
	log.Info("Call is listening")
	<-ctx.Done()
	return nil
}

// startAvatar races the avatar against AvatarTimeout. It reports whether
// the avatar came up and whether the call was cancelled meanwhile.
func (s *Sequencer) startAvatar(ctx context.Context, sessionID string, log *logger.Logger) (ready, cancelled bool) {
	if s.cfg.Avatar == nil {
		s.emit(ComponentAvatar, status.Disabled)
		return false, false
	}
	s.emit(ComponentAvatar, status.Initializing)

	actx, cancel := context.WithTimeout(ctx, s.cfg.AvatarTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.cfg.Avatar.Start(actx, sessionID)
	}()

	var err error
	select {
	case err = <-done:
	case <-actx.Done():
		err = actx.Err()
	}

	switch {
	case ctx.Err() != nil:
		return false, true
	case err == nil:
		s.emit(ComponentAvatar, status.Ready)
		log.Info("Avatar ready")
		return true, false
	case actx.Err() != nil || errors.Is(err, errordata.ErrTimeout):
		s.emit(ComponentAvatar, status.Unavailable)
		log.Warn("Avatar did not start in time; continuing voice-only", "timeout", s.cfg.AvatarTimeout)
		return false, false
	default:
		s.emit(ComponentAvatar, status.Error)
		log.Warn("Avatar failed; continuing voice-only", "error", err)
		return false, false
	}
}
