package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/pipeline"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
	"github.com/slotter-org/clinic-voice-scheduler/internal/socket"
	"github.com/slotter-org/clinic-voice-scheduler/internal/status"
	"github.com/slotter-org/clinic-voice-scheduler/internal/tools"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// Runner is the per-call startup sequence. *pipeline.Sequencer satisfies it.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
	State() pipeline.State
}

// RunnerFactory builds the sequence for one room, reporting through em.
type RunnerFactory func(room string, em status.Emitter) (Runner, error)

type Deps struct {
	Resolver     services.IdentityResolver
	Appointments services.AppointmentService
	Sessions     services.SessionRegistry
	Messages     repos.ChatMessageRepo
	Notifier     services.Notifier
	Sink         status.Sink
	NewRunner    RunnerFactory
	HistorySize  int
	Logger       *logger.Logger
}

// Snapshot is the observable state of one live call.
type Snapshot struct {
	Room     string         `json:"room"`
	Pipeline string         `json:"pipeline"`
	Identity string         `json:"identity"`
	UserID   *uuid.UUID     `json:"userId,omitempty"`
	Turns    int            `json:"turns"`
	Events   []status.Event `json:"events"`
}

type call struct {
	room        string
	broadcaster *status.Broadcaster
	history     *status.History
	chat        *services.ChatLog
	dispatcher  *tools.Dispatcher
	runner      Runner
	cancel      context.CancelFunc
	done        chan struct{}
}

// Worker owns every live call in this process.
type Worker struct {
	d   Deps
	log *logger.Logger

	base     context.Context
	stopBase context.CancelFunc

	mu    sync.Mutex
	calls map[string]*call
}

func NewWorker(d Deps) (*Worker, error) {
	if d.NewRunner == nil || d.Sessions == nil || d.Messages == nil {
		return nil, fmt.Errorf("agent worker: runner factory, sessions and messages are required")
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Worker{
		d:        d,
		log:      d.Logger.With("component", "AgentWorker"),
		base:     base,
		stopBase: stop,
		calls:    make(map[string]*call),
	}, nil
}

// Start builds the call for room and runs its pipeline in the background.
func (w *Worker) Start(room string) error {
	if room == "" {
		return fmt.Errorf("room name: %w", errordata.ErrInvalidInput)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.base.Err() != nil {
		return fmt.Errorf("worker is shutting down: %w", errordata.ErrPrecondition)
	}
	if _, ok := w.calls[room]; ok {
		return fmt.Errorf("call %s already running: %w", room, errordata.ErrConflict)
	}

	log := w.log.With("room", room)
	history := status.NewHistory(w.d.HistorySize)
	var emitter status.Emitter = history
	var broadcaster *status.Broadcaster
	if w.d.Sink != nil {
		broadcaster = status.NewBroadcaster(w.d.Sink, socket.SessionChannel(room), status.DefaultBuffer, log)
		emitter = status.Tee(broadcaster, history)
	}

	runner, err := w.d.NewRunner(room, emitter)
	if err != nil {
		if broadcaster != nil {
			broadcaster.Close()
		}
		return fmt.Errorf("build pipeline for %s: %w", room, err)
	}

	chat := services.NewChatLog(w.d.Messages, log)
	c := &call{
		room:        room,
		broadcaster: broadcaster,
		history:     history,
		chat:        chat,
		runner:      runner,
		done:        make(chan struct{}),
		dispatcher: tools.NewDispatcher(tools.Deps{
			SessionID:    room,
			Resolver:     w.d.Resolver,
			Appointments: w.d.Appointments,
			Sessions:     w.d.Sessions,
			Identity:     services.NewIdentityMachine(),
			Transcript:   chat,
			Notifier:     w.d.Notifier,
			Status:       emitter,
			Logger:       log,
		}),
	}
	ctx, cancel := context.WithCancel(w.base)
	c.cancel = cancel
	w.calls[room] = c

	go w.run(ctx, c, log)
	log.Info("Call started")
	return nil
}

func (w *Worker) run(ctx context.Context, c *call, log *logger.Logger) {
	defer close(c.done)
	if err := c.runner.Run(ctx, c.room); err != nil {
		log.Error("Call pipeline failed", "error", err)
	}
	c.cancel()
	c.chat.Wait()
	if c.broadcaster != nil {
		c.broadcaster.Close()
	}

	w.mu.Lock()
	if w.calls[c.room] == c {
		delete(w.calls, c.room)
	}
	w.mu.Unlock()
	log.Info("Call ended")
}

func (w *Worker) lookup(room string) (*call, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.calls[room]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", room, errordata.ErrNotFound)
	}
	return c, nil
}

// Stop cancels the call and waits for its cleanup to finish.
func (w *Worker) Stop(ctx context.Context, room string) error {
	c, err := w.lookup(room)
	if err != nil {
		return err
	}
	c.cancel()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop %s: %w", room, errordata.ErrTimeout)
	}
}

// Invoke runs one tool for the call and returns the sentence to speak.
func (w *Worker) Invoke(ctx context.Context, room, name string, args []byte) (string, error) {
	c, err := w.lookup(room)
	if err != nil {
		return "", err
	}
	reply := c.dispatcher.Invoke(ctx, name, args)
	w.touch(ctx, room)
	return reply, nil
}

// AddMessage records a conversation turn and refreshes the session's
// activity time.
func (w *Worker) AddMessage(ctx context.Context, room string, role types.ChatRole, content string) error {
	c, err := w.lookup(room)
	if err != nil {
		return err
	}
	if err := c.chat.Add(role, content); err != nil {
		return err
	}
	w.touch(ctx, room)
	return nil
}

func (w *Worker) touch(ctx context.Context, room string) {
	if err := w.d.Sessions.Touch(ctx, room); err != nil {
		w.log.Debug("Session touch failed", "room", room, "error", err)
	}
}

func (w *Worker) State(room string) (*Snapshot, error) {
	c, err := w.lookup(room)
	if err != nil {
		return nil, err
	}
	state, user := c.dispatcher.Identity().Current()
	snap := &Snapshot{
		Room:     room,
		Pipeline: c.runner.State().String(),
		Identity: state.String(),
		Turns:    len(c.chat.Transcript()),
		Events:   c.history.Events(),
	}
	if user != nil {
		id := user.ID
		snap.UserID = &id
	}
	return snap, nil
}

func (w *Worker) Rooms() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	rooms := make([]string, 0, len(w.calls))
	for room := range w.calls {
		rooms = append(rooms, room)
	}
	return rooms
}

// Shutdown cancels every call and waits for them until ctx expires.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopBase()
	pending := make([]*call, 0, len(w.calls))
	for _, c := range w.calls {
		pending = append(pending, c)
	}
	w.mu.Unlock()

	w.log.Info("Shutting down calls", "count", len(pending))
	for _, c := range pending {
		select {
		case <-c.done:
		case <-ctx.Done():
			return fmt.Errorf("shutdown: %w", errordata.ErrTimeout)
		}
	}
	if w.d.Notifier != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		flushed := make(chan struct{})
		go func() {
			w.d.Notifier.Wait()
			close(flushed)
		}()
		select {
		case <-flushed:
		case <-waitCtx.Done():
			w.log.Warn("Notifications still pending at shutdown")
		}
	}
	return nil
}
