package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// IdentityResolver finds or explicitly enrolls callers. It never creates a
// user as a side effect of a lookup.
type IdentityResolver interface {
	Resolve(ctx context.Context, identifier string) (*types.User, error)
	Enroll(ctx context.Context, in EnrollInput) (*types.User, error)
}

type EnrollInput struct {
	ContactNumber string
	FirstName     string
	LastName      string
	Email         string
}

type identityResolver struct {
	log   *logger.Logger
	users repos.UserRepo
}

func NewIdentityResolver(users repos.UserRepo, log *logger.Logger) IdentityResolver {
	return &identityResolver{
		log:   log.With("service", "IdentityResolver"),
		users: users,
	}
}

func (ir *identityResolver) Resolve(ctx context.Context, identifier string) (*types.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("resolve: empty identifier: %w", errordata.ErrInvalidInput)
	}

	user, err := ir.users.GetByContactNumber(ctx, identifier)
	if err == nil {
		ir.log.Info("Resolved user by contact number", "userID", user.ID)
		return user, nil
	}
	if !errors.Is(err, errordata.ErrNotFound) {
		return nil, fmt.Errorf("resolve by contact number: %w", err)
	}

	if strings.Contains(identifier, "@") {
		user, err = ir.users.GetByEmail(ctx, identifier)
		if err == nil {
			ir.log.Info("Resolved user by email", "userID", user.ID)
			return user, nil
		}
		if !errors.Is(err, errordata.ErrNotFound) {
			return nil, fmt.Errorf("resolve by email: %w", err)
		}
	}
	ir.log.Info("No user matched identifier")
	return nil, fmt.Errorf("resolve: %w", errordata.ErrNotFound)
}

func (ir *identityResolver) Enroll(ctx context.Context, in EnrollInput) (*types.User, error) {
	contact := strings.TrimSpace(in.ContactNumber)
	if contact == "" {
		return nil, fmt.Errorf("enroll: contact number required: %w", errordata.ErrInvalidInput)
	}
	user := &types.User{
		ContactNumber: contact,
		Name:          strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName),
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		user.Email = &email
	}
	created, err := ir.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	ir.log.Info("Enrolled new user", "userID", created.ID)
	return created, nil
}

type IdentityState int

const (
	Unidentified IdentityState = iota
	Verifying
	Identified
	Enrolling
)

func (s IdentityState) String() string {
	switch s {
	case Unidentified:
		return "unidentified"
	case Verifying:
		return "verifying"
	case Identified:
		return "identified"
	case Enrolling:
		return "enrolling"
	default:
		return fmt.Sprintf("IdentityState(%d)", int(s))
	}
}

// Operation classes gated by the identity state.
type Operation int

const (
	OpFormat Operation = iota
	OpResolve
	OpEnroll
	OpSchedule
)

// IdentityMachine holds the caller's identity for one call. Once
// Identified it never moves again.
type IdentityMachine struct {
	mu    sync.Mutex
	state IdentityState
	user  *types.User
}

func NewIdentityMachine() *IdentityMachine {
	return &IdentityMachine{state: Unidentified}
}

func (m *IdentityMachine) BeginVerification() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Unidentified {
		m.state = Verifying
	}
}

func (m *IdentityMachine) MarkNotFound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Identified {
		m.state = Enrolling
	}
}

func (m *IdentityMachine) Identify(user *types.User) error {
	if user == nil {
		return fmt.Errorf("identify: nil user: %w", errordata.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Identified {
		if m.user.ID == user.ID {
			return nil
		}
		return fmt.Errorf("identify: call already bound: %w", errordata.ErrPrecondition)
	}
	m.state = Identified
	m.user = user
	return nil
}

func (m *IdentityMachine) Current() (IdentityState, *types.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.user
}

// Allows reports whether op is legal in the current state.
func (m *IdentityMachine) Allows(op Operation) bool {
	state, _ := m.Current()
	switch op {
	case OpFormat:
		return true
	case OpResolve, OpEnroll:
		return state != Identified
	case OpSchedule:
		return state == Identified
	default:
		return false
	}
}
