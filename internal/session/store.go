// Package session keeps the current user, profile and session of the application and
// provisions a profile the first time an authenticated identity has none.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/anlik-eleman/backend/internal/dataaccess"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

var (
	ErrMissingAuthService       = errors.New("session: auth service required")
	ErrMissingProfileRepository = errors.New("session: profile repository required")
	ErrNotInitialized           = errors.New("session: store not initialized")
	ErrAlreadyInitialized       = errors.New("session: store already initialized")
	ErrDisposed                 = errors.New("session: store disposed")
)

// AuthService is the identity half of the data-access façade.
type AuthService interface {
	GetSession(ctx context.Context) (*models.Session, error)
	GetCurrentIdentity(ctx context.Context) (*models.Identity, error)
	OnAuthStateChange(ctx context.Context) (<-chan models.AuthEvent, func())
	SignUpIdentity(ctx context.Context, email, password string, attrs models.SignUpAttributes) (*models.Identity, error)
	SignInIdentity(ctx context.Context, email, password string) (*models.Identity, error)
	SignOutIdentity(ctx context.Context) error
}

// ProfileRepository is the profile and company half of the data-access façade.
type ProfileRepository interface {
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	InsertProfile(ctx context.Context, row models.ProfileInsert) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error)
	CompanyExistsForOwner(ctx context.Context, ownerID string) (bool, error)
	InsertCompany(ctx context.Context, row models.CompanyInsert) (*models.Company, error)
}

// State is a snapshot of the store. Error holds a localized message, or "" when clear.
type State struct {
	Phase   Phase
	User    *models.Identity
	Profile *models.Profile
	Session *models.Session
	Loading bool
	Error   string
}

func (s State) clone() State {
	cloned := s
	if s.User != nil {
		user := *s.User
		cloned.User = &user
	}
	if s.Profile != nil {
		profile := *s.Profile
		cloned.Profile = &profile
	}
	if s.Session != nil {
		session := *s.Session
		cloned.Session = &session
	}
	return cloned
}

// Config wires a Store.
type Config struct {
	Auth       AuthService
	Profiles   ProfileRepository
	Network    NetworkMonitor
	Translator i18n.Translator
	Logger     *zap.Logger
}

type command struct {
	run  func(ctx context.Context)
	done chan struct{}
}

// Store owns the authentication state. A single goroutine applies every change;
// auth events already published are applied before the next queued operation.
type Store struct {
	auth       AuthService
	profiles   ProfileRepository
	network    NetworkMonitor
	translator i18n.Translator
	logger     *zap.Logger

	commands    chan command
	initialized chan struct{}
	done        chan struct{}

	mu          sync.Mutex
	state       State
	started     bool
	mounted     bool
	lifetime    context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Auth == nil {
		return nil, ErrMissingAuthService
	}
	if cfg.Profiles == nil {
		return nil, ErrMissingProfileRepository
	}
	network := cfg.Network
	if network == nil {
		network = InterfaceMonitor{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		auth:        cfg.Auth,
		profiles:    cfg.Profiles,
		network:     network,
		translator:  cfg.Translator,
		logger:      logger,
		commands:    make(chan command),
		initialized: make(chan struct{}),
		done:        make(chan struct{}),
		state:       State{Phase: PhaseUninitialized, Loading: true},
	}, nil
}

// Init subscribes to auth changes, restores the current session and returns once that first
// bootstrap has settled. The store keeps running until Dispose, independent of ctx.
func (s *Store) Init(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return s.State(), ErrAlreadyInitialized
	}
	s.started = true
	s.mounted = true
	s.lifetime, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	lifetime := s.lifetime
	s.mu.Unlock()

	events, unsubscribe := s.auth.OnAuthStateChange(lifetime)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go s.loop(lifetime, events)

	select {
	case <-s.initialized:
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
	if !s.isMounted() {
		return s.State(), ErrDisposed
	}
	return s.State(), nil
}

// Dispose unsubscribes from auth changes and stops the store. Results of requests still in
// flight are discarded.
func (s *Store) Dispose() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	unsubscribe := s.unsubscribe
	cancel := s.cancel
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.logger.Debug("session store disposed")
}

// Wait blocks until the store's goroutine has exited after Dispose.
func (s *Store) Wait() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.done
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Settle returns once every auth event published before the call has been applied.
func (s *Store) Settle(ctx context.Context) error {
	return s.submit(ctx, func(context.Context) {})
}

// ClearError resets the error message and nothing else.
func (s *Store) ClearError() {
	s.mutate(func(state *State) {
		state.Error = ""
	})
}

func (s *Store) loop(lifetime context.Context, events <-chan models.AuthEvent) {
	defer close(s.done)

	s.initialize(lifetime)
	close(s.initialized)

	for {
		if !s.applyPendingEvents(lifetime, events) {
			return
		}
		select {
		case <-lifetime.Done():
			return
		case event := <-events:
			s.handleAuthEvent(lifetime, event)
		case cmd := <-s.commands:
			// Events may have arrived while select chose the command.
			if !s.applyPendingEvents(lifetime, events) {
				return
			}
			s.runCommand(lifetime, cmd)
		}
	}
}

func (s *Store) applyPendingEvents(lifetime context.Context, events <-chan models.AuthEvent) bool {
	for {
		if lifetime.Err() != nil {
			return false
		}
		select {
		case event := <-events:
			s.handleAuthEvent(lifetime, event)
		default:
			return true
		}
	}
}

func (s *Store) runCommand(lifetime context.Context, cmd command) {
	defer close(cmd.done)
	cmd.run(lifetime)
}

// submit runs fn on the store goroutine and waits for it. fn receives a context that ends when
// either the caller's ctx or the store's lifetime ends.
func (s *Store) submit(ctx context.Context, fn func(ctx context.Context)) error {
	s.mu.Lock()
	started, mounted := s.started, s.mounted
	s.mu.Unlock()
	if !started {
		return ErrNotInitialized
	}
	if !mounted {
		return ErrDisposed
	}

	cmd := command{
		run: func(lifetime context.Context) {
			merged, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(lifetime, cancel)
			defer stop()
			fn(merged)
		},
		done: make(chan struct{}),
	}
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrDisposed
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrDisposed
	}
}

func (s *Store) isMounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// transition moves to phase `to` and applies the remaining field changes atomically with the
// mounted check. It fails for a disposed store and for transitions outside the table.
func (s *Store) transition(to Phase, apply func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrDisposed
	}
	from := s.state.Phase
	if err := checkTransition(from, to); err != nil {
		return err
	}
	s.state.Phase = to
	s.state.Loading = to.loading()
	if apply != nil {
		apply(&s.state)
	}
	s.logger.Debug("session phase changed", zap.Stringer("from", from), zap.Stringer("to", to))
	return nil
}

// step is transition for flow code: it logs a refusal and reports whether the flow may continue.
func (s *Store) step(operation string, to Phase, apply func(*State)) bool {
	err := s.transition(to, apply)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrDisposed) {
		s.logger.Debug("discarding result after dispose", zap.String("operation", operation), zap.Stringer("to", to))
		return false
	}
	s.logError(operation, "illegal_transition", err)
	return false
}

func (s *Store) mutate(apply func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return false
	}
	apply(&s.state)
	return true
}

func (s *Store) snapshot() State {
	return s.State()
}

func (s *Store) setError(message string) {
	s.mutate(func(state *State) {
		state.Error = message
	})
}

// messageOf extracts the localized message of a façade error.
func (s *Store) messageOf(err error, fallback i18n.MessageID) string {
	var dataErr *dataaccess.Error
	if errors.As(err, &dataErr) && strings.TrimSpace(dataErr.Message) != "" {
		return dataErr.Message
	}
	return s.translator.T(fallback)
}

// asResult converts any failure to the façade's error type so callers see one shape.
func (s *Store) asResult(err error, fallback i18n.MessageID) error {
	if err == nil {
		return nil
	}
	var dataErr *dataaccess.Error
	if errors.As(err, &dataErr) {
		return dataErr
	}
	return &dataaccess.Error{Kind: dataaccess.KindUnknown, Message: s.translator.T(fallback), Cause: err}
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("session store error", attrs...)
}
