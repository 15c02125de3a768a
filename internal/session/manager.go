package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/wolfman30/hsm-appointments/internal/hsmapi"
	"github.com/wolfman30/hsm-appointments/internal/observability/metrics"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// Authenticator is the part of the appointment service the manager needs.
type Authenticator interface {
	Login(ctx context.Context, creds hsmapi.Credentials) (string, error)
	Signup(ctx context.Context, creds hsmapi.Credentials) (string, error)
}

// Logout reasons reported to listeners' metrics and logs.
const (
	ReasonExplicit    = "explicit"
	ReasonIdleTimeout = "idle_timeout"
)

// Manager owns the current authentication state. Restore, Login and Logout are
// the only entry points that change it.
type Manager struct {
	auth     Authenticator
	store    Store
	watchdog *Watchdog
	logger   *logging.Logger
	metrics  *metrics.SyncMetrics

	// lifecycle serializes state changes with their persistence, watchdog and
	// listener side effects. gen is guarded by it and moves on every change.
	lifecycle sync.Mutex
	gen       uint64

	mu        sync.Mutex
	current   Session
	listeners []func(Session)
}

// NewManager wires the manager. A nil watchdog gets one with the default timeout.
func NewManager(auth Authenticator, store Store, watchdog *Watchdog, logger *logging.Logger) *Manager {
	if auth == nil {
		panic("session: authenticator cannot be nil")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if watchdog == nil {
		watchdog = NewWatchdog(DefaultIdleTimeout, logger)
	}
	return &Manager{
		auth:     auth,
		store:    store,
		watchdog: watchdog,
		logger:   logger,
	}
}

// WithMetrics attaches sync metrics.
func (m *Manager) WithMetrics(sm *metrics.SyncMetrics) *Manager {
	m.metrics = sm
	return m
}

// Current returns the active session; the zero Session means Anonymous.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnChange registers fn to be called after every state transition. Listeners
// run in transition order and must not call Restore, Login or Logout.
func (m *Manager) OnChange(fn func(Session)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Activity forwards a user-activity signal to the idle watchdog.
func (m *Manager) Activity() bool {
	if !m.Current().Authenticated() {
		return false
	}
	return m.watchdog.Touch()
}

// Restore rebuilds the session from the persisted role and identity. Missing
// or corrupt values leave the manager Anonymous and are wiped.
func (m *Manager) Restore(ctx context.Context) (Session, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	identity, okIdentity, err := m.store.Get(ctx, KeyIdentity)
	if err != nil {
		m.discardPersisted(ctx)
		return Session{}, fmt.Errorf("session: restore: %w", err)
	}
	rawRole, okRole, err := m.store.Get(ctx, KeyRole)
	if err != nil {
		m.discardPersisted(ctx)
		return Session{}, fmt.Errorf("session: restore: %w", err)
	}
	if !okIdentity && !okRole {
		return Session{}, nil
	}
	role, roleErr := ParseRole(rawRole)
	if !okIdentity || !okRole || identity == "" || roleErr != nil {
		m.logger.Warn("discarding incomplete persisted session", "has_identity", okIdentity, "has_role", okRole)
		m.discardPersisted(ctx)
		return Session{}, nil
	}

	restored := Session{Role: role, Identity: identity}
	if !m.transition(restored) {
		return m.Current(), nil
	}
	m.watchdog.Arm(m.expireFor(m.gen))
	m.logger.Info("session restored", "identity", identity, "role", string(role))
	m.notify(restored)
	return restored, nil
}

// Login validates the form, verifies the credentials with the service and on
// success persists and activates the session. The form's credentials are
// cleared whatever the outcome.
func (m *Manager) Login(ctx context.Context, form *Form) (string, error) {
	defer form.Clear()

	creds, role, err := form.credentials()
	if err != nil {
		return "", fmt.Errorf("session: login: %w", err)
	}
	if m.Current().Authenticated() {
		return "", ErrAlreadyAuthenticated
	}

	msg, err := m.auth.Login(ctx, creds)
	if err != nil {
		m.logger.Warn("login failed", "identity", creds.Username, "role", string(role), "error", err)
		return "", fmt.Errorf("session: login: %w", err)
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	next := Session{Role: role, Identity: creds.Username}
	if !m.transition(next) {
		return "", ErrAlreadyAuthenticated
	}
	if err := m.persist(ctx, next); err != nil {
		m.logger.Warn("session not persisted; it will not survive a restart", "error", err)
	}
	m.watchdog.Arm(m.expireFor(m.gen))
	m.logger.Info("logged in", "identity", next.Identity, "role", string(next.Role))
	m.notify(next)
	return msg, nil
}

// Signup registers a user. Session state is untouched; the user still has to
// log in afterwards.
func (m *Manager) Signup(ctx context.Context, form *Form) (string, error) {
	defer form.Clear()

	creds, role, err := form.credentials()
	if err != nil {
		return "", fmt.Errorf("session: signup: %w", err)
	}
	msg, err := m.auth.Signup(ctx, creds)
	if err != nil {
		m.logger.Warn("signup failed", "identity", creds.Username, "role", string(role), "error", err)
		return "", fmt.Errorf("session: signup: %w", err)
	}
	m.logger.Info("signed up", "identity", creds.Username, "role", string(role))
	return msg, nil
}

// Logout tears the session down. It always ends Anonymous; the returned error
// only reports a failure to wipe persisted values.
func (m *Manager) Logout(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.logoutLocked(ctx, ReasonExplicit)
}

// expireFor returns the idle callback for the session generation gen. A
// callback that fires after that session ended does nothing.
func (m *Manager) expireFor(gen uint64) func() {
	return func() {
		m.lifecycle.Lock()
		defer m.lifecycle.Unlock()
		if m.gen != gen {
			return
		}
		_ = m.logoutLocked(context.Background(), ReasonIdleTimeout)
	}
}

func (m *Manager) logoutLocked(ctx context.Context, reason string) error {
	m.watchdog.Disarm()
	m.gen++

	m.mu.Lock()
	prev := m.current
	m.current = Session{}
	m.mu.Unlock()

	err := m.store.Delete(ctx, KeyIdentity, KeyRole)
	if err != nil {
		m.logger.Error("failed to clear persisted session", "error", err)
		err = fmt.Errorf("session: logout: %w", err)
	}
	if !prev.Authenticated() {
		return err
	}
	m.metrics.ObserveLogout(reason)
	m.logger.Info("logged out", "identity", prev.Identity, "reason", reason)
	m.notify(Session{})
	return err
}

// transition moves Anonymous -> next, reporting false if a session is already
// active. Callers hold the lifecycle lock.
func (m *Manager) transition(next Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Authenticated() {
		return false
	}
	m.current = next
	m.gen++
	return true
}

func (m *Manager) persist(ctx context.Context, s Session) error {
	if err := m.store.Set(ctx, KeyIdentity, s.Identity); err != nil {
		return err
	}
	return m.store.Set(ctx, KeyRole, s.Role.UserType())
}

func (m *Manager) discardPersisted(ctx context.Context) {
	if err := m.store.Delete(ctx, KeyIdentity, KeyRole); err != nil {
		m.logger.Warn("failed to discard persisted session", "error", err)
	}
}

func (m *Manager) notify(s Session) {
	m.mu.Lock()
	listeners := append([]func(Session){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
