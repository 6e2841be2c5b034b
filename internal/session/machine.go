package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lindenpress/linden-access/internal/access"
	"github.com/lindenpress/linden-access/internal/audit"
	"github.com/lindenpress/linden-access/internal/credential"
	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
	"github.com/lindenpress/linden-access/internal/token"
)

// State is the machine's authentication state.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateRefreshing     State = "refreshing"
	StateExpired        State = "expired"
)

// LogoutReason classifies why a session ended.
type LogoutReason string

const (
	LogoutExplicit    LogoutReason = "explicit"
	LogoutIdleTimeout LogoutReason = "idle_timeout"
	LogoutExpired     LogoutReason = "expired"
)

// Sentinel errors for session operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrRefreshRejected    = errors.New("refresh token rejected")
)

// TokenPair is the result of a credential exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authenticator abstracts the credential exchange. The transport is a
// collaborator's concern; the machine only sees the resulting tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// Event is delivered to subscribers after every state transition. By
// the time a subscriber runs, the credential store already reflects the
// transition - a listener re-reading session state can never observe a
// stale "authenticated" after logout.
type Event struct {
	State     State
	Principal *access.Principal
	Reason    LogoutReason // set on logout transitions
}

// Config holds the machine's tunables.
type Config struct {
	// RefreshLead is how long before access-token expiry EnsureFresh
	// refreshes proactively.
	RefreshLead time.Duration
}

// Machine owns the in-memory authentication state and orchestrates the
// token codec, credential store, and authenticator. It is the sole
// writer of the credential store; every mutation (login, refresh,
// logout, idle timeout) funnels through it.
//
// All methods are safe for concurrent use. Concurrent refresh attempts
// collapse into a single in-flight exchange.
type Machine struct {
	codec  *token.Codec
	store  credential.Store
	auth   Authenticator
	logger *logging.Logger
	rec    audit.Recorder // may be nil
	cfg    Config

	mu        sync.Mutex
	state     State
	principal *access.Principal
	payload   *token.Payload
	pair      credential.Pair
	degraded  bool // durable storage gave up; memory-only from here

	refreshGroup singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewMachine constructs a Machine in the anonymous state. rec may be
// nil to disable the audit trail.
func NewMachine(codec *token.Codec, store credential.Store, auth Authenticator, rec audit.Recorder, logger *logging.Logger, cfg Config) *Machine {
	return &Machine{
		codec:  codec,
		store:  store,
		auth:   auth,
		logger: logger.With("component", "session"),
		rec:    rec,
		cfg:    cfg,
		state:  StateAnonymous,
		subs:   make(map[int]func(Event)),
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Principal returns the current principal, or nil when anonymous.
func (m *Machine) Principal() *access.Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.principal
}

// AccessToken returns the current raw access token, or empty when the
// session holds none.
func (m *Machine) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair.AccessToken
}

// Subscribe registers fn for state-transition events and returns an
// unsubscribe handle. The handle is idempotent.
func (m *Machine) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// notify delivers an event to all subscribers. Called after the lock is
// released so a subscriber may call back into the machine.
func (m *Machine) notify(ev Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Hydrate restores the session from the credential store at startup.
//
//   - No stored pair, or a malformed access token: stay anonymous.
//   - Valid, unexpired token: go straight to authenticated without
//     re-authenticating.
//   - Expired token with a refresh token present: attempt a silent
//     refresh; the machine passes through refreshing and never exposes
//     the stale token as authenticated.
//
// Decode and storage errors are recovered locally; Hydrate only returns
// an error when the context is cancelled.
func (m *Machine) Hydrate(ctx context.Context) error {
	pair, err := m.currentStore().Load(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrStorageUnavailable) {
			m.degradeStorage(err)
			return nil
		}
		return err
	}
	if pair == nil || pair.AccessToken == "" {
		return nil
	}

	payload, err := m.codec.Decode(pair.AccessToken)
	if err != nil {
		// An unreadable persisted token is discarded, not trusted.
		m.logger.Warn("discarding malformed persisted token", "error", err)
		m.clearStore(ctx)
		return nil
	}

	if !token.IsExpired(payload, time.Now()) {
		m.mu.Lock()
		m.pair = *pair
		m.setAuthenticatedLocked(payload)
		m.mu.Unlock()
		m.notify(Event{State: StateAuthenticated, Principal: m.Principal()})
		m.logger.Info("session hydrated", "subject", payload.SubjectID)
		return nil
	}

	if pair.RefreshToken == "" {
		m.clearStore(ctx)
		return nil
	}

	m.mu.Lock()
	m.pair = *pair
	m.payload = payload
	m.mu.Unlock()

	m.logger.Info("persisted token expired, attempting refresh", "subject", payload.SubjectID)
	if _, err := m.refresh(ctx); err != nil {
		m.logger.Warn("hydration refresh failed", "error", err)
	}
	return nil
}

// Login exchanges credentials for a token pair and enters the
// authenticated state. On failure the machine returns to anonymous and
// reports ErrInvalidCredentials.
func (m *Machine) Login(ctx context.Context, username, password string) (*access.Principal, error) {
	m.mu.Lock()
	m.state = StateAuthenticating
	m.mu.Unlock()
	m.notify(Event{State: StateAuthenticating})

	pair, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.mu.Lock()
		m.state = StateAnonymous
		m.principal = nil
		m.payload = nil
		m.pair = credential.Pair{}
		m.mu.Unlock()
		m.notify(Event{State: StateAnonymous})

		if errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	payload, err := m.codec.Decode(pair.AccessToken)
	if err != nil {
		m.mu.Lock()
		m.state = StateAnonymous
		m.mu.Unlock()
		m.notify(Event{State: StateAnonymous})
		return nil, fmt.Errorf("authenticator returned undecodable token: %w", err)
	}

	m.persist(ctx, credential.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})

	m.mu.Lock()
	m.pair = credential.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	m.setAuthenticatedLocked(payload)
	principal := m.principal
	m.mu.Unlock()

	m.notify(Event{State: StateAuthenticated, Principal: principal})
	m.record(ctx, audit.ActionLogin, payload.SubjectID, nil)
	m.logger.Info("login succeeded", "subject", payload.SubjectID, "role", payload.Role)
	return principal, nil
}

// Logout terminates the session. The credential store is cleared and
// the state reset before subscribers are notified, so no dependent
// reader can observe a stale authenticated session.
func (m *Machine) Logout(ctx context.Context, reason LogoutReason) {
	m.mu.Lock()
	subject := ""
	if m.payload != nil {
		subject = m.payload.SubjectID
	}
	alreadyOut := m.state == StateAnonymous
	m.state = StateAnonymous
	m.principal = nil
	m.payload = nil
	m.pair = credential.Pair{}
	m.mu.Unlock()

	m.clearStore(ctx)

	if alreadyOut {
		return
	}

	m.notify(Event{State: StateAnonymous, Reason: reason})
	m.record(ctx, audit.ActionLogout, subject, map[string]any{"reason": string(reason)})
	m.logger.Info("logged out", "subject", subject, "reason", reason)
}

// EnsureFresh returns an access token that is valid and not near
// expiry, refreshing first when needed. Concurrent callers share a
// single in-flight refresh and receive the same resulting token.
func (m *Machine) EnsureFresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated && m.state != StateRefreshing {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	current := m.pair.AccessToken
	payload := m.payload
	needsRefresh := m.state == StateRefreshing ||
		token.NearExpiry(payload, time.Now(), m.cfg.RefreshLead)
	m.mu.Unlock()

	if !needsRefresh {
		return current, nil
	}
	return m.refresh(ctx)
}

// Refresh forces a token refresh, subject to the same single-flight
// guarantee as EnsureFresh.
func (m *Machine) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated && m.state != StateRefreshing {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	m.mu.Unlock()
	return m.refresh(ctx)
}

// refresh performs the token exchange exactly once no matter how many
// callers arrive while it is in flight. A failed refresh expires the
// session: the store is cleared and the machine lands in StateExpired.
func (m *Machine) refresh(ctx context.Context) (string, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Machine) doRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	refreshToken := m.pair.RefreshToken
	m.state = StateRefreshing
	m.mu.Unlock()
	m.notify(Event{State: StateRefreshing, Principal: m.Principal()})

	fail := func(cause error) (string, error) {
		m.mu.Lock()
		subject := ""
		if m.payload != nil {
			subject = m.payload.SubjectID
		}
		m.state = StateExpired
		m.principal = nil
		m.payload = nil
		m.pair = credential.Pair{}
		m.mu.Unlock()

		m.clearStore(ctx)
		m.notify(Event{State: StateExpired, Reason: LogoutExpired})
		m.record(ctx, audit.ActionLogout, subject, map[string]any{"reason": string(LogoutExpired)})
		m.logger.Warn("refresh failed, session expired", "subject", subject, "error", cause)
		return "", fmt.Errorf("%w: %w", ErrRefreshRejected, cause)
	}

	if refreshToken == "" {
		return fail(errors.New("no refresh token held"))
	}

	pair, err := m.auth.Refresh(ctx, refreshToken)
	if err != nil {
		return fail(err)
	}

	payload, err := m.codec.Decode(pair.AccessToken)
	if err != nil {
		return fail(err)
	}

	newPair := credential.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	m.persist(ctx, newPair)

	m.mu.Lock()
	m.pair = newPair
	m.setAuthenticatedLocked(payload)
	principal := m.principal
	m.mu.Unlock()

	m.notify(Event{State: StateAuthenticated, Principal: principal})
	m.record(ctx, audit.ActionRefresh, payload.SubjectID, nil)
	return newPair.AccessToken, nil
}

// setAuthenticatedLocked installs a decoded payload as the current
// identity. Caller holds m.mu.
func (m *Machine) setAuthenticatedLocked(payload *token.Payload) {
	m.state = StateAuthenticated
	m.payload = payload
	m.principal = access.NewPrincipal(payload.SubjectID, payload.Role, payload.Permissions)
}

// currentStore snapshots the store under the lock. degradeStorage swaps
// the field, so callers must never read it directly.
func (m *Machine) currentStore() credential.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store
}

// persist writes the pair to durable storage, degrading to memory-only
// on the first storage failure. The failure is reported once; later
// writes in degraded mode are silent.
func (m *Machine) persist(ctx context.Context, pair credential.Pair) {
	if err := m.currentStore().Save(ctx, pair); err != nil {
		m.degradeStorage(err)
		// The replacement memory store must still hold the pair so
		// logout and refresh keep working for the page lifetime.
		_ = m.currentStore().Save(ctx, pair) //nolint:errcheck // memory store cannot fail
	}
}

// clearStore best-effort clears durable storage; a failing clear on an
// already degraded store is not worth reporting again.
func (m *Machine) clearStore(ctx context.Context) {
	if err := m.currentStore().Clear(ctx); err != nil {
		m.degradeStorage(err)
	}
}

// degradeStorage swaps the durable store for an in-memory one after the
// first persistence failure.
func (m *Machine) degradeStorage(cause error) {
	m.mu.Lock()
	already := m.degraded
	if !already {
		m.degraded = true
		m.store = credential.NewMemoryStore()
	}
	m.mu.Unlock()

	if !already {
		m.logger.Warn("credential storage unavailable, continuing in memory only", "error", cause)
	}
}

// record writes an audit entry when a recorder is configured.
func (m *Machine) record(ctx context.Context, action, subjectID string, details map[string]any) {
	if m.rec == nil {
		return
	}
	if err := m.rec.Record(ctx, action, subjectID, details); err != nil {
		m.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
