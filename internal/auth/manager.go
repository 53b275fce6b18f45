// Package auth owns the session token pair. Every backend request goes through
// its Transport, which attaches the access token and performs at most one
// silent refresh per request before forcing a logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RefreshTimeout bounds one refresh call to the backend.
var RefreshTimeout = 30 * time.Second

// LoginRoute is where the UI is sent after an irrecoverable auth failure.
const LoginRoute = "/login"

var (
	// ErrNotLoggedIn is returned when an operation needs a session and there is none.
	ErrNotLoggedIn = errors.New("auth: not logged in")

	// ErrSessionExpired means the refresh attempt failed and the session was cleared.
	ErrSessionExpired = errors.New("auth: session expired")
)

// TokenStore is the durable home of the token pair. Only Manager writes it.
type TokenStore interface {
	Get() (*oauth2.Token, error)
	Set(tok *oauth2.Token) error
	Clear() error
}

// Credentials are the login form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Grant is what the backend returns from login and refresh.
type Grant struct {
	Token *oauth2.Token
	User  domain.User
}

// Authenticator talks to the auth endpoints. Implementations must not route
// through Transport.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Grant, error)
	Refresh(ctx context.Context, refreshToken string) (Grant, error)
}

// State is the global session state.
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged-in"
	}
	return "logged-out"
}

// Manager is the single owner of the token pair and session state.
type Manager struct {
	store TokenStore
	authn Authenticator
	hooks *hooks.Manager
	log   *logging.Logger

	// mu also serializes token writes so a logout cannot interleave with
	// a refresh persisting its result. gen counts session changes.
	mu    sync.RWMutex
	state State
	user  domain.User
	gen   uint64

	refreshes singleflight.Group
}

// NewManager creates a Manager and restores the session state from store.
func NewManager(store TokenStore, authn Authenticator, hk *hooks.Manager, log *logging.Logger) *Manager {
	m := &Manager{
		store: store,
		authn: authn,
		hooks: hk,
		log:   log.Sub("auth"),
	}
	tok, err := store.Get()
	switch {
	case err != nil:
		m.log.Warn().Err(err).Msg("could not read stored tokens")
	case tok != nil && tok.AccessToken != "":
		m.state = LoggedIn
		m.log.Debug().Bool("refreshToken", tok.RefreshToken != "").Msg("session restored")
	}
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the logged-in user. The ID is empty until a login or refresh
// in this process has reported it.
func (m *Manager) User() domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Login exchanges credentials for a token pair and persists it.
func (m *Manager) Login(ctx context.Context, creds Credentials) (domain.User, error) {
	grant, err := m.authn.Login(ctx, creds)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	if grant.Token == nil || grant.Token.AccessToken == "" {
		return domain.User{}, errors.New("login: response carried no access token")
	}
	m.mu.Lock()
	if err := m.store.Set(grant.Token); err != nil {
		m.mu.Unlock()
		return domain.User{}, fmt.Errorf("persisting tokens: %w", err)
	}
	m.state = LoggedIn
	m.user = grant.User
	m.gen++
	m.mu.Unlock()

	m.log.Info().Str("user", grant.User.ID).Msg("logged in")
	m.hooks.Emit(ctx, hooks.EventLoggedIn, map[string]any{"userId": grant.User.ID})
	return grant.User, nil
}

// Logout clears the stored tokens.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	err := m.store.Clear()
	m.state = LoggedOut
	m.user = domain.User{}
	m.gen++
	m.mu.Unlock()

	m.log.Info().Msg("logged out")
	m.hooks.Emit(ctx, hooks.EventLoggedOut, map[string]any{"redirect": LoginRoute})
	if err != nil {
		return fmt.Errorf("clearing tokens: %w", err)
	}
	return nil
}

// EnsureUser makes sure the session user is known, doing one silent refresh
// when the session was restored from storage.
func (m *Manager) EnsureUser(ctx context.Context) (domain.User, error) {
	if u := m.User(); u.ID != "" {
		return u, nil
	}
	tok, err := m.current()
	if err != nil {
		return domain.User{}, err
	}
	if tok == nil {
		return domain.User{}, ErrNotLoggedIn
	}
	if _, err := m.refresh(ctx, tok); err != nil {
		return domain.User{}, err
	}
	return m.User(), nil
}

// Client returns a copy of base whose transport runs through the token
// manager. A nil base means http.DefaultClient.
func (m *Manager) Client(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.Transport = &Transport{Base: base.Transport, manager: m}
	return &c
}

// Header returns request headers carrying the current access token, for
// transports that cannot use Client (the websocket dialer).
func (m *Manager) Header() (http.Header, error) {
	tok, err := m.current()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrNotLoggedIn
	}
	h := http.Header{}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}

func (m *Manager) current() (*oauth2.Token, error) {
	tok, err := m.store.Get()
	if err != nil {
		return nil, fmt.Errorf("reading tokens: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, nil
	}
	return tok, nil
}

// refresh replaces stale with a new pair. Calls sharing the same refresh
// token are coalesced into one backend call that runs detached from any
// single caller, bounded by RefreshTimeout. A caller whose context ends first
// gets its context error and leaves the session alone. If the stored token
// already differs from stale, another request refreshed first and that token
// is used.
func (m *Manager) refresh(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	if stale.RefreshToken == "" {
		m.expire(ctx, errors.New("no refresh token stored"))
		return nil, ErrSessionExpired
	}

	m.mu.RLock()
	gen := m.gen
	m.mu.RUnlock()

	ch := m.refreshes.DoChan(stale.RefreshToken, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return m.exchange(rctx, stale, gen)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.Err != nil {
		var ended *sessionEndedError
		if errors.As(res.Err, &ended) {
			return nil, ErrNotLoggedIn
		}
		m.expire(ctx, res.Err)
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, res.Err)
	}
	if res.Shared {
		m.log.Trace().Msg("refresh shared with a concurrent request")
	}
	return res.Val.(*oauth2.Token), nil
}

// sessionEndedError reports that the session was cleared while a refresh
// was pending. It never expires the session a second time.
type sessionEndedError struct{}

func (*sessionEndedError) Error() string { return "session ended during refresh" }

// exchange performs the backend refresh for stale. The new pair is persisted
// only if the session generation is still gen, so a logout that lands while
// the call is in flight stays in effect.
func (m *Manager) exchange(ctx context.Context, stale *oauth2.Token, gen uint64) (*oauth2.Token, error) {
	cur, err := m.current()
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, &sessionEndedError{}
	}
	if cur.AccessToken != stale.AccessToken {
		return cur, nil
	}

	grant, err := m.authn.Refresh(ctx, stale.RefreshToken)
	if err != nil {
		return nil, err
	}
	if grant.Token == nil || grant.Token.AccessToken == "" {
		return nil, errors.New("refresh response carried no access token")
	}
	tok := grant.Token
	if tok.RefreshToken == "" {
		tok.RefreshToken = stale.RefreshToken
	}

	m.mu.Lock()
	if m.gen != gen || m.state != LoggedIn {
		m.mu.Unlock()
		return nil, &sessionEndedError{}
	}
	if err := m.store.Set(tok); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("persisting tokens: %w", err)
	}
	if grant.User.ID != "" {
		m.user = grant.User
	}
	m.mu.Unlock()

	m.log.Debug().Msg("access token refreshed")
	m.hooks.Emit(ctx, hooks.EventTokenRefreshed, nil)
	return tok, nil
}

// expire clears the session after an irrecoverable refresh failure and
// announces the redirect to the login route once.
func (m *Manager) expire(ctx context.Context, cause error) {
	m.mu.Lock()
	if err := m.store.Clear(); err != nil {
		m.log.Error().Err(err).Msg("failed to clear tokens")
	}
	wasLoggedIn := m.state == LoggedIn
	m.state = LoggedOut
	m.user = domain.User{}
	m.gen++
	m.mu.Unlock()

	if !wasLoggedIn {
		return
	}
	m.log.Warn().Err(cause).Msg("session expired, redirecting to login")
	m.hooks.Emit(ctx, hooks.EventSessionExpired, map[string]any{
		"redirect": LoginRoute,
		"reason":   cause.Error(),
	})
}
