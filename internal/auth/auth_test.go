package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAuthn struct {
	mu           sync.Mutex
	refreshCalls int
	refreshErr   error
	loginErr     error
	next         string
	user         domain.User
	delay        time.Duration
	before       func()
}

func (f *fakeAuthn) Login(_ context.Context, creds Credentials) (Grant, error) {
	if f.loginErr != nil {
		return Grant{}, f.loginErr
	}
	return Grant{
		Token: &oauth2.Token{AccessToken: "acc-login", RefreshToken: "ref-login"},
		User:  domain.User{ID: "u1", Email: creds.Email},
	}, nil
}

func (f *fakeAuthn) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	if f.before != nil {
		f.before()
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return Grant{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return Grant{}, f.refreshErr
	}
	return Grant{
		Token: &oauth2.Token{AccessToken: f.next, RefreshToken: "ref-" + f.next},
		User:  f.user,
	}, nil
}

func (f *fakeAuthn) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type recorder struct {
	mu     sync.Mutex
	events []hooks.Payload
}

func (r *recorder) handler(_ context.Context, p hooks.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

func testManager(t *testing.T, authn *fakeAuthn, tok *oauth2.Token) (*Manager, *MemoryTokenStore, *recorder) {
	t.Helper()
	log := logging.New(nil, "silent")
	hk := hooks.NewManager(log)
	rec := &recorder{}
	for _, ev := range hooks.AllEvents {
		hk.On(ev, "test", rec.handler)
	}
	store := NewMemoryTokenStore()
	if tok != nil {
		require.NoError(t, store.Set(tok))
	}
	return NewManager(store, authn, hk, log), store, rec
}

// backend answers 200 only to the accepted bearer token and counts hits.
func backend(t *testing.T, accepted string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+accepted {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write([]byte("ok:" + string(body)))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNewManagerRestoresState(t *testing.T) {
	m, _, _ := testManager(t, &fakeAuthn{}, &oauth2.Token{AccessToken: "a", RefreshToken: "r"})
	assert.Equal(t, LoggedIn, m.State())
	assert.Empty(t, m.User().ID)

	m2, _, _ := testManager(t, &fakeAuthn{}, nil)
	assert.Equal(t, LoggedOut, m2.State())
	assert.Equal(t, "logged-out", m2.State().String())
}

func TestLoginPersistsAndLogoutClears(t *testing.T) {
	m, store, rec := testManager(t, &fakeAuthn{}, nil)

	user, err := m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, LoggedIn, m.State())

	tok, _ := store.Get()
	require.NotNil(t, tok)
	assert.Equal(t, "acc-login", tok.AccessToken)

	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, LoggedOut, m.State())
	tok, _ = store.Get()
	assert.Nil(t, tok)
	assert.Equal(t, []string{hooks.EventLoggedIn, hooks.EventLoggedOut}, rec.names())
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	m, store, _ := testManager(t, &fakeAuthn{loginErr: errors.New("bad credentials")}, nil)

	_, err := m.Login(context.Background(), Credentials{Email: "x", Password: "y"})
	require.Error(t, err)
	assert.Equal(t, LoggedOut, m.State())
	tok, _ := store.Get()
	assert.Nil(t, tok)
}

func TestTransportAttachesToken(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-1", &hits)
	m, _, _ := testManager(t, &fakeAuthn{}, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	resp, err := m.Client(nil).Get(ts.URL + "/swaps")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTransportWithoutTokenPassesThrough401(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-1", &hits)
	authn := &fakeAuthn{}
	m, _, _ := testManager(t, authn, nil)

	resp, err := m.Client(nil).Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, authn.calls())
}

func TestTransportRefreshesAndRetriesOnce(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{next: "acc-2", user: domain.User{ID: "u1"}}
	m, store, rec := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	resp, err := m.Client(nil).Post(ts.URL+"/messages", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok:hello", string(body), "body is replayed on the retry")
	assert.Equal(t, 1, authn.calls())
	assert.Equal(t, int32(2), hits.Load())

	tok, _ := store.Get()
	assert.Equal(t, "acc-2", tok.AccessToken)
	assert.Equal(t, "ref-acc-2", tok.RefreshToken)
	assert.Equal(t, "u1", m.User().ID)
	assert.Contains(t, rec.names(), hooks.EventTokenRefreshed)
}

func TestTransportSecond401IsPropagated(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "never", &hits)
	authn := &fakeAuthn{next: "acc-2"}
	m, _, _ := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	resp, err := m.Client(nil).Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, authn.calls(), "refresh is attempted at most once")
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, LoggedIn, m.State())
}

func TestTransportRefreshFailureForcesLogout(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{refreshErr: errors.New("refresh token revoked")}
	m, store, rec := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	_, err := m.Client(nil).Get(ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, LoggedOut, m.State())
	tok, _ := store.Get()
	assert.Nil(t, tok)

	require.Contains(t, rec.names(), hooks.EventSessionExpired)
	for _, e := range rec.events {
		if e.Event == hooks.EventSessionExpired {
			assert.Equal(t, LoginRoute, e.Data["redirect"])
		}
	}
}

func TestTransportMissingRefreshTokenForcesLogout(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{next: "acc-2"}
	m, _, _ := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1"})

	_, err := m.Client(nil).Get(ts.URL)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, authn.calls())
	assert.Equal(t, LoggedOut, m.State())
}

func TestTransportUnreplayableBodyIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{next: "acc-2"}
	m, _, _ := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	req, err := http.NewRequest(http.MethodPost, ts.URL, io.NopCloser(strings.NewReader("stream")))
	require.NoError(t, err)
	resp, err := m.Client(nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, authn.calls())
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{next: "acc-2", delay: 50 * time.Millisecond}
	m, _, _ := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})
	client := m.Client(nil)

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(ts.URL)
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, c := range codes {
		assert.Equal(t, http.StatusOK, c)
	}
	assert.Equal(t, 1, authn.calls())
}

func TestEnsureUserRefreshesOnce(t *testing.T) {
	authn := &fakeAuthn{next: "acc-2", user: domain.User{ID: "u9"}}
	m, _, _ := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	u, err := m.EnsureUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u9", u.ID)

	_, err = m.EnsureUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, authn.calls())
}

func TestEnsureUserNotLoggedIn(t *testing.T) {
	m, _, _ := testManager(t, &fakeAuthn{}, nil)
	_, err := m.EnsureUser(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestHeader(t *testing.T) {
	m, _, _ := testManager(t, &fakeAuthn{}, &oauth2.Token{AccessToken: "acc-1"})
	h, err := m.Header()
	require.NoError(t, err)
	assert.Equal(t, "Bearer acc-1", h.Get("Authorization"))

	m2, _, _ := testManager(t, &fakeAuthn{}, nil)
	_, err = m2.Header()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestMemoryTokenStoreCopies(t *testing.T) {
	s := NewMemoryTokenStore()
	tok := &oauth2.Token{AccessToken: "a"}
	require.NoError(t, s.Set(tok))
	tok.AccessToken = "mutated"

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)

	require.NoError(t, s.Clear())
	got, _ = s.Get()
	assert.Nil(t, got)
}

func TestCallerDeadlineDoesNotExpireSession(t *testing.T) {
	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{next: "acc-2", delay: 200 * time.Millisecond}
	m, store, rec := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = m.Client(nil).Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, LoggedIn, m.State())
	assert.NotContains(t, rec.names(), hooks.EventSessionExpired)

	// The shared refresh finishes on its own and stores the new pair.
	assert.Eventually(t, func() bool {
		tok, _ := store.Get()
		return tok != nil && tok.AccessToken == "acc-2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, authn.calls())
}

func TestRefreshTimeoutExpiresSession(t *testing.T) {
	prev := RefreshTimeout
	RefreshTimeout = 20 * time.Millisecond
	t.Cleanup(func() { RefreshTimeout = prev })

	var hits atomic.Int32
	ts := backend(t, "acc-2", &hits)
	authn := &fakeAuthn{next: "acc-2", delay: time.Second}
	m, _, rec := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	_, err := m.Client(nil).Get(ts.URL)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, LoggedOut, m.State())
	assert.Contains(t, rec.names(), hooks.EventSessionExpired)
}

func TestLogoutBefore401IsNotUndone(t *testing.T) {
	authn := &fakeAuthn{next: "acc-2"}
	m, store, _ := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Logout(context.Background())
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(ts.Close)

	_, err := m.Client(nil).Get(ts.URL)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, 0, authn.calls())
	assert.Equal(t, LoggedOut, m.State())
	tok, _ := store.Get()
	assert.Nil(t, tok)
}

func TestLogoutDuringRefreshIsNotUndone(t *testing.T) {
	authn := &fakeAuthn{next: "acc-2", user: domain.User{ID: "u9"}}
	m, store, rec := testManager(t, authn, &oauth2.Token{AccessToken: "acc-1", RefreshToken: "ref-1"})
	authn.before = func() { m.Logout(context.Background()) }

	_, err := m.EnsureUser(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, 1, authn.calls())
	assert.Equal(t, LoggedOut, m.State())
	assert.Empty(t, m.User().ID)
	tok, _ := store.Get()
	assert.Nil(t, tok)
	assert.NotContains(t, rec.names(), hooks.EventTokenRefreshed)
	assert.NotContains(t, rec.names(), hooks.EventSessionExpired)
}

type brokenStore struct{ MemoryTokenStore }

func (*brokenStore) Get() (*oauth2.Token, error) { return nil, errors.New("disk gone") }

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func TestTransportClosesBodyOnEarlyError(t *testing.T) {
	log := logging.New(nil, "silent")
	m := NewManager(&brokenStore{}, &fakeAuthn{}, nil, log)

	body := &trackedBody{Reader: strings.NewReader("payload")}
	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:1/", body)
	require.NoError(t, err)

	_, err = m.Client(nil).Transport.RoundTrip(req)
	require.Error(t, err)
	assert.True(t, body.closed)
}
