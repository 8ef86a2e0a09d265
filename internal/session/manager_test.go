package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotsearch/internal/models"
	"github.com/desertthunder/spotsearch/internal/shared"
	"github.com/desertthunder/spotsearch/internal/store"
	tu "github.com/desertthunder/spotsearch/internal/testing"
)

type navigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *navigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *navigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type profileCounter struct {
	mu    sync.Mutex
	calls int
	user  *models.UserProfile
	err   error
}

func (p *profileCounter) Load(ctx context.Context) (*models.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.user, p.err
}

func (p *profileCounter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixture struct {
	manager  *Manager
	nav      *navigator
	profiles *profileCounter
	logs     *bytes.Buffer
}

func newFixture(t *testing.T, s Store, mutate ...func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		nav:      &navigator{},
		profiles: &profileCounter{user: tu.SampleUser()},
		logs:     &bytes.Buffer{},
	}

	opts := Options{
		Store: s,
		Spotify: shared.SpotifyConfig{
			ClientID:    "client-123",
			RedirectURI: "http://127.0.0.1:3000/callback",
			Scopes:      "user-read-private user-read-email",
		},
		Auth:     shared.AuthConfig{StateLength: 16, LoginTimeout: 60, ShowDialog: true},
		Logger:   shared.NewLogger(f.logs),
		Now:      func() time.Time { return epoch },
		Navigate: f.nav.Navigate,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.SetProfileLoader(f.profiles.Load)
	t.Cleanup(m.Close)

	f.manager = m
	return f
}

func fragment(token string, expiresIn int, state string) string {
	v := url.Values{}
	v.Set("access_token", token)
	v.Set("token_type", "Bearer")
	v.Set("expires_in", strconv.Itoa(expiresIn))
	if state != "" {
		v.Set("state", state)
	}
	return "#" + v.Encode()
}

func waitLogin(t *testing.T, l *Login) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.Wait(ctx)
}

func seed(t *testing.T, s Store, token string, expiresAt int64) {
	t.Helper()
	ctx := context.Background()
	if err := s.Set(ctx, KeyAccessToken, token); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeyExpiresAt, strconv.FormatInt(expiresAt, 10)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeyTokenType, "Bearer"); err != nil {
		t.Fatal(err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("requires a store", func(t *testing.T) {
		_, err := NewManager(Options{Spotify: shared.SpotifyConfig{ClientID: "c", RedirectURI: "r"}})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewManager(Options{Store: store.NewMemory()})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("starts unknown and loading", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		if f.manager.Phase() != Unknown {
			t.Errorf("expected Unknown, got %s", f.manager.Phase())
		}
		if !f.manager.IsLoading() {
			t.Error("expected manager to be loading")
		}
	})
}

func TestInitiateLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("builds implicit grant url", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		login, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatalf("InitiateLogin failed: %v", err)
		}

		u, err := url.Parse(login.AuthURL)
		if err != nil {
			t.Fatalf("invalid auth URL: %v", err)
		}
		if got := u.Scheme + "://" + u.Host + u.Path; got != AuthorizeURL {
			t.Errorf("expected endpoint %s, got %s", AuthorizeURL, got)
		}

		q := u.Query()
		want := map[string]string{
			"client_id":     "client-123",
			"redirect_uri":  "http://127.0.0.1:3000/callback",
			"scope":         "user-read-private user-read-email",
			"response_type": "token",
			"show_dialog":   "true",
			"state":         login.State,
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("expected %s=%q, got %q", k, v, q.Get(k))
			}
		}
		if len(login.State) != 16 {
			t.Errorf("expected 16 character state, got %q", login.State)
		}
		if !f.manager.Pending() {
			t.Error("expected a pending login")
		}
	})

	t.Run("omits show_dialog when disabled", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), func(o *Options) { o.Auth.ShowDialog = false })
		login, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatalf("InitiateLogin failed: %v", err)
		}
		if strings.Contains(login.AuthURL, "show_dialog") {
			t.Errorf("expected no show_dialog in %s", login.AuthURL)
		}
	})

	t.Run("launches url", func(t *testing.T) {
		var launched string
		f := newFixture(t, store.NewMemory(), func(o *Options) {
			o.Launch = func(u string) error {
				launched = u
				return nil
			}
		})

		login, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatalf("InitiateLogin failed: %v", err)
		}
		if launched != login.AuthURL {
			t.Errorf("expected launcher to receive %s, got %s", login.AuthURL, launched)
		}
	})

	t.Run("launcher failure cancels login", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), func(o *Options) {
			o.Launch = func(string) error { return errors.New("no browser") }
		})

		if _, err := f.manager.InitiateLogin(ctx); err == nil {
			t.Fatal("expected error from failing launcher")
		}

		deadline := time.Now().Add(time.Second)
		for f.manager.Pending() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if f.manager.Pending() {
			t.Error("expected pending login to be cleared")
		}
	})

	t.Run("new login supersedes pending one", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		first, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		second, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatal(err)
		}

		if err := waitLogin(t, first); !errors.Is(err, shared.ErrLoginCancelled) {
			t.Errorf("expected first login to be cancelled, got %v", err)
		}
		if first.State == second.State {
			t.Error("expected a fresh state per login")
		}

		if _, err := f.manager.CaptureRedirectedToken(ctx, fragment("abc", 3600, "")); err != nil {
			t.Fatalf("capture failed: %v", err)
		}
		if err := waitLogin(t, second); err != nil {
			t.Errorf("expected second login to complete, got %v", err)
		}
	})

	t.Run("times out", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), func(o *Options) { o.Auth.LoginTimeout = 1 })
		login, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatal(err)
		}

		if err := waitLogin(t, login); !errors.Is(err, shared.ErrLoginTimeout) {
			t.Fatalf("expected ErrLoginTimeout, got %v", err)
		}
		if f.manager.Pending() {
			t.Error("expected pending registration to be discarded")
		}

		_, err = f.manager.CaptureRedirectedToken(ctx, fragment("late", 3600, ""))
		if !errors.Is(err, shared.ErrPersistence) {
			t.Errorf("expected late capture to fail with ErrPersistence, got %v", err)
		}
	})
}

func TestCaptureRedirectedToken(t *testing.T) {
	ctx := context.Background()

	t.Run("persists then hands off to opener", func(t *testing.T) {
		mem := store.NewMemory()
		f := newFixture(t, mem)

		login, err := f.manager.InitiateLogin(ctx)
		if err != nil {
			t.Fatal(err)
		}

		msg, err := f.manager.CaptureRedirectedToken(ctx, fragment("tok-SECRET", 3600, login.State))
		if err != nil {
			t.Fatalf("capture failed: %v", err)
		}
		want := TokenMessage{AccessToken: "tok-SECRET", ExpiresAt: epoch.Unix() + 3600, TokenType: "Bearer"}
		if msg != want {
			t.Errorf("got %+v, want %+v", msg, want)
		}

		if err := waitLogin(t, login); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		if v, _, _ := mem.Get(ctx, KeyAccessToken); v != "tok-SECRET" {
			t.Errorf("expected persisted token tok-SECRET, got %q", v)
		}
		if v, _, _ := mem.Get(ctx, KeyExpiresAt); v != strconv.FormatInt(epoch.Unix()+3600, 10) {
			t.Errorf("unexpected persisted expiry %q", v)
		}
		if v, _, _ := mem.Get(ctx, KeyTokenType); v != "Bearer" {
			t.Errorf("expected persisted token type Bearer, got %q", v)
		}

		if f.manager.Phase() != Authenticated {
			t.Errorf("expected Authenticated, got %s", f.manager.Phase())
		}
		if !f.manager.IsAuthenticated(ctx) {
			t.Error("expected IsAuthenticated")
		}
		if f.profiles.Calls() != 1 {
			t.Errorf("expected one profile fetch, got %d", f.profiles.Calls())
		}
		if strings.Contains(f.logs.String(), "tok-SECRET") {
			t.Error("token value must not be logged")
		}
	})

	t.Run("round trips through restore", func(t *testing.T) {
		mem := store.NewMemory()
		f := newFixture(t, mem)

		login, _ := f.manager.InitiateLogin(ctx)
		if _, err := f.manager.CaptureRedirectedToken(ctx, fragment("round-trip", 600, "")); err != nil {
			t.Fatal(err)
		}
		if err := waitLogin(t, login); err != nil {
			t.Fatal(err)
		}

		restored := newFixture(t, mem)
		restored.manager.RestoreSession(ctx)

		s := restored.manager.Snapshot()
		if s.AccessToken != "round-trip" || s.ExpiresAt != epoch.Unix()+600 {
			t.Errorf("restored session %+v does not match capture", s)
		}
		if restored.manager.Phase() != Authenticated {
			t.Errorf("expected Authenticated, got %s", restored.manager.Phase())
		}
	})

	t.Run("malformed fragments", func(t *testing.T) {
		tests := []struct {
			name     string
			fragment string
		}{
			{"empty", ""},
			{"missing token", "#token_type=Bearer&expires_in=3600"},
			{"missing expiry", "#access_token=abc&token_type=Bearer"},
			{"non-integer expiry", "#access_token=abc&token_type=Bearer&expires_in=soon"},
			{"negative expiry", "#access_token=abc&token_type=Bearer&expires_in=-5"},
			{"missing token type", "#access_token=abc&expires_in=3600"},
			{"bad escape", "#access_token=%zz"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mem := store.NewMemory()
				f := newFixture(t, mem)
				f.manager.InitiateLogin(ctx)

				_, err := f.manager.CaptureRedirectedToken(ctx, tt.fragment)
				if !errors.Is(err, shared.ErrMalformedRedirect) {
					t.Errorf("expected ErrMalformedRedirect, got %v", err)
				}
				if !errors.Is(err, shared.ErrPersistence) {
					t.Errorf("expected malformed redirect to be a persistence error, got %v", err)
				}
				if mem.Len() != 0 {
					t.Errorf("expected nothing persisted, got %d keys", mem.Len())
				}
				if !f.manager.Pending() {
					t.Error("expected login to stay pending")
				}
			})
		}
	})

	t.Run("provider error cancels login", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		login, _ := f.manager.InitiateLogin(ctx)

		_, err := f.manager.CaptureRedirectedToken(ctx, "#error=access_denied&state="+login.State)
		if !errors.Is(err, shared.ErrMalformedRedirect) {
			t.Errorf("expected ErrMalformedRedirect, got %v", err)
		}
		if err := waitLogin(t, login); !errors.Is(err, shared.ErrLoginCancelled) {
			t.Errorf("expected ErrLoginCancelled, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		fs := tu.NewFailingStore()
		fs.FailSet = true
		f := newFixture(t, fs)
		login, _ := f.manager.InitiateLogin(ctx)

		_, err := f.manager.CaptureRedirectedToken(ctx, fragment("abc", 3600, ""))
		if !errors.Is(err, shared.ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
		if errors.Is(err, shared.ErrMalformedRedirect) {
			t.Error("store failure is not a malformed redirect")
		}
		if f.manager.Pending() {
			t.Error("expected the failed write to end the pending login")
		}
		if err := waitLogin(t, login); !errors.Is(err, shared.ErrPersistence) {
			t.Errorf("expected login to end with ErrPersistence, got %v", err)
		}
		if f.manager.Snapshot().AccessToken != "" {
			t.Error("expected memory to stay empty")
		}
	})

	t.Run("partial write clears the store", func(t *testing.T) {
		fs := tu.NewFailingStore()
		seed(t, fs, "old", epoch.Unix()+60)
		fs.FailSetKey = KeyExpiresAt
		f := newFixture(t, fs)
		login, _ := f.manager.InitiateLogin(ctx)

		_, err := f.manager.CaptureRedirectedToken(ctx, fragment("new", 3600, ""))
		if !errors.Is(err, shared.ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
		for _, key := range []string{KeyAccessToken, KeyExpiresAt, KeyTokenType} {
			if v, ok := fs.Value(key); ok {
				t.Errorf("expected %s to be cleared, got %q", key, v)
			}
		}
		if err := waitLogin(t, login); !errors.Is(err, shared.ErrPersistence) {
			t.Errorf("expected login to end with ErrPersistence, got %v", err)
		}

		restored := newFixture(t, fs)
		restored.manager.RestoreSession(ctx)
		if restored.manager.Phase() != Unauthenticated {
			t.Errorf("expected Unauthenticated after restore, got %s", restored.manager.Phase())
		}
		if restored.profiles.Calls() != 0 {
			t.Error("expected no profile fetch for a cleared store")
		}
	})

	t.Run("expiry overflow is malformed", func(t *testing.T) {
		mem := store.NewMemory()
		f := newFixture(t, mem)
		f.manager.InitiateLogin(ctx)

		frag := "#access_token=abc&token_type=Bearer&expires_in=" + strconv.FormatInt(math.MaxInt64, 10)
		_, err := f.manager.CaptureRedirectedToken(ctx, frag)
		if !errors.Is(err, shared.ErrMalformedRedirect) {
			t.Errorf("expected ErrMalformedRedirect, got %v", err)
		}
		if mem.Len() != 0 {
			t.Errorf("expected nothing persisted, got %d keys", mem.Len())
		}
	})

	t.Run("without pending login persists but fails", func(t *testing.T) {
		mem := store.NewMemory()
		f := newFixture(t, mem)

		_, err := f.manager.CaptureRedirectedToken(ctx, fragment("orphan", 3600, ""))
		if !errors.Is(err, shared.ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
		if v, _, _ := mem.Get(ctx, KeyAccessToken); v != "orphan" {
			t.Errorf("expected token to be persisted before hand-off, got %q", v)
		}
	})

	t.Run("verifies state when enabled", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), func(o *Options) { o.Auth.VerifyState = true })
		login, _ := f.manager.InitiateLogin(ctx)

		_, err := f.manager.CaptureRedirectedToken(ctx, fragment("abc", 3600, "forged"))
		if !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}

		if _, err := f.manager.CaptureRedirectedToken(ctx, fragment("abc", 3600, login.State)); err != nil {
			t.Errorf("expected matching state to be accepted, got %v", err)
		}
	})

	t.Run("zero lifetime token expires immediately after", func(t *testing.T) {
		now := epoch
		var mu sync.Mutex
		f := newFixture(t, store.NewMemory(), func(o *Options) {
			o.Now = func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			}
		})
		login, _ := f.manager.InitiateLogin(ctx)
		if _, err := f.manager.CaptureRedirectedToken(ctx, fragment("abc", 0, "")); err != nil {
			t.Fatal(err)
		}
		waitLogin(t, login)

		if f.manager.HasExpired(ctx) {
			t.Error("expected token to be valid at its expiry second")
		}
		mu.Lock()
		now = now.Add(time.Second)
		mu.Unlock()
		if !f.manager.HasExpired(ctx) {
			t.Error("expected token to be expired one second later")
		}
	})
}

func TestRestoreSession(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		f.manager.RestoreSession(ctx)

		if f.manager.Phase() != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", f.manager.Phase())
		}
		if f.manager.IsLoading() {
			t.Error("expected loading to be complete")
		}
		if f.profiles.Calls() != 0 {
			t.Errorf("expected no profile fetch, got %d", f.profiles.Calls())
		}
	})

	t.Run("valid persisted token", func(t *testing.T) {
		mem := store.NewMemory()
		seed(t, mem, "abc", epoch.Unix()+3600)
		f := newFixture(t, mem)
		f.manager.RestoreSession(ctx)

		if f.profiles.Calls() != 1 {
			t.Errorf("expected exactly one profile fetch, got %d", f.profiles.Calls())
		}
		if f.manager.Phase() != Authenticated {
			t.Errorf("expected Authenticated, got %s", f.manager.Phase())
		}
		s := f.manager.Snapshot()
		if s.User == nil || s.User.ID != tu.SampleUser().ID {
			t.Errorf("expected fetched user, got %+v", s.User)
		}
		if s.TokenType != "Bearer" {
			t.Errorf("expected token type to be restored, got %q", s.TokenType)
		}
	})

	t.Run("token without integer expiry", func(t *testing.T) {
		mem := store.NewMemory()
		mem.Set(ctx, KeyAccessToken, "abc")
		mem.Set(ctx, KeyExpiresAt, "later")
		f := newFixture(t, mem)
		f.manager.RestoreSession(ctx)

		if f.manager.Phase() != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", f.manager.Phase())
		}
		if f.profiles.Calls() != 0 {
			t.Error("expected no profile fetch")
		}
	})

	t.Run("unreadable store", func(t *testing.T) {
		fs := tu.NewFailingStore()
		fs.FailGet = true
		f := newFixture(t, fs)
		f.manager.RestoreSession(ctx)

		if f.manager.Phase() != Unauthenticated || f.manager.IsLoading() {
			t.Errorf("expected settled Unauthenticated, got %s", f.manager.Phase())
		}
	})

	t.Run("profile failure", func(t *testing.T) {
		mem := store.NewMemory()
		seed(t, mem, "abc", epoch.Unix()+3600)
		f := newFixture(t, mem)
		f.profiles.err = fmt.Errorf("%w: 401", shared.ErrAPIRequest)
		f.manager.RestoreSession(ctx)

		if f.manager.Phase() != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", f.manager.Phase())
		}
		if f.manager.Snapshot().AccessToken != "" {
			t.Error("expected in-memory token to be cleared")
		}
		if v, _, _ := mem.Get(ctx, KeyAccessToken); v != "abc" {
			t.Error("expected persisted token to be left in place")
		}
		if routes := f.nav.Routes(); len(routes) != 1 || routes[0] != RootRoute {
			t.Errorf("expected navigation to %s, got %v", RootRoute, routes)
		}
		if !strings.Contains(f.logs.String(), shared.ErrProfileLoad.Error()) {
			t.Error("expected profile load failure to be logged")
		}
	})

	t.Run("profile without id", func(t *testing.T) {
		mem := store.NewMemory()
		seed(t, mem, "abc", epoch.Unix()+3600)
		f := newFixture(t, mem)
		f.profiles.user = &models.UserProfile{DisplayName: "nobody"}
		f.manager.RestoreSession(ctx)

		if f.manager.Phase() != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", f.manager.Phase())
		}
	})
}

func TestManagerHasExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing anywhere", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		if f.manager.HasExpired(ctx) {
			t.Error("absence of a token is not expiry")
		}
	})

	t.Run("falls back to store", func(t *testing.T) {
		mem := store.NewMemory()
		seed(t, mem, "abc", epoch.Unix()-10)
		f := newFixture(t, mem)
		if !f.manager.HasExpired(ctx) {
			t.Error("expected persisted expired token to be reported")
		}
	})

	t.Run("store read failure counts as expired", func(t *testing.T) {
		fs := tu.NewFailingStore()
		fs.FailGet = true
		f := newFixture(t, fs)
		if !f.manager.HasExpired(ctx) {
			t.Error("expected unreadable store to count as expired")
		}
	})
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("clears both stores and is idempotent", func(t *testing.T) {
		mem := store.NewMemory()
		seed(t, mem, "abc", epoch.Unix()+3600)
		f := newFixture(t, mem)
		f.manager.RestoreSession(ctx)

		f.manager.Invalidate(ctx)
		f.manager.Invalidate(ctx)

		if mem.Len() != 0 {
			t.Errorf("expected empty store, got %d keys", mem.Len())
		}
		if f.manager.Snapshot() != (Session{}) {
			t.Errorf("expected empty session, got %+v", f.manager.Snapshot())
		}
		if f.manager.IsAuthenticated(ctx) {
			t.Error("expected not authenticated")
		}
		if f.manager.Phase() != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", f.manager.Phase())
		}
	})

	t.Run("store failure is absorbed", func(t *testing.T) {
		fs := tu.NewFailingStore()
		seed(t, fs, "abc", epoch.Unix()+3600)
		f := newFixture(t, fs)
		f.manager.RestoreSession(ctx)
		fs.FailDelete = true

		f.manager.Invalidate(ctx)

		if f.manager.Snapshot().AccessToken != "" {
			t.Error("expected memory to be cleared despite store failure")
		}
		if !strings.Contains(f.logs.String(), "could not clear token store") {
			t.Error("expected store failure to be logged")
		}
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, "abc", epoch.Unix()+3600)
	f := newFixture(t, mem)
	f.manager.RestoreSession(ctx)

	login, _ := f.manager.InitiateLogin(ctx)
	f.manager.Logout(ctx)

	if err := waitLogin(t, login); !errors.Is(err, shared.ErrLoginCancelled) {
		t.Errorf("expected pending login to be cancelled, got %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("expected empty store, got %d keys", mem.Len())
	}
	if f.manager.Phase() != Unauthenticated || f.manager.IsLoading() {
		t.Errorf("expected settled Unauthenticated, got %s", f.manager.Phase())
	}
	if routes := f.nav.Routes(); len(routes) == 0 || routes[len(routes)-1] != RootRoute {
		t.Errorf("expected navigation to root, got %v", routes)
	}
}

func TestIsRedirectFromTrustedPopup(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a pending login", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		if f.manager.IsRedirectFromTrustedPopup(trustedWindow()) {
			t.Error("expected untrusted without a pending login")
		}
	})

	t.Run("trusted while login pending", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		f.manager.InitiateLogin(ctx)

		w := trustedWindow()
		if !f.manager.IsRedirectFromTrustedPopup(w) {
			t.Error("expected trusted popup")
		}
		if !w.Opener.AwaitingLogin {
			t.Error("caller's window must not be modified")
		}
	})

	t.Run("bare visit", func(t *testing.T) {
		f := newFixture(t, store.NewMemory())
		f.manager.InitiateLogin(ctx)

		w := Window{ID: "tab", URL: "http://127.0.0.1:3000/callback", HistoryLength: 1}
		if f.manager.IsRedirectFromTrustedPopup(w) {
			t.Error("expected direct visit to be untrusted")
		}
	})
}
