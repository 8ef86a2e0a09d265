package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsearch/internal/models"
	"github.com/desertthunder/spotsearch/internal/shared"
	"golang.org/x/oauth2"
)

// AuthorizeURL is the Spotify accounts service authorization endpoint.
const AuthorizeURL = "https://accounts.spotify.com/authorize"

// ProfileLoader fetches the profile of the user owning the current token.
type ProfileLoader func(ctx context.Context) (*models.UserProfile, error)

// Options configures a [Manager].
type Options struct {
	Store   Store
	Spotify shared.SpotifyConfig
	Auth    shared.AuthConfig
	Logger  *log.Logger

	// AuthorizeURL overrides [AuthorizeURL].
	AuthorizeURL string
	// Now defaults to [time.Now].
	Now func() time.Time
	// Launch opens the authorization URL. Nil leaves opening it to the caller.
	Launch func(authURL string) error
	// Navigate is told where to send the user when the session is torn down.
	Navigate func(route string)
}

// Login is a single in-flight authorization attempt.
type Login struct {
	ID      string
	AuthURL string
	State   string

	hs   *handshake
	done chan struct{}
	err  error
}

// Done is closed once the login has completed, failed or been cancelled.
func (l *Login) Done() <-chan struct{} {
	return l.done
}

// Err returns the outcome of the login. It is only meaningful after Done is closed.
func (l *Login) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Wait blocks until the login completes or ctx is done.
func (l *Login) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager owns the session lifecycle: login, token capture, restore, expiry and invalidation.
type Manager struct {
	mu       sync.RWMutex
	session  Session
	phase    Phase
	loading  bool
	pending  *Login
	profiles ProfileLoader

	store    tokenStore
	oauth    *oauth2.Config
	auth     shared.AuthConfig
	logger   *log.Logger
	ledger   *StateLedger
	now      func() time.Time
	launch   func(string) error
	navigate func(string)
}

// NewManager validates the Spotify credentials and creates a Manager in the [Unknown] phase.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: token store is required", shared.ErrMissingArgument)
	}
	if err := opts.Spotify.Validate(); err != nil {
		return nil, err
	}

	authURL := opts.AuthorizeURL
	if authURL == "" {
		authURL = AuthorizeURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	navigate := opts.Navigate
	if navigate == nil {
		navigate = func(string) {}
	}

	m := &Manager{
		phase:   Unknown,
		loading: true,
		store:   tokenStore{opts.Store},
		oauth: &oauth2.Config{
			ClientID:    opts.Spotify.ClientID,
			RedirectURL: opts.Spotify.RedirectURI,
			Scopes:      opts.Spotify.ScopeList(),
			Endpoint:    oauth2.Endpoint{AuthURL: authURL},
		},
		auth:     opts.Auth,
		logger:   shared.WithLogger(logger, "component", "session"),
		now:      now,
		launch:   opts.Launch,
		navigate: navigate,
	}

	if opts.Auth.VerifyState {
		m.ledger = NewStateLedger(opts.Auth.Timeout())
	}
	return m, nil
}

// SetProfileLoader installs the function used to fetch the user profile after a token is obtained.
func (m *Manager) SetProfileLoader(load ProfileLoader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = load
}

// InitiateLogin registers a one-shot handshake and returns the authorization URL for the implicit grant.
//
// Any earlier pending login is cancelled. When a launcher is configured the URL is opened with it.
// The returned [Login] completes once a token is captured and the profile loaded, or when the login
// times out.
func (m *Manager) InitiateLogin(ctx context.Context) (*Login, error) {
	length := m.auth.StateLength
	if length <= 0 {
		length = shared.DefaultStateLength
	}

	state, err := shared.GenerateState(length)
	if err != nil {
		return nil, err
	}

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("response_type", "token")}
	if m.auth.ShowDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}

	login := &Login{
		ID:      shared.GenerateID(),
		AuthURL: m.oauth.AuthCodeURL(state, opts...),
		State:   state,
		hs:      newHandshake(),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	previous := m.pending
	m.pending = login
	m.mu.Unlock()

	if previous != nil {
		previous.hs.cancel(fmt.Errorf("%w: superseded by login %s", shared.ErrLoginCancelled, login.ID))
	}
	if m.ledger != nil {
		m.ledger.Issue(state)
	}

	go m.await(login)

	m.logger.Info("login initiated", "login", login.ID)

	if m.launch != nil {
		if err := m.launch(login.AuthURL); err != nil {
			login.hs.cancel(fmt.Errorf("%w: %v", shared.ErrLoginCancelled, err))
			return nil, fmt.Errorf("failed to open authorization URL: %w", err)
		}
	}
	return login, nil
}

// await receives the handshake message for login and applies it to the session.
func (m *Manager) await(login *Login) {
	defer close(login.done)

	msg, err := login.hs.wait(context.Background(), m.auth.Timeout())

	m.mu.Lock()
	if m.pending == login {
		m.pending = nil
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("login ended without a token", "login", login.ID, "error", err)
		login.err = err
		return
	}

	login.err = m.accept(context.Background(), msg)
}

// accept hydrates memory from a handshake message and loads the profile.
func (m *Manager) accept(ctx context.Context, msg TokenMessage) error {
	m.mu.Lock()
	m.session = Session{AccessToken: msg.AccessToken, TokenType: msg.TokenType, ExpiresAt: msg.ExpiresAt}
	m.phase = PendingProfile
	m.loading = true
	m.mu.Unlock()

	return m.loadProfile(ctx)
}

// loadProfile fetches the user for the in-memory token. Failure clears the in-memory session and
// sends the navigator to the root route; the persisted token is left alone.
func (m *Manager) loadProfile(ctx context.Context) error {
	m.mu.RLock()
	load := m.profiles
	current := m.session
	m.mu.RUnlock()

	var user *models.UserProfile
	err := errors.New("no profile loader configured")
	if load != nil {
		user, err = load(ctx)
		if err == nil {
			err = user.Validate()
		}
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", shared.ErrProfileLoad, err)
		m.logger.Error("could not load user profile", "error", err)

		m.mu.Lock()
		if m.session.AccessToken == current.AccessToken {
			m.session = Session{}
		}
		m.phase = Unauthenticated
		m.loading = false
		m.mu.Unlock()

		m.navigate(RootRoute)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.AccessToken != current.AccessToken {
		return fmt.Errorf("%w: session changed while loading profile", shared.ErrProfileLoad)
	}
	m.session.User = user
	m.phase = Authenticated
	m.loading = false

	m.logger.Info("session established", "user", user.ID)
	return nil
}

// CaptureRedirectedToken parses the URL fragment the provider redirected to, persists the token and
// hands it to the waiting login.
//
// The fragment may include the leading '#'. The token is written to the store before the message
// is delivered.
func (m *Manager) CaptureRedirectedToken(ctx context.Context, fragment string) (TokenMessage, error) {
	msg, err := m.capture(ctx, fragment)
	if err != nil {
		m.logger.Error("token capture failed", "error", err)
		return TokenMessage{}, err
	}
	return msg, nil
}

func (m *Manager) capture(ctx context.Context, fragment string) (TokenMessage, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return TokenMessage{}, fmt.Errorf("%w: %v", shared.ErrMalformedRedirect, err)
	}

	if reason := values.Get("error"); reason != "" {
		m.cancelPending(fmt.Errorf("%w: authorization denied: %s", shared.ErrLoginCancelled, reason))
		return TokenMessage{}, fmt.Errorf("%w: provider returned error %q", shared.ErrMalformedRedirect, reason)
	}

	token := values.Get("access_token")
	if token == "" {
		return TokenMessage{}, fmt.Errorf("%w: missing access_token", shared.ErrMalformedRedirect)
	}

	now := m.now().Unix()
	expiresIn, err := strconv.ParseInt(values.Get("expires_in"), 10, 64)
	if err != nil || expiresIn < 0 {
		return TokenMessage{}, fmt.Errorf("%w: expires_in is not a non-negative integer", shared.ErrMalformedRedirect)
	}
	if expiresIn > math.MaxInt64-now {
		return TokenMessage{}, fmt.Errorf("%w: expires_in %d is out of range", shared.ErrMalformedRedirect, expiresIn)
	}

	tokenType := values.Get("token_type")
	if tokenType == "" {
		return TokenMessage{}, fmt.Errorf("%w: missing token_type", shared.ErrMalformedRedirect)
	}

	if m.ledger != nil && !m.ledger.Redeem(values.Get("state")) {
		return TokenMessage{}, shared.ErrStateMismatch
	}

	msg := TokenMessage{
		AccessToken: token,
		ExpiresAt:   now + expiresIn,
		TokenType:   tokenType,
	}

	// A partial write must not leave the new token next to an older expiry.
	if err := m.store.save(ctx, msg); err != nil {
		err = fmt.Errorf("%w: %w", shared.ErrPersistence, err)
		m.Invalidate(ctx)
		m.cancelPending(err)
		return TokenMessage{}, err
	}

	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()

	if pending == nil || !pending.hs.deliver(msg) {
		return TokenMessage{}, fmt.Errorf("%w: no login is waiting for a token", shared.ErrPersistence)
	}

	m.logger.Info("token captured", "login", pending.ID, "expires_at", msg.ExpiresAt)
	return msg, nil
}

// RestoreSession hydrates the session from the store. A persisted token with an integer expiry moves the
// manager to [PendingProfile] and loads the profile; anything else completes loading as [Unauthenticated].
func (m *Manager) RestoreSession(ctx context.Context) {
	persisted, err := m.store.load(ctx)
	if err != nil {
		m.logger.Error("could not read token store", "error", err)
		m.setUnauthenticated()
		return
	}

	if persisted.AccessToken == "" || persisted.ExpiresAt == 0 {
		m.setUnauthenticated()
		return
	}

	m.mu.Lock()
	m.session = persisted
	m.phase = PendingProfile
	m.loading = true
	m.mu.Unlock()

	_ = m.loadProfile(ctx)
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
	m.phase = Unauthenticated
	m.loading = false
}

// HasExpired reports whether the current token has lapsed, reading the store for whatever memory lacks.
// A store that cannot be read counts as expired.
func (m *Manager) HasExpired(ctx context.Context) bool {
	s := m.Snapshot()

	if s.AccessToken == "" || s.ExpiresAt == 0 {
		persisted, err := m.store.load(ctx)
		if err != nil {
			m.logger.Error("could not read token store", "error", err)
			return true
		}
		if s.AccessToken == "" {
			s.AccessToken = persisted.AccessToken
		}
		if s.ExpiresAt == 0 {
			s.ExpiresAt = persisted.ExpiresAt
		}
	}

	return HasExpired(s, m.now())
}

// IsAuthenticated reports whether a token and user are held and the token has not expired.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	s := m.Snapshot()
	return s.AccessToken != "" && s.User != nil && !m.HasExpired(ctx)
}

// Invalidate removes the token from the store and memory. Store failures are logged, never returned.
func (m *Manager) Invalidate(ctx context.Context) {
	if err := m.store.clear(ctx); err != nil {
		m.logger.Error("could not clear token store", "error", err)
	}

	m.setUnauthenticated()
	m.logger.Info("session invalidated")
}

// Logout invalidates the session, cancels any pending login, resets the manager and restores from the
// (now empty) store before sending the navigator home.
func (m *Manager) Logout(ctx context.Context) {
	m.Invalidate(ctx)
	m.cancelPending(fmt.Errorf("%w: logged out", shared.ErrLoginCancelled))

	m.mu.Lock()
	m.session = Session{}
	m.phase = Unknown
	m.loading = true
	m.mu.Unlock()

	m.RestoreSession(ctx)
	m.navigate(RootRoute)
}

// IsRedirectFromTrustedPopup applies [IsTrustedPopup] to w, trusting the opener's claim to await a
// login only while this manager actually has one pending.
func (m *Manager) IsRedirectFromTrustedPopup(w Window) bool {
	if w.Opener != nil {
		opener := *w.Opener
		opener.AwaitingLogin = opener.AwaitingLogin && m.Pending()
		w.Opener = &opener
	}
	return IsTrustedPopup(w)
}

// Pending reports whether a login is waiting for a token.
func (m *Manager) Pending() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending != nil
}

func (m *Manager) cancelPending(err error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if pending != nil {
		pending.hs.cancel(err)
	}
}

// Token returns the in-memory credentials as an [oauth2.Token], or nil.
func (m *Manager) Token() *oauth2.Token {
	return m.Snapshot().Token()
}

// Snapshot returns a copy of the in-memory session.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// IsLoading reports whether the session is still being resolved.
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Close cancels any pending login and stops background work.
func (m *Manager) Close() {
	m.cancelPending(fmt.Errorf("%w: manager closed", shared.ErrLoginCancelled))
	if m.ledger != nil {
		m.ledger.Close()
	}
}
