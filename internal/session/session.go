package session

import (
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/spotsearch/internal/models"
	"golang.org/x/oauth2"
)

// Persistent token store keys.
const (
	KeyAccessToken = "SPOTIFY_ACCESS_TOKEN"
	KeyExpiresAt   = "SPOTIFY_TOKEN_EXPIRE_TIMESTAMP"
	KeyTokenType   = "SPOTIFY_TOKEN_TYPE"
)

// RootRoute is where the navigator is sent when a session cannot be established.
const RootRoute = "/"

// Session is the in-memory state store. Zero values mean absent.
type Session struct {
	AccessToken string
	TokenType   string
	ExpiresAt   int64 // seconds since epoch
	User        *models.UserProfile
}

// Expiry returns ExpiresAt as a [time.Time], or the zero time when absent.
func (s Session) Expiry() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Token converts the session credentials to an [oauth2.Token], or nil when no token is held.
func (s Session) Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken: s.AccessToken,
		TokenType:   s.TokenType,
		Expiry:      s.Expiry(),
	}
}

// HasExpired reports whether the session's token lapsed before now.
//
// A session without a token or expiry has not expired; there is simply no session.
func HasExpired(s Session, now time.Time) bool {
	if s.AccessToken == "" || s.ExpiresAt == 0 {
		return false
	}
	return now.After(s.Expiry())
}

// IsAuthenticated reports whether s holds a token, a user profile, and has not expired.
func IsAuthenticated(s Session, now time.Time) bool {
	return s.AccessToken != "" && s.User != nil && !HasExpired(s, now)
}

// Phase is the observable session state.
type Phase int

const (
	Unknown Phase = iota
	Unauthenticated
	PendingProfile
	Authenticated
)

func (p Phase) String() string {
	switch p {
	case Unauthenticated:
		return "unauthenticated"
	case PendingProfile:
		return "pending-profile"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// TokenMessage is the single message the redirect context sends to the opener.
type TokenMessage struct {
	AccessToken string
	ExpiresAt   int64
	TokenType   string
}

// Window describes a browser window as reported by the page running in it.
type Window struct {
	ID            string
	URL           string // location.href
	HistoryLength int
	Opener        *Window
	// AwaitingLogin is reported by an opener that registered the login callback.
	AwaitingLogin bool
}

// IsTrustedPopup reports whether w is a popup that navigated to the redirect page from a window of the
// same origin which is waiting for a token. A bare visit to the redirect URL fails at least one check.
func IsTrustedPopup(w Window) bool {
	opener := w.Opener
	if opener == nil {
		return false
	}
	if opener.ID == w.ID {
		return false
	}
	if !opener.AwaitingLogin {
		return false
	}
	if !SameOrigin(opener.URL, w.URL) {
		return false
	}
	return w.HistoryLength >= 2
}

// SameOrigin compares the scheme and host (including port) of two URLs.
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil || ub.Host == "" {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}
