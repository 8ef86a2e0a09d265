package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsearch/internal/session"
	"github.com/desertthunder/spotsearch/internal/shared"
)

// Routes served by [AuthHandler].
const (
	LoginRoute     = "/login"
	CallbackRoute  = "/callback"
	LogoutRoute    = "/logout"
	DashboardRoute = "/dashboard"
)

const maxCaptureBody = 16 << 10

// Sessions is the part of the session manager the auth routes drive.
type Sessions interface {
	InitiateLogin(ctx context.Context) (*session.Login, error)
	CaptureRedirectedToken(ctx context.Context, fragment string) (session.TokenMessage, error)
	IsRedirectFromTrustedPopup(w session.Window) bool
	IsAuthenticated(ctx context.Context) bool
	Logout(ctx context.Context)
}

// WindowPayload is a browser window as described by the callback page.
type WindowPayload struct {
	ID            string         `json:"id"`
	URL           string         `json:"url"`
	HistoryLength int            `json:"history_length"`
	AwaitingLogin bool           `json:"awaiting_login"`
	Opener        *WindowPayload `json:"opener,omitempty"`
}

// Window converts the payload to a [session.Window].
func (p *WindowPayload) Window() session.Window {
	w := session.Window{
		ID:            p.ID,
		URL:           p.URL,
		HistoryLength: p.HistoryLength,
		AwaitingLogin: p.AwaitingLogin,
	}
	if p.Opener != nil {
		opener := p.Opener.Window()
		w.Opener = &opener
	}
	return w
}

// CaptureRequest is the body the callback page posts back.
type CaptureRequest struct {
	Fragment string        `json:"fragment"`
	Window   WindowPayload `json:"window"`
}

// CaptureResponse answers the callback page. Redirect tells it to navigate instead of closing.
type CaptureResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// AuthHandler serves the popup login flow: /login starts it, /callback captures the token, /logout ends the session.
type AuthHandler struct {
	sessions Sessions
	logger   *log.Logger
}

// NewAuthHandler creates an [AuthHandler].
func NewAuthHandler(sessions Sessions, logger *log.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: shared.WithLogger(logger, "component", "auth")}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{LoginRoute, CallbackRoute, LogoutRoute}
}

// ServeHTTP dispatches on path and method.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == LoginRoute && r.Method == http.MethodGet:
		h.login(w, r)
	case r.URL.Path == CallbackRoute && r.Method == http.MethodGet:
		h.callbackPage(w, r)
	case r.URL.Path == CallbackRoute && r.Method == http.MethodPost:
		h.capture(w, r)
	case r.URL.Path == LogoutRoute && r.Method == http.MethodPost:
		h.logout(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// login registers a pending login and sends the popup to the authorization page.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	login, err := h.sessions.InitiateLogin(r.Context())
	if err != nil {
		h.logger.Error("could not start login", "error", err)
		http.Error(w, "Could not start login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, login.AuthURL, http.StatusFound)
}

// callbackPage serves the page that reads the token from the fragment in the browser and posts it back.
func (h *AuthHandler) callbackPage(w http.ResponseWriter, r *http.Request) {
	if h.sessions.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, DashboardRoute, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	data := struct{ CaptureURL string }{CallbackRoute}
	if err := callbackTemplate.Execute(w, data); err != nil {
		h.logger.Error("could not render callback page", "error", err)
	}
}

// capture checks the posting window and hands the fragment to the session manager.
func (h *AuthHandler) capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCaptureBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CaptureResponse{Status: "error", Error: "invalid request body"})
		return
	}

	if !h.sessions.IsRedirectFromTrustedPopup(req.Window.Window()) {
		h.logger.Warn("rejected token capture", "error", shared.ErrUntrustedRedirect, "id", RequestID(r.Context()))
		writeJSON(w, http.StatusForbidden, CaptureResponse{
			Status:   "error",
			Error:    shared.ErrUntrustedRedirect.Error(),
			Redirect: session.RootRoute,
		})
		return
	}

	msg, err := h.sessions.CaptureRedirectedToken(r.Context(), req.Fragment)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrMalformedRedirect) || errors.Is(err, shared.ErrStateMismatch) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, CaptureResponse{Status: "error", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, CaptureResponse{Status: "ok", ExpiresAt: msg.ExpiresAt})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	http.Redirect(w, r, session.RootRoute, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Signing in…</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
        .error { color: #c0392b; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Signing in…</h1>
        <p id="status">Handing your session back to the app.</p>
    </div>
    <script>
    (function () {
        var status = document.getElementById("status");
        var current = {
            id: window.name || "",
            url: window.location.href.split("#")[0],
            history_length: window.history.length,
            awaiting_login: false
        };
        try {
            if (window.opener && window.opener !== window) {
                current.opener = {
                    id: window.opener.name || "",
                    url: window.opener.location.href,
                    history_length: window.opener.history.length,
                    awaiting_login: !!window.opener.spotsearchAwaitingLogin
                };
            }
        } catch (e) {
            delete current.opener;
        }

        fetch({{.CaptureURL}}, {
            method: "POST",
            headers: { "Content-Type": "application/json" },
            body: JSON.stringify({ fragment: window.location.hash, window: current })
        }).then(function (resp) {
            return resp.json().then(function (body) { return { ok: resp.ok, body: body }; });
        }).then(function (result) {
            if (result.ok) {
                window.close();
                return;
            }
            if (result.body.redirect) {
                window.location.replace(result.body.redirect);
                return;
            }
            status.className = "error";
            status.textContent = result.body.error || "Sign in failed.";
        }).catch(function () {
            status.className = "error";
            status.textContent = "Sign in failed.";
        });
    })();
    </script>
</body>
</html>
`))
