package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsearch/internal/formatter"
	"github.com/desertthunder/spotsearch/internal/models"
	"github.com/desertthunder/spotsearch/internal/server"
	"github.com/desertthunder/spotsearch/internal/services"
	"github.com/desertthunder/spotsearch/internal/session"
	"github.com/desertthunder/spotsearch/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page routes.
const (
	RootRoute    = session.RootRoute
	SessionRoute = "/session"
	SearchRoute  = "/search"
)

// Window names given to the main page and the login popup.
const (
	MainWindowName  = "spotsearch-main"
	PopupWindowName = "spotsearch-login"
)

// SearchTypes are the types offered by the search form, default first.
var SearchTypes = []string{"track", "artist", "album", "playlist", "show", "episode"}

// Sessions is the session manager as seen by the pages.
type Sessions interface {
	server.Sessions
	Snapshot() session.Session
	Phase() session.Phase
	IsLoading() bool
	Pending() bool
}

// App renders the pages of the web app.
type App struct {
	sessions  Sessions
	catalog   services.Catalog
	logger    *log.Logger
	templates *template.Template
}

// New parses the embedded templates and creates an [App].
func New(sessions Sessions, catalog services.Catalog, logger *log.Logger) (*App, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &App{
		sessions:  sessions,
		catalog:   catalog,
		logger:    shared.WithLogger(logger, "component", "web"),
		templates: tmpl,
	}, nil
}

// Router builds the full route table: auth routes, public pages, and the session-gated pages.
func (a *App) Router() *server.BasicRouter {
	r := server.NewBasicRouter()
	r.Use(server.RequestLogger(a.logger), server.Recoverer(a.logger))

	r.Handler(server.NewAuthHandler(a.sessions, a.logger))
	r.HandleFunc(http.MethodGet, RootRoute, a.index)
	r.HandleFunc(http.MethodGet, SessionRoute, a.status)

	gate := server.RequireSession(a.sessions.IsAuthenticated, RootRoute)
	r.Handle(http.MethodGet, server.DashboardRoute, gate(http.HandlerFunc(a.dashboard)))
	r.Handle(http.MethodGet, SearchRoute, gate(http.HandlerFunc(a.search)))

	return r
}

type page struct {
	Title         string
	WindowName    string
	Authenticated bool
	User          *models.UserProfile
}

func (a *App) newPage(ctx context.Context, title string) page {
	snap := a.sessions.Snapshot()
	return page{
		Title:         title,
		WindowName:    MainWindowName,
		Authenticated: a.sessions.IsAuthenticated(ctx),
		User:          snap.User,
	}
}

func (a *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, name, data); err != nil {
		a.logger.Error("could not render page", "page", name, "error", err)
	}
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	data := struct {
		page
		LoginURL     string
		PopupName    string
		SessionURL   string
		DashboardURL string
	}{
		page:         a.newPage(r.Context(), "Home"),
		LoginURL:     server.LoginRoute,
		PopupName:    PopupWindowName,
		SessionURL:   SessionRoute,
		DashboardURL: server.DashboardRoute,
	}
	a.render(w, "index", data)
}

// SessionStatus is the body of GET /session. It never carries the token.
type SessionStatus struct {
	Phase         string `json:"phase"`
	Loading       bool   `json:"loading"`
	Pending       bool   `json:"pending"`
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
}

// status lets the main page poll for the outcome of a popup login.
func (a *App) status(w http.ResponseWriter, r *http.Request) {
	snap := a.sessions.Snapshot()
	resp := SessionStatus{
		Phase:         a.sessions.Phase().String(),
		Loading:       a.sessions.IsLoading(),
		Pending:       a.sessions.Pending(),
		Authenticated: a.sessions.IsAuthenticated(r.Context()),
		ExpiresAt:     snap.ExpiresAt,
	}
	if snap.User != nil {
		resp.User = snap.User.Name()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(resp)
}

func (a *App) dashboard(w http.ResponseWriter, r *http.Request) {
	snap := a.sessions.Snapshot()

	profile, err := json.MarshalIndent(snap.User, "", "  ")
	if err != nil {
		http.Error(w, "Could not render profile", http.StatusInternalServerError)
		return
	}

	data := struct {
		page
		Expiry      string
		ProfileJSON string
	}{
		page:        a.newPage(r.Context(), "Dashboard"),
		Expiry:      snap.Expiry().Format(time.RFC1123),
		ProfileJSON: string(profile),
	}
	a.render(w, "dashboard", data)
}

func (a *App) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	kind := r.URL.Query().Get("type")
	if !slices.Contains(SearchTypes, kind) {
		kind = SearchTypes[0]
	}

	data := struct {
		page
		Query   string
		Type    string
		Types   []string
		Tracks  []models.Track
		Items   []formatter.Row
		Results *models.SearchResults
		Error   string
	}{
		page:  a.newPage(r.Context(), "Search"),
		Query: query,
		Type:  kind,
		Types: SearchTypes,
	}

	if query != "" {
		results, err := a.catalog.Search(r.Context(), query, []string{kind}, services.DefaultSearchLimit)
		switch {
		case err == nil:
			data.Results = results
			if kind == SearchTypes[0] {
				data.Tracks = results.TrackItems()
			} else {
				data.Items = rowsOfType(results, kind)
			}
		case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
			http.Redirect(w, r, RootRoute, http.StatusFound)
			return
		default:
			a.logger.Error("search failed", "error", err)
			data.Error = "Search failed. Try again."
		}
	}

	a.render(w, "search", data)
}

// rowsOfType returns the rendered hits of the given item type.
func rowsOfType(results *models.SearchResults, kind string) []formatter.Row {
	for _, section := range formatter.Sections(results) {
		if len(section.Rows) > 0 && section.Rows[0].Type == kind {
			return section.Rows
		}
	}
	return nil
}
