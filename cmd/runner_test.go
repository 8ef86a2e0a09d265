package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotsearch/internal/server"
	"github.com/desertthunder/spotsearch/internal/session"
	"github.com/desertthunder/spotsearch/internal/shared"
	"github.com/desertthunder/spotsearch/internal/store"
	tu "github.com/desertthunder/spotsearch/internal/testing"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			mem := store.NewMemory()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Store:      mem,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.store != mem {
				t.Error("expected store to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with nil browser opener uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.openBrowser == nil {
				t.Error("expected browser opener to be set")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "login", "logout", "status", "search", "api", "serve", "tui"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

// harness runs commands against a fake Web API and an in-memory token store.
type harness struct {
	t      *testing.T
	api    *httptest.Server
	store  *store.Memory
	output *bytes.Buffer
	config *shared.Config
	runner *Runner

	mu       sync.Mutex
	requests []*url.URL
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, store: store.NewMemory(), output: &bytes.Buffer{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		h.record(r)
		json.NewEncoder(w).Encode(tu.SampleUser())
	})
	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		h.record(r)
		json.NewEncoder(w).Encode(tu.SampleResults())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		h.record(r)
		http.Error(w, `{"error":{"status":404,"message":"Service not found"}}`, http.StatusNotFound)
	})
	h.api = httptest.NewServer(mux)
	t.Cleanup(h.api.Close)

	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = "client"
	config.Credentials.Spotify.RedirectURI = "http://127.0.0.1/callback"
	config.API.BaseURL = h.api.URL + "/v1"
	config.API.RateLimit = 0
	config.Server.Port = 0
	config.Auth.LoginTimeout = 5
	h.config = config

	h.runner = NewRunner(RunnerOpts{
		Config:      config,
		ConfigPath:  filepath.Join(t.TempDir(), "config.toml"),
		HTTPClient:  h.api.Client(),
		Logger:      shared.NewLogger(io.Discard),
		Output:      h.output,
		Store:       h.store,
		OpenBrowser: func(string) error { return nil },
	})
	return h
}

func (h *harness) record(r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, r.URL)
}

func (h *harness) paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var paths []string
	for _, u := range h.requests {
		paths = append(paths, u.Path)
	}
	return paths
}

func (h *harness) lastQuery() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		return ""
	}
	return h.requests[len(h.requests)-1].RawQuery
}

// signIn persists a token that expires after lifetime.
func (h *harness) signIn(lifetime time.Duration) {
	ctx := context.Background()
	h.store.Set(ctx, session.KeyAccessToken, "tok-SECRET")
	h.store.Set(ctx, session.KeyExpiresAt, strconv.FormatInt(time.Now().Add(lifetime).Unix(), 10))
	h.store.Set(ctx, session.KeyTokenType, "Bearer")
}

func (h *harness) run(args ...string) error {
	app := &cli.Command{
		Name:     "spotsearch",
		Flags:    h.runner.flags(),
		Before:   h.runner.Before,
		Commands: h.runner.register(),
	}
	return app.Run(context.Background(), append([]string{"spotsearch"}, args...))
}

func TestSearch(t *testing.T) {
	t.Run("Not Signed In", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("search", "song"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if len(h.paths()) != 0 {
			t.Errorf("expected no API calls, got %v", h.paths())
		}
	})

	t.Run("Missing Query", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Text", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("search", "--limit", "5", "song one"); err != nil {
			t.Fatalf("search failed: %v", err)
		}

		if q := h.lastQuery(); q != "q=song%20one&type=track&limit=5" {
			t.Errorf("unexpected query string %q", q)
		}
		out := h.output.String()
		if !strings.Contains(out, "1. Song One - Artist A, Artist B (First Album) [3:05]") {
			t.Errorf("unexpected output: %s", out)
		}
		if strings.Contains(out, "tok-SECRET") {
			t.Error("token must not be printed")
		}
	})

	t.Run("Types And Format", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("search", "--type", "track,artist", "--format", "csv", "song"); err != nil {
			t.Fatalf("search failed: %v", err)
		}

		if q := h.lastQuery(); q != "q=song&type=track%2Cartist&limit=20" {
			t.Errorf("unexpected query string %q", q)
		}
		if !strings.HasPrefix(h.output.String(), "Type,ID,Name,Detail,Duration,URL,Preview") {
			t.Errorf("expected CSV output, got %s", h.output.String())
		}
	})

	t.Run("Unknown Format", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("search", "--format", "xml", "song"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Output File", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)
		path := filepath.Join(t.TempDir(), "results.md")

		if err := h.run("search", "--format", "md", "--output", path, "song"); err != nil {
			t.Fatalf("search failed: %v", err)
		}

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "# Search: song") {
			t.Errorf("unexpected file content: %s", content)
		}
		if !strings.Contains(h.output.String(), "Results saved to "+path) {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})

	t.Run("Expired Session", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(-time.Minute)

		if err := h.run("search", "song"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if len(h.paths()) != 0 {
			t.Errorf("expected no API calls, got %v", h.paths())
		}
		if h.store.Len() != 0 {
			t.Error("expected the expired token to be cleared")
		}
	})

	t.Run("Batch", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		dir := t.TempDir()
		batch := filepath.Join(dir, "queries.txt")
		if err := os.WriteFile(batch, []byte("song one\n\n# skipped\nartist a\n"), 0644); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(dir, "exports")

		if err := h.run("search", "--batch", batch, "--output", out, "--format", "json"); err != nil {
			t.Fatalf("batch search failed: %v", err)
		}

		searches := 0
		for _, p := range h.paths() {
			if p == "/v1/search" {
				searches++
			}
		}
		if searches != 2 {
			t.Errorf("expected 2 searches, got %v", h.paths())
		}
		tu.AssertFileExists(t, filepath.Join(out, "001_search_song-one.json"))
		tu.AssertFileExists(t, filepath.Join(out, "002_search_artist-a.json"))
		tu.AssertFileExists(t, filepath.Join(out, "manifest.json"))
		if !strings.Contains(h.output.String(), "2 of 2 searches succeeded") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})

	t.Run("Batch File Missing", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("search", "--batch", filepath.Join(t.TempDir(), "nope.txt")); err == nil {
			t.Error("expected error for missing batch file")
		}
	})

	t.Run("Batch File Empty", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)
		batch := filepath.Join(t.TempDir(), "queries.txt")
		os.WriteFile(batch, []byte("# nothing\n"), 0644)

		if err := h.run("search", "--batch", batch); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("Not Signed In", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Phase:   unauthenticated") || !strings.Contains(out, "Not signed in") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("Signed In", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if strings.Contains(h.output.String(), "tok-SECRET") {
			t.Error("token must not be printed")
		}

		var report StatusReport
		if err := json.Unmarshal(h.output.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !report.Authenticated || report.Phase != "authenticated" || report.UserID != "user-1" || report.Expired {
			t.Errorf("unexpected report %+v", report)
		}
	})
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.signIn(time.Hour)

	if err := h.run("logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if h.store.Len() != 0 {
		t.Error("expected token store to be cleared")
	}
	if !strings.Contains(h.output.String(), "Signed out") {
		t.Errorf("unexpected output: %s", h.output.String())
	}
}

func TestAPIGet(t *testing.T) {
	t.Run("Pretty JSON", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("api", "get", "/me"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if !strings.Contains(h.output.String(), `"id": "user-1"`) {
			t.Errorf("expected pretty JSON, got %s", h.output.String())
		}
	})

	t.Run("Compact JSON", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		if err := h.run("api", "get", "--json", "me"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if !strings.Contains(h.output.String(), `"id":"user-1"`) {
			t.Errorf("expected compact JSON, got %s", h.output.String())
		}
	})

	t.Run("Error Status", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)

		err := h.run("api", "get", "/nope")
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "status 404") {
			t.Errorf("expected API error, got %v", err)
		}
	})

	t.Run("Missing Path", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("api", "get"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

// fakeBrowser drives the popup flow the way the pages do: the popup follows /login, and the callback page
// posts the fragment with its window description.
func fakeBrowser(base string) error {
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(base + server.LoginRoute)
	if err != nil {
		return err
	}
	resp.Body.Close()

	authURL, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return err
	}
	state := authURL.Query().Get("state")
	if state == "" {
		return fmt.Errorf("no state in %s", authURL)
	}

	body, _ := json.Marshal(server.CaptureRequest{
		Fragment: "#access_token=tok-SECRET&token_type=Bearer&expires_in=3600&state=" + state,
		Window: server.WindowPayload{
			ID:            "spotsearch-login",
			URL:           base + server.CallbackRoute,
			HistoryLength: 2,
			Opener: &server.WindowPayload{
				ID:            "spotsearch-main",
				URL:           base + "/",
				AwaitingLogin: true,
			},
		},
	})

	resp, err = http.Post(base+server.CallbackRoute, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("capture failed with status %d", resp.StatusCode)
	}
	return nil
}

func TestLogin(t *testing.T) {
	t.Run("Popup Flow", func(t *testing.T) {
		h := newHarness(t)
		browser := make(chan error, 1)
		h.runner.openBrowser = func(base string) error {
			go func() { browser <- fakeBrowser(base) }()
			return nil
		}

		if err := h.run("login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if err := <-browser; err != nil {
			t.Fatalf("browser flow failed: %v", err)
		}

		if !strings.Contains(h.output.String(), "Signed in as Test User") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
		if v, ok, _ := h.store.Get(context.Background(), session.KeyAccessToken); !ok || v != "tok-SECRET" {
			t.Error("expected token to be persisted")
		}
		if paths := h.paths(); len(paths) != 1 || paths[0] != "/v1/me" {
			t.Errorf("expected a single profile fetch, got %v", paths)
		}
	})

	t.Run("Already Signed In", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Hour)
		h.runner.openBrowser = func(string) error {
			t.Error("browser should not be opened")
			return nil
		}

		if err := h.run("login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "Already signed in as Test User") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})

	t.Run("Browser Unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.config.Auth.LoginTimeout = 1
		h.runner.openBrowser = func(string) error { return errors.New("no display") }

		err := h.run("login")
		if !errors.Is(err, shared.ErrLoginTimeout) {
			t.Errorf("expected ErrLoginTimeout, got %v", err)
		}
		if !strings.Contains(h.output.String(), "Please open this URL") {
			t.Errorf("expected manual URL hint, got %s", h.output.String())
		}
	})
}

func TestSetup(t *testing.T) {
	tempDir := t.TempDir()
	originalDir := tu.MustGetwd(t)
	tu.MustChdir(t, tempDir)
	defer tu.MustChdir(t, originalDir)

	runner := NewRunner(RunnerOpts{
		ConfigPath: "config.toml",
		Logger:     shared.NewLogger(io.Discard),
		Output:     &bytes.Buffer{},
	})
	app := &cli.Command{
		Name:     "spotsearch",
		Flags:    runner.flags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), []string{"spotsearch", "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, "spotsearch.db")
	if !strings.Contains(runner.output.(*bytes.Buffer).String(), "Database ready") {
		t.Error("expected confirmation")
	}
}
