// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/spotsearch/internal/models"
)

// ErrStoreUnavailable is returned by [FailingStore] operations configured to fail.
var ErrStoreUnavailable = errors.New("store unavailable")

// FailingStore is an in-memory key-value store whose operations can be made to fail individually.
type FailingStore struct {
	mu         sync.Mutex
	values     map[string]string
	FailGet    bool
	FailSet    bool
	FailDelete bool
	// FailSetKey fails Set only for this key when non-empty.
	FailSetKey string
	Deletes    int
}

func NewFailingStore() *FailingStore {
	return &FailingStore{values: make(map[string]string)}
}

func (f *FailingStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailGet {
		return "", false, ErrStoreUnavailable
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FailingStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSet || (f.FailSetKey != "" && f.FailSetKey == key) {
		return ErrStoreUnavailable
	}
	f.values[key] = value
	return nil
}

func (f *FailingStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes++
	if f.FailDelete {
		return ErrStoreUnavailable
	}
	delete(f.values, key)
	return nil
}

// Value returns the stored value for key without going through the failure switches.
func (f *FailingStore) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// MockCatalog is a test double for the catalog API.
type MockCatalog struct {
	mu       sync.Mutex
	User     *models.UserProfile
	Results  *models.SearchResults
	Err      error
	Queries  []string
	Profiles int
}

func (m *MockCatalog) FetchCurrentUser(ctx context.Context) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profiles++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.User, nil
}

func (m *MockCatalog) Search(ctx context.Context, query string, types []string, limit int) (*models.SearchResults, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Results == nil {
		return &models.SearchResults{}, nil
	}
	return m.Results, nil
}

// SampleUser returns a minimal valid profile.
func SampleUser() *models.UserProfile {
	return &models.UserProfile{ID: "user-1", DisplayName: "Test User", Email: "test@example.com"}
}

// SampleResults returns search results holding two tracks, one with a preview.
func SampleResults() *models.SearchResults {
	preview := "https://p.scdn.co/mp3-preview/abc"
	return &models.SearchResults{
		Tracks: &models.Paging[models.Track]{
			Total: 2,
			Items: []*models.Track{
				{
					ID:           "t1",
					Name:         "Song One",
					DurationMS:   185000,
					PreviewURL:   &preview,
					Artists:      []models.Artist{{ID: "a1", Name: "Artist A"}, {ID: "a2", Name: "Artist B"}},
					Album:        models.Album{ID: "al1", Name: "First Album"},
					ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/track/t1"},
				},
				{
					ID:           "t2",
					Name:         "Song, Two",
					DurationMS:   61000,
					Artists:      []models.Artist{{ID: "a3", Name: "Artist C"}},
					Album:        models.Album{ID: "al2", Name: "Second Album"},
					ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/track/t2"},
				},
			},
		},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
