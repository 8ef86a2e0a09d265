// Spotify Web API implementation of [Catalog]
//
// Response types live in the models package, based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsearch/internal/models"
	"github.com/desertthunder/spotsearch/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// DefaultSearchTypes are searched when no type is given.
var DefaultSearchTypes = []string{"album", "artist", "playlist", "track", "show", "episode"}

// DefaultSearchLimit is the page size used when no limit is given.
const DefaultSearchLimit = 20

// SpotifyService is the authenticated request gateway. It implements [Catalog].
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyService creates a gateway that authenticates requests with creds.
//
// An empty base URL selects the public API, a nil client [http.DefaultClient]. A non-positive rate limit
// disables throttling.
func NewSpotifyService(creds Credentials, config shared.APIConfig, client *http.Client, logger *log.Logger) *SpotifyService {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit)))
	}

	return &SpotifyService{
		baseURL:    baseURL,
		httpClient: client,
		creds:      creds,
		limiter:    limiter,
		logger:     shared.WithLogger(logger, "component", "gateway"),
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// send performs an authenticated request and returns the response with its body fully read.
func (s *SpotifyService) send(ctx context.Context, method, path string) (*http.Response, []byte, error) {
	if s.creds.HasExpired(ctx) {
		s.creds.Invalidate(ctx)
		return nil, nil, shared.ErrTokenExpired
	}

	token := s.creds.Token()
	if token == nil {
		return nil, nil, shared.ErrNotAuthenticated
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, nil, &shared.RemoteAPIError{Method: method, Path: path, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return nil, nil, &shared.RemoteAPIError{Method: method, Path: path, Err: err}
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, &shared.RemoteAPIError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, &shared.RemoteAPIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response: %w", err),
		}
	}

	s.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)
	return resp, body, nil
}

// Call sends an authenticated request to path and decodes the JSON response into result.
//
// An expired session is invalidated and reported as [shared.ErrTokenExpired] without a request being made.
// A nil result discards the body.
func (s *SpotifyService) Call(ctx context.Context, path, method string, result any) error {
	resp, body, err := s.send(ctx, method, path)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.RemoteAPIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: body}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return &shared.RemoteAPIError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       body,
				Err:        fmt.Errorf("failed to decode response: %w", err),
			}
		}
	}
	return nil
}

// FetchCurrentUser retrieves the current user's profile from /me.
func (s *SpotifyService) FetchCurrentUser(ctx context.Context) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := s.Call(ctx, "/me", http.MethodGet, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Search queries /search for query across types, returning up to limit items per type.
func (s *SpotifyService) Search(ctx context.Context, query string, types []string, limit int) (*models.SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is empty", shared.ErrInvalidInput)
	}
	if len(types) == 0 {
		types = DefaultSearchTypes
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	qs := BuildQueryString([]Param{
		{Key: "q", Value: query},
		{Key: "type", Value: strings.Join(types, ",")},
		{Key: "limit", Value: limit},
	})

	var results models.SearchResults
	if err := s.Call(ctx, "/search?"+qs, http.MethodGet, &results); err != nil {
		return nil, err
	}
	return &results, nil
}
