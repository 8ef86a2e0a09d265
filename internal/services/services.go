package services

import (
	"context"

	"github.com/desertthunder/spotsearch/internal/models"
	"golang.org/x/oauth2"
)

// Credentials is the session state the gateway consults before each request.
type Credentials interface {
	// HasExpired reports whether the current token has lapsed.
	HasExpired(ctx context.Context) bool
	// Invalidate discards the token everywhere it is held.
	Invalidate(ctx context.Context)
	// Token returns the current token, or nil when there is none.
	Token() *oauth2.Token
}

// Catalog defines the read operations the application performs against the music catalog.
type Catalog interface {
	// FetchCurrentUser retrieves the profile of the user owning the token.
	FetchCurrentUser(ctx context.Context) (*models.UserProfile, error)

	// Search queries the catalog. Empty types and a non-positive limit select the defaults.
	Search(ctx context.Context, query string, types []string, limit int) (*models.SearchResults, error)
}
