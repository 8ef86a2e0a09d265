// Package services implements the authenticated request gateway to the Spotify Web API.
//
// # Gateway
//
// Every request goes through [SpotifyService.Call], which consults the session [Credentials] first:
//   - an expired token invalidates the session and fails with [shared.ErrTokenExpired] without sending anything
//   - a missing token fails with [shared.ErrNotAuthenticated]
//   - otherwise the request carries "Authorization: Bearer <token>" via [oauth2.Token.SetAuthHeader]
//
// Outbound requests are throttled by a token bucket (golang.org/x/time/rate) sized by api.rate_limit.
// Nothing is retried.
//
// # Errors
//
// Transport failures, non-2xx responses and undecodable bodies are returned as [*shared.RemoteAPIError],
// which matches [shared.ErrAPIRequest] under errors.Is and carries the status code and response body.
//
// # Catalog
//
// [Catalog] is the narrow surface the web app, TUI and CLI depend on: the current user's profile and search.
// Responses decode into the typed records of the models package.
//
// # Query strings
//
// [BuildQueryString] renders ordered parameters the way browsers' encodeURIComponent does: spaces
// become %20, nil values are dropped and slice values repeat their key.
package services
