// Package session manages the lifecycle of the Spotify access token.
//
// # Flow
//
// The [Manager] plays the part of the opener: [Manager.InitiateLogin] registers a one-shot handshake and
// produces the authorization URL for the implicit grant (response_type=token). The provider redirects the popup
// back with the token in the URL fragment. The popup page posts that fragment to the application, which checks
// [Manager.IsRedirectFromTrustedPopup] and then calls [Manager.CaptureRedirectedToken]. Capture writes the token
// to the persistent [Store] first and only then delivers a [TokenMessage] over the handshake. The opener side
// receives the message, hydrates the in-memory session and loads the user profile.
//
// A login that receives no message within the configured timeout is cancelled and its registration dropped.
//
// # State
//
// The in-memory [Session] and the persistent [Store] are kept consistent: invalidation clears both,
// a successful capture writes both. Observable phases are [Unknown], [Unauthenticated], [PendingProfile]
// and [Authenticated]. [HasExpired], [IsAuthenticated] and [IsTrustedPopup] are pure functions over explicit
// values; the Manager methods of the same names supply the current values.
//
// # Persistent keys
//
//	SPOTIFY_ACCESS_TOKEN            bearer token
//	SPOTIFY_TOKEN_EXPIRE_TIMESTAMP  seconds since epoch, decimal
//	SPOTIFY_TOKEN_TYPE              token scheme
package session
