// Package server provides HTTP routing, middleware, and the popup login handlers for the web app.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /dashboard").
//
// # Popup Login
//
// [AuthHandler] serves three routes:
//
//	GET  /login     starts a login and redirects the popup to the authorization page
//	GET  /callback  page that reads location.hash in the browser and posts it back
//	POST /callback  checks the posting window is a trusted popup, then captures the token
//	POST /logout    ends the session
//
// The token travels in the URL fragment, which browsers never send to the server, so the callback page
// posts it along with descriptions of itself and its opener. An untrusted post is told to navigate to "/".
// A successful capture closes the popup; a failed one leaves it open showing the error.
//
// # Middleware
//
//   - [RequestLogger] assigns a uuid request id and logs each request (path only)
//   - [Recoverer] converts panics to 500s
//   - [RequireSession] redirects unauthenticated requests
//
// # Lifecycle
//
// [Listen] binds before returning so callers can open a browser immediately; [Server.Run] serves until the
// context is cancelled and then shuts down gracefully.
package server
