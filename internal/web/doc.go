// Package web serves the browser front end: a home page with a popup login, a dashboard showing the
// signed-in profile, and track search.
//
// # Routes
//
//	GET  /           welcome and logout when signed in, otherwise a button that opens the login popup
//	GET  /session    JSON session status the home page polls while the popup is open
//	GET  /dashboard  profile of the signed-in user (requires a session)
//	GET  /search     search form and track results (requires a session)
//
// The auth routes (/login, /callback, /logout) come from the server package. Requests to gated pages
// without an authenticated session are redirected to "/".
//
// # Popup handshake
//
// The home page names its window [MainWindowName] and sets window.spotsearchAwaitingLogin before opening
// /login in a window named [PopupWindowName]. The callback page in the popup reports both to the server,
// which is what the trusted-popup check inspects. Once the popup has handed over the token, the home page
// sees an authenticated session on its next poll and moves to the dashboard.
//
// Pages are html/template files embedded from templates/.
package web
