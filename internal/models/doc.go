// Package models defines the typed records decoded from the Spotify Web API.
//
// Only the fields the application reads are declared; everything else in a response is dropped at the
// decoding boundary.
//
//   - [UserProfile] : the current user, returned by GET /me
//   - [SearchResults] : one [Paging] per requested item type, returned by GET /search
//   - [Track], [Artist], [Album], [SimplePlaylist], [Show], [Episode] : search result items
//
// The JSON field names follow https://developer.spotify.com/documentation/web-api/reference/
package models
