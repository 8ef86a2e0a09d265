package models

import (
	"fmt"
	"strings"
)

// Image is an artwork resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ExternalURLs holds links to the item on open.spotify.com.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

type followers struct {
	Total int `json:"total"`
}

// UserProfile is the authenticated user.
type UserProfile struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email,omitempty"`
	Country      string       `json:"country,omitempty"`
	Product      string       `json:"product,omitempty"` // premium, free, etc.
	Followers    followers    `json:"followers"`
	Images       []Image      `json:"images,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Validate checks the fields the session relies on.
func (u *UserProfile) Validate() error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("user profile is missing an id")
	}
	return nil
}

// Name returns the display name, falling back to the user id.
func (u *UserProfile) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// Artist is a simplified artist object.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Href         string       `json:"href"`
	Genres       []string     `json:"genres,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Album is a simplified album object.
type Album struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Href         string       `json:"href"`
	Artists      []Artist     `json:"artists"`
	ReleaseDate  string       `json:"release_date"`
	TotalTracks  int          `json:"total_tracks"`
	Images       []Image      `json:"images,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Track is a full track object as returned by search.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Href         string       `json:"href"`
	Artists      []Artist     `json:"artists"`
	Album        Album        `json:"album"`
	DurationMS   int          `json:"duration_ms"`
	Explicit     bool         `json:"explicit"`
	PreviewURL   *string      `json:"preview_url"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// ArtistNames joins the track's artist names with sep.
func (t Track) ArtistNames(sep string) string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, sep)
}

// Preview returns the 30 second preview URL, or "" when Spotify has none.
func (t Track) Preview() string {
	if t.PreviewURL == nil {
		return ""
	}
	return *t.PreviewURL
}

// Duration formats the track length as m:ss.
func (t Track) Duration() string {
	secs := t.DurationMS / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SimplePlaylist is a simplified playlist object.
type SimplePlaylist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Href         string         `json:"href"`
	Description  string         `json:"description"`
	Owner        owner          `json:"owner"`
	Public       bool           `json:"public"`
	Tracks       playlistTracks `json:"tracks"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
	URI          string         `json:"uri"`
}

// Show is a simplified podcast show object.
type Show struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Href         string       `json:"href"`
	Publisher    string       `json:"publisher"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Episode is a simplified podcast episode object.
type Episode struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Href         string       `json:"href"`
	ReleaseDate  string       `json:"release_date"`
	DurationMS   int          `json:"duration_ms"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Paging is Spotify's paging envelope. Items may contain nulls for unavailable entries,
// so item types are decoded through pointers and [Paging.Present] filters them.
type Paging[T any] struct {
	Href     string  `json:"href"`
	Items    []*T    `json:"items"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Total    int     `json:"total"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// Present returns the non-null items.
func (p *Paging[T]) Present() []T {
	if p == nil {
		return nil
	}
	items := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}

// SearchResults holds one page per requested type; types not requested are nil.
type SearchResults struct {
	Tracks    *Paging[Track]          `json:"tracks,omitempty"`
	Artists   *Paging[Artist]         `json:"artists,omitempty"`
	Albums    *Paging[Album]          `json:"albums,omitempty"`
	Playlists *Paging[SimplePlaylist] `json:"playlists,omitempty"`
	Shows     *Paging[Show]           `json:"shows,omitempty"`
	Episodes  *Paging[Episode]        `json:"episodes,omitempty"`
}

// TrackItems returns the non-null tracks, or nil when tracks were not requested.
func (r *SearchResults) TrackItems() []Track {
	if r == nil {
		return nil
	}
	return r.Tracks.Present()
}
