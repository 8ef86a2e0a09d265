package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotsearch/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProfileFetched MsgKind = iota
	MsgSearchCompleted
)

type profileFetched struct {
	user *models.UserProfile
	err  error
}

type searchCompleted struct {
	query   string
	results *models.SearchResults
	err     error
}

// profileFetchedMsg is the constructor for [MsgProfileFetched]
func profileFetchedMsg(user *models.UserProfile, err error) Msg {
	return Msg{kind: MsgProfileFetched, data: profileFetched{user, err}}
}

// searchCompletedMsg is the constructor for [MsgSearchCompleted]
func searchCompletedMsg(query string, results *models.SearchResults, err error) Msg {
	return Msg{kind: MsgSearchCompleted, data: searchCompleted{query, results, err}}
}
