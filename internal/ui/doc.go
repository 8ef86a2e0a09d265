// Package ui implements an interactive catalog search using bubbletea's Elm architecture.
//
// The TUI moves between three views:
//  1. [SearchView] : Type a query and cycle the item type with tab
//  2. [ResultsView] : Browse and filter the hits of the last search
//  3. [DetailView] : Inspect one hit, with its links
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Catalog calls run as [tea.Cmd]s so the UI never blocks on the network.
// An expired session ends the program with [shared.ErrTokenExpired] as the model's error.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
