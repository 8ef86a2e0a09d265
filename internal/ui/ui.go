package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotsearch/internal/formatter"
	"github.com/desertthunder/spotsearch/internal/models"
	"github.com/desertthunder/spotsearch/internal/services"
	"github.com/desertthunder/spotsearch/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SearchView ViewState = iota
	ResultsView
	DetailView
)

// Types are the item types the search view cycles through, default first.
var Types = []string{"track", "artist", "album", "playlist", "show", "episode"}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	catalog services.Catalog
	limit   int
	width   int
	height  int
	user    *models.UserProfile
	input   textinput.Model
	kind    int
	query   string
	loading bool
	list    list.Model
	listed  bool
	total   int
	detail  *formatter.Row
	err     error
	fatal   bool
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model searching catalog, limit items per search.
func NewModel(ctx context.Context, catalog services.Catalog, limit int) *Model {
	input := textinput.New()
	input.Placeholder = "Artist, track, album…"
	input.Prompt = "› "
	input.CharLimit = 200
	input.Focus()

	return &Model{
		ctx:     ctx,
		view:    SearchView,
		catalog: catalog,
		limit:   limit,
		input:   input,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Err returns the error that ended the program, if any.
func (m *Model) Err() error {
	if m.fatal {
		return m.err
	}
	return nil
}

// Init fetches the profile for the header and starts the cursor blinking.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchProfile(), textinput.Blink)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-10, 10)
		if m.listed {
			m.list.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.force) {
			return m, tea.Quit
		}
		switch m.view {
		case SearchView:
			return m.handleSearchKeys(msg)
		case ResultsView:
			return m.handleResultsKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProfileFetched:
		data := msg.data.(profileFetched)
		if data.err != nil {
			if sessionLost(data.err) {
				return m.fail(data.err)
			}
			return m, nil
		}
		m.user = data.user
		return m, nil

	case MsgSearchCompleted:
		data := msg.data.(searchCompleted)
		if data.query != m.query {
			return m, nil
		}
		m.loading = false
		if data.err != nil {
			return m.fail(data.err)
		}

		sections := formatter.Sections(data.results)
		m.total = 0
		for _, s := range sections {
			m.total += s.Total
		}

		items := resultItems(sections)
		m.list = list.New(items, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-8, 0))
		m.list.Title = fmt.Sprintf("%d of %d results for %q", len(items), m.total, data.query)
		m.listed = true
		m.err = nil
		m.view = ResultsView
		m.input.Blur()
		return m, nil
	}
	return m, nil
}

// fail records err. A lost session ends the program; anything else is shown and the user may retry.
func (m *Model) fail(err error) (tea.Model, tea.Cmd) {
	m.err = err
	if sessionLost(err) {
		m.fatal = true
		return m, tea.Quit
	}
	return m, nil
}

func sessionLost(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrNotAuthenticated)
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.search):
		query := strings.TrimSpace(m.input.Value())
		if query == "" || m.loading {
			return m, nil
		}
		m.query = query
		m.loading = true
		m.err = nil
		return m, m.search(query, Types[m.kind])
	case key.Matches(msg, m.keys.kind):
		m.kind = (m.kind + 1) % len(Types)
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.listed {
			m.view = ResultsView
			m.input.Blur()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		if m.list.FilterState() == list.FilterApplied {
			m.list.ResetFilter()
			return m, nil
		}
		m.view = SearchView
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.list.SelectedItem().(resultItem); ok {
			row := item.row
			m.detail = &row
			m.view = DetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.detail = nil
		m.view = ResultsView
	}
	return m, nil
}

func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SearchView:
		m.input, cmd = m.input.Update(msg)
	case ResultsView:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchProfile() tea.Cmd {
	return func() tea.Msg {
		user, err := m.catalog.FetchCurrentUser(m.ctx)
		return profileFetchedMsg(user, err)
	}
}

func (m *Model) search(query, kind string) tea.Cmd {
	return func() tea.Msg {
		results, err := m.catalog.Search(m.ctx, query, []string{kind}, m.limit)
		return searchCompletedMsg(query, results, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.fatal {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nRun login to start a new session.", m.err))
	}

	switch m.view {
	case SearchView:
		return m.renderSearch()
	case ResultsView:
		return m.renderResults()
	case DetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

func (m *Model) header() string {
	title := "spotsearch"
	if m.user != nil {
		title = fmt.Sprintf("spotsearch • %s", m.user.Name())
	}
	return styles.title.Render(title)
}

func (m *Model) renderSearch() string {
	kinds := make([]string, len(Types))
	for i, t := range Types {
		if i == m.kind {
			kinds[i] = styles.ok.Render(t)
		} else {
			kinds[i] = styles.help.Render(t)
		}
	}

	var status string
	switch {
	case m.loading:
		status = styles.help.Render(fmt.Sprintf("Searching for %q…", m.query))
	case m.err != nil:
		status = styles.warn.Render(fmt.Sprintf("Search failed: %v", m.err))
	}

	helpKeys := []key.Binding{m.keys.search, m.keys.kind, m.keys.force}
	if m.listed {
		helpKeys = append(helpKeys, m.keys.back)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s\n\n%s", m.header(), m.input.View(), strings.Join(kinds, "  "), status, helpView)
}

func (m *Model) renderResults() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", m.header(), m.list.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	row := m.detail

	var b strings.Builder
	b.WriteString(styles.title.Render(row.Name))
	b.WriteString(fmt.Sprintf("\nType: %s\nID: %s\n", row.Type, row.ID))
	if row.Detail != "" {
		b.WriteString(fmt.Sprintf("Detail: %s\n", row.Detail))
	}
	if row.Duration != "" {
		b.WriteString(fmt.Sprintf("Length: %s\n", row.Duration))
	}
	if row.URL != "" {
		b.WriteString(fmt.Sprintf("Open: %s\n", row.URL))
	}
	if row.Preview != "" {
		b.WriteString(fmt.Sprintf("Preview: %s\n", row.Preview))
	} else if row.Type == "track" {
		b.WriteString(styles.help.Render("No preview available") + "\n")
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", m.header(), b.String(), m.help.ShortHelpView(helpKeys))
}
