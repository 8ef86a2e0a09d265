// package formatter renders search results in various formats (plain text, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/spotsearch/internal/models"
	"github.com/desertthunder/spotsearch/internal/shared"
)

// Output formats.
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists the accepted format names.
var Formats = []string{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

var extensions = map[string]string{
	FormatText:     "txt",
	FormatCSV:      "csv",
	FormatMarkdown: "md",
	FormatJSON:     "json",
}

// ParseFormat normalizes a format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText, "txt":
		return FormatText, nil
	case "md", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidInput, s, strings.Join(Formats, ", "))
	}
}

// Row is one search hit flattened across item types.
type Row struct {
	Type     string
	ID       string
	Name     string
	Detail   string
	Duration string
	URL      string
	Preview  string
}

// Section is the hits of one item type.
type Section struct {
	Title string
	Total int
	Rows  []Row
}

// Sections flattens results into one section per returned type, in a fixed order.
func Sections(results *models.SearchResults) []Section {
	if results == nil {
		return nil
	}

	var sections []Section
	if p := results.Tracks; p != nil {
		s := Section{Title: "Tracks", Total: p.Total}
		for _, t := range p.Present() {
			detail := t.ArtistNames(", ")
			if t.Album.Name != "" {
				detail += " (" + t.Album.Name + ")"
			}
			s.Rows = append(s.Rows, Row{
				Type: "track", ID: t.ID, Name: t.Name, Detail: detail,
				Duration: t.Duration(), URL: t.ExternalURLs.Spotify, Preview: t.Preview(),
			})
		}
		sections = append(sections, s)
	}
	if p := results.Artists; p != nil {
		s := Section{Title: "Artists", Total: p.Total}
		for _, a := range p.Present() {
			s.Rows = append(s.Rows, Row{
				Type: "artist", ID: a.ID, Name: a.Name, Detail: strings.Join(a.Genres, ", "), URL: a.ExternalURLs.Spotify,
			})
		}
		sections = append(sections, s)
	}
	if p := results.Albums; p != nil {
		s := Section{Title: "Albums", Total: p.Total}
		for _, a := range p.Present() {
			names := make([]string, 0, len(a.Artists))
			for _, artist := range a.Artists {
				names = append(names, artist.Name)
			}
			s.Rows = append(s.Rows, Row{
				Type: "album", ID: a.ID, Name: a.Name, Detail: strings.Join(names, ", "), URL: a.ExternalURLs.Spotify,
			})
		}
		sections = append(sections, s)
	}
	if p := results.Playlists; p != nil {
		s := Section{Title: "Playlists", Total: p.Total}
		for _, pl := range p.Present() {
			s.Rows = append(s.Rows, Row{
				Type: "playlist", ID: pl.ID, Name: pl.Name,
				Detail: fmt.Sprintf("by %s, %d tracks", pl.Owner.DisplayName, pl.Tracks.Total), URL: pl.ExternalURLs.Spotify,
			})
		}
		sections = append(sections, s)
	}
	if p := results.Shows; p != nil {
		s := Section{Title: "Shows", Total: p.Total}
		for _, sh := range p.Present() {
			s.Rows = append(s.Rows, Row{Type: "show", ID: sh.ID, Name: sh.Name, Detail: sh.Publisher, URL: sh.ExternalURLs.Spotify})
		}
		sections = append(sections, s)
	}
	if p := results.Episodes; p != nil {
		s := Section{Title: "Episodes", Total: p.Total}
		for _, e := range p.Present() {
			secs := e.DurationMS / 1000
			s.Rows = append(s.Rows, Row{
				Type: "episode", ID: e.ID, Name: e.Name, Detail: e.ReleaseDate,
				Duration: fmt.Sprintf("%d:%02d", secs/60, secs%60), URL: e.ExternalURLs.Spotify,
			})
		}
		sections = append(sections, s)
	}
	return sections
}

// ExportToCSV converts results to CSV with columns: Type, ID, Name, Detail, Duration, URL, Preview
func ExportToCSV(results *models.SearchResults) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Type", "ID", "Name", "Detail", "Duration", "URL", "Preview"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, section := range Sections(results) {
		for _, row := range section.Rows {
			record := []string{row.Type, row.ID, row.Name, row.Detail, row.Duration, row.URL, row.Preview}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts results to Markdown, one heading per item type.
func ExportToMarkdown(results *models.SearchResults, query string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Search: %s\n", query))

	for _, section := range Sections(results) {
		buf.WriteString(fmt.Sprintf("\n## %s (%d of %d)\n\n", section.Title, len(section.Rows), section.Total))
		for i, row := range section.Rows {
			name := row.Name
			if row.URL != "" {
				name = fmt.Sprintf("[%s](%s)", row.Name, row.URL)
			}
			line := fmt.Sprintf("%d. %s", i+1, name)
			if row.Detail != "" {
				line += " - " + row.Detail
			}
			if row.Duration != "" {
				line += fmt.Sprintf(" [%s]", row.Duration)
			}
			if row.Preview != "" {
				line += fmt.Sprintf(" ([preview](%s))", row.Preview)
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts results to plain text
func ExportToText(results *models.SearchResults, query string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Search: %s\n", query))

	sections := Sections(results)
	if len(sections) == 0 {
		buf.WriteString("No results.\n")
	}

	for _, section := range sections {
		buf.WriteString(fmt.Sprintf("\n%s: %d\n", section.Title, section.Total))
		for i, row := range section.Rows {
			line := fmt.Sprintf("%d. %s", i+1, row.Name)
			if row.Detail != "" {
				line += " - " + row.Detail
			}
			if row.Duration != "" {
				line += " [" + row.Duration + "]"
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts results to indented JSON in the API's own shape.
func ExportToJSON(results *models.SearchResults) ([]byte, error) {
	if results == nil {
		results = &models.SearchResults{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts results to the given format.
func Render(results *models.SearchResults, query, format string) ([]byte, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return ExportToCSV(results)
	case FormatMarkdown:
		return ExportToMarkdown(results, query)
	case FormatJSON:
		return ExportToJSON(results)
	default:
		return ExportToText(results, query)
	}
}

// Write renders results in format to w.
func Write(w io.Writer, results *models.SearchResults, query, format string) error {
	data, err := Render(results, query, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteExport renders results in format to a file, defaulting to [Filename] in the working directory.
func WriteExport(results *models.SearchResults, query, format, filepath string) (string, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return "", err
	}

	if filepath == "" {
		filepath = Filename(query, format)
	}

	data, err := Render(results, query, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return filepath, nil
}

// Filename is the default export file name for query: search_{query}.{ext}, with the query reduced to a
// filesystem-safe slug. An unknown format gets the text extension.
func Filename(query, format string) string {
	ext, ok := extensions[format]
	if !ok {
		ext = extensions[FormatText]
	}
	return fmt.Sprintf("search_%s.%s", slug(query), ext)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "results"
	}
	return out
}
