package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotsearch/internal/formatter"
)

var _ list.Item = resultItem{}

// resultItem wraps [formatter.Row] to implement [list.Item].
type resultItem struct {
	row formatter.Row
}

func (i resultItem) FilterValue() string { return i.row.Name + " " + i.row.Detail }
func (i resultItem) Title() string       { return i.row.Name }
func (i resultItem) Description() string {
	desc := i.row.Type
	if i.row.Detail != "" {
		desc += " • " + i.row.Detail
	}
	if i.row.Duration != "" {
		desc += " • " + i.row.Duration
	}
	return desc
}

func resultItems(sections []formatter.Section) []list.Item {
	var items []list.Item
	for _, section := range sections {
		for _, row := range section.Rows {
			items = append(items, resultItem{row: row})
		}
	}
	return items
}
