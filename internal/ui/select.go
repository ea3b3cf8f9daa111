package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// ErrSelectionCancelled is returned when the user aborts a selection.
var ErrSelectionCancelled = docerrors.New(docerrors.ErrCodeInvalidInput, "selection cancelled", nil)

// SelectModel is a bubbletea multi-select list. Space toggles, "a" toggles
// all, enter confirms, q or esc cancels.
type SelectModel struct {
	title     string
	items     []string
	selected  map[int]bool
	cursor    int
	styles    Styles
	confirmed bool
	cancelled bool
}

// NewSelectModel returns a model over items with nothing selected.
func NewSelectModel(title string, items []string, styles Styles) *SelectModel {
	return &SelectModel{
		title:    title,
		items:    items,
		selected: make(map[int]bool),
		styles:   styles,
	}
}

// Init implements tea.Model.
func (m *SelectModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ", "x":
		if len(m.items) > 0 {
			m.selected[m.cursor] = !m.selected[m.cursor]
		}
	case "a":
		all := len(m.Selected()) == len(m.items)
		for i := range m.items {
			m.selected[i] = !all
		}
	case "enter":
		m.confirmed = true
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *SelectModel) View() string {
	if m.confirmed || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(m.title) + "\n")
	for i, item := range m.items {
		cursor := "  "
		if i == m.cursor {
			cursor = m.styles.Active.Render("> ")
		}
		box := "[ ]"
		if m.selected[i] {
			box = m.styles.Success.Render("[x]")
		}
		fmt.Fprintf(&b, "%s%s %d. %s\n", cursor, box, i+1, item)
	}
	b.WriteString(m.styles.Dim.Render("space: toggle  a: all  enter: confirm  q: cancel") + "\n")
	return b.String()
}

// Selected returns the selected items in list order.
func (m *SelectModel) Selected() []string {
	var out []string
	for i, item := range m.items {
		if m.selected[i] {
			out = append(out, item)
		}
	}
	return out
}

// Cancelled reports whether the user aborted.
func (m *SelectModel) Cancelled() bool { return m.cancelled }

// SelectItems runs the multi-select on the terminal and returns the chosen
// items.
func SelectItems(title string, items []string, noColor bool) ([]string, error) {
	model := NewSelectModel(title, items, GetStyles(noColor))
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}
	m := final.(*SelectModel)
	if m.Cancelled() {
		return nil, ErrSelectionCancelled
	}
	return m.Selected(), nil
}
