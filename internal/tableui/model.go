// Package tableui renders a table.Table in the terminal as a bubbletea
// component: header with sort markers, filter bar, search box, rows with a
// cursor, and a pagination footer.
package tableui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"stockscope/internal/table"
)

const (
	maxColWidth = 28
	colGap      = "  "
	skeletonBar = "░░░░░░"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sortedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	focusColStyle  = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("15"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	skeletonStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	actionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	filterStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	focusFltStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14"))
	cursorBG       = lipgloss.Color("236")
)

// Model is the bubbletea component. The wrapped Table is shared by copies of
// the Model, so only the copy returned from Update should be kept.
type Model[R any] struct {
	Title string

	table     *table.Table[R]
	keys      KeyMap
	help      help.Model
	search    textinput.Model
	searching bool

	cursor    int
	sortKey   string
	filterIdx int
	width     int
}

// New wraps t.
func New[R any](t *table.Table[R]) Model[R] {
	ti := textinput.New()
	ti.Prompt = "Search: "
	ti.Placeholder = "type and press enter"
	ti.CharLimit = 64
	ti.Width = 32
	return Model[R]{
		table:  t,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		search: ti,
		width:  80,
	}
}

// Table returns the wrapped controller.
func (m Model[R]) Table() *table.Table[R] { return m.table }

// Keys returns the bindings in use.
func (m Model[R]) Keys() KeyMap { return m.keys }

// Searching reports whether the search box has focus. Parents should not
// interpret keys while it does.
func (m Model[R]) Searching() bool { return m.searching }

// Cursor returns the cursor's index among the rendered rows.
func (m Model[R]) Cursor() int { return m.cursor }

// CursorRow returns the row under the cursor. Skeleton rows do not count.
func (m Model[R]) CursorRow() (table.Row, bool) {
	rows := m.table.View().Rows
	if m.cursor < 0 || m.cursor >= len(rows) || rows[m.cursor].Skeleton {
		return table.Row{}, false
	}
	return rows[m.cursor], true
}

// FocusedFilter returns the key of the filter that "f" cycles.
func (m Model[R]) FocusedFilter() string {
	fs := m.table.Filters()
	if len(fs) == 0 {
		return ""
	}
	return fs[m.filterIdx%len(fs)].Key
}

func (m Model[R]) Init() tea.Cmd { return nil }

// Update handles keys and window resizes.
func (m Model[R]) Update(msg tea.Msg) (Model[R], tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model[R]) updateSearch(msg tea.KeyMsg) (Model[R], tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.table.Search(m.search.Value())
		m.cursor = 0
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue(m.table.SearchText())
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model[R]) handleKey(msg tea.KeyMsg) (Model[R], tea.Cmd) {
	t := m.table
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor--
	case key.Matches(msg, m.keys.Down):
		m.cursor++
	case key.Matches(msg, m.keys.SortNext):
		m.cycleSort(1)
	case key.Matches(msg, m.keys.SortPrev):
		m.cycleSort(-1)
	case key.Matches(msg, m.keys.Resort):
		if m.sortKey != "" {
			t.SortBy(m.sortKey)
		}
	case key.Matches(msg, m.keys.Search):
		if t.View().ShowSearch {
			m.searching = true
			cmd := m.search.Focus()
			return m, cmd
		}
	case key.Matches(msg, m.keys.CycleFilter):
		m.cycleFilterValue()
	case key.Matches(msg, m.keys.NextFilter):
		if n := len(t.Filters()); n > 0 {
			m.filterIdx = (m.filterIdx + 1) % n
		}
	case key.Matches(msg, m.keys.Submit):
		if t.SubmitFilters() {
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.Reset):
		t.ResetFilters()
		m.search.SetValue("")
		m.cursor = 0
	case key.Matches(msg, m.keys.PrevPage):
		if t.PrevPage() {
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.NextPage):
		if t.NextPage() {
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.Bigger):
		m.stepPageSize(1)
	case key.Matches(msg, m.keys.Smaller):
		m.stepPageSize(-1)
	case key.Matches(msg, m.keys.Select):
		if row, ok := m.CursorRow(); ok {
			t.ToggleSelected(row.ID)
		}
	case key.Matches(msg, m.keys.Action):
		if row, ok := m.CursorRow(); ok {
			for _, c := range t.Columns() {
				if c.IsAction() {
					t.InvokeAction(c.Key, row.Pos)
					break
				}
			}
		}
	case key.Matches(msg, m.keys.Toggle):
		n := int(msg.String()[0] - '1')
		if cols := t.Columns(); n < len(cols) {
			t.ToggleColumn(cols[n].Key)
		}
	}
	m.clampCursor()
	return m, nil
}

// cycleSort moves the sort to the next (or previous) sortable visible column.
func (m *Model[R]) cycleSort(step int) {
	var keys []string
	for _, h := range m.table.View().Headers {
		if h.Sortable {
			keys = append(keys, h.Key)
		}
	}
	if len(keys) == 0 {
		return
	}
	i := slices.Index(keys, m.sortKey)
	switch {
	case i < 0 && step > 0:
		i = 0
	case i < 0:
		i = len(keys) - 1
	default:
		i = (i + step + len(keys)) % len(keys)
	}
	m.sortKey = keys[i]
	m.table.ClearSort()
	m.table.SortBy(m.sortKey)
}

// cycleFilterValue stages the next enabled option of the focused filter,
// wrapping through "no selection".
func (m *Model[R]) cycleFilterValue() {
	fs := m.table.Filters()
	if len(fs) == 0 {
		return
	}
	f := fs[m.filterIdx%len(fs)]
	values := []string{""}
	for _, o := range f.Options {
		if !o.Disabled {
			values = append(values, o.Value)
		}
	}
	cur := slices.Index(values, m.table.StagedFilters()[f.Key])
	m.table.SelectFilter(f.Key, values[(cur+1)%len(values)])
}

func (m *Model[R]) stepPageSize(step int) {
	sizes := m.table.PageSizes()
	i := slices.Index(sizes, m.table.PageSize()) + step
	if i < 0 || i >= len(sizes) {
		return
	}
	if m.table.SetPageSize(sizes[i]) {
		m.cursor = 0
	}
}

func (m *Model[R]) clampCursor() {
	n := len(m.table.View().Rows)
	m.cursor = max(0, min(m.cursor, n-1))
}

// View renders the component.
func (m Model[R]) View() string {
	v := m.table.View()
	var b strings.Builder

	if m.Title != "" {
		b.WriteString(titleStyle.Render(fit(" "+m.Title, m.width)))
		b.WriteByte('\n')
	}
	if v.ShowSearch {
		b.WriteString(m.search.View())
		b.WriteByte('\n')
	}
	if bar := m.filterBar(v); bar != "" {
		b.WriteString(bar)
		b.WriteByte('\n')
	}

	widths := columnWidths(v)
	b.WriteString(m.headerLine(v, widths))
	b.WriteByte('\n')

	if v.Empty {
		b.WriteString(dimStyle.Render("  No results."))
		b.WriteByte('\n')
	}
	for i, row := range v.Rows {
		b.WriteString(renderRow(row, widths, !v.Fetching && i == m.cursor))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(footer(v.Pagination))
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model[R]) filterBar(v table.View) string {
	if len(v.Filters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v.Filters)+1)
	focused := m.FocusedFilter()
	for _, f := range v.Filters {
		sel := "All"
		for _, o := range f.Options {
			if o.Value == f.Selected {
				sel = optionLabel(o)
			}
		}
		text := fmt.Sprintf(" %s: %s ", f.Label, sel)
		if f.Key == focused {
			parts = append(parts, focusFltStyle.Render(text))
		} else {
			parts = append(parts, filterStyle.Render(text))
		}
	}
	if v.FilterActions {
		parts = append(parts, dimStyle.Render("S submit · R reset"))
	}
	if q := m.table.AppliedQuery(); q != "" {
		parts = append(parts, dimStyle.Render("applied: "+q))
	}
	return strings.Join(parts, " ")
}

func optionLabel(o table.Option) string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

func headerText(h table.Header) string {
	if !h.Sorted {
		return h.Label
	}
	if h.Direction == table.Descending {
		return h.Label + " ▼"
	}
	return h.Label + " ▲"
}

func columnWidths(v table.View) []int {
	widths := make([]int, len(v.Headers))
	for i, h := range v.Headers {
		widths[i] = max(3, lipgloss.Width(h.Label)+2)
	}
	for _, row := range v.Rows {
		for i, c := range row.Cells {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(c.Text))
			}
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColWidth)
	}
	return widths
}

func (m Model[R]) headerLine(v table.View, widths []int) string {
	cells := make([]string, len(v.Headers))
	for i, h := range v.Headers {
		text := fit(headerText(h), widths[i])
		switch {
		case h.Key == m.sortKey:
			cells[i] = focusColStyle.Render(text)
		case h.Sorted:
			cells[i] = sortedStyle.Render(text)
		default:
			cells[i] = colHeaderStyle.Render(text)
		}
	}
	return "    " + strings.Join(cells, colGap)
}

func renderRow(row table.Row, widths []int, cursor bool) string {
	gutter := "    "
	switch {
	case cursor && row.Selected:
		gutter = " › ●"
	case cursor:
		gutter = " ›  "
	case row.Selected:
		gutter = "   ●"
	}

	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		switch {
		case row.Skeleton:
			cells[i] = skeletonStyle.Render(fit(skeletonBar, w))
		case c.Action:
			cells[i] = actionStyle.Render(fit(c.Text, w))
		default:
			cells[i] = fit(c.Text, w)
		}
	}
	line := gutter + strings.Join(cells, colGap)
	if cursor {
		return lipgloss.NewStyle().Background(cursorBG).Render(line)
	}
	return line
}

func footer(p table.Pagination) string {
	prev := dimStyle.Render("‹ Prev")
	if p.PrevEnabled {
		prev = "‹ Prev"
	}
	next := dimStyle.Render("Next ›")
	if p.NextEnabled {
		next = "Next ›"
	}
	return fmt.Sprintf("  Rows per page: %d    %s    %s    %s  %s",
		p.PageSize, p.Label, p.PageLabel, prev, next)
}

// fit pads s with spaces to width, or truncates it with an ellipsis.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		s = ansi.Truncate(s, width, "…")
	}
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}
