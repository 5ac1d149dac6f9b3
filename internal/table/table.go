// Package table implements a generic tabular view controller. It owns the
// sort, filter, free-text search, column visibility, row selection, and page
// window state for a caller-supplied record collection, and reports user
// intent (page changes, page-size changes, search text, filter submissions)
// back to the caller through callbacks. It never fetches or mutates records
// itself.
//
// A Table is driven by a single event loop and is not safe for concurrent
// use.
package table

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultPageSizes are the rows-per-page values offered when Options does not
// name its own.
var DefaultPageSizes = []int{10, 20, 30, 40, 50}

// DefaultSkeletonRows is the number of placeholder rows rendered while the
// caller is fetching.
const DefaultSkeletonRows = 10

// Column describes how one field of a record maps to a grid column.
type Column[R any] struct {
	// Key addresses the column for sorting, visibility, and filtering. It
	// must be unique among the table's columns.
	Key   string
	Label string

	// Hideable columns may be toggled off by the user. Other columns stay
	// visible regardless of toggles.
	Hideable bool

	// Value extracts the sortable value of the field.
	Value func(R) any

	// Render, when set, produces the displayed text of the cell. Without it
	// the cell shows fmt.Sprint of Value.
	Render func(R) string

	// Action, when set, turns the column into a row-action column. Its cells
	// show Label and invoking it reports the row's position in the records
	// passed to SetData.
	Action func(pos int)
}

// IsAction reports whether c is a row-action column.
func (c Column[R]) IsAction() bool { return c.Action != nil }

// Text returns the display text of c for record r.
func (c Column[R]) Text(r R) string {
	switch {
	case c.Action != nil:
		return c.Label
	case c.Render != nil:
		return c.Render(r)
	case c.Value == nil:
		return ""
	}
	v := c.Value(r)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (c Column[R]) sortValue(r R) any {
	if c.Value != nil {
		return c.Value(r)
	}
	return c.Text(r)
}

// Option is one entry of a filter dropdown.
type Option struct {
	Value    string
	Label    string
	Disabled bool
}

// Filter describes a dropdown whose selection is staged until submitted.
type Filter struct {
	Key string
	// Param is the query parameter name used in the submitted filter string.
	// Empty means Key.
	Param   string
	Label   string
	Options []Option
}

func (f Filter) param() string {
	if f.Param != "" {
		return f.Param
	}
	return f.Key
}

func (f Filter) option(value string) (Option, bool) {
	for _, o := range f.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// TotalCount carries the caller's knowledge of the full result set.
type TotalCount struct {
	Elements int
	Pages    int
}

// Data is the caller-owned input of a render.
type Data[R any] struct {
	Records  []R
	Fetching bool

	// CurrentPage is the zero-based page the caller has loaded. Only used
	// when the table pages remotely.
	CurrentPage int
	Total       *TotalCount

	// Placeholder suppresses "Next" while an optimistic row is resolving.
	Placeholder bool
}

// Callbacks report user intent to the caller. Any of them may be nil.
//
// When OnPageChange is set the table pages remotely: Records is taken to be
// the page the caller loaded, and page navigation only notifies. Without it
// the table slices Records into pages itself. Page changes carry only the
// delta; the applied filters are not sent again.
type Callbacks struct {
	OnPageChange     func(delta int)
	OnPageSizeChange func(size int)
	OnSearchChange   func(text string)
	OnFilterSubmit   func(query string)
}

// Options configures a Table.
type Options[R any] struct {
	ShowSearch   bool
	PageSizes    []int
	SkeletonRows int

	// Searchable projects a record to the text matched by free-text search.
	// Defaults to the non-action cell texts joined by spaces.
	Searchable func(R) string

	// RowID identifies a record for selection. Defaults to its position.
	RowID func(pos int, r R) string
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortSpec is the active sort.
type SortSpec struct {
	Key       string
	Direction Direction
}

type filterValue struct {
	key   string
	value string
}

// viewState is everything the table owns. It lives as long as the Table.
type viewState struct {
	sort      *SortSpec
	staged    []filterValue
	applied   []filterValue
	search    string
	hidden    map[string]bool
	selected  map[string]bool
	pageIndex int
	pageSize  int
}

// Table is the tabular view controller.
type Table[R any] struct {
	columns []Column[R]
	filters []Filter
	opts    Options[R]
	cb      Callbacks
	data    Data[R]
	state   viewState
	fold    cases.Caser
}

// New returns a Table with fresh view state: no sort, no filters, all
// columns visible, page 0, and the smallest offered page size.
func New[R any](opts Options[R], cb Callbacks) *Table[R] {
	sizes := slices.Clone(opts.PageSizes)
	sizes = slices.DeleteFunc(sizes, func(n int) bool { return n <= 0 })
	if len(sizes) == 0 {
		sizes = slices.Clone(DefaultPageSizes)
	}
	slices.Sort(sizes)
	opts.PageSizes = slices.Compact(sizes)
	if opts.SkeletonRows <= 0 {
		opts.SkeletonRows = DefaultSkeletonRows
	}

	return &Table[R]{
		opts: opts,
		cb:   cb,
		fold: cases.Fold(),
		state: viewState{
			hidden:   make(map[string]bool),
			selected: make(map[string]bool),
			pageSize: opts.PageSizes[0],
		},
	}
}

// SetColumns installs the column descriptors. Columns without a key, or
// repeating an earlier key, are dropped. View state that refers to a
// vanished column is discarded.
func (t *Table[R]) SetColumns(cols []Column[R]) {
	seen := make(map[string]bool, len(cols))
	t.columns = make([]Column[R], 0, len(cols))
	for _, c := range cols {
		key := strings.TrimSpace(c.Key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.Key = key
		t.columns = append(t.columns, c)
	}

	for k := range t.state.hidden {
		if !seen[k] {
			delete(t.state.hidden, k)
		}
	}
	if t.state.sort != nil && !seen[t.state.sort.Key] {
		t.state.sort = nil
	}
}

// SetFilters installs the filter dropdowns. Filters without a key are
// dropped; staged and applied values of removed filters are discarded.
func (t *Table[R]) SetFilters(filters []Filter) {
	t.filters = make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.Key == "" || t.filterIndex(f.Key) >= 0 {
			continue
		}
		t.filters = append(t.filters, f)
	}
	gone := func(fv filterValue) bool { return t.filterIndex(fv.key) < 0 }
	t.state.staged = slices.DeleteFunc(t.state.staged, gone)
	t.state.applied = slices.DeleteFunc(t.state.applied, gone)
}

// SetData replaces the caller-owned input. In local paging mode the page
// index is pulled back when the collection shrank below it.
func (t *Table[R]) SetData(d Data[R]) {
	t.data = d
	if !t.remote() {
		last := max(0, t.localPages(len(t.rowModel()))-1)
		t.state.pageIndex = min(t.state.pageIndex, last)
	}
}

// Data returns the input last passed to SetData.
func (t *Table[R]) Data() Data[R] { return t.data }

// Columns returns the installed column descriptors.
func (t *Table[R]) Columns() []Column[R] { return slices.Clone(t.columns) }

// Filters returns the installed filter descriptors.
func (t *Table[R]) Filters() []Filter { return slices.Clone(t.filters) }

// Column returns the column with the given key.
func (t *Table[R]) Column(key string) (Column[R], bool) {
	for _, c := range t.columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column[R]{}, false
}

// VisibleColumns returns the columns that are currently rendered.
func (t *Table[R]) VisibleColumns() []Column[R] {
	out := make([]Column[R], 0, len(t.columns))
	for _, c := range t.columns {
		if t.IsVisible(c.Key) {
			out = append(out, c)
		}
	}
	return out
}

// IsVisible reports whether the column with key is rendered.
func (t *Table[R]) IsVisible(key string) bool {
	c, ok := t.Column(key)
	if !ok {
		return false
	}
	return !c.Hideable || !t.state.hidden[key]
}

func (t *Table[R]) filterIndex(key string) int {
	for i, f := range t.filters {
		if f.Key == key {
			return i
		}
	}
	return -1
}

func (t *Table[R]) remote() bool { return t.cb.OnPageChange != nil }

func (t *Table[R]) rowID(pos int, r R) string {
	if t.opts.RowID != nil {
		return t.opts.RowID(pos, r)
	}
	return strconv.Itoa(pos)
}

func (t *Table[R]) searchable(r R) string {
	if t.opts.Searchable != nil {
		return t.opts.Searchable(r)
	}
	parts := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c.IsAction() {
			continue
		}
		parts = append(parts, c.Text(r))
	}
	return strings.Join(parts, " ")
}
