package table

import (
	"net/url"
	"slices"
	"sort"
	"strings"
)

// SortBy activates sorting on key. The first activation sorts ascending;
// activating the same key again flips the direction. Unknown keys and
// action columns are ignored.
func (t *Table[R]) SortBy(key string) bool {
	c, ok := t.Column(key)
	if !ok || c.IsAction() {
		return false
	}
	if s := t.state.sort; s != nil && s.Key == key {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return true
	}
	t.state.sort = &SortSpec{Key: key, Direction: Ascending}
	return true
}

// ClearSort removes the active sort.
func (t *Table[R]) ClearSort() { t.state.sort = nil }

// Sort returns the active sort, if any.
func (t *Table[R]) Sort() (SortSpec, bool) {
	if t.state.sort == nil {
		return SortSpec{}, false
	}
	return *t.state.sort, true
}

// Search sets the free-text search, returns to the first page, and notifies
// the caller. It does nothing when the search box is not shown.
func (t *Table[R]) Search(text string) {
	if !t.opts.ShowSearch {
		return
	}
	t.state.search = text
	t.state.pageIndex = 0
	if t.cb.OnSearchChange != nil {
		t.cb.OnSearchChange(text)
	}
}

// SearchText returns the current free-text search.
func (t *Table[R]) SearchText() string { return t.state.search }

// SelectFilter stages value for the filter with key. An empty value unstages
// the filter. Unknown filters and unknown or disabled options are refused.
func (t *Table[R]) SelectFilter(key, value string) bool {
	i := t.filterIndex(key)
	if i < 0 {
		return false
	}
	if value == "" {
		t.state.staged = slices.DeleteFunc(t.state.staged, func(fv filterValue) bool { return fv.key == key })
		return true
	}
	opt, ok := t.filters[i].option(value)
	if !ok || opt.Disabled {
		return false
	}
	for j := range t.state.staged {
		if t.state.staged[j].key == key {
			t.state.staged[j].value = value
			return true
		}
	}
	t.state.staged = append(t.state.staged, filterValue{key: key, value: value})
	return true
}

// StagedFilters returns the staged selections keyed by filter key.
func (t *Table[R]) StagedFilters() map[string]string {
	return valuesMap(t.state.staged)
}

// AppliedFilters returns the submitted selections keyed by filter key.
func (t *Table[R]) AppliedFilters() map[string]string {
	return valuesMap(t.state.applied)
}

// SubmitFilters merges the staged selections into the applied set and sends
// the caller the ampersand-joined param=value string. With nothing staged it
// does nothing and reports false.
func (t *Table[R]) SubmitFilters() bool {
	if len(t.state.staged) == 0 {
		return false
	}
	t.state.applied = slices.Clone(t.state.staged)
	t.state.pageIndex = 0
	if t.cb.OnFilterSubmit != nil {
		t.cb.OnFilterSubmit(t.filterQuery(t.state.applied))
	}
	return true
}

// AppliedQuery returns the filter string of the applied set.
func (t *Table[R]) AppliedQuery() string { return t.filterQuery(t.state.applied) }

// ResetFilters clears staged and applied filters and the search text, goes
// back to the first page, and notifies the caller with an empty search and an
// empty filter string.
func (t *Table[R]) ResetFilters() {
	t.state.staged = nil
	t.state.applied = nil
	t.state.search = ""
	t.state.pageIndex = 0
	if t.cb.OnSearchChange != nil {
		t.cb.OnSearchChange("")
	}
	if t.cb.OnFilterSubmit != nil {
		t.cb.OnFilterSubmit("")
	}
}

func (t *Table[R]) stagedValue(key string) string {
	for _, fv := range t.state.staged {
		if fv.key == key {
			return fv.value
		}
	}
	return ""
}

func (t *Table[R]) filterQuery(values []filterValue) string {
	parts := make([]string, 0, len(values))
	for _, fv := range values {
		i := t.filterIndex(fv.key)
		if i < 0 {
			continue
		}
		parts = append(parts, url.QueryEscape(t.filters[i].param())+"="+url.QueryEscape(fv.value))
	}
	return strings.Join(parts, "&")
}

func valuesMap(values []filterValue) map[string]string {
	m := make(map[string]string, len(values))
	for _, fv := range values {
		m[fv.key] = fv.value
	}
	return m
}

// NextPage moves one page forward when "Next" is enabled.
func (t *Table[R]) NextPage() bool {
	if !t.View().Pagination.NextEnabled {
		return false
	}
	t.movePage(1)
	return true
}

// PrevPage moves one page back when "Previous" is enabled.
func (t *Table[R]) PrevPage() bool {
	if t.currentPage() == 0 {
		return false
	}
	t.movePage(-1)
	return true
}

func (t *Table[R]) movePage(delta int) {
	if t.remote() {
		t.cb.OnPageChange(delta)
		return
	}
	t.state.pageIndex += delta
}

// PageIndex returns the table's own page index. Remote tables keep it at 0
// and follow Data.CurrentPage instead.
func (t *Table[R]) PageIndex() int { return t.state.pageIndex }

// PageSize returns the rows-per-page setting.
func (t *Table[R]) PageSize() int { return t.state.pageSize }

// PageSizes returns the offered rows-per-page values in ascending order.
func (t *Table[R]) PageSizes() []int { return slices.Clone(t.opts.PageSizes) }

// SetPageSize changes the rows per page to one of the offered sizes, returns
// to the first page, and notifies the caller.
func (t *Table[R]) SetPageSize(size int) bool {
	if !slices.Contains(t.opts.PageSizes, size) {
		return false
	}
	t.state.pageSize = size
	t.state.pageIndex = 0
	if t.cb.OnPageSizeChange != nil {
		t.cb.OnPageSizeChange(size)
	}
	return true
}

// ToggleColumn flips the visibility of a hideable column.
func (t *Table[R]) ToggleColumn(key string) bool {
	c, ok := t.Column(key)
	if !ok || !c.Hideable {
		return false
	}
	if t.state.hidden[key] {
		delete(t.state.hidden, key)
	} else {
		t.state.hidden[key] = true
	}
	return true
}

// ToggleSelected flips the selection of the row with id.
func (t *Table[R]) ToggleSelected(id string) {
	if t.state.selected[id] {
		delete(t.state.selected, id)
		return
	}
	t.state.selected[id] = true
}

// Selected returns the selected row ids in sorted order.
func (t *Table[R]) Selected() []string {
	ids := make([]string, 0, len(t.state.selected))
	for id := range t.state.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearSelection deselects every row.
func (t *Table[R]) ClearSelection() { clear(t.state.selected) }

// InvokeAction runs the action of the column with key for the record at pos.
// The table does not change its records; the caller updates them and calls
// SetData.
func (t *Table[R]) InvokeAction(key string, pos int) bool {
	c, ok := t.Column(key)
	if !ok || !c.IsAction() || pos < 0 || pos >= len(t.data.Records) {
		return false
	}
	c.Action(pos)
	return true
}
