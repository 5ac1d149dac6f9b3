package table

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Header is one rendered column header.
type Header struct {
	Key      string
	Label    string
	Sortable bool
	Sorted   bool
	// Direction is only meaningful when Sorted is true.
	Direction Direction
}

// Cell is one rendered cell.
type Cell struct {
	Key    string
	Text   string
	Action bool
}

// Row is one rendered row. Pos is the row's index in Data.Records; skeleton
// rows have Pos -1.
type Row struct {
	Pos      int
	ID       string
	Cells    []Cell
	Selected bool
	Skeleton bool
}

// FilterView is a rendered filter dropdown.
type FilterView struct {
	Key      string
	Label    string
	Options  []Option
	Selected string
}

// Pagination is the rendered pagination footer.
type Pagination struct {
	Label       string
	PageLabel   string
	Page        int
	PageSize    int
	PageSizes   []int
	PrevEnabled bool
	NextEnabled bool
}

// View is the derived, render-ready state of the table.
type View struct {
	Headers    []Header
	Rows       []Row
	Fetching   bool
	Empty      bool
	ShowSearch bool
	SearchText string
	Filters    []FilterView
	// FilterActions reports whether Submit and Reset are offered.
	FilterActions bool
	Pagination    Pagination
}

// View computes the render-ready view. It does not modify view state.
func (t *Table[R]) View() View {
	cols := t.VisibleColumns()
	v := View{
		Fetching:      t.data.Fetching,
		ShowSearch:    t.opts.ShowSearch,
		SearchText:    t.state.search,
		FilterActions: len(t.state.staged) > 0,
	}

	for _, c := range cols {
		h := Header{Key: c.Key, Label: c.Label, Sortable: !c.IsAction()}
		if s := t.state.sort; s != nil && s.Key == c.Key {
			h.Sorted = true
			h.Direction = s.Direction
		}
		v.Headers = append(v.Headers, h)
	}

	for _, f := range t.filters {
		v.Filters = append(v.Filters, FilterView{
			Key:      f.Key,
			Label:    f.Label,
			Options:  slices.Clone(f.Options),
			Selected: t.stagedValue(f.Key),
		})
	}

	window := t.window(t.rowModel())
	v.Pagination = t.pagination(len(window))

	if t.data.Fetching {
		for range t.opts.SkeletonRows {
			cells := make([]Cell, len(cols))
			for i, c := range cols {
				cells[i] = Cell{Key: c.Key}
			}
			v.Rows = append(v.Rows, Row{Pos: -1, Cells: cells, Skeleton: true})
		}
		return v
	}

	for _, pos := range window {
		r := t.data.Records[pos]
		id := t.rowID(pos, r)
		row := Row{Pos: pos, ID: id, Selected: t.state.selected[id]}
		for _, c := range cols {
			row.Cells = append(row.Cells, Cell{Key: c.Key, Text: c.Text(r), Action: c.IsAction()})
		}
		v.Rows = append(v.Rows, row)
	}
	v.Empty = len(v.Rows) == 0
	return v
}

// rowModel returns the positions of the records that pass the applied
// filters and the search, in sorted order.
func (t *Table[R]) rowModel() []int {
	recs := t.data.Records
	needle := ""
	if t.state.search != "" {
		needle = t.fold.String(t.state.search)
	}

	idx := make([]int, 0, len(recs))
	for i, r := range recs {
		if !t.matchesFilters(r) {
			continue
		}
		if needle != "" && !strings.Contains(t.fold.String(t.searchable(r)), needle) {
			continue
		}
		idx = append(idx, i)
	}

	if s := t.state.sort; s != nil {
		if c, ok := t.Column(s.Key); ok && !c.IsAction() {
			slices.SortStableFunc(idx, func(a, b int) int {
				n := compareValues(c.sortValue(recs[a]), c.sortValue(recs[b]))
				if s.Direction == Descending {
					return -n
				}
				return n
			})
		}
	}
	return idx
}

func (t *Table[R]) matchesFilters(r R) bool {
	for _, fv := range t.state.applied {
		c, ok := t.Column(fv.key)
		if !ok || c.IsAction() {
			continue
		}
		if !strings.EqualFold(c.Text(r), fv.value) {
			return false
		}
	}
	return true
}

// window cuts the current page out of the row model. Remote tables show the
// head of what the caller loaded.
func (t *Table[R]) window(idx []int) []int {
	size := t.state.pageSize
	start := 0
	if !t.remote() {
		start = t.state.pageIndex * size
	}
	if start >= len(idx) {
		return nil
	}
	return idx[start:min(start+size, len(idx))]
}

func (t *Table[R]) localPages(n int) int {
	return max(1, (n+t.state.pageSize-1)/t.state.pageSize)
}

// currentPage is the zero-based page shown to the user.
func (t *Table[R]) currentPage() int {
	if t.remote() {
		return t.data.CurrentPage
	}
	return t.state.pageIndex
}

// total returns the caller's totals, or in local mode totals derived from the
// row model. Remote tables without caller totals have none.
func (t *Table[R]) total() *TotalCount {
	if t.data.Total != nil {
		tc := *t.data.Total
		return &tc
	}
	if t.remote() {
		return nil
	}
	n := len(t.rowModel())
	return &TotalCount{Elements: n, Pages: t.localPages(n)}
}

func (t *Table[R]) pagination(rows int) Pagination {
	size := t.state.pageSize
	page := t.currentPage()
	tc := t.total()

	p := Pagination{
		Label:       "0-0 of 0",
		Page:        page,
		PageSize:    size,
		PageSizes:   slices.Clone(t.opts.PageSizes),
		PrevEnabled: page > 0,
		NextEnabled: t.nextEnabled(rows),
	}
	if rows > 0 && tc != nil {
		start := size*page + 1
		end := min(start+size-1, tc.Elements)
		p.Label = fmt.Sprintf("%d-%d of %d", start, end, tc.Elements)
	}
	p.PageLabel = fmt.Sprintf("Page: %d", page+1)
	if tc != nil && tc.Pages > 0 {
		p.PageLabel += fmt.Sprintf(" of %d", tc.Pages)
	}
	return p
}

func (t *Table[R]) nextEnabled(rows int) bool {
	if rows < t.state.pageSize || t.data.Placeholder {
		return false
	}
	pages := 1
	if tc := t.total(); tc != nil && tc.Pages > 0 {
		pages = tc.Pages
	}
	return t.currentPage() < pages-1
}

// compareValues orders two sort values. Numbers compare numerically, times
// chronologically, and nil sorts first. Mismatched types fall back to their
// printed form.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
