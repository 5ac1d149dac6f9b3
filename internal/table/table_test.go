package table

import (
	"fmt"
	"slices"
	"strings"
	"testing"
)

type holding struct {
	Ticker   string
	Industry string
	Price    float64
	Freq     string
}

func sampleHoldings() []holding {
	return []holding{
		{Ticker: "MSFT", Industry: "Software", Price: 410.5, Freq: "weekly"},
		{Ticker: "AAPL", Industry: "Consumer Electronics", Price: 185.25, Freq: "daily"},
		{Ticker: "NVDA", Industry: "Semiconductors", Price: 880, Freq: "weekly"},
		{Ticker: "AMD", Industry: "Semiconductors", Price: 160.1, Freq: "monthly"},
		{Ticker: "GOOGL", Industry: "Internet Content", Price: 140.75, Freq: "daily"},
	}
}

func holdingColumns() []Column[holding] {
	return []Column[holding]{
		{Key: "ticker", Label: "Ticker", Value: func(h holding) any { return h.Ticker }},
		{Key: "industry", Label: "Industry", Hideable: true, Value: func(h holding) any { return h.Industry }},
		{Key: "price", Label: "Price", Hideable: true,
			Value:  func(h holding) any { return h.Price },
			Render: func(h holding) string { return fmt.Sprintf("%.2f", h.Price) }},
		{Key: "freq", Label: "Frequency", Value: func(h holding) any { return h.Freq }},
	}
}

func newHoldingTable(opts Options[holding], cb Callbacks) *Table[holding] {
	tb := New(opts, cb)
	tb.SetColumns(holdingColumns())
	tb.SetData(Data[holding]{Records: sampleHoldings()})
	return tb
}

// tickers returns the first cell of every rendered row.
func tickers(v View) []string {
	out := make([]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		out = append(out, r.Cells[0].Text)
	}
	return out
}

func headerKeys(v View) []string {
	out := make([]string, 0, len(v.Headers))
	for _, h := range v.Headers {
		out = append(out, h.Key)
	}
	return out
}

func TestNewDefaults(t *testing.T) {
	tb := New[holding](Options[holding]{}, Callbacks{})

	if got := tb.PageSize(); got != 10 {
		t.Errorf("PageSize() = %d, want 10", got)
	}
	if got := tb.PageIndex(); got != 0 {
		t.Errorf("PageIndex() = %d, want 0", got)
	}
	if _, ok := tb.Sort(); ok {
		t.Error("new table should have no sort")
	}
	if len(tb.StagedFilters()) != 0 || len(tb.AppliedFilters()) != 0 {
		t.Error("new table should have no filters")
	}
	if !slices.Equal(tb.PageSizes(), DefaultPageSizes) {
		t.Errorf("PageSizes() = %v, want %v", tb.PageSizes(), DefaultPageSizes)
	}
}

func TestNewPageSizesNormalised(t *testing.T) {
	tb := New[holding](Options[holding]{PageSizes: []int{25, 5, 0, 25, -1}}, Callbacks{})
	if want := []int{5, 25}; !slices.Equal(tb.PageSizes(), want) {
		t.Errorf("PageSizes() = %v, want %v", tb.PageSizes(), want)
	}
	if tb.PageSize() != 5 {
		t.Errorf("PageSize() = %d, want smallest offered 5", tb.PageSize())
	}
}

func TestSetColumnsDropsMalformed(t *testing.T) {
	tb := New[holding](Options[holding]{}, Callbacks{})
	tb.SetColumns([]Column[holding]{
		{Key: "ticker", Label: "Ticker", Value: func(h holding) any { return h.Ticker }},
		{Key: "", Label: "No key"},
		{Key: "  ", Label: "Blank key"},
		{Key: "ticker", Label: "Duplicate"},
		{Key: "price", Label: "Price", Value: func(h holding) any { return h.Price }},
	})

	cols := tb.Columns()
	if len(cols) != 2 {
		t.Fatalf("len(Columns()) = %d, want 2", len(cols))
	}
	if cols[0].Label != "Ticker" || cols[1].Key != "price" {
		t.Errorf("Columns() = %+v", cols)
	}
}

func TestViewRendersAllRows(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	v := tb.View()

	want := []string{"MSFT", "AAPL", "NVDA", "AMD", "GOOGL"}
	if got := tickers(v); !slices.Equal(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if got := v.Rows[0].Cells[2].Text; got != "410.50" {
		t.Errorf("rendered price = %q, want %q", got, "410.50")
	}
	if v.Empty {
		t.Error("Empty should be false")
	}
	for i, r := range v.Rows {
		if r.Pos != i {
			t.Errorf("row %d Pos = %d, want %d", i, r.Pos, i)
		}
	}
}

func TestViewEmpty(t *testing.T) {
	tb := New[holding](Options[holding]{}, Callbacks{})
	tb.SetColumns(holdingColumns())
	v := tb.View()
	if !v.Empty || len(v.Rows) != 0 {
		t.Errorf("Empty = %v, rows = %d; want empty", v.Empty, len(v.Rows))
	}
	if v.Pagination.Label != "0-0 of 0" {
		t.Errorf("Label = %q, want %q", v.Pagination.Label, "0-0 of 0")
	}
}

func TestSortAscendingThenDescendingReverses(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})

	tb.SortBy("price")
	asc := tickers(tb.View())
	tb.SortBy("price")
	desc := tickers(tb.View())

	if want := []string{"GOOGL", "AMD", "AAPL", "MSFT", "NVDA"}; !slices.Equal(asc, want) {
		t.Errorf("ascending = %v, want %v", asc, want)
	}
	rev := slices.Clone(asc)
	slices.Reverse(rev)
	if !slices.Equal(desc, rev) {
		t.Errorf("descending = %v, want reverse of ascending %v", desc, rev)
	}

	s, ok := tb.Sort()
	if !ok || s.Key != "price" || s.Direction != Descending {
		t.Errorf("Sort() = %+v, %v", s, ok)
	}
	tb.SortBy("price")
	if s, _ := tb.Sort(); s.Direction != Ascending {
		t.Errorf("third activation direction = %v, want asc", s.Direction)
	}
}

func TestSortStableTies(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})

	// MSFT/NVDA are weekly, AAPL/GOOGL daily; input order must hold
	// within each tie group in both directions.
	tb.SortBy("freq")
	if got, want := tickers(tb.View()), []string{"AAPL", "GOOGL", "AMD", "MSFT", "NVDA"}; !slices.Equal(got, want) {
		t.Errorf("asc = %v, want %v", got, want)
	}
	tb.SortBy("freq")
	if got, want := tickers(tb.View()), []string{"MSFT", "NVDA", "AMD", "AAPL", "GOOGL"}; !slices.Equal(got, want) {
		t.Errorf("desc = %v, want %v", got, want)
	}
}

func TestSortSwitchingKeyStartsAscending(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	tb.SortBy("price")
	tb.SortBy("price")
	tb.SortBy("ticker")

	s, _ := tb.Sort()
	if s.Key != "ticker" || s.Direction != Ascending {
		t.Errorf("Sort() = %+v, want ticker asc", s)
	}
	if got, want := tickers(tb.View()), []string{"AAPL", "AMD", "GOOGL", "MSFT", "NVDA"}; !slices.Equal(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}

	tb.ClearSort()
	if got := tickers(tb.View()); got[0] != "MSFT" {
		t.Errorf("after ClearSort first row = %s, want MSFT", got[0])
	}
}

func TestSortIgnoresUnknownAndActionColumns(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	cols := append(holdingColumns(), Column[holding]{Key: "actions", Label: "Delete", Action: func(int) {}})
	tb.SetColumns(cols)

	if tb.SortBy("nope") {
		t.Error("SortBy(unknown) should report false")
	}
	if tb.SortBy("actions") {
		t.Error("SortBy(action column) should report false")
	}
	if _, ok := tb.Sort(); ok {
		t.Error("no sort should be active")
	}
	for _, h := range tb.View().Headers {
		if h.Key == "actions" && h.Sortable {
			t.Error("action header should not be sortable")
		}
	}
}

func TestSortHeaderMarker(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	tb.SortBy("ticker")
	tb.SortBy("ticker")

	for _, h := range tb.View().Headers {
		if h.Key == "ticker" {
			if !h.Sorted || h.Direction != Descending {
				t.Errorf("ticker header = %+v, want sorted desc", h)
			}
		} else if h.Sorted {
			t.Errorf("header %s should not be sorted", h.Key)
		}
	}
}

func TestToggleColumnVisibility(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	before := tickers(tb.View())

	if !tb.ToggleColumn("industry") {
		t.Fatal("ToggleColumn(industry) should succeed")
	}
	v := tb.View()
	if got, want := headerKeys(v), []string{"ticker", "price", "freq"}; !slices.Equal(got, want) {
		t.Errorf("headers = %v, want %v", got, want)
	}
	if len(v.Rows[0].Cells) != 3 {
		t.Errorf("cells per row = %d, want 3", len(v.Rows[0].Cells))
	}
	if got := tickers(v); !slices.Equal(got, before) {
		t.Errorf("row order changed: %v, want %v", got, before)
	}
	if tb.IsVisible("industry") {
		t.Error("industry should be hidden")
	}

	tb.ToggleColumn("industry")
	if !tb.IsVisible("industry") {
		t.Error("industry should be visible again")
	}
	if len(tb.Data().Records) != 5 {
		t.Error("records must not be touched by visibility")
	}
}

func TestToggleNonHideableColumn(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	if tb.ToggleColumn("ticker") {
		t.Error("ToggleColumn on non-hideable column should report false")
	}
	if !tb.IsVisible("ticker") {
		t.Error("non-hideable column must stay visible")
	}
	if tb.ToggleColumn("missing") {
		t.Error("ToggleColumn(missing) should report false")
	}
}

func TestSearchCaseInsensitiveAndIdempotent(t *testing.T) {
	var notified []string
	tb := newHoldingTable(Options[holding]{ShowSearch: true, PageSizes: []int{2}}, Callbacks{
		OnSearchChange: func(s string) { notified = append(notified, s) },
	})
	tb.NextPage()
	if tb.PageIndex() != 1 {
		t.Fatalf("PageIndex() = %d, want 1 before search", tb.PageIndex())
	}

	tb.Search("SEMI")
	first := tickers(tb.View())
	if tb.PageIndex() != 0 {
		t.Errorf("PageIndex() = %d after search, want 0", tb.PageIndex())
	}
	tb.Search("SEMI")
	second := tickers(tb.View())

	if want := []string{"NVDA", "AMD"}; !slices.Equal(first, want) {
		t.Errorf("search rows = %v, want %v", first, want)
	}
	if !slices.Equal(first, second) {
		t.Errorf("search not idempotent: %v then %v", first, second)
	}
	if want := []string{"SEMI", "SEMI"}; !slices.Equal(notified, want) {
		t.Errorf("OnSearchChange calls = %v, want %v", notified, want)
	}
	if tb.SearchText() != "SEMI" {
		t.Errorf("SearchText() = %q", tb.SearchText())
	}
}

func TestSearchUnicodeFolding(t *testing.T) {
	type row struct{ Name string }
	tb := New(Options[row]{ShowSearch: true}, Callbacks{})
	tb.SetColumns([]Column[row]{{Key: "name", Label: "Name", Value: func(r row) any { return r.Name }}})
	tb.SetData(Data[row]{Records: []row{{"Société Générale"}, {"Other"}}})

	tb.Search("SOCIÉTÉ")
	if v := tb.View(); len(v.Rows) != 1 || v.Rows[0].Cells[0].Text != "Société Générale" {
		t.Errorf("folded search rows = %+v", v.Rows)
	}
}

func TestSearchHiddenBox(t *testing.T) {
	called := false
	tb := newHoldingTable(Options[holding]{}, Callbacks{OnSearchChange: func(string) { called = true }})
	tb.Search("msft")
	if called || tb.SearchText() != "" {
		t.Error("Search must be inert when the search box is not shown")
	}
	if len(tb.View().Rows) != 5 {
		t.Error("rows should be unfiltered")
	}
}

func TestSearchCustomProjection(t *testing.T) {
	tb := newHoldingTable(Options[holding]{
		ShowSearch: true,
		Searchable: func(h holding) string { return h.Ticker },
	}, Callbacks{})
	tb.Search("soft")
	if n := len(tb.View().Rows); n != 0 {
		t.Errorf("rows = %d, want 0 when projection excludes industry", n)
	}
	tb.Search("ms")
	if got := tickers(tb.View()); !slices.Equal(got, []string{"MSFT"}) {
		t.Errorf("rows = %v, want [MSFT]", got)
	}
}

func holdingFilters() []Filter {
	return []Filter{
		{Key: "freq", Param: "frequency", Label: "Frequency", Options: []Option{
			{Value: "daily", Label: "Daily"},
			{Value: "weekly", Label: "Weekly"},
			{Value: "monthly", Label: "Monthly"},
			{Value: "hourly", Label: "Hourly", Disabled: true},
		}},
		{Key: "industry", Label: "Industry", Options: []Option{
			{Value: "Semiconductors", Label: "Semis"},
			{Value: "Software", Label: "Software"},
		}},
	}
}

func TestSubmitFiltersNoopWhenNothingStaged(t *testing.T) {
	calls := 0
	tb := newHoldingTable(Options[holding]{}, Callbacks{OnFilterSubmit: func(string) { calls++ }})
	tb.SetFilters(holdingFilters())

	if tb.SubmitFilters() {
		t.Error("SubmitFilters should report false with nothing staged")
	}
	if calls != 0 {
		t.Errorf("OnFilterSubmit called %d times, want 0", calls)
	}
}

func TestSubmitFiltersQueryString(t *testing.T) {
	var got []string
	tb := newHoldingTable(Options[holding]{}, Callbacks{OnFilterSubmit: func(q string) { got = append(got, q) }})
	tb.SetFilters(holdingFilters())

	tb.SelectFilter("freq", "daily")
	tb.SelectFilter("industry", "Software")
	tb.SelectFilter("freq", "weekly")

	if !tb.View().FilterActions {
		t.Error("FilterActions should be offered once something is staged")
	}
	if len(tb.AppliedFilters()) != 0 {
		t.Error("staged filters must not apply before submit")
	}
	if len(tb.View().Rows) != 5 {
		t.Error("rows must be unfiltered before submit")
	}

	if !tb.SubmitFilters() {
		t.Fatal("SubmitFilters should report true")
	}
	if len(got) != 1 {
		t.Fatalf("OnFilterSubmit calls = %d, want 1", len(got))
	}
	if want := "frequency=weekly&industry=Software"; got[0] != want {
		t.Errorf("query = %q, want %q", got[0], want)
	}
	if n := strings.Count(got[0], "="); n != 2 {
		t.Errorf("query has %d pairs, want 2", n)
	}
	if tb.AppliedQuery() != got[0] {
		t.Errorf("AppliedQuery() = %q", tb.AppliedQuery())
	}

	// Both applied filters name columns, so they also narrow the rows.
	if rows := tickers(tb.View()); !slices.Equal(rows, []string{"MSFT"}) {
		t.Errorf("filtered rows = %v, want [MSFT]", rows)
	}
}

func TestSubmitFiltersEscapesValues(t *testing.T) {
	var q string
	tb := newHoldingTable(Options[holding]{}, Callbacks{OnFilterSubmit: func(s string) { q = s }})
	tb.SetFilters([]Filter{{Key: "industry", Options: []Option{{Value: "Consumer Electronics"}}}})
	tb.SelectFilter("industry", "Consumer Electronics")
	tb.SubmitFilters()
	if want := "industry=Consumer+Electronics"; q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
}

func TestSelectFilterRefusals(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	tb.SetFilters(holdingFilters())

	if tb.SelectFilter("nope", "x") {
		t.Error("unknown filter should be refused")
	}
	if tb.SelectFilter("freq", "yearly") {
		t.Error("unknown option should be refused")
	}
	if tb.SelectFilter("freq", "hourly") {
		t.Error("disabled option should be refused")
	}

	tb.SelectFilter("freq", "daily")
	tb.SelectFilter("freq", "")
	if len(tb.StagedFilters()) != 0 {
		t.Errorf("StagedFilters() = %v, want empty after unstaging", tb.StagedFilters())
	}
}

func TestResetFilters(t *testing.T) {
	var searches, queries []string
	tb := newHoldingTable(Options[holding]{ShowSearch: true}, Callbacks{
		OnSearchChange: func(s string) { searches = append(searches, s) },
		OnFilterSubmit: func(q string) { queries = append(queries, q) },
	})
	tb.SetFilters(holdingFilters())
	tb.Search("semi")
	tb.SelectFilter("freq", "weekly")
	tb.SubmitFilters()
	tb.SelectFilter("industry", "Semiconductors")

	searches, queries = nil, nil
	tb.ResetFilters()

	if len(tb.StagedFilters()) != 0 || len(tb.AppliedFilters()) != 0 {
		t.Error("reset must clear staged and applied filters")
	}
	if tb.AppliedQuery() != "" {
		t.Errorf("AppliedQuery() = %q, want empty", tb.AppliedQuery())
	}
	if tb.SearchText() != "" {
		t.Errorf("SearchText() = %q, want empty", tb.SearchText())
	}
	if !slices.Equal(searches, []string{""}) {
		t.Errorf("OnSearchChange calls = %q, want [\"\"]", searches)
	}
	if !slices.Equal(queries, []string{""}) {
		t.Errorf("OnFilterSubmit calls = %q, want [\"\"]", queries)
	}
	v := tb.View()
	for _, f := range v.Filters {
		if f.Selected != "" {
			t.Errorf("filter %s still shows %q", f.Key, f.Selected)
		}
	}
	if len(v.Rows) != 5 {
		t.Errorf("rows = %d after reset, want 5", len(v.Rows))
	}
}

func TestSetFiltersDropsStaleState(t *testing.T) {
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	tb.SetFilters(holdingFilters())
	tb.SelectFilter("industry", "Software")
	tb.SubmitFilters()

	tb.SetFilters(holdingFilters()[:1])
	if len(tb.AppliedFilters()) != 0 || len(tb.StagedFilters()) != 0 {
		t.Error("state of removed filter should be discarded")
	}
}

func TestRowSelection(t *testing.T) {
	tb := newHoldingTable(Options[holding]{
		RowID: func(_ int, h holding) string { return h.Ticker },
	}, Callbacks{})

	tb.ToggleSelected("AMD")
	tb.ToggleSelected("AAPL")
	tb.ToggleSelected("MSFT")
	tb.ToggleSelected("MSFT")

	if got, want := tb.Selected(), []string{"AAPL", "AMD"}; !slices.Equal(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	for _, r := range tb.View().Rows {
		want := r.ID == "AMD" || r.ID == "AAPL"
		if r.Selected != want {
			t.Errorf("row %s Selected = %v, want %v", r.ID, r.Selected, want)
		}
	}
	tb.ClearSelection()
	if len(tb.Selected()) != 0 {
		t.Error("ClearSelection left rows selected")
	}
}

func TestInvokeAction(t *testing.T) {
	var got []int
	tb := newHoldingTable(Options[holding]{}, Callbacks{})
	tb.SetColumns(append(holdingColumns(), Column[holding]{
		Key: "actions", Label: "Delete", Action: func(pos int) { got = append(got, pos) },
	}))

	tb.SortBy("ticker")
	v := tb.View()
	// Sorted first row is AAPL, which sits at position 1 in the records.
	if v.Rows[0].Pos != 1 {
		t.Fatalf("first sorted row Pos = %d, want 1", v.Rows[0].Pos)
	}
	last := v.Rows[0].Cells[len(v.Rows[0].Cells)-1]
	if !last.Action || last.Text != "Delete" {
		t.Errorf("action cell = %+v", last)
	}

	if !tb.InvokeAction("actions", v.Rows[0].Pos) {
		t.Fatal("InvokeAction should succeed")
	}
	if !slices.Equal(got, []int{1}) {
		t.Errorf("action calls = %v, want [1]", got)
	}
	if len(tb.Data().Records) != 5 {
		t.Error("InvokeAction must not remove the row itself")
	}

	if tb.InvokeAction("ticker", 0) {
		t.Error("InvokeAction on a data column should report false")
	}
	if tb.InvokeAction("actions", 99) {
		t.Error("InvokeAction out of range should report false")
	}
}

func TestActionColumnNotSearchable(t *testing.T) {
	tb := newHoldingTable(Options[holding]{ShowSearch: true}, Callbacks{})
	tb.SetColumns(append(holdingColumns(), Column[holding]{Key: "actions", Label: "Delete", Action: func(int) {}}))
	tb.Search("delete")
	if n := len(tb.View().Rows); n != 0 {
		t.Errorf("rows = %d, want 0: action labels are not searchable", n)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b any
		want int
	}{
		{1, 2, -1},
		{2.5, 2, 1},
		{int64(3), 3.0, 0},
		{"b", "a", 1},
		{nil, "a", -1},
		{"a", nil, 1},
		{nil, nil, 0},
		{false, true, -1},
		{true, true, 0},
		{"10", 9, -1},
	}
	for _, tt := range tests {
		if got := compareValues(tt.a, tt.b); got != tt.want {
			t.Errorf("compareValues(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
