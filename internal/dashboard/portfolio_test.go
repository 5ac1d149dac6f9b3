package dashboard

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockscope/internal/domain"
	"stockscope/internal/quote"
	"stockscope/internal/store"
	"stockscope/pkg/stockscope"
)

type fakeClient struct {
	mu       sync.Mutex
	holdings []stockscope.Holding
	queries  []string
	failFreq bool
	failDel  bool
}

func (c *fakeClient) Portfolio(_ context.Context, query string, page, size int) (*stockscope.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	vals, _ := url.ParseQuery(query)
	var match []stockscope.Holding
	for _, h := range c.holdings {
		if f := vals.Get("frequency"); f != "" && h.Frequency != f {
			continue
		}
		match = append(match, h)
	}
	start := min(page*size, len(match))
	end := min(start+size, len(match))
	return &stockscope.Page{
		Tickers:       match[start:end],
		TotalElements: len(match),
		TotalPages:    store.Pages(len(match), size),
		Page:          page,
		Size:          size,
	}, nil
}

func (c *fakeClient) AddTicker(_ context.Context, ticker, frequency string) (*stockscope.Holding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := stockscope.Holding{Ticker: ticker, Frequency: frequency}
	c.holdings = append(c.holdings, h)
	return &h, nil
}

func (c *fakeClient) UpdateFrequency(_ context.Context, ticker, frequency string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFreq {
		return &stockscope.APIError{Status: 500, Message: "boom"}
	}
	for i := range c.holdings {
		if c.holdings[i].Ticker == ticker {
			c.holdings[i].Frequency = frequency
			return nil
		}
	}
	return &stockscope.APIError{Status: 404, Message: "Stock not found"}
}

func (c *fakeClient) DeleteTicker(_ context.Context, ticker string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDel {
		return errors.New("connection refused")
	}
	c.holdings = slices.DeleteFunc(c.holdings, func(h stockscope.Holding) bool { return h.Ticker == ticker })
	return nil
}

func (c *fakeClient) tickers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, h := range c.holdings {
		out = append(out, h.Ticker)
	}
	return out
}

var prices = map[string]float64{"AAPL": 189.84, "MSFT": 415.5, "TSLA": 250}

func fakeLookup() quote.Lookup {
	return quote.LookupFunc(func(_ context.Context, ticker string) (domain.CompanyInfo, error) {
		p, ok := prices[ticker]
		if !ok {
			return domain.CompanyInfo{}, quote.ErrInvalidTicker
		}
		return domain.CompanyInfo{Ticker: ticker, Industry: "Technology", Price: &p}, nil
	})
}

type fakeExporter struct {
	name  string
	sheet store.Sheet
}

func (e *fakeExporter) Export(name string, sheet store.Sheet) (string, error) {
	e.name, e.sheet = name, sheet
	return "/tmp/" + name + ".parquet", nil
}

// drain runs cmd and returns the messages it produced. Timer commands do not
// return promptly and are dropped.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, drain(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

// settle feeds msg to m and keeps feeding whatever the commands produce.
func settle(m tea.Model, msg tea.Msg) {
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		_, cmd := m.Update(next)
		queue = append(queue, drain(cmd)...)
	}
}

func press(m tea.Model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		settle(m, msg)
	}
}

func newModel(t *testing.T, c *fakeClient) *Model {
	t.Helper()
	m := New(context.Background(), Options{Client: c, Lookup: fakeLookup(), Workers: 2})
	for _, msg := range drain(m.Init()) {
		settle(m, msg)
	}
	return m
}

func seeded() *fakeClient {
	return &fakeClient{holdings: []stockscope.Holding{
		{Ticker: "AAPL", Frequency: "weekly"},
		{Ticker: "MSFT", Frequency: "daily"},
		{Ticker: "ZZZ", Frequency: "monthly"},
	}}
}

func TestLoadEnrichesRows(t *testing.T) {
	m := newModel(t, seeded())

	rows := m.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	want := []Row{
		{SNo: 1, Ticker: "AAPL", Industry: "Technology", Price: "189.84", Frequency: "weekly"},
		{SNo: 2, Ticker: "MSFT", Industry: "Technology", Price: "415.50", Frequency: "daily"},
		{SNo: 3, Ticker: "ZZZ", Industry: TextError, Price: TextError, Frequency: "monthly"},
	}
	for i, w := range want {
		got := rows[i]
		got.price = nil
		if got != w {
			t.Errorf("row %d = %+v, want %+v", i, got, w)
		}
	}
	if m.Table().View().Fetching {
		t.Error("table still fetching after load")
	}
}

func TestInitShowsSkeleton(t *testing.T) {
	m := New(context.Background(), Options{Client: seeded(), Lookup: fakeLookup()})
	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init returned no command")
	}
	v := m.Table().View()
	if !v.Fetching || len(v.Rows) == 0 || !v.Rows[0].Skeleton {
		t.Errorf("view before load = %+v, want skeleton rows", v)
	}
}

func TestAddTicker(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "a")
	// Drive the input by hand so the placeholder can be observed.
	for _, r := range "tsla" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	rows := m.Rows()
	last := rows[len(rows)-1]
	if last.Ticker != "TSLA" || last.Industry != TextLoading || !last.pending {
		t.Fatalf("placeholder = %+v", last)
	}
	if !m.Table().Data().Placeholder {
		t.Error("table should know a placeholder is pending")
	}

	for _, msg := range drain(cmd) {
		settle(m, msg)
	}
	rows = m.Rows()
	last = rows[len(rows)-1]
	if last.pending || last.Price != "250.00" || last.SNo != 4 {
		t.Errorf("resolved row = %+v", last)
	}
	if !slices.Contains(c.tickers(), "TSLA") {
		t.Errorf("server tickers = %v, want TSLA added", c.tickers())
	}
	if m.Status() != "Added TSLA" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestAddInvalidTickerRemovedAfterError(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "a", "n", "o", "p", "e", "enter")

	rows := m.Rows()
	last := rows[len(rows)-1]
	if last.Ticker != "NOPE" || last.Industry != TextError || last.Price != TextError {
		t.Fatalf("failed row = %+v", last)
	}
	if !strings.Contains(m.Status(), "Invalid ticker") {
		t.Errorf("status = %q", m.Status())
	}
	if slices.Contains(c.tickers(), "NOPE") {
		t.Error("invalid ticker reached the server")
	}

	settle(m, removeRowMsg{ticker: "NOPE"})
	if n := len(m.Rows()); n != 3 {
		t.Errorf("rows after removal = %d, want 3", n)
	}
}

func TestReloadKeepsPendingAdd(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "a")
	for _, r := range "tsla" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, addCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	// Reload while the add is still in flight.
	press(m, "r")
	rows := m.Rows()
	if len(rows) != 4 {
		t.Fatalf("rows after reload = %d, want 4 with the placeholder kept", len(rows))
	}
	if last := rows[3]; last.Ticker != "TSLA" || !last.pending || last.SNo != 4 {
		t.Errorf("placeholder after reload = %+v", last)
	}

	for _, msg := range drain(addCmd) {
		settle(m, msg)
	}
	rows = m.Rows()
	if last := rows[len(rows)-1]; last.Ticker != "TSLA" || last.pending || last.Price != "250.00" {
		t.Errorf("resolved row = %+v", last)
	}
	if m.Status() != "Added TSLA" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestAddResolvesAfterReloadListedIt(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "a")
	for _, r := range "tsla" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, addCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msgs := drain(addCmd)

	// The server saved the ticker before the reload answered.
	press(m, "r")
	rows := m.Rows()
	if len(rows) != 4 || rows[3].Ticker != "TSLA" || rows[3].pending {
		t.Fatalf("rows after reload = %+v", rows)
	}

	for _, msg := range msgs {
		settle(m, msg)
	}
	if n := len(m.Rows()); n != 4 {
		t.Errorf("rows = %d, want 4 with no duplicate", n)
	}
	if m.Status() != "Added TSLA" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestAddDuplicateRefused(t *testing.T) {
	m := newModel(t, seeded())
	press(m, "a", "a", "a", "p", "l", "enter")
	if n := len(m.Rows()); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	if !strings.Contains(m.Status(), "already") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestAddCancelled(t *testing.T) {
	m := newModel(t, seeded())
	press(m, "a", "x", "esc")
	if n := len(m.Rows()); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	// x after esc is the delete action again.
	press(m, "x")
	if n := len(m.Rows()); n != 2 {
		t.Errorf("rows after delete = %d, want 2", n)
	}
}

func TestDeleteRenumbers(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "x")

	rows := m.Rows()
	if len(rows) != 2 || rows[0].Ticker != "MSFT" || rows[0].SNo != 1 || rows[1].SNo != 2 {
		t.Errorf("rows = %+v", rows)
	}
	if slices.Contains(c.tickers(), "AAPL") {
		t.Error("AAPL still on the server")
	}
}

func TestDeleteFailureKeepsRow(t *testing.T) {
	c := seeded()
	c.failDel = true
	m := newModel(t, c)

	press(m, "x")
	if n := len(m.Rows()); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	if m.Status() != "Failed to delete ticker" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCycleFrequency(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "e")
	if got := m.Rows()[0].Frequency; got != "monthly" {
		t.Errorf("frequency = %q, want monthly", got)
	}
	if got := c.holdings[0].Frequency; got != "monthly" {
		t.Errorf("server frequency = %q, want monthly", got)
	}

	c.failFreq = true
	press(m, "e")
	if got := m.Rows()[0].Frequency; got != "monthly" {
		t.Errorf("frequency after failure = %q, want reverted to monthly", got)
	}
	if m.Status() != "Failed to update frequency" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestFilterSubmitReloads(t *testing.T) {
	c := seeded()
	m := newModel(t, c)

	press(m, "f", "S")
	if q := c.queries[len(c.queries)-1]; q != "frequency=daily" {
		t.Errorf("last query = %q, want frequency=daily", q)
	}
	rows := m.Rows()
	if len(rows) != 1 || rows[0].Ticker != "MSFT" {
		t.Errorf("rows = %+v, want only MSFT", rows)
	}

	press(m, "R")
	if q := c.queries[len(c.queries)-1]; q != "" {
		t.Errorf("query after reset = %q, want empty", q)
	}
	if n := len(m.Rows()); n != 3 {
		t.Errorf("rows after reset = %d, want 3", n)
	}
}

func TestStaleLoadIgnored(t *testing.T) {
	m := newModel(t, seeded())
	settle(m, loadedMsg{seq: m.loadSeq - 1, holdings: nil})
	if n := len(m.Rows()); n != 3 {
		t.Errorf("rows = %d, stale load should be ignored", n)
	}
}

func TestExport(t *testing.T) {
	exp := &fakeExporter{}
	m := New(context.Background(), Options{Client: seeded(), Lookup: fakeLookup(), Exporter: exp})
	for _, msg := range drain(m.Init()) {
		settle(m, msg)
	}

	press(m, "E")
	if exp.name != "portfolio" {
		t.Fatalf("export name = %q", exp.name)
	}
	wantCols := []string{"S.No", "Ticker", "Industry", "Company Price", "Frequency"}
	if !slices.Equal(exp.sheet.Columns, wantCols) {
		t.Errorf("columns = %v, want %v", exp.sheet.Columns, wantCols)
	}
	if len(exp.sheet.Rows) != 3 || !slices.Equal(exp.sheet.Rows[0], []string{"1", "AAPL", "Technology", "189.84", "weekly"}) {
		t.Errorf("rows = %v", exp.sheet.Rows)
	}
	if !strings.HasPrefix(m.Status(), "Exported to ") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestExportNotConfigured(t *testing.T) {
	m := newModel(t, seeded())
	press(m, "E")
	if m.Status() != "Export is not configured" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestViewShowsStatusAndInput(t *testing.T) {
	m := newModel(t, seeded())
	press(m, "a")
	out := m.View()
	for _, want := range []string{"Portfolio", "AAPL", addPrompt, helpLine} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
