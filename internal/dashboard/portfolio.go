// Package dashboard implements the terminal screens. The watchlist shows the
// user's tickers in a table, enriched with company info, with optimistic add,
// delete, frequency edits, and export against a stockscope server. The
// analysis screen shows one ticker's indicators, scores and AI summary.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockscope/internal/domain"
	"stockscope/internal/quote"
	"stockscope/internal/store"
	"stockscope/internal/table"
	"stockscope/internal/tableui"
	"stockscope/pkg/stockscope"
)

const (
	// errorRowTTL is how long a failed optimistic row stays visible.
	errorRowTTL = 2 * time.Second
	statusTTL   = 4 * time.Second
	loadPage    = store.MaxPageSize
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpLine  = "a add · e frequency · E export · r reload · A analyze · q quit"
	addPrompt = "Add ticker: "
)

// PortfolioClient is the server API the screen drives. *stockscope.Client
// implements it.
type PortfolioClient interface {
	Portfolio(ctx context.Context, query string, page, size int) (*stockscope.Page, error)
	AddTicker(ctx context.Context, ticker, frequency string) (*stockscope.Holding, error)
	UpdateFrequency(ctx context.Context, ticker, frequency string) error
	DeleteTicker(ctx context.Context, ticker string) error
}

// Exporter writes a rendered table somewhere durable.
type Exporter interface {
	Export(name string, sheet store.Sheet) (string, error)
}

// Row is one line of the watchlist.
type Row struct {
	SNo       int
	Ticker    string
	Industry  string
	Price     string
	Frequency string

	price   *float64
	pending bool
}

// Options configures the screen. Client and Lookup are required.
type Options struct {
	Client    PortfolioClient
	Lookup    quote.Lookup
	Exporter  Exporter
	Workers   int
	PageSizes []int
	Logger    *slog.Logger
}

type (
	loadedMsg struct {
		seq      int
		holdings []stockscope.Holding
		err      error
	}
	enrichedMsg struct {
		seq     int
		results []quote.Result
	}
	addedMsg struct {
		ticker string
		info   domain.CompanyInfo
		err    error
	}
	removeRowMsg struct{ ticker string }
	deletedMsg   struct {
		ticker string
		err    error
	}
	frequencyMsg struct {
		ticker, prev, next string
		err                error
	}
	exportedMsg struct {
		path string
		err  error
	}
	clearStatusMsg struct{ seq int }
)

// Model is the watchlist screen. It is a pointer model: the table callbacks
// write intent back into it.
type Model struct {
	ctx     context.Context
	client  PortfolioClient
	lookup  quote.Lookup
	export  Exporter
	workers int
	log     *slog.Logger

	table  *table.Table[Row]
	ui     tableui.Model[Row]
	input  textinput.Model
	adding bool

	rows     []Row
	fetching bool
	loadSeq  int
	query    string

	needLoad  bool
	deletePos int

	status    string
	statusErr bool
	statusSeq int
}

// New builds the screen. ctx bounds every request it makes.
func New(ctx context.Context, opts Options) *Model {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Model{
		ctx:       ctx,
		client:    opts.Client,
		lookup:    opts.Lookup,
		export:    opts.Exporter,
		workers:   opts.Workers,
		log:       log,
		deletePos: -1,
	}

	m.table = table.New[Row](table.Options[Row]{
		ShowSearch: true,
		PageSizes:  opts.PageSizes,
		RowID:      func(_ int, r Row) string { return r.Ticker },
	}, table.Callbacks{
		OnFilterSubmit: func(q string) {
			m.query = q
			m.needLoad = true
		},
	})
	m.table.SetColumns(m.columns())
	filter := table.Filter{Key: "frequency", Label: "Frequency"}
	for _, f := range domain.Frequencies {
		filter.Options = append(filter.Options, table.Option{Value: string(f)})
	}
	m.table.SetFilters([]table.Filter{filter})

	m.ui = tableui.New(m.table)
	m.ui.Title = "Portfolio"

	m.input = textinput.New()
	m.input.Prompt = addPrompt
	m.input.Placeholder = "Enter ticker (e.g. AAPL)"
	m.input.CharLimit = 10
	return m
}

func (m *Model) columns() []table.Column[Row] {
	return []table.Column[Row]{
		{Key: "sno", Label: "S.No", Value: func(r Row) any { return r.SNo }},
		{Key: "ticker", Label: "Ticker", Value: func(r Row) any { return r.Ticker }},
		{Key: "industry", Label: "Industry", Value: func(r Row) any { return r.Industry }},
		{
			Key:   "price",
			Label: "Company Price",
			Value: func(r Row) any {
				if r.price == nil {
					return nil
				}
				return *r.price
			},
			Render: func(r Row) string { return r.Price },
		},
		{Key: "frequency", Label: "Frequency", Hideable: true, Value: func(r Row) any { return r.Frequency }},
		{Key: "actions", Label: "Delete", Action: func(pos int) { m.deletePos = pos }},
	}
}

// Rows returns the watchlist as currently shown, in load order.
func (m *Model) Rows() []Row { return slices.Clone(m.rows) }

// Status returns the transient notification line.
func (m *Model) Status() string { return m.status }

// Busy reports whether keys are going to the add prompt or the search box.
func (m *Model) Busy() bool { return m.adding || m.ui.Searching() }

// CursorTicker returns the ticker under the cursor, skipping rows that are
// still being added.
func (m *Model) CursorTicker() string {
	row, ok := m.ui.CursorRow()
	if !ok || row.Pos >= len(m.rows) || m.rows[row.Pos].pending {
		return ""
	}
	return m.rows[row.Pos].Ticker
}

// Table returns the underlying controller.
func (m *Model) Table() *table.Table[Row] { return m.table }

func (m *Model) Init() tea.Cmd { return m.reload() }

// Update handles keys and the results of background requests.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ui, _ = m.ui.Update(msg)
		m.input.Width = max(10, msg.Width-len(addPrompt)-2)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case loadedMsg:
		return m, m.onLoaded(msg)

	case enrichedMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		for _, r := range msg.results {
			i := m.indexOf(r.Ticker, false)
			if i < 0 {
				continue
			}
			if r.Err != nil {
				m.log.Warn("company lookup failed", "ticker", r.Ticker, "error", r.Err)
				m.rows[i].Industry, m.rows[i].Price = TextError, TextError
				continue
			}
			applyInfo(&m.rows[i], r.Info)
		}
		m.syncTable()
		return m, nil

	case addedMsg:
		return m, m.onAdded(msg)

	case removeRowMsg:
		if i := m.indexOf(msg.ticker, true); i >= 0 {
			m.removeRow(i)
		}
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.log.Error("deleting ticker", "ticker", msg.ticker, "error", msg.err)
			return m, m.setStatus("Failed to delete ticker", true)
		}
		if i := m.indexOf(msg.ticker, false); i >= 0 {
			m.removeRow(i)
		}
		return m, m.setStatus("Removed "+msg.ticker, false)

	case frequencyMsg:
		if msg.err != nil {
			if i := m.indexOf(msg.ticker, false); i >= 0 && m.rows[i].Frequency == msg.next {
				m.rows[i].Frequency = msg.prev
				m.syncTable()
			}
			m.log.Error("updating frequency", "ticker", msg.ticker, "error", msg.err)
			return m, m.setStatus("Failed to update frequency", true)
		}
		return m, m.setStatus(fmt.Sprintf("%s now %s", msg.ticker, msg.next), false)

	case exportedMsg:
		if msg.err != nil {
			m.log.Error("exporting", "error", msg.err)
			return m, m.setStatus("Export failed: "+msg.err.Error(), true)
		}
		return m, m.setStatus("Exported to "+msg.path, false)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil
	}

	if m.adding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.ui, cmd = m.ui.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if m.adding {
		return m.updateInput(msg)
	}
	if !m.ui.Searching() {
		switch msg.String() {
		case "q":
			return tea.Quit
		case "a":
			m.adding = true
			m.input.SetValue("")
			return m.input.Focus()
		case "e":
			return m.cycleFrequency()
		case "E":
			return m.exportCmd()
		case "r":
			return m.reload()
		}
	}

	var cmd tea.Cmd
	m.ui, cmd = m.ui.Update(msg)
	return tea.Batch(cmd, m.afterTable())
}

// afterTable turns intent recorded by table callbacks into commands.
func (m *Model) afterTable() tea.Cmd {
	if pos := m.deletePos; pos >= 0 {
		m.deletePos = -1
		return m.deleteCmd(pos)
	}
	if m.needLoad {
		m.needLoad = false
		return m.reload()
	}
	return nil
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.adding = false
		m.input.Blur()
		return nil
	case tea.KeyEnter:
		m.adding = false
		m.input.Blur()
		return m.addTicker(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// ---- loading ----

func (m *Model) reload() tea.Cmd {
	m.loadSeq++
	m.fetching = true
	m.syncTable()

	seq, ctx, client, query := m.loadSeq, m.ctx, m.client, m.query
	return func() tea.Msg {
		hs, err := loadAll(ctx, client, query)
		return loadedMsg{seq: seq, holdings: hs, err: err}
	}
}

// loadAll pages through the whole watchlist matching query.
func loadAll(ctx context.Context, c PortfolioClient, query string) ([]stockscope.Holding, error) {
	var all []stockscope.Holding
	for page := 0; ; page++ {
		p, err := c.Portfolio(ctx, query, page, loadPage)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Tickers...)
		if len(p.Tickers) == 0 || len(all) >= p.TotalElements || page+1 >= p.TotalPages {
			return all, nil
		}
	}
}

func (m *Model) onLoaded(msg loadedMsg) tea.Cmd {
	if msg.seq != m.loadSeq {
		return nil
	}
	m.fetching = false
	if msg.err != nil {
		m.syncTable()
		m.log.Error("loading portfolio", "error", msg.err)
		return m.setStatus("Failed to load portfolio: "+errorText(msg.err), true)
	}

	pending := slices.DeleteFunc(slices.Clone(m.rows), func(r Row) bool { return !r.pending })
	m.rows = make([]Row, 0, len(msg.holdings)+len(pending))
	tickers := make([]string, 0, len(msg.holdings))
	for _, h := range msg.holdings {
		m.rows = append(m.rows, Row{
			Ticker:    h.Ticker,
			Industry:  TextLoading,
			Price:     TextLoading,
			Frequency: h.Frequency,
		})
		tickers = append(tickers, h.Ticker)
	}
	// Adds still in flight keep their placeholder unless the server already
	// lists the ticker.
	for _, r := range pending {
		if !slices.Contains(tickers, r.Ticker) {
			m.rows = append(m.rows, r)
		}
	}
	m.renumber()
	m.syncTable()
	m.log.Info("portfolio loaded", "tickers", FormatInt(len(msg.holdings)), "query", m.query)
	if len(tickers) == 0 {
		return nil
	}

	seq, ctx, lookup, workers := m.loadSeq, m.ctx, m.lookup, m.workers
	return func() tea.Msg {
		return enrichedMsg{seq: seq, results: quote.Enrich(ctx, lookup, tickers, workers)}
	}
}

// ---- mutations ----

// addTicker appends a placeholder row and validates the ticker before saving
// it. The placeholder resolves in onAdded.
func (m *Model) addTicker(raw string) tea.Cmd {
	ticker := domain.NormalizeTicker(raw)
	if ticker == "" {
		return nil
	}
	if slices.ContainsFunc(m.rows, func(r Row) bool { return r.Ticker == ticker }) {
		return m.setStatus(ticker+" is already on the watchlist", true)
	}

	m.rows = append(m.rows, Row{
		SNo:       len(m.rows) + 1,
		Ticker:    ticker,
		Industry:  TextLoading,
		Price:     TextLoading,
		Frequency: string(domain.DefaultFrequency),
		pending:   true,
	})
	m.syncTable()

	ctx, client, lookup := m.ctx, m.client, m.lookup
	return func() tea.Msg {
		info, err := lookup.CompanyInfo(ctx, ticker)
		if err != nil {
			return addedMsg{ticker: ticker, err: err}
		}
		if _, err := client.AddTicker(ctx, ticker, string(domain.DefaultFrequency)); err != nil {
			return addedMsg{ticker: ticker, err: err}
		}
		return addedMsg{ticker: ticker, info: info}
	}
}

func (m *Model) onAdded(msg addedMsg) tea.Cmd {
	i := m.indexOf(msg.ticker, true)
	if i < 0 {
		// A reload replaced the placeholder with the saved row.
		if msg.err != nil {
			return m.setStatus("Invalid ticker or backend error", true)
		}
		if j := m.indexOf(msg.ticker, false); j >= 0 {
			applyInfo(&m.rows[j], msg.info)
			m.syncTable()
		}
		return m.setStatus("Added "+msg.ticker, false)
	}
	if msg.err != nil {
		m.log.Warn("adding ticker", "ticker", msg.ticker, "error", msg.err)
		m.rows[i].Industry, m.rows[i].Price = TextError, TextError
		m.syncTable()
		ticker := msg.ticker
		return tea.Batch(
			m.setStatus("Invalid ticker or backend error", true),
			tea.Tick(errorRowTTL, func(time.Time) tea.Msg { return removeRowMsg{ticker: ticker} }),
		)
	}
	applyInfo(&m.rows[i], msg.info)
	m.rows[i].pending = false
	m.syncTable()
	return m.setStatus("Added "+msg.ticker, false)
}

func (m *Model) deleteCmd(pos int) tea.Cmd {
	if pos < 0 || pos >= len(m.rows) || m.rows[pos].pending {
		return nil
	}
	ticker, ctx, client := m.rows[pos].Ticker, m.ctx, m.client
	return func() tea.Msg {
		return deletedMsg{ticker: ticker, err: client.DeleteTicker(ctx, ticker)}
	}
}

// cycleFrequency moves the cursor row to the next frequency, optimistically.
func (m *Model) cycleFrequency() tea.Cmd {
	row, ok := m.ui.CursorRow()
	if !ok || row.Pos >= len(m.rows) || m.rows[row.Pos].pending {
		return nil
	}
	r := &m.rows[row.Pos]
	prev := r.Frequency
	i := slices.Index(domain.Frequencies, domain.Frequency(prev))
	next := string(domain.Frequencies[(i+1)%len(domain.Frequencies)])
	r.Frequency = next
	m.syncTable()

	ticker, ctx, client := r.Ticker, m.ctx, m.client
	return func() tea.Msg {
		err := client.UpdateFrequency(ctx, ticker, next)
		return frequencyMsg{ticker: ticker, prev: prev, next: next, err: err}
	}
}

func (m *Model) exportCmd() tea.Cmd {
	if m.export == nil {
		return m.setStatus("Export is not configured", true)
	}
	sheet, exp := ExportSheet(m.table.View()), m.export
	return func() tea.Msg {
		path, err := exp.Export("portfolio", sheet)
		return exportedMsg{path: path, err: err}
	}
}

// ExportSheet converts a rendered view into a store.Sheet, dropping action
// columns and skeleton rows.
func ExportSheet(v table.View) store.Sheet {
	var sheet store.Sheet
	keep := make([]bool, len(v.Headers))
	if len(v.Rows) > 0 {
		for i, c := range v.Rows[0].Cells {
			keep[i] = !c.Action
		}
	} else {
		for i := range keep {
			keep[i] = v.Headers[i].Sortable
		}
	}
	for i, h := range v.Headers {
		if keep[i] {
			sheet.Columns = append(sheet.Columns, h.Label)
		}
	}
	for _, row := range v.Rows {
		if row.Skeleton {
			continue
		}
		line := make([]string, 0, len(sheet.Columns))
		for i, c := range row.Cells {
			if i < len(keep) && keep[i] {
				line = append(line, c.Text)
			}
		}
		sheet.Rows = append(sheet.Rows, line)
	}
	return sheet
}

// ---- helpers ----

func applyInfo(r *Row, info domain.CompanyInfo) {
	r.Industry = info.Industry
	if r.Industry == "" {
		r.Industry = quote.UnknownIndustry
	}
	r.price = info.Price
	r.Price = FormatPrice(info.Price)
}

// indexOf finds the row for ticker; pending selects placeholder rows.
func (m *Model) indexOf(ticker string, pending bool) int {
	return slices.IndexFunc(m.rows, func(r Row) bool { return r.Ticker == ticker && r.pending == pending })
}

func (m *Model) removeRow(i int) {
	m.rows = slices.Delete(m.rows, i, i+1)
	m.renumber()
	m.syncTable()
}

func (m *Model) renumber() {
	for i := range m.rows {
		m.rows[i].SNo = i + 1
	}
}

func (m *Model) syncTable() {
	m.table.SetData(table.Data[Row]{
		Records:     m.rows,
		Fetching:    m.fetching,
		Placeholder: slices.ContainsFunc(m.rows, func(r Row) bool { return r.pending }),
	})
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.status = text
	m.statusErr = isErr
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

func errorText(err error) string {
	var apiErr *stockscope.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// View renders the screen.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.ui.View())
	b.WriteByte('\n')
	if m.adding {
		b.WriteString(m.input.View())
		b.WriteByte('\n')
	}
	if m.status != "" {
		if m.statusErr {
			b.WriteString(errStyle.Render(m.status))
		} else {
			b.WriteString(okStyle.Render(m.status))
		}
		b.WriteByte('\n')
	}
	b.WriteString(dimStyle.Render(helpLine))
	return b.String()
}
