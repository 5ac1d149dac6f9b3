package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockscope/internal/domain"
	"stockscope/internal/quote"
)

// Analyzer fetches analysis reports. *quote.AnalysisClient implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req quote.AnalyzeRequest) (*quote.Analysis, error)
}

// SummaryTabs names the parts of the AI summary, in display order.
var SummaryTabs = []string{"Recommendation", "Strengths", "Weaknesses", "Fundamentals"}

const (
	analyzePrompt = "Ticker: "
	analyzeHelp   = "enter analyze · t term · p penny · ←/→ summary · / edit · esc back · q quit"
	fetchFailed   = "Failed to fetch stock data. Please try again."
	noSection     = "_No data found._"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = tabStyle.Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type (
	analyzedMsg struct {
		seq int
		req quote.AnalyzeRequest
		a   *quote.Analysis
		err error
	}
	backMsg struct{}
)

// AnalyzeOptions configures the analysis screen. Analyzer is required; Age
// and RiskProfile are passed through to every request.
type AnalyzeOptions struct {
	Analyzer    Analyzer
	Term        quote.Term
	Penny       bool
	Age         int
	RiskProfile string
	Logger      *slog.Logger
}

// AnalyzeModel is the single-ticker analysis screen: indicator panels, scores
// and the AI summary split into tabs.
type AnalyzeModel struct {
	ctx      context.Context
	analyzer Analyzer
	log      *slog.Logger
	opts     AnalyzeOptions

	input textinput.Model
	width int
	tab   int

	seq      int
	loading  bool
	result   *quote.Analysis
	sections quote.Sections
	err      string
}

// NewAnalyze builds the screen with the ticker prompt focused.
func NewAnalyze(ctx context.Context, opts AnalyzeOptions) *AnalyzeModel {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Term == "" {
		opts.Term = quote.TermLong
	}
	m := &AnalyzeModel{ctx: ctx, analyzer: opts.Analyzer, log: log, opts: opts, width: 80}
	m.input = textinput.New()
	m.input.Prompt = analyzePrompt
	m.input.Placeholder = "Enter stock ticker"
	m.input.CharLimit = 10
	m.input.Focus()
	return m
}

// Result returns the last report shown, or nil.
func (m *AnalyzeModel) Result() *quote.Analysis { return m.result }

// Err returns the error line, if any.
func (m *AnalyzeModel) Err() string { return m.err }

// Loading reports whether a request is in flight.
func (m *AnalyzeModel) Loading() bool { return m.loading }

// Editing reports whether the ticker prompt has focus.
func (m *AnalyzeModel) Editing() bool { return m.input.Focused() }

// Open analyzes ticker right away, or focuses the prompt when it is empty.
func (m *AnalyzeModel) Open(ticker string) tea.Cmd {
	m.input.SetValue(ticker)
	if ticker == "" {
		return m.input.Focus()
	}
	m.input.Blur()
	return m.analyze()
}

func (m *AnalyzeModel) Init() tea.Cmd { return textinput.Blink }

func (m *AnalyzeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-len(analyzePrompt)-2)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case analyzedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.log.Warn("analysis failed", "ticker", msg.req.Ticker, "error", msg.err)
			m.err = fetchFailed
			if errors.Is(msg.err, quote.ErrInvalidTicker) {
				m.err = "No analysis for " + msg.req.Ticker + ": invalid ticker"
			}
			return m, nil
		}
		m.result, m.sections, m.err = msg.a, quote.ParseSections(msg.a.AIAnalysis), ""
		return m, nil
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *AnalyzeModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			m.input.Blur()
			return m.analyze()
		case tea.KeyEsc:
			m.input.Blur()
			if m.result == nil && !m.loading {
				return back
			}
			return nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "esc":
		return back
	case "/", "i":
		return m.input.Focus()
	case "t":
		if m.opts.Term == quote.TermLong {
			m.opts.Term = quote.TermShort
		} else {
			m.opts.Term = quote.TermLong
		}
		return m.rerun()
	case "p":
		m.opts.Penny = !m.opts.Penny
		return m.rerun()
	case "r":
		return m.rerun()
	case "left", "h":
		m.tab = (m.tab + len(SummaryTabs) - 1) % len(SummaryTabs)
	case "right", "l", "tab":
		m.tab = (m.tab + 1) % len(SummaryTabs)
	}
	return nil
}

func back() tea.Msg { return backMsg{} }

func (m *AnalyzeModel) rerun() tea.Cmd {
	if strings.TrimSpace(m.input.Value()) == "" {
		return nil
	}
	return m.analyze()
}

func (m *AnalyzeModel) analyze() tea.Cmd {
	ticker := domain.NormalizeTicker(m.input.Value())
	m.input.SetValue(ticker)
	if !domain.ValidTicker(ticker) {
		m.err = "Enter a valid ticker"
		return m.input.Focus()
	}
	m.seq++
	m.loading, m.err, m.tab = true, "", 0

	req := quote.AnalyzeRequest{
		Ticker:      ticker,
		Term:        m.opts.Term,
		Penny:       m.opts.Penny,
		Age:         m.opts.Age,
		RiskProfile: m.opts.RiskProfile,
	}
	seq, ctx, analyzer := m.seq, m.ctx, m.analyzer
	return func() tea.Msg {
		a, err := analyzer.Analyze(ctx, req)
		return analyzedMsg{seq: seq, req: req, a: a, err: err}
	}
}

func (m *AnalyzeModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Stock Analysis"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	penny := "no"
	if m.opts.Penny {
		penny = "yes"
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("Term: %s · Penny stock: %s", m.opts.Term, penny)))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(dimStyle.Render("Analyzing " + m.input.Value() + "..."))
		b.WriteString("\n\n")
	case m.err != "":
		b.WriteString(errStyle.Render(m.err))
		b.WriteString("\n\n")
	}
	if m.result != nil && !m.loading {
		b.WriteString(RenderVerdict(m.result.Ticker, m.sections.Verdict))
		b.WriteString("\n")
		b.WriteString(RenderIndicators(m.result, m.width))
		b.WriteString("\n\n")
		b.WriteString(renderTabs(m.tab))
		b.WriteString("\n\n")
		b.WriteString(RenderMarkdown(SummarySection(m.sections, m.tab), m.width))
		b.WriteString("\n\n")
	}
	b.WriteString(dimStyle.Render(analyzeHelp))
	return b.String()
}

// SummarySection returns the markdown for SummaryTabs[i], or a placeholder
// when the summary has no such part.
func SummarySection(s quote.Sections, i int) string {
	var md string
	switch i {
	case 0:
		md = s.Recommendation
	case 1:
		md = s.Strengths
	case 2:
		md = s.Weaknesses
	case 3:
		md = s.Fundamentals
	}
	if strings.TrimSpace(md) == "" {
		return noSection
	}
	return md
}

func renderTabs(active int) string {
	tabs := make([]string, len(SummaryTabs))
	for i, name := range SummaryTabs {
		if i == active {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// RenderVerdict prints the headline call, colored by direction.
func RenderVerdict(ticker, verdict string) string {
	if verdict == "" {
		verdict = TextNA
	}
	style := warnStyle
	switch {
	case strings.Contains(verdict, "BUY"):
		style = okStyle
	case strings.Contains(verdict, "SELL"):
		style = errStyle
	}
	return titleStyle.Render(ticker+" verdict: ") + style.Bold(true).Render(verdict)
}

// RenderIndicators lays out the technical, fundamentals, news and score
// panels side by side, wrapping onto more rows when width is too narrow.
func RenderIndicators(a *quote.Analysis, width int) string {
	boxes := []string{
		panel("Technical", [][2]string{
			{"RSI", FormatNumber(a.Technical.RSI)},
			{"MACD / Signal", FormatNumber(a.Technical.MACD) + " / " + FormatNumber(a.Technical.Signal)},
			{"SMA 50 / 200", FormatNumber(a.Technical.SMA50) + " / " + FormatNumber(a.Technical.SMA200)},
			{"Trend", orNA(a.Technical.TrendZone)},
			{"EMA crossover", orNA(a.Technical.EMACrossover)},
			{"Squeeze", orNA(a.Technical.SqueezeZone)},
			{"Last candle", orNA(a.Technical.LastCandle)},
			{"Volume spike", yesNo(a.Technical.VolumeSpike)},
		}),
		panel("Fundamentals", [][2]string{
			{"P/E", FormatNumber(a.Fundamentals.PE)},
			{"Forward P/E", FormatNumber(a.Fundamentals.ForwardPE)},
			{"P/B", FormatNumber(a.Fundamentals.PB)},
			{"Market cap", FormatMarketCap(a.Fundamentals.MarketCap)},
			{"Earnings growth", FormatNumber(a.Fundamentals.EarningsGrowth)},
			{"Revenue growth", FormatNumber(a.Fundamentals.RevenueGrowth)},
		}),
		panel("News Sentiment", sentimentRows(a.News.SentimentCounts)),
		panel("Scores", [][2]string{
			{"Fundamental", FormatNumber(a.Scores.Fund)},
			{"Technical", FormatNumber(a.Scores.Tech)},
			{"News", FormatNumber(a.Scores.News)},
			{"Insider", FormatNumber(a.Scores.Insider)},
			{"Final", FormatNumber(a.Scores.Final)},
		}),
	}

	var rows []string
	for len(boxes) > 0 {
		n := 1
		for n < len(boxes) && lipgloss.Width(lipgloss.JoinHorizontal(lipgloss.Top, boxes[:n+1]...)) <= width {
			n++
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes[:n]...))
		boxes = boxes[n:]
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func panel(title string, rows [][2]string) string {
	label := 0
	for _, r := range rows {
		label = max(label, len(r[0]))
	}
	lines := []string{titleStyle.Render(title)}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%-*s  %s", label, r[0]+":", r[1]))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// sentimentRows lists positive, neutral and negative first, then any other
// labels alphabetically.
func sentimentRows(counts map[string]int) [][2]string {
	if len(counts) == 0 {
		return [][2]string{{"Stories", TextNA}}
	}
	known := []string{"positive", "neutral", "negative"}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ia, ib := slices.Index(known, a), slices.Index(known, b)
		switch {
		case ia >= 0 && ib >= 0:
			return ia - ib
		case ia >= 0:
			return -1
		case ib >= 0:
			return 1
		}
		return strings.Compare(a, b)
	})
	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		name := k
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		rows = append(rows, [2]string{name, FormatInt(counts[k])})
	}
	return rows
}

func orNA(s string) string {
	if s == "" {
		return TextNA
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
