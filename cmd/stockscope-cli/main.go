package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	flag "github.com/spf13/pflag"

	"stockscope/internal/config"
	"stockscope/internal/dashboard"
	"stockscope/internal/domain"
	"stockscope/internal/quote"
	"stockscope/internal/store"
	"stockscope/internal/table"
	"stockscope/pkg/stockscope"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stockscope-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                 Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  register                Create an account and print its token\n")
	fmt.Fprintf(os.Stderr, "  login                   Log in and print the session token\n")
	fmt.Fprintf(os.Stderr, "  list                    Show one page of the watchlist\n")
	fmt.Fprintf(os.Stderr, "  add TICKER              Add a ticker to the watchlist\n")
	fmt.Fprintf(os.Stderr, "  rm TICKER               Remove a ticker\n")
	fmt.Fprintf(os.Stderr, "  freq TICKER FREQUENCY   Set daily, weekly or monthly\n")
	fmt.Fprintf(os.Stderr, "  export                  Write the watchlist to a parquet file\n")
	fmt.Fprintf(os.Stderr, "  analyze TICKER          Show indicators, scores and the AI summary\n")
	fmt.Fprintf(os.Stderr, "\nRun stockscope-cli <command> --help for options.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "version":
		fmt.Printf("stockscope-cli %s\n", version)
	case "register":
		err = runRegister(args)
	case "login":
		err = runLogin(args)
	case "list":
		err = runList(args)
	case "add":
		err = runAdd(args)
	case "rm":
		err = runRemove(args)
	case "freq":
		err = runFrequency(args)
	case "export":
		err = runExport(args)
	case "analyze":
		err = runAnalyze(args, os.Stdout)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared flags
// ---------------------------------------------------------------------------

type env struct {
	cfgPath string
	server  string
	token   string

	cfg    *config.Config
	client *stockscope.Client
}

func newFlags(name string) (*flag.FlagSet, *env) {
	e := &env{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&e.cfgPath, "config", envOr("STOCKSCOPE_CONFIG", "config/stockscope.yaml"), "path to the YAML config")
	fs.StringVar(&e.server, "server", "", "stockscope server URL (overrides config)")
	fs.StringVar(&e.token, "token", "", "session token (overrides config)")
	return fs, e
}

// open loads config and builds the API client. needToken rejects a missing
// session token up front.
func (e *env) open(needToken bool) error {
	cfg, err := config.LoadOptional(e.cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if e.server != "" {
		cfg.Client.ServerURL = e.server
	}
	if e.token != "" {
		cfg.Client.Token = e.token
	}
	if needToken && cfg.Client.Token == "" {
		return errors.New("no session token: run login, then set STOCKSCOPE_TOKEN or --token")
	}
	e.cfg = cfg
	e.client = stockscope.NewClient(cfg.Client.ServerURL, cfg.Client.Token)
	return nil
}

func (e *env) lookup() quote.Lookup {
	return quote.NewAnalysisClient(e.cfg.Client.ServerURL, quote.AnalysisOptions{
		Timeout:     e.cfg.Analysis.Timeout,
		MaxAttempts: e.cfg.Analysis.MaxAttempts,
	})
}

// ---------------------------------------------------------------------------
// Account commands
// ---------------------------------------------------------------------------

func runRegister(args []string) error {
	fs, e := newFlags("register")
	email := fs.String("email", "", "account email")
	nickname := fs.String("nickname", "", "display name")
	password := fs.String("password", "", "password (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.open(false); err != nil {
		return err
	}
	s, err := e.client.Register(context.Background(), *email, *nickname, *password)
	if err != nil {
		return err
	}
	printSession(s)
	return nil
}

func runLogin(args []string) error {
	fs, e := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.open(false); err != nil {
		return err
	}
	s, err := e.client.Login(context.Background(), *email, *password)
	if err != nil {
		return err
	}
	printSession(s)
	return nil
}

func printSession(s *stockscope.Session) {
	fmt.Println(s.Message)
	if s.Nickname != "" {
		fmt.Printf("Welcome, %s\n", s.Nickname)
	}
	fmt.Printf("export STOCKSCOPE_TOKEN=%s\n", s.Token)
}

// ---------------------------------------------------------------------------
// Watchlist commands
// ---------------------------------------------------------------------------

type listRow struct {
	SNo      int
	Holding  stockscope.Holding
	Industry string
	Price    *float64
}

func listColumns(info bool) []table.Column[listRow] {
	cols := []table.Column[listRow]{
		{Key: "sno", Label: "S.No", Value: func(r listRow) any { return r.SNo }},
		{Key: "ticker", Label: "Ticker", Value: func(r listRow) any { return r.Holding.Ticker }},
		{Key: "frequency", Label: "Frequency", Value: func(r listRow) any { return r.Holding.Frequency }},
	}
	if info {
		cols = append(cols,
			table.Column[listRow]{Key: "industry", Label: "Industry", Value: func(r listRow) any { return r.Industry }},
			table.Column[listRow]{
				Key:   "price",
				Label: "Company Price",
				Value: func(r listRow) any {
					if r.Price == nil {
						return nil
					}
					return *r.Price
				},
				Render: func(r listRow) string { return dashboard.FormatPrice(r.Price) },
			},
		)
	}
	return cols
}

func frequencyFilter() table.Filter {
	f := table.Filter{Key: "frequency", Label: "Frequency"}
	for _, v := range domain.Frequencies {
		f.Options = append(f.Options, table.Option{Value: string(v)})
	}
	return f
}

// enrichRows fills Industry and Price from the server's fundamentals.
func (e *env) enrichRows(ctx context.Context, rows []listRow) {
	tickers := make([]string, len(rows))
	for i, r := range rows {
		tickers[i] = r.Holding.Ticker
	}
	for i, res := range quote.Enrich(ctx, e.lookup(), tickers, e.cfg.Analysis.Workers) {
		if res.Err != nil {
			rows[i].Industry = dashboard.TextError
			continue
		}
		rows[i].Industry = res.Info.Industry
		rows[i].Price = res.Info.Price
	}
}

func runList(args []string) error {
	fs, e := newFlags("list")
	search := fs.String("search", "", "ticker substring")
	frequency := fs.String("frequency", "", "only daily, weekly or monthly")
	page := fs.Int("page", 1, "page number, starting at 1")
	size := fs.Int("size", store.DefaultPageSize, "rows per page")
	sortKey := fs.String("sort", "", "sort the page by column key (prefix - for descending)")
	info := fs.Bool("info", false, "include industry and price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.open(true); err != nil {
		return err
	}

	var query string
	t := table.New[listRow](table.Options[listRow]{
		ShowSearch: true,
		PageSizes:  []int{*size},
		RowID:      func(_ int, r listRow) string { return r.Holding.Ticker },
	}, table.Callbacks{
		OnPageChange:   func(int) {},
		OnFilterSubmit: func(q string) { query = q },
	})
	t.SetColumns(listColumns(*info))
	t.SetFilters([]table.Filter{frequencyFilter()})
	if *frequency != "" {
		if !t.SelectFilter("frequency", *frequency) {
			return fmt.Errorf("unknown frequency %q", *frequency)
		}
		t.SubmitFilters()
	}
	if *search != "" {
		if query != "" {
			query += "&"
		}
		query += "search=" + url.QueryEscape(*search)
	}

	ctx := context.Background()
	p, err := e.client.Portfolio(ctx, query, max(*page, 1)-1, *size)
	if err != nil {
		return err
	}

	rows := make([]listRow, len(p.Tickers))
	for i, h := range p.Tickers {
		rows[i] = listRow{SNo: p.Page*p.Size + i + 1, Holding: h}
	}
	if *info {
		e.enrichRows(ctx, rows)
	}
	t.SetData(table.Data[listRow]{
		Records:     rows,
		CurrentPage: p.Page,
		Total:       &table.TotalCount{Elements: p.TotalElements, Pages: p.TotalPages},
	})
	if key := *sortKey; key != "" {
		desc := key[0] == '-'
		if desc {
			key = key[1:]
		}
		if !t.SortBy(key) {
			return fmt.Errorf("unknown column %q", key)
		}
		if desc {
			t.SortBy(key)
		}
	}

	printView(t.View())
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printView(v table.View) {
	if v.Empty {
		fmt.Println("No results.")
		fmt.Println(v.Pagination.Label)
		return
	}
	sheet := dashboard.ExportSheet(v)
	out := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(sheet.Columns...).
		Rows(sheet.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Println(out.Render())
	fmt.Printf("%s  %s\n", v.Pagination.Label, v.Pagination.PageLabel)
}

func runAdd(args []string) error {
	fs, e := newFlags("add")
	frequency := fs.String("frequency", string(domain.DefaultFrequency), "daily, weekly or monthly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: add TICKER [--frequency weekly]")
	}
	if err := e.open(true); err != nil {
		return err
	}
	ctx := context.Background()
	ticker := domain.NormalizeTicker(fs.Arg(0))

	info, err := e.lookup().CompanyInfo(ctx, ticker)
	if err != nil {
		return fmt.Errorf("invalid ticker or backend error: %w", err)
	}
	h, err := e.client.AddTicker(ctx, ticker, *frequency)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s, %s) checked %s\n", h.Ticker, info.Industry, dashboard.FormatPrice(info.Price), h.Frequency)
	return nil
}

func runRemove(args []string) error {
	fs, e := newFlags("rm")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: rm TICKER")
	}
	if err := e.open(true); err != nil {
		return err
	}
	ticker := domain.NormalizeTicker(fs.Arg(0))
	if err := e.client.DeleteTicker(context.Background(), ticker); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", ticker)
	return nil
}

func runFrequency(args []string) error {
	fs, e := newFlags("freq")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: freq TICKER daily|weekly|monthly")
	}
	if err := e.open(true); err != nil {
		return err
	}
	ticker := domain.NormalizeTicker(fs.Arg(0))
	if err := e.client.UpdateFrequency(context.Background(), ticker, fs.Arg(1)); err != nil {
		return err
	}
	fmt.Printf("%s now %s\n", ticker, fs.Arg(1))
	return nil
}

func runExport(args []string) error {
	fs, e := newFlags("export")
	dir := fs.String("out", "", "output directory (default storage.export_dir)")
	name := fs.String("name", "portfolio", "file name prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.open(true); err != nil {
		return err
	}
	if *dir == "" {
		*dir = e.cfg.Storage.ExportDir
	}
	ctx := context.Background()

	var rows []listRow
	for page := 0; ; page++ {
		p, err := e.client.Portfolio(ctx, "", page, store.MaxPageSize)
		if err != nil {
			return err
		}
		for _, h := range p.Tickers {
			rows = append(rows, listRow{SNo: len(rows) + 1, Holding: h})
		}
		if len(p.Tickers) == 0 || page+1 >= p.TotalPages {
			break
		}
	}
	e.enrichRows(ctx, rows)

	t := table.New[listRow](table.Options[listRow]{PageSizes: []int{max(len(rows), 1)}}, table.Callbacks{})
	t.SetColumns(listColumns(true))
	t.SetData(table.Data[listRow]{Records: rows})

	path, err := store.NewParquetExporter(*dir).Export(*name, dashboard.ExportSheet(t.View()))
	if err != nil {
		return err
	}
	fmt.Printf("Exported %s rows to %s\n", dashboard.FormatInt(len(rows)), path)
	return nil
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func runAnalyze(args []string, out io.Writer) error {
	fs, e := newFlags("analyze")
	term := fs.String("term", "long", "analysis horizon: long or short")
	penny := fs.Bool("penny", false, "analyze as a penny stock")
	age := fs.Int("age", 0, "investor age, for the summary")
	risk := fs.String("risk", "", "risk profile, for the summary")
	width := fs.Int("width", 100, "output width")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: analyze TICKER [--term long|short] [--penny]")
	}
	t, err := quote.ParseTerm(*term)
	if err != nil {
		return err
	}
	if err := e.open(false); err != nil {
		return err
	}

	client := quote.NewAnalysisClient(e.cfg.Client.ServerURL, quote.AnalysisOptions{
		Timeout:     e.cfg.Analysis.Timeout,
		MaxAttempts: e.cfg.Analysis.MaxAttempts,
	})
	a, err := client.Analyze(context.Background(), quote.AnalyzeRequest{
		Ticker:      fs.Arg(0),
		Term:        t,
		Penny:       *penny,
		Age:         *age,
		RiskProfile: *risk,
	})
	if errors.Is(err, quote.ErrInvalidTicker) {
		return fmt.Errorf("no analysis for %s: %w", domain.NormalizeTicker(fs.Arg(0)), err)
	}
	if err != nil {
		return errors.New("failed to fetch stock data, please try again")
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	sections := quote.ParseSections(a.AIAnalysis)
	fmt.Fprintln(out, dashboard.RenderVerdict(a.Ticker, sections.Verdict))
	fmt.Fprintln(out, dashboard.RenderIndicators(a, *width))
	if len(a.News.TopStories) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render("Top stories"))
		for _, story := range a.News.TopStories {
			fmt.Fprintf(out, "  • %s\n", story)
		}
	}
	for i, name := range dashboard.SummaryTabs {
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render(name))
		fmt.Fprintln(out, dashboard.RenderMarkdown(dashboard.SummarySection(sections, i), *width))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
