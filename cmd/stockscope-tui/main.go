package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"stockscope/internal/config"
	"stockscope/internal/dashboard"
	"stockscope/internal/quote"
	"stockscope/internal/store"
	"stockscope/internal/util"
	"stockscope/pkg/stockscope"
)

func main() {
	cfgPath := flag.String("config", envOr("STOCKSCOPE_CONFIG", "config/stockscope.yaml"), "path to the YAML config")
	server := flag.String("server", "", "stockscope server URL (overrides config)")
	token := flag.String("token", "", "session token (overrides config)")
	analyze := flag.String("analyze", "", "open the analysis screen for this ticker")
	term := flag.String("term", "long", "analysis horizon: long or short")
	penny := flag.Bool("penny", false, "analyze as a penny stock")
	flag.Parse()

	analysisTerm, err := quote.ParseTerm(*term)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadOptional(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Client.ServerURL = *server
	}
	if *token != "" {
		cfg.Client.Token = *token
	}

	logger, closer, err := util.OpenLogFile(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	util.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The server's /fundamentals and /analysis endpoints speak the analysis
	// API's format.
	api := quote.NewAnalysisClient(cfg.Client.ServerURL, quote.AnalysisOptions{
		Timeout:     cfg.Analysis.Timeout,
		MaxAttempts: cfg.Analysis.MaxAttempts,
	})

	// Without a session only the analysis screen is available.
	var portfolio *dashboard.Model
	if cfg.Client.Token != "" {
		portfolio = dashboard.New(ctx, dashboard.Options{
			Client:    stockscope.NewClient(cfg.Client.ServerURL, cfg.Client.Token),
			Lookup:    api,
			Exporter:  store.NewParquetExporter(cfg.Storage.ExportDir),
			Workers:   cfg.Analysis.Workers,
			PageSizes: cfg.Table.PageSizes,
			Logger:    logger,
		})
	} else {
		fmt.Fprintln(os.Stderr, "no session token: the watchlist needs stockscope-cli login and STOCKSCOPE_TOKEN or --token")
	}
	analysis := dashboard.NewAnalyze(ctx, dashboard.AnalyzeOptions{
		Analyzer: api,
		Term:     analysisTerm,
		Penny:    *penny,
		Logger:   logger,
	})
	app := dashboard.NewApp(portfolio, analysis)
	if *analyze != "" {
		app.StartWith(*analyze)
	}
	logger.Info("stockscope-tui starting", "server", cfg.Client.ServerURL, "watchlist", portfolio != nil)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
