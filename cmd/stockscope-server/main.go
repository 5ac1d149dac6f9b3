package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"stockscope/internal/auth"
	"stockscope/internal/config"
	"stockscope/internal/httpapi"
	"stockscope/internal/quote"
	"stockscope/internal/store"
	"stockscope/internal/util"
)

func main() {
	cfgPath := flag.String("config", envOr("STOCKSCOPE_CONFIG", "config/stockscope.yaml"), "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadOptional(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("opening database", "path", cfg.Storage.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	analysis := quote.NewAnalysisClient(cfg.Analysis.BaseURL, quote.AnalysisOptions{
		Timeout:         cfg.Analysis.Timeout,
		MaxAttempts:     cfg.Analysis.MaxAttempts,
		RateLimitPerMin: cfg.Analysis.RateLimitPerMin,
	})

	var lookup quote.Lookup = analysis
	if cfg.Alpaca.Enabled() {
		lookup = quote.NewAlpacaLookup(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, cfg.Alpaca.DataURL)
		logger.Info("company info from alpaca")
	} else {
		logger.Info("company info from analysis api", "url", cfg.Analysis.BaseURL)
	}

	srv := httpapi.NewServer(auth.NewService(db), db, lookup, logger).WithAnalyzer(analysis)
	httpSrv := &http.Server{Addr: cfg.Server.Addr(), Handler: srv.Handler()}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stockscope-server listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
