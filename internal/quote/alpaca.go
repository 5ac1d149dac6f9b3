package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockscope/internal/domain"
)

// Compile-time interface check.
var _ Lookup = (*AlpacaLookup)(nil)

// assetSource is the part of *alpaca.Client used here.
type assetSource interface {
	GetAsset(symbol string) (*alpaca.Asset, error)
}

// tradeSource is the part of *marketdata.Client used here.
type tradeSource interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaLookup resolves tickers through Alpaca: the trading API's asset
// endpoint for the company name and exchange, and the market-data API's
// latest trade for the price.
type AlpacaLookup struct {
	assets assetSource
	trades tradeSource
	log    *slog.Logger
}

// NewAlpacaLookup creates a lookup with the given credentials. Empty URLs
// use the SDK defaults.
func NewAlpacaLookup(apiKey, apiSecret, baseURL, dataURL string) *AlpacaLookup {
	tradingOpts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		tradingOpts.BaseURL = baseURL
	}
	dataOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		dataOpts.BaseURL = dataURL
	}
	return &AlpacaLookup{
		assets: alpaca.NewClient(tradingOpts),
		trades: marketdata.NewClient(dataOpts),
		log:    slog.Default().With("lookup", "alpaca"),
	}
}

// CompanyInfo returns the asset name, its exchange as the industry label
// (Alpaca has no industry classification), and the latest trade price. A
// missing price is not an error.
func (a *AlpacaLookup) CompanyInfo(ctx context.Context, ticker string) (domain.CompanyInfo, error) {
	ticker = domain.NormalizeTicker(ticker)
	if !domain.ValidTicker(ticker) {
		return domain.CompanyInfo{}, fmt.Errorf("%q: %w", ticker, ErrInvalidTicker)
	}
	if err := ctx.Err(); err != nil {
		return domain.CompanyInfo{}, err
	}

	asset, err := a.assets.GetAsset(ticker)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return domain.CompanyInfo{}, fmt.Errorf("%s: %w", ticker, ErrInvalidTicker)
		}
		return domain.CompanyInfo{}, fmt.Errorf("alpaca asset %s: %w", ticker, err)
	}

	info := domain.CompanyInfo{
		Ticker:   ticker,
		Name:     asset.Name,
		Industry: asset.Exchange,
	}
	if info.Industry == "" {
		info.Industry = UnknownIndustry
	}

	trade, err := a.trades.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{})
	switch {
	case err != nil:
		a.log.Warn("latest trade unavailable", "ticker", ticker, "error", err)
	case trade != nil && trade.Price > 0:
		price := trade.Price
		info.Price = &price
	}
	return info, nil
}
