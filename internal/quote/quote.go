// Package quote resolves tickers to the company information shown on a
// watchlist: industry and latest price.
package quote

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/pool"

	"stockscope/internal/domain"
)

// ErrInvalidTicker is returned when the data source does not know a ticker.
var ErrInvalidTicker = errors.New("quote: invalid ticker")

// UnknownIndustry is shown when a source reports neither industry nor sector.
const UnknownIndustry = "Unknown"

// DefaultWorkers bounds Enrich when the caller passes no limit.
const DefaultWorkers = 4

// Lookup resolves one ticker.
type Lookup interface {
	CompanyInfo(ctx context.Context, ticker string) (domain.CompanyInfo, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, ticker string) (domain.CompanyInfo, error)

// CompanyInfo calls f.
func (f LookupFunc) CompanyInfo(ctx context.Context, ticker string) (domain.CompanyInfo, error) {
	return f(ctx, ticker)
}

// Result is the outcome of one lookup within Enrich.
type Result struct {
	Ticker string
	Info   domain.CompanyInfo
	Err    error
}

// Enrich looks up every ticker with at most workers concurrent calls and
// returns one Result per ticker in input order. A failed lookup only fails
// its own Result.
func Enrich(ctx context.Context, l Lookup, tickers []string, workers int) []Result {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]Result, len(tickers))
	p := pool.New().WithMaxGoroutines(workers)
	for i, tk := range tickers {
		p.Go(func() {
			info, err := l.CompanyInfo(ctx, tk)
			results[i] = Result{Ticker: tk, Info: info, Err: err}
		})
	}
	p.Wait()
	return results
}
