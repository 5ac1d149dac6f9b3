package quote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stockscope/internal/domain"
	"stockscope/internal/util"
)

// Compile-time interface check.
var _ Lookup = (*AnalysisClient)(nil)

// AnalysisClient talks to the stock analysis service: company info from
// /fundamentals/{ticker} and full reports from /analysis/.
type AnalysisClient struct {
	baseURL     string
	http        *http.Client
	maxAttempts int
	baseDelay   time.Duration
	limiter     *util.RateLimiter
	log         *slog.Logger
}

// AnalysisOptions configures an AnalysisClient. Zero values fall back to
// sensible defaults.
type AnalysisOptions struct {
	Timeout         time.Duration
	MaxAttempts     int
	RetryDelay      time.Duration
	RateLimitPerMin int
	HTTPClient      *http.Client
}

// NewAnalysisClient creates a client for the service at baseURL.
func NewAnalysisClient(baseURL string, opts AnalysisOptions) *AnalysisClient {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &AnalysisClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        hc,
		maxAttempts: attempts,
		baseDelay:   delay,
		limiter:     util.NewRateLimiter(opts.RateLimitPerMin),
		log:         slog.Default().With("lookup", "analysis"),
	}
}

// CompanyInfo fetches the fundamentals of ticker. Unknown tickers (any
// non-2xx answer other than 429 or 5xx) return ErrInvalidTicker without
// retrying; transport errors, 429 and 5xx are retried.
func (c *AnalysisClient) CompanyInfo(ctx context.Context, ticker string) (domain.CompanyInfo, error) {
	ticker = domain.NormalizeTicker(ticker)
	if !domain.ValidTicker(ticker) {
		return domain.CompanyInfo{}, fmt.Errorf("%q: %w", ticker, ErrInvalidTicker)
	}

	body, err := c.get(ctx, "/fundamentals/"+url.PathEscape(ticker), nil)
	if err != nil {
		return domain.CompanyInfo{}, err
	}
	return parseFundamentals(ticker, body)
}

// get fetches path with retries, each attempt paced by the rate limiter.
func (c *AnalysisClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := util.Retry(ctx, c.maxAttempts, c.baseDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		b, err := c.fetch(ctx, path, query)
		if err != nil {
			c.log.Debug("analysis api request failed", "path", path, "error", err)
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// fetch performs one GET. 429 and 5xx answers are retryable; any other
// non-2xx answer is a permanent ErrInvalidTicker.
func (c *AnalysisClient) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, util.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: status %d", path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, util.Permanent(fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, ErrInvalidTicker))
	}
	return body, nil
}

// parseFundamentals extracts the watchlist fields from a fundamentals
// document. Industry falls back to sector, then to UnknownIndustry.
func parseFundamentals(ticker string, body []byte) (domain.CompanyInfo, error) {
	if !gjson.ValidBytes(body) {
		return domain.CompanyInfo{}, fmt.Errorf("fundamentals %s: malformed response", ticker)
	}
	doc := gjson.ParseBytes(body)

	info := domain.CompanyInfo{Ticker: ticker, Industry: UnknownIndustry}
	for _, field := range []string{"industry", "sector"} {
		if v := strings.TrimSpace(doc.Get(field).String()); v != "" {
			info.Industry = v
			break
		}
	}
	info.Name = doc.Get("name").String()
	if p := doc.Get("current_price"); p.Type == gjson.Number {
		price := p.Float()
		info.Price = &price
	}
	return info, nil
}
