package quote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"stockscope/internal/domain"
)

// Term is the horizon an analysis is scored for.
type Term string

const (
	TermLong  Term = "long"
	TermShort Term = "short"
)

// ErrInvalidTerm is returned for terms other than long and short.
var ErrInvalidTerm = errors.New("quote: term must be long or short")

// ParseTerm maps "", "long" and "short" to a Term. Empty means long.
func ParseTerm(s string) (Term, error) {
	switch Term(strings.ToLower(strings.TrimSpace(s))) {
	case "", TermLong:
		return TermLong, nil
	case TermShort:
		return TermShort, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidTerm)
}

// AnalyzeRequest selects the report. Age and RiskProfile are optional hints
// for the summary and are omitted when zero.
type AnalyzeRequest struct {
	Ticker      string
	Term        Term
	Penny       bool
	Age         int
	RiskProfile string
}

// Values encodes r as the service's query parameters.
func (r AnalyzeRequest) Values() url.Values {
	v := url.Values{}
	v.Set("ticker", r.Ticker)
	term := r.Term
	if term == "" {
		term = TermLong
	}
	v.Set("term", string(term))
	v.Set("penny", strconv.FormatBool(r.Penny))
	if r.Age > 0 {
		v.Set("age", strconv.Itoa(r.Age))
	}
	if r.RiskProfile != "" {
		v.Set("risk_profile", r.RiskProfile)
	}
	return v
}

// Scores are the component and final scores of an analysis.
type Scores struct {
	Fund    *float64 `json:"fund_score"`
	Tech    *float64 `json:"tech_score"`
	News    *float64 `json:"news_score"`
	Insider *float64 `json:"insider_score"`
	Final   *float64 `json:"final_score"`
}

// Technical holds the indicator readings.
type Technical struct {
	RSI          *float64 `json:"rsi"`
	MACD         *float64 `json:"macd"`
	Signal       *float64 `json:"signal"`
	SMA50        *float64 `json:"sma_50"`
	SMA200       *float64 `json:"sma_200"`
	TrendZone    string   `json:"trend_zone"`
	EMACrossover string   `json:"ema_crossover"`
	SqueezeZone  string   `json:"squeeze_zone"`
	LastCandle   string   `json:"last_candle"`
	VolumeSpike  bool     `json:"volume_spike"`
}

// Fundamentals holds valuation and growth figures. Missing values are nil.
type Fundamentals struct {
	PB             *float64 `json:"pb"`
	PE             *float64 `json:"pe"`
	ForwardPE      *float64 `json:"forward_pe"`
	MarketCap      *float64 `json:"market_cap"`
	EarningsGrowth *float64 `json:"earnings_growth"`
	RevenueGrowth  *float64 `json:"revenue_growth"`
}

// News summarises recent coverage.
type News struct {
	SentimentCounts map[string]int `json:"sentiment_counts"`
	TopStories      []string       `json:"top_stories"`
}

// Analysis is one report from the analysis service.
type Analysis struct {
	Ticker       string       `json:"ticker"`
	AIAnalysis   string       `json:"ai_analysis"`
	Scores       Scores       `json:"scores"`
	Technical    Technical    `json:"technical"`
	Fundamentals Fundamentals `json:"fundamentals"`
	News         News         `json:"news"`
}

// Analyze fetches a full report from /analysis/. Unknown tickers and
// rejected requests return ErrInvalidTicker; transient failures are retried.
func (c *AnalysisClient) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	req.Ticker = domain.NormalizeTicker(req.Ticker)
	if !domain.ValidTicker(req.Ticker) {
		return nil, fmt.Errorf("%q: %w", req.Ticker, ErrInvalidTicker)
	}
	body, err := c.get(ctx, "/analysis/", req.Values())
	if err != nil {
		return nil, err
	}
	return parseAnalysis(req.Ticker, body)
}

func parseAnalysis(ticker string, body []byte) (*Analysis, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("analysis %s: malformed response", ticker)
	}
	doc := gjson.ParseBytes(body)

	a := &Analysis{
		Ticker:     doc.Get("ticker").String(),
		AIAnalysis: doc.Get("ai_analysis").String(),
	}
	if a.Ticker == "" {
		a.Ticker = ticker
	}

	a.Scores = Scores{
		Fund:    number(doc, "scores.fund_score"),
		Tech:    number(doc, "scores.tech_score"),
		News:    number(doc, "scores.news_score"),
		Insider: number(doc, "scores.insider_score"),
		Final:   number(doc, "scores.final_score"),
	}

	tech := doc.Get("technical")
	a.Technical = Technical{
		RSI:          number(tech, "rsi"),
		MACD:         number(tech, "macd"),
		Signal:       number(tech, "signal"),
		SMA50:        number(tech, "sma_50"),
		SMA200:       number(tech, "sma_200"),
		TrendZone:    tech.Get("trend_zone").String(),
		EMACrossover: tech.Get("ema_crossover").String(),
		SqueezeZone:  tech.Get("squeeze_zone").String(),
		LastCandle:   tech.Get("last_candle").String(),
		VolumeSpike:  tech.Get("volume_spike").Bool(),
	}

	fund := doc.Get("fundamentals")
	a.Fundamentals = Fundamentals{
		PB:             number(fund, "pb"),
		PE:             number(fund, "pe", "trailing_pe"),
		ForwardPE:      number(fund, "forward_pe", "fpe"),
		MarketCap:      number(fund, "market_cap"),
		EarningsGrowth: number(fund, "earnings_growth"),
		RevenueGrowth:  number(fund, "revenue_growth"),
	}

	if counts := doc.Get("news.sentiment_counts"); counts.IsObject() {
		a.News.SentimentCounts = make(map[string]int)
		counts.ForEach(func(k, v gjson.Result) bool {
			a.News.SentimentCounts[k.String()] = int(v.Int())
			return true
		})
	}
	for _, s := range doc.Get("news.top_stories").Array() {
		if s.String() != "" {
			a.News.TopStories = append(a.News.TopStories, s.String())
		}
	}
	return a, nil
}

// number returns the first of paths under r holding a JSON number.
func number(r gjson.Result, paths ...string) *float64 {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.Number {
			f := v.Float()
			return &f
		}
	}
	return nil
}

// Sections is the AI summary split into the parts shown separately.
type Sections struct {
	Verdict        string
	Recommendation string
	Strengths      string
	Weaknesses     string
	Fundamentals   string
}

var verdictRE = regexp.MustCompile(`(?m)^## \*\*(.+?)\*\*`)

// ParseSections splits the markdown summary. The verdict is the first bold
// level-two heading, upper-cased; the recommendation is the text of the first
// level-two section; the rest sit under "## Strengths", "## Weaknesses" and
// "## Fundamentals" in that order.
func ParseSections(md string) Sections {
	var s Sections
	if m := verdictRE.FindStringSubmatch(md); m != nil {
		s.Verdict = strings.ToUpper(m[1])
	}
	if parts := strings.SplitN(md, "##", 3); len(parts) > 1 {
		s.Recommendation = strings.TrimSpace(parts[1])
	}

	_, afterStrengths, ok := strings.Cut(md, "## Strengths")
	if !ok {
		return s
	}
	strengths, afterWeaknesses, ok := strings.Cut(afterStrengths, "## Weaknesses")
	s.Strengths = strings.TrimSpace(strengths)
	if !ok {
		return s
	}
	weaknesses, fundamentals, _ := strings.Cut(afterWeaknesses, "## Fundamentals")
	s.Weaknesses = strings.TrimSpace(weaknesses)
	s.Fundamentals = strings.TrimSpace(fundamentals)
	return s
}
