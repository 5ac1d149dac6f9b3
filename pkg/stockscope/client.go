// Package stockscope is a Go client for the stockscope-server API.
package stockscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Holding is one ticker on the watchlist.
type Holding struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Frequency string    `json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is one page of the watchlist.
type Page struct {
	Tickers       []Holding `json:"tickers"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
}

// CompanyInfo is what the server knows about a ticker.
type CompanyInfo struct {
	Ticker   string   `json:"ticker"`
	Name     string   `json:"name,omitempty"`
	Industry string   `json:"industry"`
	Price    *float64 `json:"current_price"`
}

// Session is the result of Register or Login.
type Session struct {
	Token    string `json:"token"`
	Nickname string `json:"nickname,omitempty"`
	Message  string `json:"message"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stockscope: %d %s", e.Status, e.Message)
}

// Client provides a Go SDK for interacting with the stockscope-server API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new stockscope API client. token may be empty for
// Register and Login.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SetToken sets the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the bearer token.
func (c *Client) Token() string { return c.token }

// Register creates an account and adopts its token.
func (c *Client) Register(ctx context.Context, email, nickname, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "nickname": nickname, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &s); err != nil {
		return nil, err
	}
	c.token = s.Token
	return &s, nil
}

// Login checks the credentials and adopts the account's token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &s); err != nil {
		return nil, err
	}
	c.token = s.Token
	return &s, nil
}

// Portfolio fetches one page of the watchlist. query is an ampersand-joined
// param=value string (search and filters) appended as is.
func (c *Client) Portfolio(ctx context.Context, query string, page, size int) (*Page, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	if size > 0 {
		v.Set("size", strconv.Itoa(size))
	}
	path := "/portfolio?" + v.Encode()
	if query = strings.Trim(query, "&"); query != "" {
		path += "&" + query
	}
	var p Page
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddTicker adds a ticker. An empty frequency means the server default.
func (c *Client) AddTicker(ctx context.Context, ticker, frequency string) (*Holding, error) {
	var h Holding
	body := map[string]string{"ticker": ticker, "frequency": frequency}
	if err := c.do(ctx, http.MethodPost, "/portfolio", body, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateFrequency changes how often a ticker is re-analysed.
func (c *Client) UpdateFrequency(ctx context.Context, ticker, frequency string) error {
	body := map[string]string{"ticker": ticker, "frequency": frequency}
	return c.do(ctx, http.MethodPatch, "/portfolio", body, nil)
}

// DeleteTicker removes a ticker.
func (c *Client) DeleteTicker(ctx context.Context, ticker string) error {
	return c.do(ctx, http.MethodDelete, "/portfolio/"+url.PathEscape(ticker), nil, nil)
}

// CompanyInfo looks a ticker up through the server.
func (c *Client) CompanyInfo(ctx context.Context, ticker string) (*CompanyInfo, error) {
	var info CompanyInfo
	if err := c.do(ctx, http.MethodGet, "/fundamentals/"+url.PathEscape(ticker), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}
