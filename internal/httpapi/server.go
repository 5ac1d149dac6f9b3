package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockscope/internal/auth"
	"stockscope/internal/domain"
	"stockscope/internal/quote"
	"stockscope/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// reservedParams are the GET /portfolio query keys that are not filters.
var reservedParams = map[string]bool{"page": true, "size": true, "search": true}

// Server serves the portfolio HTTP API.
type Server struct {
	auth      *auth.Service
	portfolio store.PortfolioStore
	lookup    quote.Lookup
	analyzer  Analyzer
	log       *slog.Logger
}

// Analyzer produces stock analysis reports. *quote.AnalysisClient
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req quote.AnalyzeRequest) (*quote.Analysis, error)
}

var _ Analyzer = (*quote.AnalysisClient)(nil)

// NewServer creates a server. lookup may be nil, in which case
// /fundamentals answers 503.
func NewServer(a *auth.Service, portfolio store.PortfolioStore, lookup quote.Lookup, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{auth: a, portfolio: portfolio, lookup: lookup, log: log}
}

// WithAnalyzer enables GET /analysis/. Without it the route answers 503.
func (s *Server) WithAnalyzer(a Analyzer) *Server {
	s.analyzer = a
	return s
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /portfolio", s.authed(s.handleListPortfolio))
	mux.HandleFunc("POST /portfolio", s.authed(s.handleAddHolding))
	mux.HandleFunc("PATCH /portfolio", s.authed(s.handleUpdateFrequency))
	mux.HandleFunc("DELETE /portfolio/{ticker}", s.authed(s.handleDeleteHolding))
	mux.HandleFunc("GET /fundamentals/{ticker}", s.handleFundamentals)
	mux.HandleFunc("GET /analysis/", s.handleAnalysis)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, MessageResponse{Message: "ok"})
	})
}

// Handler returns an http.Handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type userHandler func(w http.ResponseWriter, r *http.Request, u *domain.User)

// authed resolves the bearer token before calling h; unknown tokens get 401.
func (s *Server) authed(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.auth.Authenticate(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			s.log.Error("authenticating", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h(w, r, u)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := s.auth.Register(r.Context(), req.Email, req.Nickname, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Email and nickname required")
		return
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, "User already exists")
		return
	case err != nil:
		s.log.Error("registering user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("user registered", "user", u.ID)
	writeJSON(w, AuthResponse{Message: "Registered", Token: u.ID, Nickname: u.Nickname})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := s.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, auth.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "Wrong password")
		return
	case err != nil:
		s.log.Error("logging in", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, AuthResponse{Message: "Login successful", Token: u.ID, Nickname: u.Nickname})
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

// parseQuery reads page, size, search and treats every other key as a filter.
func parseQuery(r *http.Request) (store.Query, error) {
	values := r.URL.Query()
	q := store.Query{Search: values.Get("search"), Filters: map[string]string{}}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &q.Page}, {"size", &q.Size}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return store.Query{}, errors.New("invalid " + p.name)
		}
		*p.dst = n
	}
	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		q.Filters[key] = vals[0]
	}
	return q.Normalize(), nil
}

func (s *Server) handleListPortfolio(w http.ResponseWriter, r *http.Request, u *domain.User) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	holdings, total, err := s.portfolio.List(r.Context(), u.ID, q)
	if err != nil {
		s.log.Error("listing portfolio", "user", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, PortfolioPage{
		Tickers:       holdings,
		TotalElements: total,
		TotalPages:    store.Pages(total, q.Size),
		Page:          q.Page,
		Size:          q.Size,
	})
}

// holdingFields validates a POST/PATCH body. An empty frequency is allowed
// only when allowDefault is set.
func holdingFields(req HoldingRequest, allowDefault bool) (string, domain.Frequency, string) {
	ticker := domain.NormalizeTicker(req.Ticker)
	if ticker == "" {
		return "", "", "Ticker is required"
	}
	if !domain.ValidTicker(ticker) {
		return "", "", "Invalid ticker"
	}
	freq := domain.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency)))
	if freq == "" {
		if !allowDefault {
			return "", "", "Ticker and new frequency are required"
		}
		freq = domain.DefaultFrequency
	}
	if !freq.Valid() {
		return "", "", "Invalid frequency"
	}
	return ticker, freq, ""
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var req HoldingRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ticker, freq, msg := holdingFields(req, true)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	h := &domain.Holding{UserID: u.ID, Ticker: ticker, Frequency: freq}
	if err := s.portfolio.Add(r.Context(), h); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "Stock already exists")
			return
		}
		s.log.Error("adding holding", "user", u.ID, "ticker", ticker, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add stock")
		return
	}
	s.log.Info("holding added", "user", u.ID, "ticker", ticker, "frequency", freq)
	writeJSON(w, h)
}

func (s *Server) handleUpdateFrequency(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var req HoldingRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ticker, freq, msg := holdingFields(req, false)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.portfolio.UpdateFrequency(r.Context(), u.ID, ticker, freq); err != nil {
		s.storeError(w, err, "updating frequency")
		return
	}
	writeJSON(w, MessageResponse{Message: "Frequency updated"})
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request, u *domain.User) {
	ticker := domain.NormalizeTicker(r.PathValue("ticker"))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "Ticker is required")
		return
	}
	if err := s.portfolio.Delete(r.Context(), u.ID, ticker); err != nil {
		s.storeError(w, err, "deleting holding")
		return
	}
	s.log.Info("holding removed", "user", u.ID, "ticker", ticker)
	writeJSON(w, MessageResponse{Message: "Stock removed"})
}

func (s *Server) storeError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Stock not found")
		return
	}
	s.log.Error(action, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// ---------------------------------------------------------------------------
// Fundamentals
// ---------------------------------------------------------------------------

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	if s.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "no company data source configured")
		return
	}
	ticker := domain.NormalizeTicker(r.PathValue("ticker"))
	info, err := s.lookup.CompanyInfo(r.Context(), ticker)
	switch {
	case errors.Is(err, quote.ErrInvalidTicker):
		writeError(w, http.StatusNotFound, "Invalid ticker")
		return
	case err != nil:
		s.log.Warn("company lookup failed", "ticker", ticker, "error", err)
		writeError(w, http.StatusBadGateway, "company data unavailable")
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis service configured")
		return
	}
	q := r.URL.Query()
	req := quote.AnalyzeRequest{
		Ticker:      domain.NormalizeTicker(q.Get("ticker")),
		RiskProfile: strings.TrimSpace(q.Get("risk_profile")),
	}
	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	term, err := quote.ParseTerm(q.Get("term"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "term must be long or short")
		return
	}
	req.Term = term
	if v := q.Get("penny"); v != "" {
		if req.Penny, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "penny must be true or false")
			return
		}
	}
	if v := q.Get("age"); v != "" {
		if req.Age, err = strconv.Atoi(v); err != nil || req.Age < 0 {
			writeError(w, http.StatusBadRequest, "age must be a positive number")
			return
		}
	}

	a, err := s.analyzer.Analyze(r.Context(), req)
	switch {
	case errors.Is(err, quote.ErrInvalidTicker):
		writeError(w, http.StatusNotFound, "Invalid ticker")
		return
	case err != nil:
		s.log.Warn("analysis failed", "ticker", req.Ticker, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch stock data. Please try again.")
		return
	}
	writeJSON(w, a)
}
