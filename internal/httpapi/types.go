// Package httpapi provides the JSON REST API behind the watchlist: account
// registration and login, the authenticated user's portfolio, and a
// fundamentals proxy for ticker lookups.
package httpapi

import "stockscope/internal/domain"

// CredentialsRequest is the body of /auth/register and /auth/login.
// Nickname is only read on registration.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
	Password string `json:"password,omitempty"`
}

// AuthResponse answers a successful register or login.
type AuthResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	Nickname string `json:"nickname,omitempty"`
}

// HoldingRequest is the body of POST and PATCH /portfolio.
type HoldingRequest struct {
	Ticker    string `json:"ticker"`
	Frequency string `json:"frequency,omitempty"`
}

// PortfolioPage is one page of GET /portfolio.
type PortfolioPage struct {
	Tickers       []domain.Holding `json:"tickers"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
}

// MessageResponse acknowledges a mutation without returning data.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
