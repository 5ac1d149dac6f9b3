// Package domain defines the core types shared across stockscope: watchlist
// holdings, users, and the company information shown next to a ticker.
package domain

import (
	"strings"
	"time"
)

// Frequency is how often a holding is re-analysed.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// DefaultFrequency is used when a holding is added without one.
const DefaultFrequency = FrequencyWeekly

// Frequencies lists the accepted frequencies in display order.
var Frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly}

// Valid reports whether f is one of the accepted frequencies.
func (f Frequency) Valid() bool {
	for _, v := range Frequencies {
		if f == v {
			return true
		}
	}
	return false
}

// Holding is one ticker on a user's watchlist.
type Holding struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Ticker    string    `json:"ticker"`
	Frequency Frequency `json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account owning a watchlist. Its ID doubles as the bearer token.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// CompanyInfo is the descriptive data shown next to a ticker.
type CompanyInfo struct {
	Ticker   string   `json:"ticker"`
	Name     string   `json:"name,omitempty"`
	Industry string   `json:"industry"`
	Price    *float64 `json:"current_price"`
}

// NormalizeTicker trims and upper-cases a user-entered ticker.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidTicker reports whether s looks like an exchange ticker: 1-10
// characters of A-Z, digits, '.' or '-', starting with a letter.
func ValidTicker(s string) bool {
	if len(s) == 0 || len(s) > 10 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.' || r == '-'):
		default:
			return false
		}
	}
	return true
}
