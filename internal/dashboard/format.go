package dashboard

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell texts shown while a row is resolving or after it failed.
const (
	TextLoading = "Loading..."
	TextError   = "Error"
	TextNA      = "N/A"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	mag := uint64(n)
	sign := ""
	if n < 0 {
		// Two's complement negation also covers math.MinInt.
		mag = -mag
		sign = "-"
	}
	digits := strconv.FormatUint(mag, 10)
	var b strings.Builder
	b.WriteString(sign)
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// FormatPrice formats a price with two decimals, or "N/A" when unknown.
func FormatPrice(p *float64) string {
	if p == nil {
		return TextNA
	}
	return fmt.Sprintf("%.2f", *p)
}

// FormatNumber prints a value as the service sent it, or "N/A".
func FormatNumber(p *float64) string {
	if p == nil {
		return TextNA
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// FormatMarketCap abbreviates a market capitalisation to millions or
// billions of dollars. Missing or sub-dollar values are "N/A".
func FormatMarketCap(p *float64) string {
	if p == nil || *p < 1 {
		return TextNA
	}
	if v := *p; v >= 1e9 {
		return fmt.Sprintf("$%.1fB", v/1e9)
	}
	return fmt.Sprintf("$%.1fM", *p/1e6)
}
