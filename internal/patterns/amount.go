package patterns

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Amount grammar: thousands-grouped with exactly two decimals, or a looser \d+[.,]\d{2}.
const (
	amountExpr = `-?(?:\d{1,3}(?:[.,]\d{3})+[.,]\d{2}|\d+[.,]\d{2})`
	rateExpr   = `\d{1,2}(?:[.,]\d{1,2})?`
	// amountTail rejects amounts that continue as a longer number or a date.
	amountTail = `(?:[^\d.,]|[.,]\D|[.,]?$)`
)

var (
	reAmount = regexp.MustCompile(amountExpr)
	reRate   = regexp.MustCompile(`(` + rateExpr + `)\s*%`)
)

// AmountToken is one money amount found in free text.
type AmountToken struct {
	Value decimal.Decimal
	Text  string
	Start int
	End   int
}

// FindAmounts returns every standalone money amount in s, left to right.
func FindAmounts(s string) []AmountToken {
	var out []AmountToken
	for _, loc := range reAmount.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(s[:start])
			if unicode.IsDigit(prev) || ((prev == '.' || prev == ',') && start > 1 && isDigitByte(s[start-2])) {
				continue
			}
		}
		if end < len(s) {
			next := s[end]
			if isDigitByte(next) {
				continue
			}
			if (next == '.' || next == ',') && end+1 < len(s) && isDigitByte(s[end+1]) {
				continue
			}
		}
		v, err := ParseAmount(s[start:end])
		if err != nil {
			continue
		}
		out = append(out, AmountToken{Value: v, Text: s[start:end], Start: start, End: end})
	}
	return out
}

// RateToken is a percentage found in free text.
type RateToken struct {
	Value decimal.Decimal
	Start int
	End   int
}

// FindRates returns every "N%" occurrence in s.
func FindRates(s string) []RateToken {
	var out []RateToken
	for _, m := range reRate.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > 0 && isDigitByte(s[m[0]-1]) {
			continue
		}
		v, err := ParseRate(s[m[2]:m[3]])
		if err != nil {
			continue
		}
		out = append(out, RateToken{Value: v, Start: m[0], End: m[1]})
	}
	return out
}

// ParseAmount reads "1.234,56", "1,234.56", "35,62" or "-5.00".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	var intPart, frac string
	if n := len(s); n >= 3 && (s[n-3] == '.' || s[n-3] == ',') {
		intPart, frac = s[:n-3], s[n-2:]
	} else {
		intPart = s
	}
	intPart = strings.NewReplacer(".", "", ",", "", " ", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	canonical := intPart
	if frac != "" {
		canonical += "." + frac
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// ParseRate reads "24", "6,4" or "7.00".
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", s, err)
	}
	return d, nil
}

// Round2 rounds a float to cents.
func Round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }
