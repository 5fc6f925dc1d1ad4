package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,4}[./-]\d{1,2}[./-]\d{2,4}\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|sek|nok|dkk|chf|inr|jpy)\b|[$£€¥₹]|\bkr\b`)
	reAmount = regexp.MustCompile(`\d+[.,]\d{2}\b`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }

// EstimateConfidence scores text for which the OCR collaborator reported no
// confidence: receipt-like artifacts (dates, currencies, amounts) raise it.
func EstimateConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if hasDatePattern(txtL) {
		score += 0.2
	}
	if hasCurrencyPattern(txtL) {
		score += 0.15
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
