package llm

import (
	"strings"
)

const maxPromptText = 3000

// BuildSystemPrompt states the output contract: one JSON object matching the
// candidate schema, plain numbers, ISO dates and closed payment values.
func BuildSystemPrompt(req CandidateRequest) string {
	defCur := strings.TrimSpace(req.DefaultCurrency)
	if defCur == "" {
		defCur = "EUR"
	}

	parts := []string{
		"You are a receipts and invoices parser. Return ONLY one JSON object that matches the provided JSON Schema.",
		"Amounts are plain JSON numbers with a dot as decimal separator, never strings.",
		"Use ISO-8601 dates (YYYY-MM-DD) and 24h times (HH:MM).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"payment_method is one of CASH, CARD, MOBILE.",
		"tax_breakdown has one entry per tax rate: rate in percent, amount of tax, taxable_amount and gross_amount when printed.",
		"tax_total is the sum of all taxes; subtotal excludes tax; total is the amount paid.",
		"items lists purchased articles with name, price and quantity when printed.",
		"Set confidence (0..1) to how sure you are about total.",
		"Never output null. If a field is not present, omit it.",
	}
	if len(req.Languages) > 0 {
		parts = append(parts, "The document language is likely one of: "+strings.Join(req.Languages, ", ")+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the OCR text and an optional source hint.
func BuildUserPrompt(req CandidateRequest) string {
	var b strings.Builder
	if hint := strings.TrimSpace(req.SourceHint); hint != "" {
		b.WriteString("Source: ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(req.OCRText)
	b.WriteString("\nOCR text (first ~3k chars):\n")
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
