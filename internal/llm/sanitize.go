package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

var moneyFields = []string{"subtotal", "tax_total", "total"}

// ExtractJSONObject strips markdown fences and any prose around the first
// JSON object in a model reply.
func ExtractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (tax -> tax_total, currency_code -> currency, ...)
// - Drops null/empty optionals
// - Coerces money-ish strings ("12,50", "$7.00") to numbers
// - Maps payment wording onto CASH/CARD/MOBILE
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to the candidate schema
	renamed("merchant", "merchant_name")
	renamed("store", "merchant_name")
	renamed("tx_date", "date")
	renamed("purchase_date", "date")
	renamed("tax", "tax_total")
	renamed("vat", "tax_total")
	renamed("currency_code", "currency")
	renamed("line_items", "items")
	renamed("taxes", "tax_breakdown")
	renamed("invoice_number", "receipt_number")
	renamed("receipt_no", "receipt_number")

	// 2) money fields become numbers
	for _, k := range moneyFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		if f, ok := coerceNumber(v); ok {
			m[k] = f
		} else {
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	// 3) nested lists
	if v, ok := m["items"]; ok {
		items, bad := sanitizeList(v, sanitizeItem)
		m["items"] = items
		if bad > 0 {
			dropped = append(dropped, fmt.Sprintf("items(%d)", bad))
		}
	}
	if v, ok := m["tax_breakdown"]; ok {
		taxes, bad := sanitizeList(v, sanitizeTax)
		m["tax_breakdown"] = taxes
		if bad > 0 {
			dropped = append(dropped, fmt.Sprintf("tax_breakdown(%d)", bad))
		}
	}

	// 4) payment and currency normalization
	if v, ok := m["payment_method"].(string); ok {
		if pm := NormalizePaymentMethod(v); pm != "" {
			m["payment_method"] = pm
		} else {
			delete(m, "payment_method")
			dropped = append(dropped, "payment_method(unknown)")
		}
	}
	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}
	if v, ok := m["confidence"]; ok {
		if f, ok := coerceNumber(v); ok {
			m["confidence"] = f
		} else {
			delete(m, "confidence")
		}
	}

	// 5) remove unknown keys
	allowed := map[string]struct{}{
		"merchant_name": {}, "date": {}, "time": {}, "items": {}, "subtotal": {},
		"tax_breakdown": {}, "tax_total": {}, "total": {}, "currency": {},
		"payment_method": {}, "receipt_number": {}, "confidence": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 6) trim strings, drop empty and null
	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// NormalizePaymentMethod maps free wording onto CASH, CARD or MOBILE; "" when unknown.
func NormalizePaymentMethod(s string) string {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case u == "":
		return ""
	case strings.Contains(u, "CASH"):
		return "CASH"
	case strings.Contains(u, "CARD") || strings.Contains(u, "VISA") || strings.Contains(u, "MASTER") ||
		strings.Contains(u, "DEBIT") || strings.Contains(u, "CREDIT") || strings.Contains(u, "AMEX"):
		return "CARD"
	case strings.Contains(u, "PAY") || strings.Contains(u, "MOBILE") || strings.Contains(u, "SWISH"):
		return "MOBILE"
	}
	return ""
}

func sanitizeList(v any, fn func(map[string]any) (map[string]any, bool)) ([]any, int) {
	list, ok := v.([]any)
	if !ok {
		return []any{}, 1
	}
	out := make([]any, 0, len(list))
	bad := 0
	for _, e := range list {
		obj, ok := e.(map[string]any)
		if !ok {
			bad++
			continue
		}
		clean, ok := fn(obj)
		if !ok {
			bad++
			continue
		}
		out = append(out, clean)
	}
	return out, bad
}

func sanitizeItem(in map[string]any) (map[string]any, bool) {
	name, _ := in["name"].(string)
	if name == "" {
		name, _ = in["description"].(string)
	}
	name = strings.TrimSpace(name)
	price, ok := coerceNumber(firstOf(in, "price", "amount", "total"))
	if name == "" || !ok {
		return nil, false
	}
	out := map[string]any{"name": name, "price": price}
	if q, ok := coerceNumber(firstOf(in, "quantity", "qty")); ok && q > 0 {
		out["quantity"] = q
	}
	return out, true
}

func sanitizeTax(in map[string]any) (map[string]any, bool) {
	rate, okRate := coerceNumber(firstOf(in, "rate", "percent"))
	amount, okAmount := coerceNumber(firstOf(in, "amount", "tax"))
	if !okRate || !okAmount {
		return nil, false
	}
	out := map[string]any{"rate": rate, "amount": amount}
	if v, ok := coerceNumber(firstOf(in, "taxable_amount", "net")); ok {
		out["taxable_amount"] = v
	}
	if v, ok := coerceNumber(firstOf(in, "gross_amount", "gross")); ok {
		out["gross_amount"] = v
	}
	return out, true
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// coerceNumber accepts JSON numbers and strings like "12,50", "$7.00", "24%", "1.234,56".
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
				return r
			}
			return -1
		}, t)
		if s == "" {
			return 0, false
		}
		dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
		switch {
		case dot >= 0 && comma >= 0 && comma > dot:
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		case dot >= 0 && comma >= 0:
			s = strings.ReplaceAll(s, ",", "")
		case comma >= 0:
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
