package llm

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

var (
	reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reClock   = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
)

const maxMerchantName = 120

var altDateLayouts = []string{"2006/01/02", "02.01.2006", "02/01/2006", "2.1.2006", "02-01-2006"}

// SanitizeOptionalFields removes or normalizes optional fields that don't meet the stricter schema,
// so the overall document can still validate. Only OPTIONALS are touched; total is left alone.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string
	drop := func(k string) {
		delete(m, k)
		dropped = append(dropped, k)
	}

	if v, ok := m["date"].(string); ok && !reISODate.MatchString(v) {
		if d, ok := reformatDate(v); ok {
			m["date"] = d
		} else {
			drop("date")
		}
	}
	if v, ok := m["time"].(string); ok && !reClock.MatchString(v) {
		drop("time")
	}
	if v, ok := m["currency"].(string); ok && common.CurrencyCode("currency", v) != nil {
		drop("currency")
	}
	if v, ok := m["payment_method"].(string); ok {
		if pm := NormalizePaymentMethod(v); pm != "" {
			m["payment_method"] = pm
		} else {
			drop("payment_method")
		}
	}
	if v, ok := m["confidence"].(float64); ok {
		switch {
		case v > 1 && v <= 100:
			m["confidence"] = v / 100
		case v < 0 || v > 100:
			drop("confidence")
		}
	}
	if v, ok := m["merchant_name"].(string); ok {
		if common.NewValidator().Field("merchant_name", v, common.Required, common.MaxLength(maxMerchantName)).HasErrors() {
			drop("merchant_name")
		}
	}
	if list, ok := m["tax_breakdown"].([]any); ok {
		kept := list[:0]
		for _, e := range list {
			obj, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if r, ok := obj["rate"].(float64); ok && r >= 0 && r <= 100 {
				kept = append(kept, obj)
			}
		}
		if len(kept) != len(list) {
			dropped = append(dropped, "tax_breakdown[]")
		}
		m["tax_breakdown"] = kept
	}
	for _, k := range []string{"subtotal", "tax_total"} {
		if _, ok := m[k].(float64); !ok {
			if _, present := m[k]; present {
				drop(k)
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

func reformatDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range altDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}
