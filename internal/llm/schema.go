package llm

// BuildCandidateJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent to providers as the output contract and used locally to validate replies.
func BuildCandidateJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "minLength": 1},
			"price":    moneyProp(),
			"quantity": map[string]any{"type": "number", "exclusiveMinimum": 0},
		},
		"required": []string{"name", "price"},
	}
	tax := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"rate":           map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"amount":         moneyProp(),
			"taxable_amount": moneyProp(),
			"gross_amount":   moneyProp(),
		},
		"required": []string{"rate", "amount"},
	}
	props := map[string]any{
		"merchant_name":  map[string]any{"type": "string", "minLength": 1},
		"date":           map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"time":           map[string]any{"type": "string", "pattern": `^\d{2}:\d{2}(:\d{2})?$`},
		"items":          map[string]any{"type": "array", "items": item},
		"subtotal":       moneyProp(),
		"tax_breakdown":  map[string]any{"type": "array", "items": tax},
		"tax_total":      moneyProp(),
		"total":          moneyProp(),
		"currency":       map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"payment_method": map[string]any{"type": "string", "enum": []string{"CASH", "CARD", "MOBILE"}},
		"receipt_number": map[string]any{"type": "string", "minLength": 1},
		"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"total"},
	}
}

func moneyProp() map[string]any {
	return map[string]any{"type": "number"}
}
