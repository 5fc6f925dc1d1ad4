package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCandidate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		check   func(t *testing.T, c Candidate)
		wantErr error
	}{
		{
			name:  "fenced reply with synonyms and string amounts",
			reply: "Here you go:\n```json\n{\"merchant\": \" K-Market \", \"tax\": \"3,46\", \"total\": \"€18.59\", \"currency_code\": \"eur\", \"payment_method\": \"Visa Debit\", \"notes\": \"x\"}\n```",
			check: func(t *testing.T, c Candidate) {
				assert.Equal(t, "K-Market", c.MerchantName)
				require.NotNil(t, c.TaxTotal)
				assert.Equal(t, 3.46, *c.TaxTotal)
				require.NotNil(t, c.Total)
				assert.Equal(t, 18.59, *c.Total)
				assert.Equal(t, "EUR", c.Currency)
				assert.Equal(t, "CARD", c.PaymentMethod)
			},
		},
		{
			name:  "nested lists are cleaned",
			reply: `{"total": 12.4, "tax_breakdown": [{"rate": "24%", "amount": "2,40", "net": 10}, {"rate": 14}], "items": [{"description": "Milk", "price": "1,20", "qty": 2}, {"price": 3}]}`,
			check: func(t *testing.T, c Candidate) {
				require.Len(t, c.TaxBreakdown, 1)
				assert.Equal(t, 24.0, c.TaxBreakdown[0].Rate)
				assert.Equal(t, 2.4, c.TaxBreakdown[0].Amount)
				require.NotNil(t, c.TaxBreakdown[0].TaxableAmount)
				assert.Equal(t, 10.0, *c.TaxBreakdown[0].TaxableAmount)
				require.Len(t, c.Items, 1)
				assert.Equal(t, "Milk", c.Items[0].Name)
				assert.Equal(t, 1.2, c.Items[0].Price)
				require.NotNil(t, c.Items[0].Quantity)
				assert.Equal(t, 2.0, *c.Items[0].Quantity)
			},
		},
		{
			name:  "lenient pass repairs optional fields",
			reply: `{"total": 5, "date": "12.05.2024", "time": "noon", "currency": "EURO", "confidence": 85}`,
			check: func(t *testing.T, c Candidate) {
				assert.Equal(t, "2024-05-12", c.Date)
				assert.Empty(t, c.Time)
				assert.Empty(t, c.Currency)
				assert.Equal(t, 0.85, c.Confidence)
			},
		},
		{
			name:    "missing total",
			reply:   `{"merchant_name": "Shop"}`,
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "no object",
			reply:   "sorry, I cannot read this",
			wantErr: ErrMalformedReply,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, raw, err := DecodeCandidate(tt.reply, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, json.Valid(raw))
			tt.check(t, c)
		})
	}
}

func TestSanitizeOptionalFields(t *testing.T) {
	long := strings.Repeat("Kauppa ", 30)
	doc := []byte(`{"total": 5, "merchant_name": "` + long + `", "currency": "eur"}`)
	cleaned, dropped, err := SanitizeOptionalFields(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"merchant_name", "currency"}, dropped)

	var m map[string]any
	require.NoError(t, json.Unmarshal(cleaned, &m))
	assert.Equal(t, map[string]any{"total": 5.0}, m)

	cleaned, dropped, err = SanitizeOptionalFields([]byte(`{"total": 5, "merchant_name": "Lidl", "currency": "EUR"}`))
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.JSONEq(t, `{"total": 5, "merchant_name": "Lidl", "currency": "EUR"}`, string(cleaned))
}

func TestNormalizePaymentMethod(t *testing.T) {
	tests := map[string]string{
		"cash":         "CASH",
		"Käteinen":     "",
		"Payment card": "CARD",
		"Apple Pay":    "MOBILE",
		"swish":        "MOBILE",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePaymentMethod(in), in)
	}
}

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 12.5, want: 12.5, ok: true},
		{in: "1.234,56", want: 1234.56, ok: true},
		{in: "1,234.56", want: 1234.56, ok: true},
		{in: "$7.00", want: 7, ok: true},
		{in: "-3,10", want: -3.1, ok: true},
		{in: "n/a"},
		{in: true},
	}
	for _, tt := range tests {
		got, ok := coerceNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestCandidateSchemaRejectsStrings(t *testing.T) {
	assert.NoError(t, ValidateCandidateJSON([]byte(`{"total": 1.5}`)))
	assert.Error(t, ValidateCandidateJSON([]byte(`{"total": "1.50"}`)))
	assert.Error(t, ValidateCandidateJSON([]byte(`{"total": 1, "payment_method": "VISA"}`)))
}
