package evidence

import (
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

const defaultCandidateConfidence = 0.7

// candidateStrategy turns a model-produced candidate into llm evidence. It
// only competes with the other sources; it never overrides them.
type candidateStrategy struct{}

func (s *candidateStrategy) Source() constants.Source { return constants.SourceLLM }

func (s *candidateStrategy) Collect(in Input) ([]Evidence, error) {
	c := in.Candidate
	if c == nil || c.IsEmpty() {
		return nil, nil
	}
	conf := c.Confidence
	if conf <= 0 {
		conf = defaultCandidateConfidence
	}

	var out []Evidence
	add := func(field constants.Field, v Value) {
		out = append(out, Evidence{
			Source:     s.Source(),
			Field:      field,
			Value:      v,
			Confidence: clamp01(conf),
			LineIndex:  -1,
		})
	}
	text := func(field constants.Field, v string) {
		if v = strings.TrimSpace(v); v != "" {
			add(field, Text(v))
		}
	}
	amount := func(field constants.Field, v *float64) {
		if v != nil {
			add(field, Amount(*v))
		}
	}

	text(constants.FieldMerchantName, c.MerchantName)
	text(constants.FieldPurchaseDate, c.Date)
	text(constants.FieldPurchaseTime, c.Time)
	text(constants.FieldCurrency, strings.ToUpper(c.Currency))
	text(constants.FieldPaymentMethod, c.PaymentMethod)
	text(constants.FieldReceiptNumber, c.ReceiptNumber)
	amount(constants.FieldSubtotal, c.Subtotal)
	amount(constants.FieldTaxAmount, c.TaxTotal)
	amount(constants.FieldTotal, c.Total)
	for _, t := range c.TaxBreakdown {
		add(constants.FieldTaxBreakdown, Breakdown{Rate: t.Rate, Tax: t.Amount, Net: t.TaxableAmount, Gross: t.GrossAmount})
	}
	if len(c.TaxBreakdown) == 1 {
		add(constants.FieldTaxRate, Rate(c.TaxBreakdown[0].Rate))
	}
	for _, it := range c.Items {
		if strings.TrimSpace(it.Name) == "" {
			continue
		}
		add(constants.FieldLineItem, Item{Name: strings.TrimSpace(it.Name), Price: it.Price, Quantity: it.Quantity})
	}
	return out, nil
}
