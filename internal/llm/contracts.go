package llm

import "context"

// Candidate is a pre-structured extraction returned by an external model.
// Amounts are plain numbers; Date is YYYY-MM-DD.
type Candidate struct {
	MerchantName  string          `json:"merchant_name,omitempty"`
	Date          string          `json:"date,omitempty"`
	Time          string          `json:"time,omitempty"`
	Items         []CandidateItem `json:"items,omitempty"`
	Subtotal      *float64        `json:"subtotal,omitempty"`
	TaxBreakdown  []CandidateTax  `json:"tax_breakdown,omitempty"`
	TaxTotal      *float64        `json:"tax_total,omitempty"`
	Total         *float64        `json:"total,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	Confidence    float64         `json:"confidence,omitempty"` // 0..1
}

type CandidateItem struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity *float64 `json:"quantity,omitempty"`
}

type CandidateTax struct {
	Rate          float64  `json:"rate"`
	Amount        float64  `json:"amount"`
	TaxableAmount *float64 `json:"taxable_amount,omitempty"`
	GrossAmount   *float64 `json:"gross_amount,omitempty"`
}

// IsEmpty reports whether the candidate carries no usable field.
func (c Candidate) IsEmpty() bool {
	return c.MerchantName == "" && c.Date == "" && c.Total == nil && c.Subtotal == nil &&
		c.TaxTotal == nil && len(c.TaxBreakdown) == 0 && len(c.Items) == 0 &&
		c.Currency == "" && c.PaymentMethod == "" && c.ReceiptNumber == ""
}

type CandidateRequest struct {
	OCRText         string
	Languages       []string
	DefaultCurrency string
	SourceHint      string // file name or other caller reference
}

// CandidateProvider is the interface the engine depends on for model-backed candidates.
type CandidateProvider interface {
	ExtractCandidate(ctx context.Context, req CandidateRequest) (Candidate, []byte /*rawJSON*/, error)
}
