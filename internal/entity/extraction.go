package entity

import "github.com/joseph-ayodele/receipts-extractor/constants"

// ExtractionResult is the structured record produced for one document.
// Optional values are nil when no evidence cleared the confidence threshold.
type ExtractionResult struct {
	MerchantName      *string                `json:"merchant_name"`
	Date              *string                `json:"date"`
	Time              *string                `json:"time"`
	Currency          *string                `json:"currency"`
	Subtotal          *float64               `json:"subtotal"`
	TaxBreakdown      []TaxBreakdown         `json:"tax_breakdown"`
	TaxTotal          *float64               `json:"tax_total"`
	Total             *float64               `json:"total"`
	Items             []LineItem             `json:"items"`
	ReceiptNumber     *string                `json:"receipt_number"`
	PaymentMethod     *string                `json:"payment_method"`
	Confidence        float64                `json:"confidence"`
	FieldConfidence   map[string]float64     `json:"field_confidence,omitempty"`
	DocumentType      constants.DocumentType `json:"document_type"`
	NeedsVerification bool                   `json:"needs_verification"`
	Warnings          []string               `json:"warnings"`
	Metadata          Metadata               `json:"metadata"`
}

// TaxBreakdown is the fused tax line for one rate.
type TaxBreakdown struct {
	Rate          float64  `json:"rate"`
	Amount        float64  `json:"amount"`
	TaxableAmount *float64 `json:"taxable_amount,omitempty"`
	GrossAmount   *float64 `json:"gross_amount,omitempty"`
}

// LineItem is one purchased article.
type LineItem struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// Metadata explains how a result was produced.
type Metadata struct {
	State           constants.ExtractionState `json:"state"`
	EvidenceSummary EvidenceSummary           `json:"evidence_summary"`
	ProcessingTimes ProcessingTimes           `json:"processing_times"`
	Languages       []string                  `json:"languages,omitempty"`
}

// EvidenceSummary counts evidence by origin and destination.
type EvidenceSummary struct {
	Total    int            `json:"total"`
	Dropped  int            `json:"dropped"`
	BySource map[string]int `json:"by_source,omitempty"`
	ByField  map[string]int `json:"by_field,omitempty"`
	Clusters int            `json:"clusters"`
}

// ProcessingTimes are stage durations in milliseconds.
type ProcessingTimes struct {
	GroupingMs   float64 `json:"grouping_ms"`
	CollectionMs float64 `json:"collection_ms"`
	FusionMs     float64 `json:"fusion_ms"`
	AssemblyMs   float64 `json:"assembly_ms"`
	TotalMs      float64 `json:"total_ms"`
}

// HasTotal reports whether a total was extracted.
func (r ExtractionResult) HasTotal() bool { return r.Total != nil }

// TaxBreakdownSum adds the breakdown amounts.
func (r ExtractionResult) TaxBreakdownSum() float64 {
	var sum float64
	for _, b := range r.TaxBreakdown {
		sum += b.Amount
	}
	return sum
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
