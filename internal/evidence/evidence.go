package evidence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
)

// Kind tags the variant held by a Value.
type Kind string

const (
	KindAmount    Kind = "amount"
	KindRate      Kind = "rate"
	KindText      Kind = "text"
	KindBreakdown Kind = "breakdown"
	KindItem      Kind = "item"
)

// Value is the closed set of evidence payloads.
type Value interface {
	Kind() Kind
}

// Amount is a money value.
type Amount float64

// Rate is a percentage, 24 means 24%.
type Rate float64

// Text is a string value such as a merchant name, date or currency code.
type Text string

// Breakdown is one tax rate with its tax amount and optional bases.
type Breakdown struct {
	Rate  float64  `json:"rate"`
	Tax   float64  `json:"tax"`
	Net   *float64 `json:"net,omitempty"`
	Gross *float64 `json:"gross,omitempty"`
}

// Item is one purchased article.
type Item struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity *float64 `json:"quantity,omitempty"`
}

func (Amount) Kind() Kind    { return KindAmount }
func (Rate) Kind() Kind      { return KindRate }
func (Text) Kind() Kind      { return KindText }
func (Breakdown) Kind() Kind { return KindBreakdown }
func (Item) Kind() Kind      { return KindItem }

// fieldKinds maps every field onto the payload it carries.
var fieldKinds = map[constants.Field]Kind{
	constants.FieldSubtotal:      KindAmount,
	constants.FieldTaxAmount:     KindAmount,
	constants.FieldTotal:         KindAmount,
	constants.FieldTaxRate:       KindRate,
	constants.FieldTaxBreakdown:  KindBreakdown,
	constants.FieldCurrency:      KindText,
	constants.FieldMerchantName:  KindText,
	constants.FieldPurchaseDate:  KindText,
	constants.FieldPurchaseTime:  KindText,
	constants.FieldPaymentMethod: KindText,
	constants.FieldReceiptNumber: KindText,
	constants.FieldLineItem:      KindItem,
}

// KindOf returns the payload kind of a field.
func KindOf(f constants.Field) (Kind, bool) {
	k, ok := fieldKinds[f]
	return k, ok
}

// Evidence is one candidate value for one field. It is immutable once
// emitted by a strategy.
type Evidence struct {
	Source     constants.Source
	Field      constants.Field
	Value      Value
	Confidence float64
	Position   *ocr.BoundingBox
	LineIndex  int // -1 when not tied to a line
	RawText    string
	Supporting map[string]any
	// Modifier evidence can strengthen a cluster but never seeds one.
	Modifier  bool
	Timestamp time.Time
}

// Validate checks that the value kind matches the field.
func (e Evidence) Validate() error {
	want, ok := fieldKinds[e.Field]
	if !ok {
		return fmt.Errorf("evidence: unknown field %q", e.Field)
	}
	if e.Value == nil || e.Value.Kind() != want {
		return fmt.Errorf("evidence: field %s wants %s value", e.Field, want)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("evidence: confidence %.3f out of range", e.Confidence)
	}
	return nil
}

// Number returns the numeric reading of the value: the amount, the rate, the
// tax of a breakdown or the price of an item.
func Number(v Value) (float64, bool) {
	switch t := v.(type) {
	case Amount:
		return float64(t), true
	case Rate:
		return float64(t), true
	case Breakdown:
		return t.Tax, true
	case Item:
		return t.Price, true
	}
	return 0, false
}

// Warnings returns the warnings a strategy attached, if any.
func (e Evidence) Warnings() []string {
	ws, _ := e.Supporting[supportWarnings].([]string)
	return ws
}

const supportWarnings = "warnings"

type evidenceJSON struct {
	Source     constants.Source `json:"source"`
	Field      constants.Field  `json:"field"`
	Kind       Kind             `json:"kind"`
	Value      Value            `json:"value"`
	Confidence float64          `json:"confidence"`
	Position   *ocr.BoundingBox `json:"position,omitempty"`
	LineIndex  int              `json:"line_index"`
	RawText    string           `json:"raw_text,omitempty"`
	Supporting map[string]any   `json:"supporting_data,omitempty"`
	Modifier   bool             `json:"modifier,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func (e Evidence) MarshalJSON() ([]byte, error) {
	var kind Kind
	if e.Value != nil {
		kind = e.Value.Kind()
	}
	return json.Marshal(evidenceJSON{
		Source:     e.Source,
		Field:      e.Field,
		Kind:       kind,
		Value:      e.Value,
		Confidence: e.Confidence,
		Position:   e.Position,
		LineIndex:  e.LineIndex,
		RawText:    e.RawText,
		Supporting: e.Supporting,
		Modifier:   e.Modifier,
		Timestamp:  e.Timestamp,
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// lineEvidence builds evidence tied to one grouped line.
func lineEvidence(src constants.Source, field constants.Field, v Value, conf float64, idx int, line ocr.TextLine) Evidence {
	box := line.BoundingBox
	return Evidence{
		Source:     src,
		Field:      field,
		Value:      v,
		Confidence: clamp01(conf),
		Position:   &box,
		LineIndex:  idx,
		RawText:    line.Text,
	}
}
