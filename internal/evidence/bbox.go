package evidence

import (
	"math"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

const (
	sameRowFactor = 0.8
	belowFactor   = 0.65
)

// bboxStrategy pairs a bare label line ("TOTAL") with an amount-only line
// that sits on the same row or directly below it.
type bboxStrategy struct {
	compiler  *patterns.Compiler
	tolerance float64
}

func (s *bboxStrategy) Source() constants.Source { return constants.SourceBBox }

func (s *bboxStrategy) Collect(in Input) ([]Evidence, error) {
	tokens := s.compiler.Tokens(in.Languages, keywords.Subtotal, keywords.Tax, keywords.Total)

	type amountLine struct {
		idx      int
		amount   float64
		currency string
	}
	var amounts []amountLine
	for i, l := range in.Lines {
		if l.BoundingBox.IsZero() {
			continue
		}
		if a, cur, ok := s.compiler.AmountOnly(l.Text); ok {
			amounts = append(amounts, amountLine{idx: i, amount: a.Value.InexactFloat64(), currency: cur})
		}
	}
	if len(amounts) == 0 {
		return nil, nil
	}

	var out []Evidence
	for i, l := range in.Lines {
		if l.BoundingBox.IsZero() || len(patterns.FindAmounts(l.Text)) > 0 {
			continue
		}
		field, ok := labelField(tokens.FindAll(l.Text))
		if !ok {
			continue
		}

		bestIdx, bestFactor, bestDist := -1, 0.0, math.MaxFloat64
		for k, a := range amounts {
			other := in.Lines[a.idx].BoundingBox
			factor, dist, ok := s.relate(l.BoundingBox, other, a.idx == i+1)
			if !ok {
				continue
			}
			if dist < bestDist {
				bestIdx, bestFactor, bestDist = k, factor, dist
			}
		}
		if bestIdx < 0 {
			continue
		}
		a := amounts[bestIdx]
		partner := in.Lines[a.idx]
		box := l.BoundingBox.Union(partner.BoundingBox)
		out = append(out, Evidence{
			Source:     s.Source(),
			Field:      field,
			Value:      Amount(a.amount),
			Confidence: clamp01(bestFactor * min(l.Confidence, partner.Confidence)),
			Position:   &box,
			LineIndex:  a.idx,
			RawText:    l.Text + " " + partner.Text,
			Supporting: map[string]any{"label_line": i, "amount_line": a.idx, "currency": a.currency},
		})
	}
	return out, nil
}

// relate scores the geometric relation between a label and an amount box.
func (s *bboxStrategy) relate(label, amount ocr.BoundingBox, next bool) (float64, float64, bool) {
	dy := math.Abs(amount.CenterY() - label.CenterY())
	if dy <= s.tolerance && amount.X >= label.X {
		return sameRowFactor, dy, true
	}
	gap := amount.Y - label.Bottom()
	if next && gap >= 0 && gap <= s.tolerance {
		return belowFactor, s.tolerance + gap, true
	}
	return 0, 0, false
}

// labelField accepts lines that name exactly one summary category.
func labelField(tokens []patterns.Token) (constants.Field, bool) {
	if len(tokens) == 0 {
		return "", false
	}
	cat := tokens[0].Category
	for _, t := range tokens[1:] {
		if t.Category != cat {
			return "", false
		}
	}
	switch cat {
	case keywords.Subtotal:
		return constants.FieldSubtotal, true
	case keywords.Tax:
		return constants.FieldTaxAmount, true
	case keywords.Total:
		return constants.FieldTotal, true
	}
	return "", false
}
