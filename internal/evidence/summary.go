package evidence

import (
	"fmt"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

const derivedPenalty = 0.9

// summaryStrategy derives the missing one of subtotal, tax and total when the
// other two were read directly.
type summaryStrategy struct {
	compiler *patterns.Compiler
}

func (s *summaryStrategy) Source() constants.Source { return constants.SourceSummaryCalculation }

func (s *summaryStrategy) Collect(in Input) ([]Evidence, error) {
	sc := scanSummary(s.compiler, in.Lines, in.Languages)
	sub, hasSub := best(sc.subtotal)
	tax, hasTax := sc.taxTotal()
	total, hasTotal := best(sc.total)

	derive := func(field constants.Field, v float64, formula string, a, b hit) []Evidence {
		return []Evidence{{
			Source:     s.Source(),
			Field:      field,
			Value:      Amount(patterns.Round2(v)),
			Confidence: clamp01(min(a.conf, b.conf) * derivedPenalty),
			LineIndex:  -1,
			RawText:    formula,
			Supporting: map[string]any{"inputs": []int{a.line, b.line}},
		}}
	}

	switch {
	case hasSub && hasTax && !hasTotal:
		return derive(constants.FieldTotal, sub.amount+tax.amount,
			fmt.Sprintf("%.2f + %.2f", sub.amount, tax.amount), sub, tax), nil
	case hasSub && hasTotal && !hasTax:
		v := total.amount - sub.amount
		if v < 0 {
			return nil, nil
		}
		return derive(constants.FieldTaxAmount, v,
			fmt.Sprintf("%.2f - %.2f", total.amount, sub.amount), total, sub), nil
	case hasTax && hasTotal && !hasSub:
		v := total.amount - tax.amount
		if v <= 0 {
			return nil, nil
		}
		return derive(constants.FieldSubtotal, v,
			fmt.Sprintf("%.2f - %.2f", total.amount, tax.amount), total, tax), nil
	}
	return nil, nil
}
