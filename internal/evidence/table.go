package evidence

import (
	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
	"github.com/joseph-ayodele/receipts-extractor/internal/taxtable"
)

// tableStrategy turns a detected tax table into breakdown and aggregate
// evidence. Its confidence already reflects arithmetic validation; source
// trust is applied once, during fusion.
type tableStrategy struct {
	compiler *patterns.Compiler
	detector *taxtable.Detector
}

func (s *tableStrategy) Source() constants.Source { return constants.SourceTable }

func (s *tableStrategy) Collect(in Input) ([]Evidence, error) {
	var hint *float64
	if h, ok := best(scanSummary(s.compiler, in.Lines, in.Languages).total); ok {
		hint = &h.amount
	}
	t := s.detector.Detect(in.Lines, in.Languages, hint)
	if t == nil || len(t.Rows) == 0 {
		return nil, nil
	}

	src := s.Source()
	support := func(extra map[string]any) map[string]any {
		m := map[string]any{"shape": string(t.Shape), "header_line": t.HeaderIndex}
		if len(t.Warnings) > 0 {
			m[supportWarnings] = t.Warnings
		}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	var out []Evidence
	for _, r := range t.Rows {
		b := Breakdown{Rate: r.Rate, Tax: r.Tax, Net: r.Net, Gross: r.Gross}
		e := lineEvidence(src, constants.FieldTaxBreakdown, b, r.Confidence*t.Confidence, r.LineIndex, lineAt(in.Lines, r.LineIndex))
		e.Supporting = support(map[string]any{
			"code":            r.Code,
			"math_consistent": r.Validation.MathConsistent,
			"rate_consistent": r.Validation.RateConsistent,
		})
		out = append(out, e)
	}

	aggIdx := t.HeaderIndex
	if t.Summary != nil {
		aggIdx = t.Summary.LineIndex
	}
	aggLine := lineAt(in.Lines, aggIdx)
	conf := t.Confidence
	add := func(field constants.Field, v float64, ok bool) {
		if !ok {
			return
		}
		e := lineEvidence(src, field, Amount(patterns.Round2(v)), conf, aggIdx, aggLine)
		e.Supporting = support(nil)
		out = append(out, e)
	}
	net, okNet := t.NetTotal()
	add(constants.FieldSubtotal, net, okNet)
	tax, okTax := t.TaxTotal()
	add(constants.FieldTaxAmount, tax, okTax)
	gross, okGross := t.GrossTotal()
	add(constants.FieldTotal, gross, okGross)
	return out, nil
}

func lineAt(lines []ocr.TextLine, i int) ocr.TextLine {
	if i < 0 || i >= len(lines) {
		return ocr.TextLine{}
	}
	return lines[i]
}
