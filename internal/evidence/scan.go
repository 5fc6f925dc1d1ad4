package evidence

import (
	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

// hit is one keyword + amount reading on a summary line.
type hit struct {
	field    constants.Field
	amount   float64
	rate     *float64
	currency string
	variant  string
	conf     float64 // specificity x line confidence
	line     int
}

func (h hit) evidence(src constants.Source, lines []ocr.TextLine) Evidence {
	e := lineEvidence(src, h.field, Amount(h.amount), h.conf, h.line, lines[h.line])
	e.Supporting = map[string]any{"variant": h.variant}
	return e
}

// summaryScan holds the subtotal, tax and total readings of a document.
type summaryScan struct {
	subtotal []hit
	tax      []hit
	total    []hit
}

// scanSummary classifies each line as at most one of subtotal, tax or total,
// in that priority. Lines with three or more amounts are table rows and
// change lines are never totals.
func scanSummary(c *patterns.Compiler, lines []ocr.TextLine, langs []constants.Language) summaryScan {
	subPat := c.Amount(keywords.Subtotal, langs)
	taxPat := c.Tax(langs)
	totalPat := c.Amount(keywords.Total, langs)
	totalLabel := c.Label(keywords.Total, langs)
	included := c.Label(keywords.TaxIncluded, langs)
	change := c.Label(keywords.Change, langs)

	var s summaryScan
	for i, l := range lines {
		if len(patterns.FindAmounts(l.Text)) >= 3 || change.Match(l.Text) {
			continue
		}
		if m, ok := subPat.Find(l.Text); ok {
			s.subtotal = append(s.subtotal, newHit(constants.FieldSubtotal, m, i, l))
			continue
		}
		// "Total (incl. VAT) 18.59" is a total, not a tax line
		if !(included.Match(l.Text) && totalLabel.Match(l.Text)) {
			if m, ok := taxPat.Find(l.Text); ok {
				s.tax = append(s.tax, newHit(constants.FieldTaxAmount, m, i, l))
				continue
			}
		}
		if m, ok := totalPat.Find(l.Text); ok {
			s.total = append(s.total, newHit(constants.FieldTotal, m, i, l))
		}
	}
	return s
}

func newHit(field constants.Field, m patterns.Match, idx int, l ocr.TextLine) hit {
	h := hit{
		field:    field,
		amount:   m.Amount.InexactFloat64(),
		currency: m.Currency,
		variant:  m.Variant,
		conf:     clamp01(m.Specificity * l.Confidence),
		line:     idx,
	}
	if m.Rate != nil {
		r := m.Rate.InexactFloat64()
		h.rate = &r
	}
	return h
}

// best returns the most confident hit; ties go to the later line, which is
// where final totals usually sit.
func best(hits []hit) (hit, bool) {
	if len(hits) == 0 {
		return hit{}, false
	}
	out := hits[0]
	for _, h := range hits[1:] {
		if h.conf >= out.conf {
			out = h
		}
	}
	return out, true
}

func (s summaryScan) rated() []hit {
	var out []hit
	for _, h := range s.tax {
		if h.rate != nil {
			out = append(out, h)
		}
	}
	return out
}

func (s summaryScan) unrated() []hit {
	var out []hit
	for _, h := range s.tax {
		if h.rate == nil {
			out = append(out, h)
		}
	}
	return out
}

// taxTotal is the sum of per-rate tax lines when there are several, else the
// best generic tax line, else the single rated one. The hit's line points at
// the last contributing line.
func (s summaryScan) taxTotal() (hit, bool) {
	rated := s.rated()
	if len(rated) >= 2 {
		sum := rated[0]
		sum.rate = nil
		for _, h := range rated[1:] {
			sum.amount += h.amount
			sum.conf = min(sum.conf, h.conf)
			sum.line = h.line
		}
		sum.amount = patterns.Round2(sum.amount)
		return sum, true
	}
	if h, ok := best(s.unrated()); ok {
		return h, true
	}
	if len(rated) == 1 {
		return rated[0], true
	}
	return hit{}, false
}
