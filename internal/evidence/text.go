package evidence

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

var (
	reHasDigit  = regexp.MustCompile(`\d`)
	reDateShape = regexp.MustCompile(`^\d{1,4}[-/.]\d{1,2}[-/.]\d{2,4}$`)
)

// textStrategy reads keyword + amount lines and labelled text fields.
type textStrategy struct {
	compiler *patterns.Compiler
}

func (s *textStrategy) Source() constants.Source { return constants.SourceText }

func (s *textStrategy) Collect(in Input) ([]Evidence, error) {
	src := s.Source()
	sc := scanSummary(s.compiler, in.Lines, in.Languages)
	var out []Evidence

	for _, h := range sc.subtotal {
		out = append(out, h.evidence(src, in.Lines))
	}
	for _, h := range sc.total {
		out = append(out, h.evidence(src, in.Lines))
	}
	for _, h := range sc.unrated() {
		out = append(out, h.evidence(src, in.Lines))
	}

	rated := sc.rated()
	switch {
	case len(rated) == 1:
		h := rated[0]
		line := in.Lines[h.line]
		out = append(out,
			h.evidence(src, in.Lines),
			lineEvidence(src, constants.FieldTaxRate, Rate(*h.rate), h.conf, h.line, line),
			lineEvidence(src, constants.FieldTaxBreakdown, Breakdown{Rate: *h.rate, Tax: h.amount}, h.conf, h.line, line),
		)
	case len(rated) > 1:
		for _, h := range rated {
			out = append(out, lineEvidence(src, constants.FieldTaxBreakdown,
				Breakdown{Rate: *h.rate, Tax: h.amount}, h.conf, h.line, in.Lines[h.line]))
		}
		sum, _ := sc.taxTotal()
		e := sum.evidence(src, in.Lines)
		e.Supporting["components"] = len(rated)
		out = append(out, e)
	}

	out = append(out, s.currencies(in, sc)...)
	out = append(out, s.payment(in)...)
	out = append(out, s.receiptNumber(in)...)
	return out, nil
}

// currencies maps currency marks captured next to summary amounts to ISO codes.
func (s *textStrategy) currencies(in Input, sc summaryScan) []Evidence {
	reg := s.compiler.Registry()
	var out []Evidence
	for _, group := range [][]hit{sc.subtotal, sc.tax, sc.total} {
		for _, h := range group {
			if h.currency == "" {
				continue
			}
			code, ok := reg.CurrencyCode(h.currency)
			if !ok {
				continue
			}
			e := lineEvidence(s.Source(), constants.FieldCurrency, Text(code), h.conf, h.line, in.Lines[h.line])
			e.Supporting = map[string]any{"symbol": h.currency}
			out = append(out, e)
		}
	}
	return out
}

func (s *textStrategy) payment(in Input) []Evidence {
	pay := s.compiler.Payment(in.Languages)
	var out []Evidence
	for i, l := range in.Lines {
		tok, ok := pay.Method.First(l.Text)
		if !ok {
			continue
		}
		method := paymentValue(tok.Category)
		if method == "" {
			continue
		}
		conf := 0.55 * l.Confidence
		if pay.Label.Match(l.Text) {
			conf = 0.8 * l.Confidence
		}
		e := lineEvidence(s.Source(), constants.FieldPaymentMethod, Text(method), conf, i, l)
		e.Supporting = map[string]any{"keyword": tok.Keyword}
		out = append(out, e)
	}
	return out
}

func paymentValue(cat keywords.Category) string {
	switch cat {
	case keywords.PaymentCash:
		return constants.PaymentCash
	case keywords.PaymentCard:
		return constants.PaymentCard
	case keywords.PaymentMobile:
		return constants.PaymentMobile
	}
	return ""
}

func (s *textStrategy) receiptNumber(in Input) []Evidence {
	re := s.compiler.DocumentNumber(in.Languages)
	idx := re.SubexpIndex("number")
	var out []Evidence
	for i, l := range in.Lines {
		m := re.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		number := strings.TrimRight(m[idx], "-/")
		if !reHasDigit.MatchString(number) || reDateShape.MatchString(number) {
			continue
		}
		out = append(out, lineEvidence(s.Source(), constants.FieldReceiptNumber, Text(strings.ToUpper(number)), 0.8*l.Confidence, i, l))
	}
	return out
}
