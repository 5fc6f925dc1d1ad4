package evidence

import (
	"fmt"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

const (
	calculationPenalty = 0.8
	implausiblePenalty = 0.3
)

// calculationStrategy back-solves the tax rate from tax and subtotal. It stays
// silent when the document prints a rate itself.
type calculationStrategy struct {
	compiler *patterns.Compiler
	minRate  float64
	maxRate  float64
}

func (s *calculationStrategy) Source() constants.Source { return constants.SourceCalculation }

func (s *calculationStrategy) Collect(in Input) ([]Evidence, error) {
	sc := scanSummary(s.compiler, in.Lines, in.Languages)
	sub, ok := best(sc.subtotal)
	if !ok || sub.amount <= 0 {
		return nil, nil
	}
	tax, ok := sc.taxTotal()
	if !ok || tax.amount < 0 {
		return nil, nil
	}
	if s.printsRate(in) {
		return nil, nil
	}

	rate := patterns.Round2(tax.amount / sub.amount * 100)
	conf := min(sub.conf, tax.conf) * calculationPenalty
	support := map[string]any{"subtotal": sub.amount, "tax": tax.amount}
	if rate < s.minRate || rate > s.maxRate {
		conf *= implausiblePenalty
		support[supportWarnings] = []string{
			fmt.Sprintf("calculated tax rate %.2f%% outside plausible range %g-%g%%", rate, s.minRate, s.maxRate),
		}
	}

	formula := fmt.Sprintf("%.2f / %.2f", tax.amount, sub.amount)
	net := sub.amount
	mk := func(field constants.Field, v Value) Evidence {
		return Evidence{
			Source:     s.Source(),
			Field:      field,
			Value:      v,
			Confidence: clamp01(conf),
			LineIndex:  -1,
			RawText:    formula,
			Supporting: support,
		}
	}
	return []Evidence{
		mk(constants.FieldTaxRate, Rate(rate)),
		mk(constants.FieldTaxBreakdown, Breakdown{Rate: rate, Tax: tax.amount, Net: &net}),
	}, nil
}

// printsRate reports whether a tax line, a tax-table header or a table row
// carries an explicit N%.
func (s *calculationStrategy) printsRate(in Input) bool {
	taxLabel := s.compiler.Label(keywords.Tax, in.Languages)
	tableTokens := s.compiler.Tokens(in.Languages, keywords.TableRate, keywords.TableTax)
	for _, l := range in.Lines {
		if len(patterns.FindRates(l.Text)) == 0 {
			continue
		}
		if taxLabel.Match(l.Text) || tableTokens.Match(l.Text) || len(patterns.FindAmounts(l.Text)) >= 2 {
			return true
		}
	}
	return false
}
