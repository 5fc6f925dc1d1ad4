package taxtable

import (
	"fmt"
	"regexp"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

const (
	maxRowsScanned   = 10
	mathPenalty      = 0.5
	ratePenalty      = 0.7
	ambiguityPenalty = 0.6
	confirmBoost     = 0.1
	maxRatePercent   = 100
)

var (
	reCode     = regexp.MustCompile(`^\s*([A-Z])\s+`)
	reBareRate = regexp.MustCompile(`^\s*(\d{1,2}(?:[.,]\d{1,2})?)\s+`)
)

// Detector finds tax/VAT breakdown tables in grouped lines.
type Detector struct {
	compiler *patterns.Compiler
	tol      Tolerance
}

func NewDetector(compiler *patterns.Compiler, tol Tolerance) *Detector {
	if compiler == nil {
		compiler = patterns.NewCompiler(nil)
	}
	if tol.Percent <= 0 && tol.Absolute <= 0 {
		tol = DefaultTolerance()
	}
	return &Detector{compiler: compiler, tol: tol}
}

// Detect returns the first tax table found, or nil. totalHint is a receipt
// total read elsewhere; it only affects confidence.
func (d *Detector) Detect(lines []ocr.TextLine, langs []constants.Language, totalHint *float64) *Table {
	tokens := d.compiler.Tokens(langs, keywords.TableRate, keywords.TableTax, keywords.TableNet, keywords.TableGross)
	for i, line := range lines {
		cols, ok := headerColumns(line.Text, tokens)
		if !ok {
			continue
		}
		t := d.parseRows(lines, i, cols, tokens, d.compiler.Tax(langs))
		if t == nil {
			t = d.parseColumns(lines, i, cols)
		}
		if t == nil {
			continue
		}
		d.score(t, totalHint)
		return t
	}
	return nil
}

// headerColumns classifies a header line. A header has no amounts and names
// at least two of tax, net and gross.
func headerColumns(text string, tokens *patterns.LabelPattern) ([]Column, bool) {
	if len(patterns.FindAmounts(text)) > 0 {
		return nil, false
	}
	found := tokens.FindAll(text)
	rates := patterns.FindRates(text)
	cols := make([]Column, 0, len(found))
	roles := map[Role]bool{}
	for i, tok := range found {
		col := Column{Role: roleOf(tok.Category), Keyword: tok.Keyword}
		if col.Role == RoleTax {
			next := len(text)
			if i+1 < len(found) {
				next = found[i+1].Start
			}
			for _, r := range rates {
				if r.Start >= tok.End && r.Start < next {
					v := r.Value.InexactFloat64()
					col.Rate = &v
					break
				}
			}
		}
		cols = append(cols, col)
		roles[col.Role] = true
	}
	n := 0
	for _, r := range []Role{RoleTax, RoleNet, RoleGross} {
		if roles[r] {
			n++
		}
	}
	return cols, n >= 2
}

func roleOf(cat keywords.Category) Role {
	switch cat {
	case keywords.TableRate:
		return RoleRate
	case keywords.TableNet:
		return RoleNet
	case keywords.TableGross:
		return RoleGross
	default:
		return RoleTax
	}
}

func valueColumns(cols []Column) []Column {
	out := make([]Column, 0, len(cols))
	for _, c := range cols {
		if c.Role != RoleRate {
			out = append(out, c)
		}
	}
	return out
}

func hasRole(cols []Column, role Role) bool {
	for _, c := range cols {
		if c.Role == role {
			return true
		}
	}
	return false
}

// parseRows reads per-rate rows below the header, then an optional summary.
func (d *Detector) parseRows(lines []ocr.TextLine, header int, cols []Column, tokens *patterns.LabelPattern, tax *patterns.AmountPattern) *Table {
	values := valueColumns(cols)
	rateColumn := hasRole(cols, RoleRate)
	t := &Table{HeaderIndex: header, Columns: cols, Shape: ShapeRows}
	for j := header + 1; j < len(lines) && j <= header+maxRowsScanned; j++ {
		if row, ok := parseRow(lines[j].Text, values, rateColumn); ok {
			row.LineIndex = j
			row.Confidence = lines[j].Confidence
			row.Validation = d.validate(row)
			t.Rows = append(t.Rows, row)
			continue
		}
		if len(t.Rows) > 0 {
			t.Summary = parseSummary(lines[j].Text, values, tokens, tax)
			if t.Summary != nil {
				t.Summary.LineIndex = j
				t.Summary.Consistent = d.summaryMatchesRows(t)
			}
		}
		break
	}
	if len(t.Rows) == 0 {
		return nil
	}
	return t
}

func parseRow(text string, values []Column, rateColumn bool) (Row, bool) {
	var row Row
	rest := text
	if m := reCode.FindStringSubmatch(rest); m != nil {
		row.Code = m[1]
		rest = rest[len(m[0]):]
	}

	var amounts []patterns.AmountToken
	rateFound := false
	if rates := patterns.FindRates(rest); len(rates) > 0 {
		all := patterns.FindAmounts(rest)
		if len(all) == 0 || rates[0].Start <= all[0].Start {
			row.Rate = rates[0].Value.InexactFloat64()
			rateFound = true
			amounts = patterns.FindAmounts(rest[rates[0].End:])
		}
	}
	if !rateFound && rateColumn {
		if m := reBareRate.FindStringSubmatchIndex(rest); m != nil {
			if r, err := patterns.ParseRate(rest[m[2]:m[3]]); err == nil {
				row.Rate = r.InexactFloat64()
				rateFound = true
				amounts = patterns.FindAmounts(rest[m[1]:])
			}
		}
	}
	if !rateFound || row.Rate <= 0 || row.Rate > maxRatePercent {
		return Row{}, false
	}
	if len(amounts) < 2 || len(amounts) > len(values) {
		return Row{}, false
	}

	hasTax := false
	for k, a := range amounts {
		v := a.Value.InexactFloat64()
		switch values[k].Role {
		case RoleNet:
			row.Net = &v
		case RoleGross:
			row.Gross = &v
		default:
			row.Tax = v
			hasTax = true
		}
	}
	return row, hasTax
}

// parseSummary reads a totals line: one amount per value column, or a single
// gross amount next to a total keyword. A single amount labelled as tax or
// net ("Total Tax: 4.30") is not a gross summary.
func parseSummary(text string, values []Column, tokens *patterns.LabelPattern, tax *patterns.AmountPattern) *Summary {
	if len(patterns.FindRates(text)) > 0 {
		return nil
	}
	amounts := patterns.FindAmounts(text)
	switch {
	case len(amounts) == len(values):
		s := &Summary{}
		for k, a := range amounts {
			v := a.Value.InexactFloat64()
			switch values[k].Role {
			case RoleNet:
				s.Net = &v
			case RoleGross:
				s.Gross = &v
			default:
				s.Tax = &v
			}
		}
		return s
	case len(amounts) == 1:
		if tax != nil {
			if _, ok := tax.Find(text); ok {
				return nil
			}
		}
		gross := false
		for _, tok := range tokens.FindAll(text) {
			switch tok.Category {
			case keywords.TableTax, keywords.TableNet:
				return nil
			case keywords.TableGross:
				gross = true
			}
		}
		if gross {
			v := amounts[0].Value.InexactFloat64()
			return &Summary{Gross: &v}
		}
	}
	return nil
}

// parseColumns reads the column-summary layout: rated tax cells in the header
// and their values on the line below, or one per line stacked vertically.
func (d *Detector) parseColumns(lines []ocr.TextLine, header int, cols []Column) *Table {
	rated := false
	for _, c := range cols {
		if c.Role == RoleTax && c.Rate != nil {
			rated = true
		}
	}
	if !rated {
		return nil
	}
	vals, last, conf, ok := d.collectValues(lines, header+1, len(cols))
	if !ok {
		return nil
	}

	var net, tax, gross float64
	var nets, taxes, grosses int
	for k, c := range cols {
		switch c.Role {
		case RoleNet:
			net += vals[k]
			nets++
		case RoleTax:
			tax += vals[k]
			taxes++
		case RoleGross:
			gross += vals[k]
			grosses++
		}
	}

	t := &Table{HeaderIndex: header, Columns: cols, Shape: ShapeColumns}
	for k, c := range cols {
		if c.Role != RoleTax || c.Rate == nil {
			continue
		}
		row := Row{Rate: *c.Rate, Tax: vals[k], Confidence: conf, LineIndex: last}
		if taxes == 1 && nets == 1 {
			row.Net = ptr(net)
		}
		if taxes == 1 && grosses == 1 {
			row.Gross = ptr(gross)
		}
		row.Validation = d.validate(row)
		t.Rows = append(t.Rows, row)
	}

	s := &Summary{LineIndex: last, Tax: ptr(tax)}
	if nets > 0 {
		s.Net = ptr(net)
	}
	if grosses > 0 {
		s.Gross = ptr(gross)
	}
	s.Consistent = true
	if s.Net != nil && s.Gross != nil {
		s.Consistent = d.tol.Within(net+tax, gross)
	}
	t.Summary = s
	return t
}

// collectValues returns n amounts from the line at start, or from n
// consecutive amount-only lines.
func (d *Detector) collectValues(lines []ocr.TextLine, start, n int) ([]float64, int, float64, bool) {
	if start >= len(lines) {
		return nil, 0, 0, false
	}
	if amounts := patterns.FindAmounts(lines[start].Text); len(amounts) == n {
		out := make([]float64, n)
		for k, a := range amounts {
			out[k] = a.Value.InexactFloat64()
		}
		return out, start, lines[start].Confidence, true
	}

	out := make([]float64, 0, n)
	var conf float64
	for j := start; j < len(lines) && len(out) < n; j++ {
		a, _, ok := d.compiler.AmountOnly(lines[j].Text)
		if !ok {
			return nil, 0, 0, false
		}
		out = append(out, a.Value.InexactFloat64())
		conf += lines[j].Confidence
	}
	if len(out) < n {
		return nil, 0, 0, false
	}
	return out, start + n - 1, conf / float64(n), true
}

// validate checks gross = net + tax and tax = net * rate / 100.
func (d *Detector) validate(r Row) Validation {
	v := Validation{MathConsistent: true, RateConsistent: true}
	if r.Net != nil && r.Gross != nil {
		tol := d.tol.For(*r.Gross)
		v.ToleranceUsed = tol
		if diff := *r.Net + r.Tax - *r.Gross; !d.tol.Within(*r.Net+r.Tax, *r.Gross) {
			v.MathConsistent = false
			v.Discrepancy = ptr(patterns.Round2(diff))
		}
	}

	net := r.Net
	if net == nil && r.Gross != nil {
		net = ptr(*r.Gross - r.Tax)
	}
	if net != nil && r.Rate > 0 {
		expected := *net * r.Rate / 100
		if v.ToleranceUsed == 0 {
			v.ToleranceUsed = d.tol.For(expected)
		}
		if !d.tol.Within(r.Tax, expected) {
			v.RateConsistent = false
			if v.Discrepancy == nil {
				v.Discrepancy = ptr(patterns.Round2(r.Tax - expected))
			}
		}
	}
	return v
}

func (d *Detector) summaryMatchesRows(t *Table) bool {
	s := t.Summary
	var net, tax, gross float64
	netOK, grossOK := true, true
	for _, r := range t.Rows {
		tax += r.Tax
		if r.Net != nil {
			net += *r.Net
		} else {
			netOK = false
		}
		if r.Gross != nil {
			gross += *r.Gross
		} else {
			grossOK = false
		}
	}
	if s.Tax != nil && !d.tol.Within(tax, *s.Tax) {
		return false
	}
	if s.Net != nil && netOK && !d.tol.Within(net, *s.Net) {
		return false
	}
	if s.Gross != nil && grossOK && !d.tol.Within(gross, *s.Gross) {
		return false
	}
	return true
}

// score applies row penalties and computes the table confidence.
func (d *Detector) score(t *Table, totalHint *float64) {
	if orderAmbiguous(t.Columns) {
		t.Ambiguous = true
		t.Warnings = append(t.Warnings, fmt.Sprintf(
			"tax table at line %d: ambiguous column order %s (expected tax next to net and gross last)",
			t.HeaderIndex+1, roleNames(t.Columns)))
	}

	var sum float64
	for i := range t.Rows {
		r := &t.Rows[i]
		if !r.Validation.MathConsistent {
			r.Confidence *= mathPenalty
			t.Warnings = append(t.Warnings, fmt.Sprintf("tax table row %g%%: net + tax does not equal gross", r.Rate))
		}
		if !r.Validation.RateConsistent {
			r.Confidence *= ratePenalty
			t.Warnings = append(t.Warnings, fmt.Sprintf("tax table row %g%%: tax does not match rate", r.Rate))
		}
		if t.Ambiguous {
			r.Confidence *= ambiguityPenalty
		}
		sum += r.Confidence
	}
	conf := sum / float64(len(t.Rows))

	switch {
	case t.Summary != nil && t.Summary.Consistent:
		conf += confirmBoost
	case totalHint != nil:
		if gross, ok := t.GrossTotal(); ok && d.tol.Within(gross, *totalHint) {
			conf += confirmBoost
		}
	}
	if conf > 1 {
		conf = 1
	}
	t.Confidence = conf
}

func ptr(v float64) *float64 { return &v }
