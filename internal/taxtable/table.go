package taxtable

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Role is the meaning of one tax table column.
type Role string

const (
	RoleRate  Role = "rate"
	RoleNet   Role = "net"
	RoleTax   Role = "tax"
	RoleGross Role = "gross"
)

// Column is one header cell. Rate is set when the header itself carries the
// percentage, e.g. "MwSt 19%".
type Column struct {
	Role    Role
	Keyword string
	Rate    *float64
}

// Shape tells how values are laid out under the header.
type Shape string

const (
	// ShapeRows has one line per rate: "[code] rate% v v [v]".
	ShapeRows Shape = "per_rate_rows"
	// ShapeColumns has one value line whose amounts line up with rated header cells.
	ShapeColumns Shape = "column_summary"
)

// Validation records the arithmetic checks of one row.
type Validation struct {
	MathConsistent bool     `json:"math_consistent"`
	RateConsistent bool     `json:"rate_consistent"`
	ToleranceUsed  float64  `json:"tolerance_used"`
	Discrepancy    *float64 `json:"discrepancy,omitempty"`
}

// Row is one tax rate of the table. Inconsistent rows are kept with a lower
// confidence.
type Row struct {
	Code       string     `json:"code,omitempty"`
	Rate       float64    `json:"rate"`
	Net        *float64   `json:"net,omitempty"`
	Tax        float64    `json:"tax"`
	Gross      *float64   `json:"gross,omitempty"`
	Confidence float64    `json:"confidence"`
	LineIndex  int        `json:"line_index"`
	Validation Validation `json:"validation"`
}

// Summary is a totals line of the table.
type Summary struct {
	Net        *float64 `json:"net,omitempty"`
	Tax        *float64 `json:"tax,omitempty"`
	Gross      *float64 `json:"gross,omitempty"`
	LineIndex  int      `json:"line_index"`
	Consistent bool     `json:"consistent"`
}

// Table is a detected tax breakdown section.
type Table struct {
	HeaderIndex int      `json:"header_index"`
	Columns     []Column `json:"columns"`
	Shape       Shape    `json:"shape"`
	Rows        []Row    `json:"rows"`
	Summary     *Summary `json:"summary,omitempty"`
	Confidence  float64  `json:"confidence"`
	Ambiguous   bool     `json:"ambiguous"`
	Warnings    []string `json:"warnings,omitempty"`
}

// NetTotal is the summary net, or the sum of row nets when every row has one
// (derived from gross - tax otherwise). A summary that disagrees with the rows
// is ignored by all three totals.
func (t *Table) NetTotal() (float64, bool) {
	if t.Summary != nil && t.Summary.Consistent && t.Summary.Net != nil {
		return *t.Summary.Net, true
	}
	if len(t.Rows) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range t.Rows {
		switch {
		case r.Net != nil:
			sum += *r.Net
		case r.Gross != nil:
			sum += *r.Gross - r.Tax
		default:
			return 0, false
		}
	}
	return sum, true
}

// TaxTotal is the summary tax or the sum of row taxes.
func (t *Table) TaxTotal() (float64, bool) {
	if t.Summary != nil && t.Summary.Consistent && t.Summary.Tax != nil {
		return *t.Summary.Tax, true
	}
	if len(t.Rows) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range t.Rows {
		sum += r.Tax
	}
	return sum, true
}

// GrossTotal is the summary gross or the sum of row grosses.
func (t *Table) GrossTotal() (float64, bool) {
	if t.Summary != nil && t.Summary.Consistent && t.Summary.Gross != nil {
		return *t.Summary.Gross, true
	}
	if len(t.Rows) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range t.Rows {
		if r.Gross == nil {
			return 0, false
		}
		sum += *r.Gross
	}
	return sum, true
}

// Tolerance bounds arithmetic checks: the larger of a percentage of the
// expected value and an absolute amount.
type Tolerance struct {
	Percent  float64
	Absolute float64
}

func DefaultTolerance() Tolerance {
	return Tolerance{Percent: 2, Absolute: 0.02}
}

// For returns the allowed deviation around expected.
func (t Tolerance) For(expected float64) float64 {
	return t.bound(decimal.NewFromFloat(expected)).InexactFloat64()
}

// Within reports whether got is within tolerance of expected. Both sides are
// compared in decimal at four places so float noise from summed cents does
// not decide a boundary case.
func (t Tolerance) Within(got, expected float64) bool {
	g := decimal.NewFromFloat(got).Round(4)
	e := decimal.NewFromFloat(expected).Round(4)
	return g.Sub(e).Abs().LessThanOrEqual(t.bound(e))
}

func (t Tolerance) bound(expected decimal.Decimal) decimal.Decimal {
	pct := expected.Abs().Mul(decimal.NewFromFloat(t.Percent)).Div(decimal.NewFromInt(100))
	return decimal.Max(pct, decimal.NewFromFloat(t.Absolute))
}

// orderAmbiguous reports a header that breaks the usual layout: tax next to
// net, gross rightmost.
func orderAmbiguous(cols []Column) bool {
	var roles []Role
	has := map[Role]bool{}
	for _, c := range cols {
		if c.Role == RoleRate {
			continue
		}
		roles = append(roles, c.Role)
		has[c.Role] = true
	}
	if len(roles) == 0 {
		return false
	}
	if has[RoleGross] && roles[len(roles)-1] != RoleGross {
		return true
	}
	if has[RoleTax] && has[RoleNet] {
		for i := 0; i+1 < len(roles); i++ {
			a, b := roles[i], roles[i+1]
			if (a == RoleTax && b == RoleNet) || (a == RoleNet && b == RoleTax) {
				return false
			}
		}
		return true
	}
	return false
}

func roleNames(cols []Column) string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, string(c.Role))
	}
	return strings.Join(names, "/")
}
