package taxtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

var (
	german  = []constants.Language{constants.German, constants.English}
	finnish = []constants.Language{constants.Finnish, constants.English}
	english = []constants.Language{constants.English}
)

func textLines(conf float64, texts ...string) []ocr.TextLine {
	out := make([]ocr.TextLine, 0, len(texts))
	for i, t := range texts {
		out = append(out, ocr.TextLine{
			Text:        t,
			Confidence:  conf,
			BoundingBox: ocr.BoundingBox{X: 10, Y: float64(i) * 30, Width: 300, Height: 20},
		})
	}
	return out
}

func newDetector() *Detector {
	return NewDetector(patterns.NewCompiler(nil), DefaultTolerance())
}

func TestDetectColumnSummary(t *testing.T) {
	tests := []struct {
		name  string
		lines []ocr.TextLine
	}{
		{
			name: "values on one line",
			lines: textLines(0.9,
				"Bäckerei Schmidt",
				"Zwischensumme / MwSt 19% / MwSt 7% / Gesamt",
				"€15.13 €2.87 €0.59 €18.59",
			),
		},
		{
			name: "values stacked",
			lines: textLines(0.9,
				"Zwischensumme MwSt 19% MwSt 7% Gesamt",
				"€15.13",
				"€2.87",
				"€0.59",
				"€18.59",
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newDetector().Detect(tt.lines, german, nil)
			require.NotNil(t, table)
			assert.Equal(t, ShapeColumns, table.Shape)
			assert.False(t, table.Ambiguous)
			require.Len(t, table.Rows, 2)
			assert.Equal(t, 19.0, table.Rows[0].Rate)
			assert.InDelta(t, 2.87, table.Rows[0].Tax, 1e-9)
			assert.Equal(t, 7.0, table.Rows[1].Rate)
			assert.InDelta(t, 0.59, table.Rows[1].Tax, 1e-9)

			net, ok := table.NetTotal()
			require.True(t, ok)
			assert.InDelta(t, 15.13, net, 1e-9)
			tax, ok := table.TaxTotal()
			require.True(t, ok)
			assert.InDelta(t, 3.46, tax, 1e-9)
			gross, ok := table.GrossTotal()
			require.True(t, ok)
			assert.InDelta(t, 18.59, gross, 1e-9)

			require.NotNil(t, table.Summary)
			assert.True(t, table.Summary.Consistent)
			assert.InDelta(t, 1.0, table.Confidence, 1e-9)
		})
	}
}

func TestDetectPerRateRows(t *testing.T) {
	lines := textLines(0.9,
		"K-Market",
		"ALV % Veroton Vero Verollinen",
		"24% 10,00 2,40 12,40",
		"14% 5,00 0,70 5,70",
		"Yhteensä 15,00 3,10 18,10",
		"Kiitos käynnistä",
	)
	table := newDetector().Detect(lines, finnish, nil)
	require.NotNil(t, table)
	assert.Equal(t, ShapeRows, table.Shape)
	assert.Equal(t, 1, table.HeaderIndex)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 24.0, first.Rate)
	assert.Equal(t, 2, first.LineIndex)
	require.NotNil(t, first.Net)
	require.NotNil(t, first.Gross)
	assert.InDelta(t, 10.0, *first.Net, 1e-9)
	assert.InDelta(t, 2.4, first.Tax, 1e-9)
	assert.InDelta(t, 12.4, *first.Gross, 1e-9)
	assert.True(t, first.Validation.MathConsistent)
	assert.True(t, first.Validation.RateConsistent)

	require.NotNil(t, table.Summary)
	assert.Equal(t, 4, table.Summary.LineIndex)
	assert.True(t, table.Summary.Consistent)
	assert.InDelta(t, 1.0, table.Confidence, 1e-9)
}

func TestDetectBareRateColumn(t *testing.T) {
	lines := textLines(0.8,
		"ALV % Veroton Vero Verollinen",
		"24 10,00 2,40 12,40",
	)
	table := newDetector().Detect(lines, finnish, nil)
	require.NotNil(t, table)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 24.0, table.Rows[0].Rate)
}

func TestDetectFlagsInconsistentRows(t *testing.T) {
	lines := textLines(0.9,
		"ALV % Veroton Vero Verollinen",
		"24% 10,00 2,40 13,40",
	)
	table := newDetector().Detect(lines, finnish, nil)
	require.NotNil(t, table)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.False(t, row.Validation.MathConsistent)
	assert.True(t, row.Validation.RateConsistent)
	require.NotNil(t, row.Validation.Discrepancy)
	assert.InDelta(t, -1.0, *row.Validation.Discrepancy, 1e-9)
	assert.InDelta(t, 0.45, row.Confidence, 1e-9)
	assert.InDelta(t, 0.45, table.Confidence, 1e-9)
	assert.NotEmpty(t, table.Warnings)
}

func TestDetectAmbiguousColumnOrder(t *testing.T) {
	lines := textLines(1.0,
		"VAT Gross Net",
		"20% 2.00 12.00 10.00",
	)
	table := newDetector().Detect(lines, english, nil)
	require.NotNil(t, table)
	assert.True(t, table.Ambiguous)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.InDelta(t, 2.0, row.Tax, 1e-9)
	assert.InDelta(t, 12.0, *row.Gross, 1e-9)
	assert.InDelta(t, 10.0, *row.Net, 1e-9)
	assert.InDelta(t, 0.6, row.Confidence, 1e-9)
	require.NotEmpty(t, table.Warnings)
	assert.Contains(t, table.Warnings[0], "ambiguous column order tax/gross/net")
}

func TestDetectTotalHintBoost(t *testing.T) {
	lines := textLines(0.8,
		"Tax rate Tax Subtotal Total",
		"14% 1.40 10.00 11.40",
		"24% 2.40 10.00 12.40",
		"Thank you",
	)
	d := newDetector()

	plain := d.Detect(lines, english, nil)
	require.NotNil(t, plain)
	assert.Nil(t, plain.Summary)
	assert.InDelta(t, 0.8, plain.Confidence, 1e-9)

	hint := 23.80
	boosted := d.Detect(lines, english, &hint)
	require.NotNil(t, boosted)
	assert.InDelta(t, 0.9, boosted.Confidence, 1e-9)

	wrong := 40.0
	assert.InDelta(t, 0.8, d.Detect(lines, english, &wrong).Confidence, 1e-9)
}

func TestDetectIgnoresTaxTotalLine(t *testing.T) {
	lines := textLines(0.9,
		"Subtotal:                €21.08",
		"Tax rate Tax Subtotal Total",
		"14% €1.06 €7.59 €8.65",
		"24% €3.24 €13.49 €16.73",
		"Total Tax:               €4.30",
		"TOTAL:                   €25.38",
	)
	table := newDetector().Detect(lines, english, nil)
	require.NotNil(t, table)
	require.Len(t, table.Rows, 2)
	assert.Nil(t, table.Summary)

	gross, ok := table.GrossTotal()
	require.True(t, ok)
	assert.InDelta(t, 25.38, gross, 1e-9)
	tax, ok := table.TaxTotal()
	require.True(t, ok)
	assert.InDelta(t, 4.30, tax, 1e-9)
}

func TestTotalsIgnoreInconsistentSummary(t *testing.T) {
	lines := textLines(0.9,
		"ALV % Veroton Vero Verollinen",
		"24% 10,00 2,40 12,40",
		"14% 5,00 0,70 5,70",
		"Yhteensä 15,00 3,10 99,00",
	)
	table := newDetector().Detect(lines, finnish, nil)
	require.NotNil(t, table)
	require.NotNil(t, table.Summary)
	assert.False(t, table.Summary.Consistent)

	gross, ok := table.GrossTotal()
	require.True(t, ok)
	assert.InDelta(t, 18.10, gross, 1e-9)
	net, ok := table.NetTotal()
	require.True(t, ok)
	assert.InDelta(t, 15.0, net, 1e-9)
}

func TestDetectNoTable(t *testing.T) {
	lines := textLines(0.9,
		"SUBTOTAL $208.98",
		"TAX $13.37",
		"TOTAL $222.35",
	)
	assert.Nil(t, newDetector().Detect(lines, english, nil))
	assert.Nil(t, newDetector().Detect(nil, english, nil))
}

func TestTolerance(t *testing.T) {
	tol := DefaultTolerance()
	assert.InDelta(t, 2.0, tol.For(100), 1e-9)
	assert.InDelta(t, 0.02, tol.For(0.5), 1e-9)
	assert.True(t, tol.Within(18.59, 18.60))
	assert.False(t, tol.Within(3.00, 3.10))

	abs := Tolerance{Absolute: 0.02}
	assert.True(t, abs.Within(1.06+3.24, 4.32), "summed cents on the boundary")
	assert.False(t, abs.Within(4.27, 4.30))
}

func TestOrderAmbiguous(t *testing.T) {
	col := func(roles ...Role) []Column {
		out := make([]Column, 0, len(roles))
		for _, r := range roles {
			out = append(out, Column{Role: r})
		}
		return out
	}
	tests := []struct {
		name string
		cols []Column
		want bool
	}{
		{name: "rate tax net gross", cols: col(RoleRate, RoleTax, RoleNet, RoleGross)},
		{name: "net tax tax gross", cols: col(RoleNet, RoleTax, RoleTax, RoleGross)},
		{name: "net gross", cols: col(RoleNet, RoleGross)},
		{name: "gross not last", cols: col(RoleTax, RoleGross, RoleNet), want: true},
		{name: "tax apart from net", cols: col(RoleTax, RoleGross, RoleNet, RoleGross), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderAmbiguous(tt.cols))
		})
	}
}
