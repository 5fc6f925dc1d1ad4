package evidence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

var (
	english = []constants.Language{constants.English}
	german  = []constants.Language{constants.German, constants.English}
	finnish = []constants.Language{constants.Finnish, constants.English}
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

func pick(all []Evidence, src constants.Source, field constants.Field) []Evidence {
	var out []Evidence
	for _, e := range all {
		if e.Source == src && e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

func collectAll(t *testing.T, lines []ocr.TextLine, langs []constants.Language) Collection {
	t.Helper()
	c := newTestCollectorDefault()
	got, err := c.Collect(context.Background(), Input{Lines: lines, Languages: langs})
	require.NoError(t, err)
	return got
}

func newTestCollectorDefault() *Collector {
	cfg := DefaultConfig()
	cfg.MinConfidence = 0
	return NewCollector(patterns.NewCompiler(nil), cfg)
}

func TestFlatTaxReceipt(t *testing.T) {
	lines := textLines(0.9, "Corner Store", "SUBTOTAL $208.98", "TAX $13.37", "TOTAL $222.35")
	got := collectAll(t, lines, english)

	sub := pick(got.Evidence, constants.SourceText, constants.FieldSubtotal)
	require.Len(t, sub, 1)
	assert.Equal(t, Amount(208.98), sub[0].Value)
	assert.Equal(t, 1, sub[0].LineIndex)

	tax := pick(got.Evidence, constants.SourceText, constants.FieldTaxAmount)
	require.Len(t, tax, 1)
	assert.Equal(t, Amount(13.37), tax[0].Value)

	total := pick(got.Evidence, constants.SourceText, constants.FieldTotal)
	require.Len(t, total, 1)
	assert.Equal(t, Amount(222.35), total[0].Value)
	assert.InDelta(t, 0.85*0.9, total[0].Confidence, 1e-9)

	rate := pick(got.Evidence, constants.SourceCalculation, constants.FieldTaxRate)
	require.Len(t, rate, 1)
	assert.Equal(t, Rate(6.4), rate[0].Value)
	assert.InDelta(t, 0.85*0.9*0.8, rate[0].Confidence, 1e-9)

	breakdown := pick(got.Evidence, constants.SourceCalculation, constants.FieldTaxBreakdown)
	require.Len(t, breakdown, 1)
	b := breakdown[0].Value.(Breakdown)
	assert.Equal(t, 6.4, b.Rate)
	assert.Equal(t, 13.37, b.Tax)
	require.NotNil(t, b.Net)
	assert.Equal(t, 208.98, *b.Net)

	assert.Empty(t, pick(got.Evidence, constants.SourceSummaryCalculation, constants.FieldTotal))
	currency := pick(got.Evidence, constants.SourceText, constants.FieldCurrency)
	require.Len(t, currency, 3)
	assert.Equal(t, Text("USD"), currency[0].Value)
	assert.Empty(t, got.Warnings)
}

func TestGermanTableReceipt(t *testing.T) {
	lines := textLines(0.9,
		"Bäckerei Schmidt",
		"Zwischensumme / MwSt 19% / MwSt 7% / Gesamt",
		"€15.13",
		"€2.87",
		"€0.59",
		"€18.59",
	)
	got := collectAll(t, lines, german)

	value := func(field constants.Field) Value {
		ev := pick(got.Evidence, constants.SourceTable, field)
		require.Len(t, ev, 1, field)
		return ev[0].Value
	}
	assert.Equal(t, Amount(15.13), value(constants.FieldSubtotal))
	assert.Equal(t, Amount(3.46), value(constants.FieldTaxAmount))
	assert.Equal(t, Amount(18.59), value(constants.FieldTotal))

	rows := pick(got.Evidence, constants.SourceTable, constants.FieldTaxBreakdown)
	require.Len(t, rows, 2)
	assert.Equal(t, 19.0, rows[0].Value.(Breakdown).Rate)
	assert.Equal(t, 7.0, rows[1].Value.(Breakdown).Rate)

	// printed rates suppress back-solving
	assert.Empty(t, pick(got.Evidence, constants.SourceCalculation, constants.FieldTaxRate))
	// the header names several categories, so no label pairing
	assert.Empty(t, pick(got.Evidence, constants.SourceBBox, constants.FieldTotal))

	currency := pick(got.Evidence, constants.SourcePattern, constants.FieldCurrency)
	require.Len(t, currency, 1)
	assert.Equal(t, Text("EUR"), currency[0].Value)
	assert.InDelta(t, 0.9*0.9, currency[0].Confidence, 1e-9)
}

func TestTaxLines(t *testing.T) {
	t.Run("single rated line", func(t *testing.T) {
		got := collectAll(t, textLines(1, "ALV 24% 2,40", "Yhteensä 12,40"), finnish)
		assert.Equal(t, Rate(24), pick(got.Evidence, constants.SourceText, constants.FieldTaxRate)[0].Value)
		assert.Equal(t, Amount(2.40), pick(got.Evidence, constants.SourceText, constants.FieldTaxAmount)[0].Value)
		b := pick(got.Evidence, constants.SourceText, constants.FieldTaxBreakdown)
		require.Len(t, b, 1)
		assert.Equal(t, Breakdown{Rate: 24, Tax: 2.40}, b[0].Value)
	})

	t.Run("several rated lines are summed", func(t *testing.T) {
		got := collectAll(t, textLines(1, "MwSt 19% 2,87", "MwSt 7% 0,59", "Summe 18,59"), german)
		tax := pick(got.Evidence, constants.SourceText, constants.FieldTaxAmount)
		require.Len(t, tax, 1)
		assert.Equal(t, Amount(3.46), tax[0].Value)
		assert.Equal(t, 2, tax[0].Supporting["components"])
		assert.Len(t, pick(got.Evidence, constants.SourceText, constants.FieldTaxBreakdown), 2)
		assert.Empty(t, pick(got.Evidence, constants.SourceText, constants.FieldTaxRate))
	})

	t.Run("total including tax is not a tax line", func(t *testing.T) {
		got := collectAll(t, textLines(1, "Total (incl. VAT) 18.59"), english)
		assert.Empty(t, pick(got.Evidence, constants.SourceText, constants.FieldTaxAmount))
		total := pick(got.Evidence, constants.SourceText, constants.FieldTotal)
		require.Len(t, total, 1)
		assert.Equal(t, Amount(18.59), total[0].Value)
	})

	t.Run("change line is ignored", func(t *testing.T) {
		got := collectAll(t, textLines(1, "Change 5.00"), english)
		assert.Empty(t, pick(got.Evidence, constants.SourceText, constants.FieldTotal))
	})
}

func TestSummaryCalculation(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		field constants.Field
		want  Amount
	}{
		{"total from subtotal and tax", []string{"Subtotal 10.00", "Tax 2.40"}, constants.FieldTotal, 12.40},
		{"tax from subtotal and total", []string{"Subtotal 10.00", "Total 12.40"}, constants.FieldTaxAmount, 2.40},
		{"subtotal from tax and total", []string{"Tax 2.40", "Total 12.40"}, constants.FieldSubtotal, 10.00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectAll(t, textLines(0.9, tt.lines...), english)
			ev := pick(got.Evidence, constants.SourceSummaryCalculation, tt.field)
			require.Len(t, ev, 1)
			assert.InDelta(t, float64(tt.want), float64(ev[0].Value.(Amount)), 1e-9)
			assert.InDelta(t, 0.8*0.9*0.9, ev[0].Confidence, 1e-9)
			assert.Equal(t, -1, ev[0].LineIndex)
			assert.Nil(t, ev[0].Position)
		})
	}

	t.Run("negative tax is not derived", func(t *testing.T) {
		got := collectAll(t, textLines(0.9, "Subtotal 12.40", "Total 10.00"), english)
		assert.Empty(t, pick(got.Evidence, constants.SourceSummaryCalculation, constants.FieldTaxAmount))
	})
}

func TestCalculationOutsidePlausibleRange(t *testing.T) {
	got := collectAll(t, textLines(1, "Subtotal 10.00", "Tax 9.00"), english)
	rate := pick(got.Evidence, constants.SourceCalculation, constants.FieldTaxRate)
	require.Len(t, rate, 1)
	assert.Equal(t, Rate(90), rate[0].Value)
	assert.InDelta(t, 0.8*0.8*0.3, rate[0].Confidence, 1e-9)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "90.00%")
}

func TestBBoxPairing(t *testing.T) {
	tests := []struct {
		name     string
		amount   ocr.BoundingBox
		wantConf float64
	}{
		{"same row", ocr.BoundingBox{X: 200, Y: 104, Width: 60, Height: 20}, 0.8 * 0.9},
		{"directly below", ocr.BoundingBox{X: 10, Y: 135, Width: 60, Height: 20}, 0.65 * 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []ocr.TextLine{
				{Text: "TOTAL", Confidence: 0.9, BoundingBox: ocr.BoundingBox{X: 10, Y: 100, Width: 80, Height: 20}},
				{Text: "€15.60", Confidence: 0.95, BoundingBox: tt.amount},
			}
			got := collectAll(t, lines, english)
			ev := pick(got.Evidence, constants.SourceBBox, constants.FieldTotal)
			require.Len(t, ev, 1)
			assert.Equal(t, Amount(15.60), ev[0].Value)
			assert.InDelta(t, tt.wantConf, ev[0].Confidence, 1e-9)
			assert.Equal(t, 1, ev[0].LineIndex)
			require.NotNil(t, ev[0].Position)
			assert.Equal(t, 10.0, ev[0].Position.X)
		})
	}

	t.Run("too far apart", func(t *testing.T) {
		lines := []ocr.TextLine{
			{Text: "TOTAL", Confidence: 0.9, BoundingBox: ocr.BoundingBox{X: 10, Y: 100, Width: 80, Height: 20}},
			{Text: "€15.60", Confidence: 0.9, BoundingBox: ocr.BoundingBox{X: 10, Y: 300, Width: 60, Height: 20}},
		}
		got := collectAll(t, lines, english)
		assert.Empty(t, pick(got.Evidence, constants.SourceBBox, constants.FieldTotal))
	})
}

func TestSpatialModifiers(t *testing.T) {
	lines := textLines(1, "Shop", "Subtotal 10.00", "Items 3", "Total 12.40")
	got := collectAll(t, lines, english)
	total := pick(got.Evidence, constants.SourceSpatialAnalysis, constants.FieldTotal)
	require.Len(t, total, 1)
	assert.True(t, total[0].Modifier)
	assert.InDelta(t, 0.6, total[0].Confidence, 1e-9)
	assert.Equal(t, "bottom_third", total[0].Supporting["region"])

	sub := pick(got.Evidence, constants.SourceSpatialAnalysis, constants.FieldSubtotal)
	require.Len(t, sub, 1)
	assert.InDelta(t, 0.35, sub[0].Confidence, 1e-9)
}

func TestCurrencyVotes(t *testing.T) {
	lines := textLines(0.9, "Kreuzberg Markt", "Summe 12,00 kr", "Karte 12,00 kr")
	got := collectAll(t, lines, german)
	ev := pick(got.Evidence, constants.SourcePattern, constants.FieldCurrency)
	require.Len(t, ev, 1)
	assert.Equal(t, Text("SEK"), ev[0].Value)
	assert.Equal(t, 2, ev[0].Supporting["occurrences"])
	assert.InDelta(t, 0.7*0.9, ev[0].Confidence, 1e-9)
	assert.Equal(t, 1, ev[0].LineIndex)
}

func TestLinguisticFields(t *testing.T) {
	lines := textLines(0.9,
		"K-Market Kamppi",
		"Kuitti 12.05.2024 14:32",
		"Maito 1,29",
		"2 x Leipä 3,98",
		"Yhteensä 5,27",
	)
	got := collectAll(t, lines, finnish)

	merchant := pick(got.Evidence, constants.SourceLinguisticAnalysis, constants.FieldMerchantName)
	require.Len(t, merchant, 1)
	assert.Equal(t, Text("K-Market Kamppi"), merchant[0].Value)
	assert.InDelta(t, 0.75*0.9, merchant[0].Confidence, 1e-9)

	date := pick(got.Evidence, constants.SourceLinguisticAnalysis, constants.FieldPurchaseDate)
	require.Len(t, date, 1)
	assert.Equal(t, Text("2024-05-12"), date[0].Value)

	tm := pick(got.Evidence, constants.SourceLinguisticAnalysis, constants.FieldPurchaseTime)
	require.Len(t, tm, 1)
	assert.Equal(t, Text("14:32"), tm[0].Value)

	items := pick(got.Evidence, constants.SourceLinguisticAnalysis, constants.FieldLineItem)
	require.Len(t, items, 2)
	assert.Equal(t, Item{Name: "Maito", Price: 1.29}, items[0].Value)
	leipa := items[1].Value.(Item)
	assert.Equal(t, "Leipä", leipa.Name)
	assert.Equal(t, 3.98, leipa.Price)
	require.NotNil(t, leipa.Quantity)
	assert.Equal(t, 2.0, *leipa.Quantity)
}

func TestLinguisticItemsDropCurrencyMarks(t *testing.T) {
	lines := textLines(0.9,
		"SUPERMARKET ABC",
		"Leipä €2.50",
		"Maito 1L €1.89",
		"Omenat 1kg EUR 3.20",
		"EUROPA KAHVI 4,99 €",
		"Välisumma: €12.58",
	)
	got := collectAll(t, lines, finnish)

	items := pick(got.Evidence, constants.SourceLinguisticAnalysis, constants.FieldLineItem)
	require.Len(t, items, 4)
	var names []string
	for _, it := range items {
		names = append(names, it.Value.(Item).Name)
	}
	assert.Equal(t, []string{"Leipä", "Maito 1L", "Omenat 1kg", "EUROPA KAHVI"}, names)
	assert.Equal(t, 1.89, items[1].Value.(Item).Price)
}

func TestFindDates(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Date: 2024-05-12", []string{"2024-05-12"}},
		{"12.05.2024", []string{"2024-05-12"}},
		{"12/05/24", []string{"2024-05-12"}},
		{"05/13/2024", []string{"2024-05-13"}},
		{"31.02.2024", nil},
		{"Total 12.05", nil},
		{"12.05.2024 vs 2024-05-13", []string{"2024-05-13", "2024-05-12"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, findDates(tt.in))
		})
	}
}

func TestTextFields(t *testing.T) {
	got := collectAll(t, textLines(0.9, "Payment: Card", "Receipt # 001234", "Receipt 2024-05-12"), english)

	pay := pick(got.Evidence, constants.SourceText, constants.FieldPaymentMethod)
	require.Len(t, pay, 1)
	assert.Equal(t, Text(constants.PaymentCard), pay[0].Value)
	assert.InDelta(t, 0.8*0.9, pay[0].Confidence, 1e-9)

	num := pick(got.Evidence, constants.SourceText, constants.FieldReceiptNumber)
	require.Len(t, num, 1)
	assert.Equal(t, Text("001234"), num[0].Value)
}

func TestCandidateEvidence(t *testing.T) {
	total := 12.4
	in := Input{Candidate: &llm.Candidate{
		MerchantName: " Shop ",
		Total:        &total,
		Currency:     "eur",
		TaxBreakdown: []llm.CandidateTax{{Rate: 24, Amount: 2.4}},
		Items:        []llm.CandidateItem{{Name: "Bread", Price: 3.98}, {Name: " ", Price: 1}},
	}}
	ev, err := (&candidateStrategy{}).Collect(in)
	require.NoError(t, err)
	require.Len(t, ev, 6)
	for _, e := range ev {
		assert.Equal(t, constants.SourceLLM, e.Source)
		assert.Equal(t, defaultCandidateConfidence, e.Confidence)
		assert.NoError(t, e.Validate())
	}
	assert.Equal(t, Text("Shop"), pick(ev, constants.SourceLLM, constants.FieldMerchantName)[0].Value)
	assert.Equal(t, Text("EUR"), pick(ev, constants.SourceLLM, constants.FieldCurrency)[0].Value)
	assert.Equal(t, Rate(24), pick(ev, constants.SourceLLM, constants.FieldTaxRate)[0].Value)

	none, err := (&candidateStrategy{}).Collect(Input{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTableConfidenceIsUnweighted(t *testing.T) {
	lines := textLines(0.9, "Zwischensumme MwSt 19% MwSt 7% Gesamt", "€15.13 €2.87 €0.59 €18.59")
	got := collectAll(t, lines, german)
	total := pick(got.Evidence, constants.SourceTable, constants.FieldTotal)
	require.Len(t, total, 1)
	// the 1.3 table trust is a fusion weight, not a collection one
	assert.InDelta(t, 1.0, total[0].Confidence, 1e-9)
}
