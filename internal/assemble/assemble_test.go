package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
	"github.com/joseph-ayodele/receipts-extractor/internal/fusion"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
)

func cluster(f constants.Field, v evidence.Value, conf float64, lines ...int) fusion.Cluster {
	c := fusion.Cluster{Field: f, Value: v, Confidence: conf, Consistent: true}
	for _, l := range lines {
		c.Members = append(c.Members, evidence.Evidence{Field: f, Value: v, Confidence: conf, LineIndex: l})
	}
	return c
}

func outcome(cs ...fusion.Cluster) fusion.Outcome {
	o := fusion.Outcome{Clusters: map[constants.Field][]fusion.Cluster{}}
	for _, c := range cs {
		o.Clusters[c.Field] = append(o.Clusters[c.Field], c)
	}
	return o
}

func germanOutcome() fusion.Outcome {
	return outcome(
		cluster(constants.FieldTotal, evidence.Amount(18.59), 0.9),
		cluster(constants.FieldSubtotal, evidence.Amount(15.13), 0.9),
		cluster(constants.FieldTaxAmount, evidence.Amount(3.46), 0.9),
		cluster(constants.FieldMerchantName, evidence.Text("Lidl"), 0.8),
		cluster(constants.FieldPurchaseDate, evidence.Text("2024-05-12"), 0.8),
		cluster(constants.FieldCurrency, evidence.Text("EUR"), 0.6),
		cluster(constants.FieldTaxBreakdown, evidence.Breakdown{Rate: 7, Tax: 0.59, Net: entity.Ptr(8.41)}, 0.8),
		cluster(constants.FieldTaxBreakdown, evidence.Breakdown{Rate: 19, Tax: 2.87, Net: entity.Ptr(6.72)}, 0.85),
	)
}

func TestAssembleMapsClusters(t *testing.T) {
	a := New(DefaultConfig(), nil)
	res := a.Assemble(Input{Outcome: germanOutcome()})

	require.NotNil(t, res.Total)
	assert.Equal(t, 18.59, *res.Total)
	assert.Equal(t, 15.13, *res.Subtotal)
	assert.Equal(t, 3.46, *res.TaxTotal)
	assert.Equal(t, "Lidl", *res.MerchantName)
	assert.Equal(t, "EUR", *res.Currency)
	assert.Nil(t, res.PaymentMethod)
	assert.Nil(t, res.Time)

	require.Len(t, res.TaxBreakdown, 2)
	assert.Equal(t, 19.0, res.TaxBreakdown[0].Rate)
	assert.Equal(t, 7.0, res.TaxBreakdown[1].Rate)
	assert.Equal(t, 8.41, *res.TaxBreakdown[1].TaxableAmount)

	// (0.9*3 + 0.8*2 + 0.8*2 + 0.9 + 0.9 + 0.6*0.5) / 9.5
	assert.InDelta(t, 0.8421, res.Confidence, 1e-4)
	assert.False(t, res.NeedsVerification)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, constants.StateAssembled, res.Metadata.State)
	assert.Equal(t, 8, res.Metadata.EvidenceSummary.Clusters)
}

func TestAssembleConfidenceIsReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FieldWeights[constants.FieldCurrency] = 0.1
	cfg.FieldWeights[constants.FieldPaymentMethod] = 0.7
	cfg.FieldWeights[constants.FieldReceiptNumber] = 0.3
	o := germanOutcome()
	o.Clusters[constants.FieldPaymentMethod] = []fusion.Cluster{cluster(constants.FieldPaymentMethod, evidence.Text("CARD"), 0.37)}
	o.Clusters[constants.FieldReceiptNumber] = []fusion.Cluster{cluster(constants.FieldReceiptNumber, evidence.Text("001234"), 0.61)}

	a := New(cfg, nil)
	first := a.Assemble(Input{Outcome: o}).Confidence
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, a.Assemble(Input{Outcome: o}).Confidence)
	}
}

func TestAssembleLowConfidenceField(t *testing.T) {
	o := germanOutcome()
	o.Clusters[constants.FieldMerchantName][0].Confidence = 0.2

	res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
	assert.Nil(t, res.MerchantName)
	assert.Contains(t, res.Warnings, "merchant_name: low confidence")
	assert.True(t, res.NeedsVerification)
	_, ok := res.FieldConfidence["merchant_name"]
	assert.False(t, ok)
}

func TestAssembleTaxTotalFromBreakdown(t *testing.T) {
	o := germanOutcome()
	delete(o.Clusters, constants.FieldTaxAmount)

	res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
	require.NotNil(t, res.TaxTotal)
	assert.Equal(t, 3.46, *res.TaxTotal)
	assert.InDelta(t, 0.825, res.FieldConfidence["tax_amount"], 1e-9)
}

func TestAssembleSynthesizesSingleBreakdown(t *testing.T) {
	o := outcome(
		cluster(constants.FieldTotal, evidence.Amount(222.36), 0.9),
		cluster(constants.FieldSubtotal, evidence.Amount(208.98), 0.9),
		cluster(constants.FieldTaxAmount, evidence.Amount(13.38), 0.85),
		cluster(constants.FieldTaxRate, evidence.Rate(6.4), 0.6),
	)
	res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
	require.Len(t, res.TaxBreakdown, 1)
	assert.Equal(t, 6.4, res.TaxBreakdown[0].Rate)
	assert.Equal(t, 13.38, res.TaxBreakdown[0].Amount)
	assert.Equal(t, 208.98, *res.TaxBreakdown[0].TaxableAmount)
}

func TestAssembleKeepsOneEntryPerRate(t *testing.T) {
	o := outcome(
		cluster(constants.FieldTaxBreakdown, evidence.Breakdown{Rate: 19, Tax: 2.87}, 0.9),
		cluster(constants.FieldTaxBreakdown, evidence.Breakdown{Rate: 19, Tax: 28.7}, 0.4),
		cluster(constants.FieldTaxBreakdown, evidence.Breakdown{Rate: 7, Tax: 0.59}, 0.3),
	)
	res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
	require.Len(t, res.TaxBreakdown, 1)
	assert.Equal(t, 2.87, res.TaxBreakdown[0].Amount)
}

func TestAssembleArithmeticWarning(t *testing.T) {
	mismatch := "subtotal 10.00 + tax 1.00 = 11.00 does not match total 20.00"
	base := func() fusion.Outcome {
		return outcome(
			cluster(constants.FieldTotal, evidence.Amount(20), 0.9),
			cluster(constants.FieldSubtotal, evidence.Amount(10), 0.9),
			cluster(constants.FieldTaxAmount, evidence.Amount(1), 0.9),
		)
	}

	t.Run("added when fusion did not check", func(t *testing.T) {
		res := New(DefaultConfig(), nil).Assemble(Input{Outcome: base()})
		assert.Equal(t, []string{mismatch}, res.Warnings)
	})

	t.Run("not repeated", func(t *testing.T) {
		o := base()
		o.Validation = fusion.Validation{MathChecked: true, Warnings: []string{mismatch}}
		res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
		assert.Equal(t, []string{mismatch}, res.Warnings)
	})

	t.Run("within tolerance", func(t *testing.T) {
		o := base()
		o.Clusters[constants.FieldTotal][0].Value = evidence.Amount(11.2)
		res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
		assert.Empty(t, res.Warnings)
	})
}

func TestAssembleItemsInDocumentOrder(t *testing.T) {
	o := outcome(
		cluster(constants.FieldLineItem, evidence.Item{Name: "Milk", Price: 1.19}, 0.9, 4),
		cluster(constants.FieldLineItem, evidence.Item{Name: "Bread", Price: 2.49}, 0.5, 2),
		cluster(constants.FieldLineItem, evidence.Item{Name: "Bag", Price: 0.2}, 0.6),
		cluster(constants.FieldLineItem, evidence.Item{Name: "Noise", Price: 9}, 0.1, 1),
	)
	res := New(DefaultConfig(), nil).Assemble(Input{Outcome: o})
	require.Len(t, res.Items, 3)
	assert.Equal(t, "Bread", res.Items[0].Name)
	assert.Equal(t, "Milk", res.Items[1].Name)
	assert.Equal(t, "Bag", res.Items[2].Name)
}

func TestAssembleEmptyOutcome(t *testing.T) {
	res := New(DefaultConfig(), nil).Assemble(Input{Outcome: outcome()})
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.NeedsVerification)
	assert.NotNil(t, res.TaxBreakdown)
	assert.NotNil(t, res.Items)
	assert.NotNil(t, res.Warnings)
}

func TestFailed(t *testing.T) {
	res := Failed("no text lines in OCR result")
	assert.Nil(t, res.Total)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, []string{"no text lines in OCR result"}, res.Warnings)
	assert.Equal(t, constants.DocumentUnknown, res.DocumentType)
	assert.Equal(t, constants.StateFailed, res.Metadata.State)
}

func TestClassifyDocument(t *testing.T) {
	a := New(DefaultConfig(), nil)
	all := constants.Languages
	tests := []struct {
		name  string
		lines []string
		want  constants.DocumentType
	}{
		{"invoice", []string{"ACME Ltd", "INVOICE", "Due date 2024-06-01"}, constants.DocumentInvoice},
		{"receipt", []string{"Corner Shop", "Thank you, please come again"}, constants.DocumentReceipt},
		{"finnish invoice", []string{"LASKU", "Eräpäivä 1.6.2024"}, constants.DocumentInvoice},
		{"no markers", []string{"TOTAL 12.00"}, constants.DocumentUnknown},
		{"tie", []string{"Invoice", "Thank you"}, constants.DocumentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := make([]ocr.TextLine, 0, len(tt.lines))
			for _, s := range tt.lines {
				lines = append(lines, ocr.TextLine{Text: s, Confidence: 0.9})
			}
			assert.Equal(t, tt.want, a.ClassifyDocument(lines, all))
		})
	}
}
