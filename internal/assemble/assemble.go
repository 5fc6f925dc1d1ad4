package assemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
	"github.com/joseph-ayodele/receipts-extractor/internal/fusion"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
	"github.com/joseph-ayodele/receipts-extractor/internal/taxtable"
)

// Config tunes result assembly.
type Config struct {
	MinClusterConfidence  float64
	VerificationThreshold float64
	Tolerance             taxtable.Tolerance
	FieldWeights          map[constants.Field]float64
}

func DefaultConfig() Config {
	return Config{
		MinClusterConfidence:  0.35,
		VerificationThreshold: 0.7,
		Tolerance:             taxtable.DefaultTolerance(),
		FieldWeights:          DefaultFieldWeights(),
	}
}

// DefaultFieldWeights favors the critical fields in the overall confidence.
func DefaultFieldWeights() map[constants.Field]float64 {
	return map[constants.Field]float64{
		constants.FieldTotal:         3,
		constants.FieldMerchantName:  2,
		constants.FieldPurchaseDate:  2,
		constants.FieldSubtotal:      1,
		constants.FieldTaxAmount:     1,
		constants.FieldCurrency:      0.5,
		constants.FieldPaymentMethod: 0.5,
		constants.FieldReceiptNumber: 0.5,
	}
}

// Input is everything the assembler reads for one document.
type Input struct {
	Lines     []ocr.TextLine
	Languages []constants.Language
	Outcome   fusion.Outcome
	Warnings  []string
}

// Assembler maps fused clusters onto an ExtractionResult.
type Assembler struct {
	cfg      Config
	compiler *patterns.Compiler
}

func New(cfg Config, compiler *patterns.Compiler) *Assembler {
	if compiler == nil {
		compiler = patterns.NewCompiler(nil)
	}
	return &Assembler{cfg: cfg, compiler: compiler}
}

// Failed is the zero-confidence result returned for unusable input. It
// carries reason as its only warning.
func Failed(reason string) entity.ExtractionResult {
	return entity.ExtractionResult{
		TaxBreakdown:      []entity.TaxBreakdown{},
		Items:             []entity.LineItem{},
		DocumentType:      constants.DocumentUnknown,
		NeedsVerification: true,
		Warnings:          []string{reason},
		Metadata:          entity.Metadata{State: constants.StateFailed},
	}
}

func (a *Assembler) Assemble(in Input) entity.ExtractionResult {
	res := entity.ExtractionResult{
		TaxBreakdown:    []entity.TaxBreakdown{},
		Items:           []entity.LineItem{},
		FieldConfidence: map[string]float64{},
		Metadata:        entity.Metadata{State: constants.StateAssembled},
	}
	w := newWarnings(in.Warnings, in.Outcome.Validation.Warnings)
	o := in.Outcome

	text := func(f constants.Field) *string {
		c, ok := a.accept(o, f, w)
		if !ok {
			return nil
		}
		res.FieldConfidence[string(f)] = c.Confidence
		s := string(c.Value.(evidence.Text))
		return &s
	}
	amount := func(f constants.Field) *float64 {
		c, ok := a.accept(o, f, w)
		if !ok {
			return nil
		}
		res.FieldConfidence[string(f)] = c.Confidence
		v, _ := c.Number()
		v = patterns.Round2(v)
		return &v
	}

	res.Total = amount(constants.FieldTotal)
	res.Subtotal = amount(constants.FieldSubtotal)
	res.TaxTotal = amount(constants.FieldTaxAmount)
	res.MerchantName = text(constants.FieldMerchantName)
	res.Date = text(constants.FieldPurchaseDate)
	res.Time = text(constants.FieldPurchaseTime)
	res.Currency = text(constants.FieldCurrency)
	res.PaymentMethod = text(constants.FieldPaymentMethod)
	res.ReceiptNumber = text(constants.FieldReceiptNumber)

	res.TaxBreakdown = a.breakdown(o, res.TaxTotal, res.Subtotal)
	if res.TaxTotal == nil && len(res.TaxBreakdown) > 0 {
		sum := patterns.Round2(res.TaxBreakdownSum())
		res.TaxTotal = &sum
		res.FieldConfidence[string(constants.FieldTaxAmount)] = meanConfidence(o.Clusters[constants.FieldTaxBreakdown], a.cfg.MinClusterConfidence)
	}
	res.Items = a.items(o)

	a.checkArithmetic(res, o.Validation, w)

	res.DocumentType = a.ClassifyDocument(in.Lines, in.Languages)
	res.Confidence = a.overall(res)
	res.NeedsVerification = res.Confidence < a.cfg.VerificationThreshold || missingCritical(res)
	res.Warnings = w.list
	res.Metadata.EvidenceSummary.Clusters = o.Count()
	return res
}

// accept returns the best cluster of a scalar field when it clears the
// minimum confidence; otherwise it records a low-confidence warning.
func (a *Assembler) accept(o fusion.Outcome, f constants.Field, w *warnings) (fusion.Cluster, bool) {
	c, ok := o.Best(f)
	if !ok {
		return fusion.Cluster{}, false
	}
	if c.Confidence < a.cfg.MinClusterConfidence {
		w.add(fmt.Sprintf("%s: low confidence", f))
		return fusion.Cluster{}, false
	}
	return c, true
}

// breakdown keeps one entry per rate, highest rate first. Without breakdown
// clusters a single entry is synthesized from the tax rate and tax total.
func (a *Assembler) breakdown(o fusion.Outcome, taxTotal, subtotal *float64) []entity.TaxBreakdown {
	out := []entity.TaxBreakdown{}
	for _, c := range o.Clusters[constants.FieldTaxBreakdown] {
		if c.Confidence < a.cfg.MinClusterConfidence {
			continue
		}
		b := c.Value.(evidence.Breakdown)
		if hasRate(out, b.Rate) {
			continue
		}
		out = append(out, entity.TaxBreakdown{
			Rate:          patterns.Round2(b.Rate),
			Amount:        patterns.Round2(b.Tax),
			TaxableAmount: b.Net,
			GrossAmount:   b.Gross,
		})
	}
	if len(out) == 0 && taxTotal != nil {
		if c, ok := o.Best(constants.FieldTaxRate); ok && c.Confidence >= a.cfg.MinClusterConfidence {
			rate, _ := c.Number()
			out = append(out, entity.TaxBreakdown{Rate: patterns.Round2(rate), Amount: *taxTotal, TaxableAmount: subtotal})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	return out
}

func hasRate(list []entity.TaxBreakdown, rate float64) bool {
	for _, b := range list {
		if math.Abs(b.Rate-rate) < 1e-9 {
			return true
		}
	}
	return false
}

// items keeps accepted item clusters in document order.
func (a *Assembler) items(o fusion.Outcome) []entity.LineItem {
	type placed struct {
		line int
		item entity.LineItem
	}
	var kept []placed
	for _, c := range o.Clusters[constants.FieldLineItem] {
		if c.Confidence < a.cfg.MinClusterConfidence {
			continue
		}
		it := c.Value.(evidence.Item)
		line := math.MaxInt
		for _, m := range c.Members {
			if m.LineIndex >= 0 && m.LineIndex < line {
				line = m.LineIndex
			}
		}
		kept = append(kept, placed{line: line, item: entity.LineItem{Name: it.Name, Price: patterns.Round2(it.Price), Quantity: it.Quantity}})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].line < kept[j].line })
	out := make([]entity.LineItem, 0, len(kept))
	for _, p := range kept {
		out = append(out, p.item)
	}
	return out
}

// checkArithmetic guarantees that an assembled subtotal, tax and total that
// disagree always come with a warning.
func (a *Assembler) checkArithmetic(res entity.ExtractionResult, v fusion.Validation, w *warnings) {
	if res.Subtotal == nil || res.TaxTotal == nil || res.Total == nil {
		return
	}
	sum := *res.Subtotal + *res.TaxTotal
	if a.cfg.Tolerance.Within(sum, *res.Total) {
		return
	}
	if v.MathChecked && !v.MathConsistent {
		return
	}
	w.add(fmt.Sprintf("subtotal %.2f + tax %.2f = %.2f does not match total %.2f",
		*res.Subtotal, *res.TaxTotal, sum, *res.Total))
}

// overall is the weighted mean of field confidences. Critical fields always
// count, so a missing one pulls the score down; optional ones count only
// when present.
func (a *Assembler) overall(res entity.ExtractionResult) float64 {
	var sum, weights float64
	// fixed order keeps the float sum reproducible
	for _, f := range constants.AllFields {
		w, ok := a.cfg.FieldWeights[f]
		if !ok {
			continue
		}
		conf, present := res.FieldConfidence[string(f)]
		if !present && !f.IsCritical() {
			continue
		}
		sum += w * conf
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return math.Round(sum/weights*1e4) / 1e4
}

func missingCritical(res entity.ExtractionResult) bool {
	return res.Total == nil || res.MerchantName == nil || res.Date == nil
}

func meanConfidence(cs []fusion.Cluster, floor float64) float64 {
	var sum float64
	n := 0
	for _, c := range cs {
		if c.Confidence < floor {
			continue
		}
		sum += c.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ClassifyDocument compares invoice markers against receipt markers. Ties,
// including no markers at all, are unknown.
func (a *Assembler) ClassifyDocument(lines []ocr.TextLine, langs []constants.Language) constants.DocumentType {
	tokens := a.compiler.Tokens(langs, keywords.InvoiceMarker, keywords.ReceiptMarker)
	var invoice, receipt int
	for _, l := range lines {
		for _, t := range tokens.FindAll(l.Text) {
			switch t.Category {
			case keywords.InvoiceMarker:
				invoice++
			case keywords.ReceiptMarker:
				receipt++
			}
		}
	}
	switch {
	case invoice > receipt:
		return constants.DocumentInvoice
	case receipt > invoice:
		return constants.DocumentReceipt
	}
	return constants.DocumentUnknown
}

type warnings struct {
	list []string
	seen map[string]bool
}

func newWarnings(groups ...[]string) *warnings {
	w := &warnings{list: []string{}, seen: map[string]bool{}}
	for _, g := range groups {
		for _, s := range g {
			w.add(s)
		}
	}
	return w
}

func (w *warnings) add(s string) {
	if w.seen[s] {
		return
	}
	w.seen[s] = true
	w.list = append(w.list, s)
}
