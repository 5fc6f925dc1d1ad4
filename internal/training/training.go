// Package training turns an extraction into per-line feature vectors with
// heuristic labels, for fitting a line classifier offline.
package training

import (
	"math"
	"sort"
	"unicode"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/fusion"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

// LabelNone marks lines no accepted cluster drew evidence from.
const LabelNone = "other"

// Features describe one grouped line independently of its label.
type Features struct {
	RelY         float64  `json:"rel_y"`
	RelX         float64  `json:"rel_x"`
	RightAligned bool     `json:"right_aligned"`
	DigitRatio   float64  `json:"digit_ratio"`
	UpperRatio   float64  `json:"upper_ratio"`
	HasAmount    bool     `json:"has_amount"`
	HasCurrency  bool     `json:"has_currency"`
	HasPercent   bool     `json:"has_percent"`
	Keywords     []string `json:"keywords,omitempty"`
	Confidence   float64  `json:"ocr_confidence"`
}

// Example is a labelled line.
type Example struct {
	LineIndex       int      `json:"line_index"`
	Text            string   `json:"text"`
	Features        Features `json:"features"`
	Label           string   `json:"label"`
	LabelConfidence float64  `json:"label_confidence"`
}

// Builder derives examples for one document.
type Builder struct {
	compiler       *patterns.Compiler
	minConfidence  float64
	alignTolerance float64
}

func NewBuilder(compiler *patterns.Compiler, minConfidence, alignTolerance float64) *Builder {
	if compiler == nil {
		compiler = patterns.NewCompiler(nil)
	}
	return &Builder{compiler: compiler, minConfidence: minConfidence, alignTolerance: alignTolerance}
}

// Build returns one example per line, in line order. A line takes the label
// of the most confident accepted cluster whose non-modifier evidence came
// from it.
func (b *Builder) Build(lines []ocr.TextLine, langs []constants.Language, o fusion.Outcome) []Example {
	labels := b.labels(o)
	frame := measure(lines)
	tokens := b.compiler.Tokens(langs, keywords.Categories...)
	currency := b.compiler.Currency()

	out := make([]Example, 0, len(lines))
	for i, l := range lines {
		f := Features{
			DigitRatio: ratio(l.Text, unicode.IsDigit),
			UpperRatio: upperRatio(l.Text),
			HasAmount:  len(patterns.FindAmounts(l.Text)) > 0,
			HasPercent: len(patterns.FindRates(l.Text)) > 0,
			Confidence: l.Confidence,
		}
		f.HasCurrency = currency.MatchString(l.Text)
		if frame.ok && !l.BoundingBox.IsZero() {
			f.RelY = round4((l.BoundingBox.CenterY() - frame.top) / frame.height())
			f.RelX = round4((l.BoundingBox.X - frame.left) / frame.width())
			f.RightAligned = l.BoundingBox.Right() >= frame.right-b.alignTolerance
		}
		seen := map[string]bool{}
		for _, t := range tokens.FindAll(l.Text) {
			cat := string(t.Category)
			if cat != "" && !seen[cat] {
				seen[cat] = true
				f.Keywords = append(f.Keywords, cat)
			}
		}
		sort.Strings(f.Keywords)

		ex := Example{LineIndex: i, Text: l.Text, Features: f, Label: LabelNone}
		if lb, ok := labels[i]; ok {
			ex.Label, ex.LabelConfidence = string(lb.field), lb.confidence
		}
		out = append(out, ex)
	}
	return out
}

type label struct {
	field      constants.Field
	confidence float64
}

func (b *Builder) labels(o fusion.Outcome) map[int]label {
	out := map[int]label{}
	for _, field := range constants.AllFields {
		clusters := o.Clusters[field]
		if !field.IsList() && len(clusters) > 1 {
			clusters = clusters[:1]
		}
		for _, c := range clusters {
			if c.Confidence < b.minConfidence {
				continue
			}
			for _, m := range c.Members {
				if m.Modifier || m.LineIndex < 0 {
					continue
				}
				if cur, ok := out[m.LineIndex]; ok && cur.confidence >= c.Confidence {
					continue
				}
				out[m.LineIndex] = label{field: field, confidence: round4(c.Confidence)}
			}
		}
	}
	return out
}

type frame struct {
	top, bottom, left, right float64
	ok                       bool
}

func (f frame) height() float64 { return f.bottom - f.top }
func (f frame) width() float64  { return math.Max(f.right-f.left, 1) }

func measure(lines []ocr.TextLine) frame {
	var f frame
	for _, l := range lines {
		b := l.BoundingBox
		if b.IsZero() {
			continue
		}
		if !f.ok {
			f = frame{top: b.Y, bottom: b.Bottom(), left: b.X, right: b.Right(), ok: true}
			continue
		}
		f.top = min(f.top, b.Y)
		f.bottom = max(f.bottom, b.Bottom())
		f.left = min(f.left, b.X)
		f.right = max(f.right, b.Right())
	}
	f.ok = f.ok && f.height() > 0
	return f
}

func ratio(s string, pred func(rune) bool) float64 {
	var n, hit int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		n++
		if pred(r) {
			hit++
		}
	}
	if n == 0 {
		return 0
	}
	return round4(float64(hit) / float64(n))
}

// upperRatio is measured over letters only.
func upperRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return round4(float64(upper) / float64(letters))
}

func round4(f float64) float64 { return math.Round(f*1e4) / 1e4 }
