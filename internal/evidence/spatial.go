package evidence

import (
	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

// spatialStrategy adds modifier evidence for amounts whose position matches
// receipt conventions: right-aligned amounts and totals in the bottom third.
type spatialStrategy struct {
	compiler  *patterns.Compiler
	tolerance float64
}

func (s *spatialStrategy) Source() constants.Source { return constants.SourceSpatialAnalysis }

type extents struct {
	top, bottom, right float64
}

func measure(lines []ocr.TextLine) (extents, bool) {
	var e extents
	seen := false
	for _, l := range lines {
		b := l.BoundingBox
		if b.IsZero() {
			continue
		}
		if !seen {
			e = extents{top: b.Y, bottom: b.Bottom(), right: b.Right()}
			seen = true
			continue
		}
		e.top = min(e.top, b.Y)
		e.bottom = max(e.bottom, b.Bottom())
		e.right = max(e.right, b.Right())
	}
	return e, seen && e.bottom > e.top
}

func (s *spatialStrategy) Collect(in Input) ([]Evidence, error) {
	ext, ok := measure(in.Lines)
	if !ok {
		return nil, nil
	}
	sc := scanSummary(s.compiler, in.Lines, in.Languages)
	height := ext.bottom - ext.top

	var out []Evidence
	emit := func(h hit, total bool) {
		line := in.Lines[h.line]
		rightAligned := line.BoundingBox.Right() >= ext.right-s.tolerance
		bottomThird := (line.BoundingBox.CenterY()-ext.top)/height >= 2.0/3.0

		var score float64
		support := map[string]any{}
		if rightAligned {
			score += 0.35
			support["alignment"] = "right"
		}
		if total && bottomThird {
			score += 0.25
			if !rightAligned {
				score += 0.15
			}
			support["region"] = "bottom_third"
		}
		if score == 0 {
			return
		}
		e := lineEvidence(s.Source(), h.field, Amount(h.amount), score*line.Confidence, h.line, line)
		e.Modifier = true
		e.Supporting = support
		out = append(out, e)
	}
	for _, h := range sc.subtotal {
		emit(h, false)
	}
	// per-rate lines do not carry the document tax total
	if tax, ok := sc.taxTotal(); ok && len(sc.rated()) < 2 {
		emit(tax, false)
	}
	for _, h := range sc.total {
		emit(h, true)
	}
	return out, nil
}
