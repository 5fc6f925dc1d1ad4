package ocr

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

// Synthetic geometry used when the OCR collaborator only returned plain text.
const (
	SyntheticLineHeight = 20.0
	SyntheticLineGap    = 10.0
	SyntheticCharWidth  = 10.0
)

// BoundingBox is an axis-aligned box in image pixels.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (b BoundingBox) Right() float64   { return b.X + b.Width }
func (b BoundingBox) Bottom() float64  { return b.Y + b.Height }
func (b BoundingBox) CenterY() float64 { return b.Y + b.Height/2 }
func (b BoundingBox) IsZero() bool     { return b == (BoundingBox{}) }

// Union returns the smallest box covering both boxes.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if b.IsZero() {
		return o
	}
	if o.IsZero() {
		return b
	}
	x := math.Min(b.X, o.X)
	y := math.Min(b.Y, o.Y)
	return BoundingBox{
		X:      x,
		Y:      y,
		Width:  math.Max(b.Right(), o.Right()) - x,
		Height: math.Max(b.Bottom(), o.Bottom()) - y,
	}
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.Width, b.Height})
}

// UnmarshalJSON accepts [x, y, w, h] or {"x","y","width","height"}.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*b = BoundingBox{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil {
			return fmt.Errorf("bounding box: %w", err)
		}
		if len(arr) != 4 {
			return fmt.Errorf("bounding box: want 4 values, got %d", len(arr))
		}
		*b = BoundingBox{X: arr[0], Y: arr[1], Width: arr[2], Height: arr[3]}
		return nil
	}
	var obj struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bounding box: %w", err)
	}
	*b = BoundingBox{X: obj.X, Y: obj.Y, Width: obj.Width, Height: obj.Height}
	return nil
}

// TextLine is one OCR fragment or one logical line after grouping.
type TextLine struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float64     `json:"confidence"`
	Merged      bool        `json:"merged,omitempty"`

	// Segments keeps the source fragments of a merged line, left to right.
	Segments []TextLine `json:"-"`
}

// Result is the payload produced by the OCR collaborator.
type Result struct {
	Text             string     `json:"text"`
	TextLines        []TextLine `json:"textLines"`
	Confidence       float64    `json:"confidence"`
	DetectedLanguage string     `json:"detected_language"`
	ProcessingTime   float64    `json:"processing_time"`
	Success          bool       `json:"success"`
}

// IsEmpty reports whether the result carries no readable text at all.
func (r Result) IsEmpty() bool {
	for _, l := range r.TextLines {
		if NormalizeLine(l.Text) != "" {
			return false
		}
	}
	return strings.TrimSpace(r.Text) == ""
}

// Validate rejects structurally broken input.
func (r Result) Validate() error {
	v := common.NewValidator()
	v.Field("confidence", r.Confidence, common.Finite, common.Range(0, 1))
	for i, l := range r.TextLines {
		prefix := fmt.Sprintf("textLines[%d]", i)
		v.Field(prefix+".confidence", l.Confidence, common.Finite, common.Range(0, 1))
		v.Field(prefix+".boundingBox.x", l.BoundingBox.X, common.Finite)
		v.Field(prefix+".boundingBox.y", l.BoundingBox.Y, common.Finite)
		v.Field(prefix+".boundingBox.width", l.BoundingBox.Width, common.Finite, common.Range(0, math.MaxFloat64))
		v.Field(prefix+".boundingBox.height", l.BoundingBox.Height, common.Finite, common.Range(0, math.MaxFloat64))
	}
	if v.HasErrors() {
		return common.NewAppError("INVALID_OCR_RESULT", v.ErrorMessage(), common.ErrValidation)
	}
	return nil
}

// Lines returns normalized, non-empty lines. When the collaborator sent no
// positioned lines the plain text is split into synthetic ones.
func (r Result) Lines() []TextLine {
	fallback := r.Confidence
	if fallback <= 0 || fallback > 1 {
		fallback = EstimateConfidence(r.Text)
	}

	lines := make([]TextLine, 0, len(r.TextLines))
	for _, l := range r.TextLines {
		text := NormalizeLine(l.Text)
		if text == "" {
			continue
		}
		l.Text = text
		if l.Confidence <= 0 {
			l.Confidence = fallback
		}
		lines = append(lines, l)
	}
	if len(lines) > 0 {
		return lines
	}

	n := 0
	for _, raw := range strings.Split(Normalize(r.Text), "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lines = append(lines, TextLine{
			Text: text,
			BoundingBox: BoundingBox{
				Y:      float64(n) * (SyntheticLineHeight + SyntheticLineGap),
				Width:  float64(len([]rune(text))) * SyntheticCharWidth,
				Height: SyntheticLineHeight,
			},
			Confidence: fallback,
		})
		n++
	}
	return lines
}
