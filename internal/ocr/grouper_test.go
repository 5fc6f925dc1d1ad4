package ocr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupMergesFragmentsOnOneRow(t *testing.T) {
	g := NewGrouper(DefaultGrouperConfig())
	in := []TextLine{
		{Text: "35,62", BoundingBox: BoundingBox{X: 661, Y: 1286, Width: 190, Height: 61}, Confidence: 0.8},
		{Text: "Yhteensä", BoundingBox: BoundingBox{X: 49, Y: 1278, Width: 304, Height: 65}, Confidence: 0.9},
	}

	out := g.Group(in)
	require.Len(t, out, 1)
	line := out[0]
	assert.Equal(t, "Yhteensä 35,62", line.Text)
	assert.True(t, line.Merged)
	assert.Equal(t, BoundingBox{X: 49, Y: 1278, Width: 802, Height: 69}, line.BoundingBox)
	assert.InDelta(t, 0.85, line.Confidence, 1e-9)
	require.Len(t, line.Segments, 2)
	assert.Equal(t, "Yhteensä", line.Segments[0].Text)

	// input order untouched
	assert.Equal(t, "35,62", in[0].Text)
}

func TestGroupKeepsSeparateRows(t *testing.T) {
	g := NewGrouper(GrouperConfig{})
	in := []TextLine{
		{Text: "TOTAL", BoundingBox: BoundingBox{X: 10, Y: 200, Width: 80, Height: 20}, Confidence: 0.9},
		{Text: "SUBTOTAL", BoundingBox: BoundingBox{X: 10, Y: 100, Width: 80, Height: 20}, Confidence: 0.9},
		{Text: "$10.00", BoundingBox: BoundingBox{X: 300, Y: 103, Width: 60, Height: 20}, Confidence: 0.7},
	}

	out := g.Group(in)
	require.Len(t, out, 2)
	assert.Equal(t, "SUBTOTAL $10.00", out[0].Text)
	assert.Equal(t, "TOTAL", out[1].Text)
	assert.False(t, out[1].Merged)
	assert.Nil(t, g.Group(nil))
}

func TestToleranceIsClamped(t *testing.T) {
	g := NewGrouper(DefaultGrouperConfig())
	tests := []struct {
		height float64
		want   float64
	}{
		{height: 5, want: 5},
		{height: 30, want: 12},
		{height: 200, want: 20},
	}
	for _, tt := range tests {
		got := g.tolerance([]TextLine{{BoundingBox: BoundingBox{Height: tt.height}}})
		assert.InDelta(t, tt.want, got, 1e-9)
	}
}

func TestBoundingBoxJSON(t *testing.T) {
	var line TextLine
	require.NoError(t, json.Unmarshal([]byte(`{"text":"A","boundingBox":[1,2,3,4],"confidence":0.5}`), &line))
	assert.Equal(t, BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}, line.BoundingBox)

	require.NoError(t, json.Unmarshal([]byte(`{"text":"A","boundingBox":{"x":5,"y":6,"width":7,"height":8}}`), &line))
	assert.Equal(t, BoundingBox{X: 5, Y: 6, Width: 7, Height: 8}, line.BoundingBox)

	assert.Error(t, json.Unmarshal([]byte(`{"boundingBox":[1,2]}`), &line))

	b, err := json.Marshal(BoundingBox{X: 1, Y: 2, Width: 3, Height: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3,4]`, string(b))
}

func TestResultLines(t *testing.T) {
	t.Run("positioned lines are normalized", func(t *testing.T) {
		r := Result{
			Confidence: 0.75,
			TextLines: []TextLine{
				{Text: "  TOTAL\t\t€15.60 ", Confidence: 0},
				{Text: "   "},
				{Text: "VAT – 24%", Confidence: 0.9},
			},
		}
		lines := r.Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, "TOTAL €15.60", lines[0].Text)
		assert.Equal(t, 0.75, lines[0].Confidence)
		assert.Equal(t, "VAT - 24%", lines[1].Text)
	})

	t.Run("plain text gets synthetic geometry", func(t *testing.T) {
		r := Result{Text: "SHOP\n\nTOTAL 5.00", Confidence: 0.6}
		lines := r.Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, 0.0, lines[0].BoundingBox.Y)
		assert.Equal(t, 30.0, lines[1].BoundingBox.Y)
		assert.Equal(t, 100.0, lines[1].BoundingBox.Width)
		assert.Equal(t, 0.6, lines[1].Confidence)
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, Result{Text: "  \n "}.IsEmpty())
		assert.Empty(t, Result{}.Lines())
	})
}

func TestResultValidate(t *testing.T) {
	assert.NoError(t, Result{Confidence: 0.9, TextLines: []TextLine{{Text: "x", Confidence: 0.5}}}.Validate())
	assert.Error(t, Result{Confidence: 1.5}.Validate())
	assert.Error(t, Result{TextLines: []TextLine{{BoundingBox: BoundingBox{Width: -1}}}}.Validate())
}

func TestEstimateConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, EstimateConfidence("hello"), 1e-9)
	assert.InDelta(t, 0.7, EstimateConfidence("12.05.2024 total € 15.60"), 1e-9)
}
