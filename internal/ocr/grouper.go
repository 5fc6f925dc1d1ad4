package ocr

import (
	"math"
	"sort"
	"strings"
)

// GrouperConfig controls the adaptive Y tolerance used to merge fragments.
type GrouperConfig struct {
	HeightFactor float64
	MinTolerance float64
	MaxTolerance float64
}

func DefaultGrouperConfig() GrouperConfig {
	return GrouperConfig{HeightFactor: 0.4, MinTolerance: 5, MaxTolerance: 20}
}

// Grouper merges fragments that sit on the same visual line.
type Grouper struct {
	cfg GrouperConfig
}

func NewGrouper(cfg GrouperConfig) *Grouper {
	def := DefaultGrouperConfig()
	if cfg.HeightFactor <= 0 {
		cfg.HeightFactor = def.HeightFactor
	}
	if cfg.MinTolerance <= 0 {
		cfg.MinTolerance = def.MinTolerance
	}
	if cfg.MaxTolerance < cfg.MinTolerance {
		cfg.MaxTolerance = math.Max(def.MaxTolerance, cfg.MinTolerance)
	}
	return &Grouper{cfg: cfg}
}

// Group returns logical lines ordered top to bottom. The input is not modified.
func (g *Grouper) Group(fragments []TextLine) []TextLine {
	if len(fragments) == 0 {
		return nil
	}
	sorted := make([]TextLine, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BoundingBox.Y != sorted[j].BoundingBox.Y {
			return sorted[i].BoundingBox.Y < sorted[j].BoundingBox.Y
		}
		return sorted[i].BoundingBox.X < sorted[j].BoundingBox.X
	})

	out := make([]TextLine, 0, len(sorted))
	group := []TextLine{sorted[0]}
	sumY := sorted[0].BoundingBox.Y
	for _, f := range sorted[1:] {
		avgY := sumY / float64(len(group))
		if math.Abs(f.BoundingBox.Y-avgY) <= g.tolerance(group) {
			group = append(group, f)
			sumY += f.BoundingBox.Y
			continue
		}
		out = append(out, merge(group))
		group = []TextLine{f}
		sumY = f.BoundingBox.Y
	}
	return append(out, merge(group))
}

// tolerance is clamp(avgHeight * factor, min, max) for the running group.
func (g *Grouper) tolerance(group []TextLine) float64 {
	var sum float64
	for _, f := range group {
		sum += f.BoundingBox.Height
	}
	t := sum / float64(len(group)) * g.cfg.HeightFactor
	return math.Min(math.Max(t, g.cfg.MinTolerance), g.cfg.MaxTolerance)
}

func merge(group []TextLine) TextLine {
	if len(group) == 1 {
		return group[0]
	}
	parts := make([]TextLine, 0, len(group))
	for _, f := range group {
		if len(f.Segments) > 0 {
			parts = append(parts, f.Segments...)
			continue
		}
		parts = append(parts, f)
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].BoundingBox.X < parts[j].BoundingBox.X
	})

	texts := make([]string, 0, len(parts))
	var box BoundingBox
	var conf float64
	for _, p := range parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
		box = box.Union(p.BoundingBox)
		conf += p.Confidence
	}
	return TextLine{
		Text:        strings.Join(texts, " "),
		BoundingBox: box,
		Confidence:  conf / float64(len(parts)),
		Merged:      true,
		Segments:    parts,
	}
}
