package constants

import "strings"

// Source identifies the strategy that produced a piece of evidence.
type Source string

const (
	SourceTable              Source = "table"
	SourceText               Source = "text"
	SourceCalculation        Source = "calculation"
	SourcePattern            Source = "pattern"
	SourceBBox               Source = "bbox"
	SourceSummaryCalculation Source = "summary_calculation"
	SourceSpatialAnalysis    Source = "spatial_analysis"
	SourceLinguisticAnalysis Source = "linguistic_analysis"
	SourceLLM                Source = "llm"
)

var allSources = []Source{
	SourceTable,
	SourceText,
	SourceCalculation,
	SourcePattern,
	SourceBBox,
	SourceSummaryCalculation,
	SourceSpatialAnalysis,
	SourceLinguisticAnalysis,
	SourceLLM,
}

// AllSources returns every known source in collection order.
func AllSources() []Source {
	out := make([]Source, len(allSources))
	copy(out, allSources)
	return out
}

// DefaultSourceWeights is the trust assigned to each source during fusion.
func DefaultSourceWeights() map[Source]float64 {
	return map[Source]float64{
		SourceTable:              1.3,
		SourceText:               1.0,
		SourceCalculation:        0.7,
		SourcePattern:            0.9,
		SourceBBox:               0.9,
		SourceSummaryCalculation: 0.8,
		SourceSpatialAnalysis:    0.5,
		SourceLinguisticAnalysis: 0.8,
		SourceLLM:                1.0,
	}
}

// ParseSource maps a config string onto a Source.
func ParseSource(s string) (Source, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, src := range allSources {
		if normalized == string(src) {
			return src, true
		}
	}
	return "", false
}
