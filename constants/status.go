package constants

// ExtractionState is the per-document lifecycle of one engine run.
type ExtractionState string

const (
	StateCollecting ExtractionState = "collecting" // strategies are gathering evidence
	StateFusing     ExtractionState = "fusing"     // clusters are being built and cross-checked
	StateAssembled  ExtractionState = "assembled"  // terminal success
	StateFailed     ExtractionState = "failed"     // empty or malformed input
)
