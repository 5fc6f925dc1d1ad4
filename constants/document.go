package constants

// DocumentType is the coarse classification of an extracted document.
type DocumentType string

const (
	DocumentReceipt DocumentType = "receipt"
	DocumentInvoice DocumentType = "invoice"
	DocumentUnknown DocumentType = "unknown"
)
