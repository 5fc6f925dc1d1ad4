package constants

// Field names a value the engine extracts.
type Field string

const (
	FieldSubtotal      Field = "subtotal"
	FieldTaxAmount     Field = "tax_amount"
	FieldTotal         Field = "total"
	FieldTaxRate       Field = "tax_rate"
	FieldTaxBreakdown  Field = "tax_breakdown"
	FieldCurrency      Field = "currency"
	FieldMerchantName  Field = "merchant_name"
	FieldPurchaseDate  Field = "purchase_date"
	FieldPurchaseTime  Field = "purchase_time"
	FieldPaymentMethod Field = "payment_method"
	FieldReceiptNumber Field = "receipt_number"
	FieldLineItem      Field = "line_item"
)

// AllFields lists fields in the order results are assembled.
var AllFields = []Field{
	FieldTotal,
	FieldSubtotal,
	FieldTaxAmount,
	FieldTaxRate,
	FieldTaxBreakdown,
	FieldCurrency,
	FieldMerchantName,
	FieldPurchaseDate,
	FieldPurchaseTime,
	FieldPaymentMethod,
	FieldReceiptNumber,
	FieldLineItem,
}

// IsList reports whether a field keeps several clusters instead of a single best one.
func (f Field) IsList() bool {
	return f == FieldTaxBreakdown || f == FieldLineItem
}

// IsCritical reports whether a missing value forces manual verification.
func (f Field) IsCritical() bool {
	switch f {
	case FieldTotal, FieldMerchantName, FieldPurchaseDate:
		return true
	}
	return false
}

// Payment method values emitted for payment_method.
const (
	PaymentCash   = "CASH"
	PaymentCard   = "CARD"
	PaymentMobile = "MOBILE"
)
