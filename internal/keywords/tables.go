package keywords

import "github.com/joseph-ayodele/receipts-extractor/constants"

// Category groups keywords that play the same role on a receipt.
type Category string

const (
	Total         Category = "total"
	Subtotal      Category = "subtotal"
	Tax           Category = "tax"
	TaxIncluded   Category = "tax_included"
	PaymentLabel  Category = "payment_label"
	PaymentCash   Category = "payment_method_cash"
	PaymentCard   Category = "payment_method_card"
	PaymentMobile Category = "payment_method_mobile"
	ReceiptNumber Category = "receipt_number"
	ReceiptMarker Category = "receipt_marker"
	InvoiceMarker Category = "invoice_marker"
	ItemHeader    Category = "item_header"
	DateLabel     Category = "date_label"
	Change        Category = "change"
	TableRate     Category = "table_rate"
	TableNet      Category = "table_net"
	TableTax      Category = "table_tax"
	TableGross    Category = "table_gross"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	Total, Subtotal, Tax, TaxIncluded,
	PaymentLabel, PaymentCash, PaymentCard, PaymentMobile,
	ReceiptNumber, ReceiptMarker, InvoiceMarker,
	ItemHeader, DateLabel, Change,
	TableRate, TableNet, TableTax, TableGross,
}

type table map[Category][]string

var builtin = map[constants.Language]table{
	constants.English: {
		Total:         {"total", "grand total", "total due", "amount due", "balance due", "total amount", "total to pay"},
		Subtotal:      {"subtotal", "sub-total", "sub total", "net total", "net amount"},
		Tax:           {"tax", "vat", "sales tax", "gst", "hst", "total tax", "tax total"},
		TaxIncluded:   {"incl", "including", "included"},
		PaymentLabel:  {"payment", "paid by", "payment method", "tender"},
		PaymentCash:   {"cash"},
		PaymentCard:   {"card", "credit card", "debit card", "credit", "debit", "visa", "mastercard", "amex", "maestro", "contactless"},
		PaymentMobile: {"apple pay", "google pay", "paypal", "mobile pay"},
		ReceiptNumber: {"receipt", "invoice", "transaction", "order", "ticket", "bill"},
		ReceiptMarker: {"thank you", "thanks", "receipt", "customer copy", "cardholder copy", "please come again", "sales receipt"},
		InvoiceMarker: {"invoice", "due date", "bill to", "invoice number", "invoice no", "payment terms"},
		ItemHeader:    {"qty", "quantity", "description", "item", "price"},
		DateLabel:     {"date"},
		Change:        {"change", "change due"},
		TableRate:     {"tax rate", "vat rate", "rate", "vat %", "tax %"},
		TableNet:      {"net", "net amount", "subtotal", "taxable", "taxable amount", "excl. tax"},
		TableTax:      {"tax", "vat", "tax amount", "vat amount"},
		TableGross:    {"gross", "total", "incl. tax", "gross amount"},
	},
	constants.Finnish: {
		Total:         {"yhteensä", "summa", "loppusumma", "maksettava", "yht"},
		Subtotal:      {"välisumma", "veroton summa"},
		Tax:           {"alv", "arvonlisävero", "vero"},
		TaxIncluded:   {"sis", "sisältää"},
		PaymentLabel:  {"maksutapa", "maksu"},
		PaymentCash:   {"käteinen"},
		PaymentCard:   {"kortti", "pankkikortti", "luottokortti", "korttimaksu"},
		PaymentMobile: {"mobilepay", "mobiilimaksu"},
		ReceiptNumber: {"kuitti", "kuitin numero", "lasku"},
		ReceiptMarker: {"kiitos", "kuitti", "asiakkaan kappale", "tervetuloa uudelleen"},
		InvoiceMarker: {"lasku", "eräpäivä", "laskun numero", "viitenumero", "laskutusosoite"},
		ItemHeader:    {"tuote", "määrä", "hinta", "kpl"},
		DateLabel:     {"päivämäärä", "pvm"},
		Change:        {"vaihtoraha", "takaisin"},
		TableRate:     {"alv %", "alv%", "alv-%", "verokanta", "alv-kanta"},
		TableNet:      {"veroton", "netto", "veroton hinta"},
		TableTax:      {"vero", "alv", "alv-osuus", "veron osuus"},
		TableGross:    {"verollinen", "yhteensä", "brutto", "verollinen hinta"},
	},
	constants.Swedish: {
		Total:         {"totalt", "summa", "att betala", "total", "totalsumma"},
		Subtotal:      {"delsumma", "mellansumma"},
		Tax:           {"moms", "mervärdesskatt", "varav moms"},
		TaxIncluded:   {"inkl", "inklusive"},
		PaymentLabel:  {"betalning", "betalsätt"},
		PaymentCash:   {"kontant", "kontanter"},
		PaymentCard:   {"kort", "kortbetalning", "bankkort"},
		PaymentMobile: {"swish"},
		ReceiptNumber: {"kvitto", "kvittonummer", "faktura"},
		ReceiptMarker: {"tack", "kvitto", "kundens exemplar", "välkommen åter"},
		InvoiceMarker: {"faktura", "förfallodatum", "fakturanummer", "att betala senast"},
		ItemHeader:    {"artikel", "antal", "pris", "belopp"},
		DateLabel:     {"datum"},
		Change:        {"växel", "tillbaka"},
		TableRate:     {"moms %", "moms%", "momssats", "sats"},
		TableNet:      {"netto", "exkl. moms", "exkl moms"},
		TableTax:      {"moms", "momsbelopp"},
		TableGross:    {"brutto", "inkl. moms", "inkl moms", "totalt"},
	},
	constants.German: {
		Total:         {"gesamt", "summe", "gesamtbetrag", "endsumme", "zu zahlen", "gesamtsumme", "total"},
		Subtotal:      {"zwischensumme", "nettosumme"},
		Tax:           {"mwst", "mwst.", "ust", "ust.", "mehrwertsteuer", "umsatzsteuer"},
		TaxIncluded:   {"inkl", "inklusive", "enthalten", "enth"},
		PaymentLabel:  {"zahlung", "zahlungsart", "bezahlt mit", "zahlart"},
		PaymentCash:   {"bar", "barzahlung", "bargeld"},
		PaymentCard:   {"karte", "ec-karte", "ec karte", "girocard", "kreditkarte", "kartenzahlung"},
		PaymentMobile: {"apple pay", "google pay", "paypal"},
		ReceiptNumber: {"rechnung", "beleg", "bon", "rechnungsnummer", "belegnummer", "quittung"},
		ReceiptMarker: {"vielen dank", "danke", "kassenbon", "kundenbeleg", "beleg", "quittung", "bon"},
		InvoiceMarker: {"rechnungsnummer", "fälligkeitsdatum", "fällig am", "zahlungsziel", "rechnungsadresse", "rechnungsdatum"},
		ItemHeader:    {"artikel", "menge", "preis", "bezeichnung", "anzahl"},
		DateLabel:     {"datum"},
		Change:        {"rückgeld", "zurück", "wechselgeld"},
		TableRate:     {"mwst-satz", "mwst %", "mwst%", "ust-satz", "steuersatz", "satz"},
		TableNet:      {"netto", "nettobetrag", "zwischensumme"},
		TableTax:      {"mwst", "ust", "mwst-betrag", "steuer", "steuerbetrag"},
		TableGross:    {"brutto", "gesamt", "bruttobetrag", "summe"},
	},
	constants.French: {
		Total:         {"total", "total ttc", "montant total", "net à payer", "à payer"},
		Subtotal:      {"sous-total", "sous total", "total ht", "montant ht"},
		Tax:           {"tva", "taxe", "montant tva", "dont tva"},
		TaxIncluded:   {"inclus", "incluse"},
		PaymentLabel:  {"paiement", "mode de paiement", "réglé par"},
		PaymentCash:   {"espèces", "especes", "liquide"},
		PaymentCard:   {"carte", "carte bancaire", "cb", "carte bleue"},
		PaymentMobile: {"apple pay", "google pay", "paylib", "lydia"},
		ReceiptNumber: {"ticket", "reçu", "facture"},
		ReceiptMarker: {"merci", "ticket de caisse", "reçu", "à bientôt"},
		InvoiceMarker: {"facture", "date d'échéance", "échéance", "numéro de facture", "facturé à"},
		ItemHeader:    {"article", "désignation", "qté", "quantité", "prix"},
		DateLabel:     {"date"},
		Change:        {"rendu", "monnaie rendue"},
		TableRate:     {"taux", "taux tva", "tva %"},
		TableNet:      {"ht", "montant ht", "base ht"},
		TableTax:      {"tva", "montant tva"},
		TableGross:    {"ttc", "montant ttc", "total ttc"},
	},
	constants.Italian: {
		Total:         {"totale", "totale complessivo", "importo totale", "da pagare"},
		Subtotal:      {"subtotale", "imponibile"},
		Tax:           {"iva", "imposta", "di cui iva"},
		TaxIncluded:   {"compresa", "inclusa"},
		PaymentLabel:  {"pagamento", "metodo di pagamento"},
		PaymentCash:   {"contanti", "contante"},
		PaymentCard:   {"carta", "bancomat", "carta di credito", "pagamento elettronico"},
		PaymentMobile: {"satispay", "apple pay", "google pay"},
		ReceiptNumber: {"scontrino", "ricevuta", "fattura", "documento"},
		ReceiptMarker: {"grazie", "scontrino", "documento commerciale", "arrivederci", "ricevuta"},
		InvoiceMarker: {"fattura", "scadenza", "data di scadenza", "numero fattura", "intestatario"},
		ItemHeader:    {"descrizione", "quantità", "prezzo", "articolo"},
		DateLabel:     {"data"},
		Change:        {"resto"},
		TableRate:     {"aliquota", "iva %", "% iva"},
		TableNet:      {"imponibile", "netto"},
		TableTax:      {"iva", "imposta"},
		TableGross:    {"totale", "lordo"},
	},
	constants.Spanish: {
		Total:         {"total", "importe total", "total a pagar", "a pagar"},
		Subtotal:      {"subtotal", "sub-total", "base imponible"},
		Tax:           {"iva", "impuesto", "impuestos"},
		TaxIncluded:   {"incluido", "incl"},
		PaymentLabel:  {"pago", "forma de pago", "método de pago"},
		PaymentCash:   {"efectivo", "contado"},
		PaymentCard:   {"tarjeta", "tarjeta de crédito", "tarjeta de débito", "visa"},
		PaymentMobile: {"bizum", "apple pay", "google pay"},
		ReceiptNumber: {"ticket", "recibo", "factura", "factura simplificada"},
		ReceiptMarker: {"gracias", "ticket", "recibo", "vuelva pronto", "copia cliente"},
		InvoiceMarker: {"factura", "fecha de vencimiento", "vencimiento", "número de factura", "facturar a"},
		ItemHeader:    {"descripción", "cantidad", "precio", "artículo", "uds"},
		DateLabel:     {"fecha"},
		Change:        {"cambio", "vuelta"},
		TableRate:     {"tipo", "% iva", "iva %", "tipo iva"},
		TableNet:      {"base", "base imponible", "neto"},
		TableTax:      {"iva", "cuota", "cuota iva"},
		TableGross:    {"total", "bruto"},
	},
}

// Currency symbols map onto ISO 4217 codes. "kr" is read as SEK, the only
// krona of the supported languages.
var builtinSymbols = map[string]string{
	"€":  "EUR",
	"$":  "USD",
	"£":  "GBP",
	"¥":  "JPY",
	"₹":  "INR",
	"kr": "SEK",
}

var builtinCodes = []string{"EUR", "USD", "GBP", "JPY", "INR", "SEK", "NOK", "DKK", "CHF"}
