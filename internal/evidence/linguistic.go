package evidence

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

const merchantWindow = 5

var (
	reQtyPrefix = regexp.MustCompile(`^\s*(\d{1,3})\s*[x×*]\s+`)
	reQtySuffix = regexp.MustCompile(`\s(\d{1,3})\s*[x×*]\s*$`)
	reQtyUnit   = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:kpl|pcs|st|stk|pz|uds)\b\.?`)
	reManyDigit = regexp.MustCompile(`\d[\d\s\-/]{5,}\d`)
)

// linguisticStrategy reads the fields that carry no amount keyword: the
// merchant heading, dates, times and line items.
type linguisticStrategy struct {
	compiler *patterns.Compiler
}

func (s *linguisticStrategy) Source() constants.Source { return constants.SourceLinguisticAnalysis }

func (s *linguisticStrategy) Collect(in Input) ([]Evidence, error) {
	var out []Evidence
	out = append(out, s.merchant(in)...)
	out = append(out, s.dates(in)...)
	out = append(out, s.items(in)...)
	return out, nil
}

// merchant picks the first heading-like line near the top.
func (s *linguisticStrategy) merchant(in Input) []Evidence {
	noise := s.compiler.Tokens(in.Languages,
		keywords.Total, keywords.Subtotal, keywords.Tax,
		keywords.ReceiptMarker, keywords.InvoiceMarker, keywords.DateLabel,
		keywords.ReceiptNumber, keywords.PaymentLabel, keywords.ItemHeader,
	)
	for i, l := range in.Lines {
		if i >= merchantWindow {
			break
		}
		text := strings.TrimSpace(l.Text)
		if !headingLike(text) || noise.Match(text) || len(patterns.FindAmounts(text)) > 0 ||
			len(findDates(text)) > 0 || reManyDigit.MatchString(text) {
			continue
		}
		if _, ok := findTime(text); ok {
			continue
		}
		conf := (0.75 - 0.1*float64(i)) * l.Confidence
		e := lineEvidence(s.Source(), constants.FieldMerchantName, Text(text), conf, i, l)
		e.Supporting = map[string]any{"rank": i}
		return []Evidence{e}
	}
	return nil
}

// headingLike wants at least three letters making up half the line.
func headingLike(s string) bool {
	var letters, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3 && letters*2 >= total
}

func (s *linguisticStrategy) dates(in Input) []Evidence {
	dateLabel := s.compiler.Label(keywords.DateLabel, in.Languages)
	var out []Evidence
	timeFound := false
	for i, l := range in.Lines {
		labelled := dateLabel.Match(l.Text)
		for _, d := range findDates(l.Text) {
			conf := 0.7 * l.Confidence
			if labelled {
				conf = 0.85 * l.Confidence
			}
			out = append(out, lineEvidence(s.Source(), constants.FieldPurchaseDate, Text(d), conf, i, l))
		}
		if timeFound {
			continue
		}
		if t, ok := findTime(l.Text); ok {
			timeFound = true
			out = append(out, lineEvidence(s.Source(), constants.FieldPurchaseTime, Text(t), 0.7*l.Confidence, i, l))
		}
	}
	return out
}

// items reads priced lines between the heading and the first summary line.
func (s *linguisticStrategy) items(in Input) []Evidence {
	stop := s.compiler.Tokens(in.Languages, keywords.Subtotal, keywords.Total, keywords.Tax)
	skip := s.compiler.Tokens(in.Languages,
		keywords.PaymentLabel, keywords.PaymentCash, keywords.PaymentCard, keywords.PaymentMobile,
		keywords.Change, keywords.DateLabel, keywords.ReceiptNumber, keywords.ItemHeader,
		keywords.TableNet, keywords.TableGross,
	)
	currency := s.compiler.Currency()

	var out []Evidence
	for i, l := range in.Lines {
		if i == 0 {
			continue
		}
		if stop.Match(l.Text) {
			break
		}
		if skip.Match(l.Text) || len(patterns.FindRates(l.Text)) > 0 {
			continue
		}
		amounts := patterns.FindAmounts(l.Text)
		if len(amounts) == 0 || len(amounts) > 2 {
			continue
		}
		last := amounts[len(amounts)-1]
		if tail := currency.ReplaceAllString(l.Text[last.End:], ""); strings.TrimSpace(tail) != "" {
			continue
		}
		item, ok := parseItem(trimCurrency(l.Text[:amounts[0].Start], currency), last)
		if !ok {
			continue
		}
		out = append(out, lineEvidence(s.Source(), constants.FieldLineItem, item, 0.6*l.Confidence, i, l))
	}
	return out
}

// trimCurrency drops a currency mark written right before the price. A code
// glued to a word ("EUROPA") is part of the name.
func trimCurrency(head string, currency *regexp.Regexp) string {
	head = strings.TrimRight(head, " ")
	locs := currency.FindAllStringIndex(head, -1)
	if len(locs) == 0 {
		return head
	}
	last := locs[len(locs)-1]
	if last[1] != len(head) {
		return head
	}
	if r, _ := utf8.DecodeLastRuneInString(head[:last[0]]); last[0] > 0 && unicode.IsLetter(r) {
		if first, _ := utf8.DecodeRuneInString(head[last[0]:]); unicode.IsLetter(first) {
			return head
		}
	}
	return head[:last[0]]
}

func parseItem(head string, price patterns.AmountToken) (Item, bool) {
	var qty *float64
	setQty := func(digits string) {
		if q, err := strconv.ParseFloat(digits, 64); err == nil && q > 0 {
			qty = &q
		}
	}
	switch {
	case reQtyPrefix.MatchString(head):
		m := reQtyPrefix.FindStringSubmatch(head)
		setQty(m[1])
		head = head[len(m[0]):]
	case reQtySuffix.MatchString(head):
		m := reQtySuffix.FindStringSubmatchIndex(head)
		setQty(head[m[2]:m[3]])
		head = head[:m[0]]
	case reQtyUnit.MatchString(head):
		m := reQtyUnit.FindStringSubmatchIndex(head)
		setQty(head[m[2]:m[3]])
		head = head[:m[0]] + head[m[1]:]
	}
	name := strings.Trim(strings.Join(strings.Fields(head), " "), " :*-")
	if !headingLike(name) {
		return Item{}, false
	}
	return Item{Name: name, Price: price.Value.InexactFloat64(), Quantity: qty}, true
}
