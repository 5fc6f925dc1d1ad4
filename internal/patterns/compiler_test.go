package patterns

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
)

var (
	en = []constants.Language{constants.English}
	fi = []constants.Language{constants.Finnish, constants.English}
	de = []constants.Language{constants.German, constants.English}
)

func TestAmountVariants(t *testing.T) {
	c := NewCompiler(keywords.NewRegistry())
	tests := []struct {
		name     string
		cat      keywords.Category
		langs    []constants.Language
		line     string
		want     string
		variant  string
		currency string
		ok       bool
	}{
		{name: "colon with currency", cat: keywords.Total, langs: en, line: "TOTAL: €15.60", want: "15.6", variant: "colon_currency", currency: "€", ok: true},
		{name: "colon without currency", cat: keywords.Total, langs: de, line: "GESAMT: 15,60", want: "15.6", variant: "colon", ok: true},
		{name: "glued currency", cat: keywords.Total, langs: en, line: "TOTAL $222.35", want: "222.35", variant: "glued_currency", currency: "$", ok: true},
		{name: "loose trailing currency", cat: keywords.Total, langs: en, line: "Total 15,60 EUR", want: "15.6", variant: "loose", currency: "EUR", ok: true},
		{name: "finnish merged line", cat: keywords.Total, langs: fi, line: "Yhteensä 35,62", want: "35.62", variant: "loose", ok: true},
		{name: "finnish upper case", cat: keywords.Total, langs: fi, line: "YHTEENSÄ: €15.60", want: "15.6", variant: "colon_currency", currency: "€", ok: true},
		{name: "thousands grouping", cat: keywords.Total, langs: de, line: "Summe 1.234,56", want: "1234.56", variant: "loose", ok: true},
		{name: "parenthetical", cat: keywords.Total, langs: en, line: "TOTAL (incl. VAT) 18.59", want: "18.59", variant: "loose", ok: true},
		{name: "subtotal is not total", cat: keywords.Total, langs: en, line: "Subtotal $10.00"},
		{name: "välisumma is not summa", cat: keywords.Total, langs: fi, line: "Välisumma: 12,58"},
		{name: "subtotal", cat: keywords.Subtotal, langs: fi, line: "Välisumma: 12,58", want: "12.58", variant: "colon", ok: true},
		{name: "date is not an amount", cat: keywords.Total, langs: en, line: "Total 12.05.2024"},
		{name: "no amount", cat: keywords.Total, langs: en, line: "Total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := c.Amount(tt.cat, tt.langs).Find(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, m.Amount.String())
			assert.Equal(t, tt.variant, m.Variant)
			assert.Equal(t, tt.currency, m.Currency)
		})
	}
}

func TestTaxPatterns(t *testing.T) {
	c := NewCompiler(keywords.NewRegistry())
	tests := []struct {
		name    string
		langs   []constants.Language
		line    string
		amount  string
		rate    string
		variant string
	}{
		{name: "keyword rate amount", langs: de, line: "MWST 24%: €3.02", amount: "3.02", rate: "24", variant: "keyword_rate_amount"},
		{name: "rate keyword amount", langs: de, line: "19% MwSt 2,87", amount: "2.87", rate: "19", variant: "rate_keyword_amount"},
		{name: "finnish alv", langs: fi, line: "ALV 24%: €3.02", amount: "3.02", rate: "24", variant: "keyword_rate_amount"},
		{name: "parenthesized rate", langs: en, line: "VAT (20%) £3.00", amount: "3", rate: "20", variant: "keyword_rate_amount"},
		{name: "no rate", langs: en, line: "TAX $13.37", amount: "13.37", variant: "glued_currency"},
		{name: "total tax", langs: en, line: "Total Tax: €3.46", amount: "3.46", variant: "colon_currency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := c.Tax(tt.langs).Find(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.amount, m.Amount.String())
			assert.Equal(t, tt.variant, m.Variant)
			if tt.rate == "" {
				assert.Nil(t, m.Rate)
			} else {
				require.NotNil(t, m.Rate)
				assert.Equal(t, tt.rate, m.Rate.String())
			}
		})
	}
}

func TestCacheIsMemoizedAndInvalidatable(t *testing.T) {
	reg := keywords.NewRegistry()
	c := NewCompiler(reg)

	first := c.Amount(keywords.Total, []constants.Language{constants.German, constants.English})
	again := c.Amount(keywords.Total, []constants.Language{constants.English, constants.German})
	assert.Same(t, first, again)
	assert.Equal(t, 1, c.Len())

	_, ok := first.Find("Rechnungsbetrag 9,99")
	assert.False(t, ok)

	reg.Extend(constants.German, keywords.Total, "rechnungsbetrag")
	assert.Same(t, first, c.Amount(keywords.Total, de))

	c.Invalidate()
	assert.Equal(t, 0, c.Len())
	fresh := c.Amount(keywords.Total, de)
	assert.NotSame(t, first, fresh)
	m, ok := fresh.Find("Rechnungsbetrag 9,99")
	require.True(t, ok)
	assert.Equal(t, "9.99", m.Amount.String())
}

func TestCacheConcurrentReaders(t *testing.T) {
	c := NewCompiler(nil)
	const n = 16
	got := make([]*AmountPattern, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = c.Amount(keywords.Subtotal, en)
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestLabelAndTokens(t *testing.T) {
	c := NewCompiler(nil)
	assert.True(t, c.Label(keywords.Subtotal, en).Match("SUBTOTAL"))
	assert.False(t, c.Label(keywords.Total, en).Match("Subtotal"))
	assert.False(t, c.Label(keywords.PaymentCard, []constants.Language{constants.Swedish}).Match("kortti"))

	toks := c.Tokens(fi, keywords.TableRate, keywords.TableNet, keywords.TableGross, keywords.TableTax).
		FindAll("ALV % Veroton Vero Verollinen")
	require.Len(t, toks, 4)
	assert.Equal(t, keywords.TableRate, toks[0].Category)
	assert.Equal(t, keywords.TableNet, toks[1].Category)
	assert.Equal(t, keywords.TableTax, toks[2].Category)
	assert.Equal(t, keywords.TableGross, toks[3].Category)
}

func TestPaymentAndDocumentNumber(t *testing.T) {
	c := NewCompiler(nil)
	all := []constants.Language(nil)

	p := c.Payment(all)
	tok, ok := p.Method.First("Maksutapa: KORTTI")
	require.True(t, ok)
	assert.Equal(t, keywords.PaymentCard, tok.Category)
	assert.True(t, p.Label.Match("Maksutapa: KORTTI"))

	tok, ok = p.Method.First("Payment: CASH")
	require.True(t, ok)
	assert.Equal(t, keywords.PaymentCash, tok.Category)

	re := c.DocumentNumber(all)
	for line, want := range map[string]string{
		"Receipt # 001234":    "001234",
		"Kuitti nro 001234":   "001234",
		"Rechnung Nr. 001234": "001234",
		"Kvitto nr 001234":    "001234",
	} {
		m := re.FindStringSubmatch(line)
		require.NotNil(t, m, line)
		assert.Equal(t, want, m[re.SubexpIndex("number")], line)
	}
}

func TestFindAmountsAndRates(t *testing.T) {
	amounts := FindAmounts("€15.13 €2.87 €0.59 €18.59")
	require.Len(t, amounts, 4)
	assert.Equal(t, "18.59", amounts[3].Value.String())

	assert.Empty(t, FindAmounts("Datum: 12.05.2024"))
	assert.Equal(t, "1234.56", FindAmounts("1.234,56")[0].Value.String())

	rates := FindRates("MwSt 19% MwSt 7%")
	require.Len(t, rates, 2)
	assert.Equal(t, "19", rates[0].Value.String())
	assert.Equal(t, "7", rates[1].Value.String())
}

func TestParseAmount(t *testing.T) {
	tests := map[string]string{
		"1.234,56": "1234.56",
		"1,234.56": "1234.56",
		"35,62":    "35.62",
		"-5.00":    "-5",
		"208.98":   "208.98",
		"1234":     "1234",
	}
	for in, want := range tests {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
	_, err := ParseAmount("")
	assert.Error(t, err)
	assert.Equal(t, 3.46, Round2(2.87+0.59))
}
