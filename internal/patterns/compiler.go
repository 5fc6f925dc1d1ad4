package patterns

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
)

// Compiler turns registry keywords into matchers. Results are memoized per
// (kind, category, language set) until Invalidate is called.
type Compiler struct {
	registry *keywords.Registry

	mu    sync.RWMutex
	cache map[string]any
}

func NewCompiler(registry *keywords.Registry) *Compiler {
	if registry == nil {
		registry = keywords.NewRegistry()
	}
	return &Compiler{registry: registry, cache: make(map[string]any)}
}

// Registry exposes the keyword registry the compiler reads from.
func (c *Compiler) Registry() *keywords.Registry { return c.registry }

// Invalidate drops every compiled matcher, e.g. after Registry.Extend.
func (c *Compiler) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]any)
	c.mu.Unlock()
}

// Len reports how many matchers are cached.
func (c *Compiler) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// cached returns the memoized value for key, building it at most once per key
// as observed by readers: a concurrent duplicate build is discarded.
func (c *Compiler) cached(key string, build func() any) any {
	c.mu.RLock()
	v, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return v
	}
	built := build()
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache[key]; ok {
		return v
	}
	c.cache[key] = built
	return built
}

func cacheKey(kind string, cat keywords.Category, langs []constants.Language) string {
	codes := make([]string, 0, len(langs))
	for _, l := range langs {
		codes = append(codes, string(l))
	}
	sort.Strings(codes)
	return kind + "|" + string(cat) + "|" + strings.Join(codes, ",")
}

// Amount returns the four layout variants for an amount category.
func (c *Compiler) Amount(cat keywords.Category, langs []constants.Language) *AmountPattern {
	return c.cached(cacheKey("amount", cat, langs), func() any {
		kw := alternation(c.registry.Keywords(cat, langs...))
		return &AmountPattern{Category: cat, variants: amountVariants(kw, c.currencyExpr())}
	}).(*AmountPattern)
}

// Tax returns tax-line variants: rate-bearing orderings first, then the
// generic amount variants.
func (c *Compiler) Tax(langs []constants.Language) *AmountPattern {
	return c.cached(cacheKey("tax", keywords.Tax, langs), func() any {
		kw := alternation(c.registry.Keywords(keywords.Tax, langs...))
		cur := c.currencyExpr()
		rated := []Variant{
			{
				Name:        "keyword_rate_amount",
				Specificity: 0.95,
				re:          compile(guard + `(?P<kw>` + kw + `)\s*\(?\s*(?P<rate>` + rateExpr + `)\s*%\s*\)?[:\s]*(?P<cur>` + cur + `)?\s*(?P<amount>` + amountExpr + `)(?:\s*(?P<tcur>` + cur + `))?` + amountTail),
			},
			{
				Name:        "rate_keyword_amount",
				Specificity: 0.9,
				re:          compile(`(?:^|[^\d.,])(?P<rate>` + rateExpr + `)\s*%\s*(?P<kw>` + kw + `)[:\s]*(?P<cur>` + cur + `)?\s*(?P<amount>` + amountExpr + `)(?:\s*(?P<tcur>` + cur + `))?` + amountTail),
			},
		}
		return &AmountPattern{Category: keywords.Tax, variants: append(rated, amountVariants(kw, cur)...)}
	}).(*AmountPattern)
}

// Label returns a keyword-presence matcher without amount capture.
func (c *Compiler) Label(cat keywords.Category, langs []constants.Language) *LabelPattern {
	return c.cached(cacheKey("label", cat, langs), func() any {
		words := c.registry.Keywords(cat, langs...)
		lp := &LabelPattern{category: map[string]keywords.Category{}}
		for _, w := range words {
			lp.category[w] = cat
		}
		lp.re = compile(`(` + alternation(words) + `)`)
		return lp
	}).(*LabelPattern)
}

// Tokens returns a matcher that reports which of several categories each
// keyword occurrence belongs to. Earlier categories win on shared keywords.
func (c *Compiler) Tokens(langs []constants.Language, cats ...keywords.Category) *LabelPattern {
	name := make([]string, 0, len(cats))
	for _, cat := range cats {
		name = append(name, string(cat))
	}
	return c.cached(cacheKey("tokens", keywords.Category(strings.Join(name, "+")), langs), func() any {
		lp := &LabelPattern{category: map[string]keywords.Category{}}
		var all []string
		for _, cat := range cats {
			for _, w := range c.registry.Keywords(cat, langs...) {
				if _, seen := lp.category[w]; seen {
					continue
				}
				lp.category[w] = cat
				all = append(all, w)
			}
		}
		lp.re = compile(`(` + alternation(all) + `)`)
		return lp
	}).(*LabelPattern)
}

// PaymentPatterns groups the payment-method matchers.
type PaymentPatterns struct {
	Label  *LabelPattern
	Method *LabelPattern
}

// Payment returns matchers for payment labels and cash/card/mobile methods.
func (c *Compiler) Payment(langs []constants.Language) PaymentPatterns {
	return PaymentPatterns{
		Label:  c.Label(keywords.PaymentLabel, langs),
		Method: c.Tokens(langs, keywords.PaymentMobile, keywords.PaymentCard, keywords.PaymentCash),
	}
}

// DocumentNumber returns the receipt/invoice number matcher; the number is
// captured in the "number" group.
func (c *Compiler) DocumentNumber(langs []constants.Language) *regexp.Regexp {
	return c.cached(cacheKey("number", keywords.ReceiptNumber, langs), func() any {
		kw := alternation(c.registry.Keywords(keywords.ReceiptNumber, langs...))
		return compile(guard + `(?P<kw>` + kw + `)\.?\s*(?:no\.?|nr\.?|nro\.?|num(?:ber|ero|éro)?\.?|nummer|n[°º]\.?|#)?\s*[:#]?\s*(?P<number>[a-z0-9][a-z0-9\-/]{2,})`)
	}).(*regexp.Regexp)
}

// Currency returns the currency matcher (symbols and ISO codes).
func (c *Compiler) Currency() *regexp.Regexp {
	return c.cached("currency", func() any {
		return compile(`(?P<cur>` + c.currencyExpr() + `)`)
	}).(*regexp.Regexp)
}

func (c *Compiler) currencyExpr() string {
	var parts []string
	for _, s := range c.registry.CurrencySymbols() {
		parts = append(parts, regexp.QuoteMeta(s))
	}
	for _, code := range c.registry.CurrencyCodes() {
		parts = append(parts, regexp.QuoteMeta(code))
	}
	return `(?:` + strings.Join(parts, "|") + `)`
}

// guard: the keyword may not continue a longer word.
const guard = `(?:^|[^\p{L}\p{N}])`

func amountVariants(kw, cur string) []Variant {
	tail := `(?:\s*(?P<tcur>` + cur + `))?` + amountTail
	return []Variant{
		{
			Name:        "colon_currency",
			Specificity: 0.95,
			re:          compile(guard + `(?P<kw>` + kw + `)\s*:\s*(?P<cur>` + cur + `)\s*(?P<amount>` + amountExpr + `)` + tail),
		},
		{
			Name:        "colon",
			Specificity: 0.9,
			re:          compile(guard + `(?P<kw>` + kw + `)\s*:\s*(?P<cur>` + cur + `)?(?P<amount>` + amountExpr + `)` + tail),
		},
		{
			Name:        "glued_currency",
			Specificity: 0.85,
			re:          compile(guard + `(?P<kw>` + kw + `)[:\s]*(?P<cur>` + cur + `)(?P<amount>` + amountExpr + `)` + tail),
		},
		{
			Name:        "loose",
			Specificity: 0.8,
			re:          compile(guard + `(?P<kw>` + kw + `)(?:\s*\([^)]{0,24}\))?[:\s]*(?P<cur>` + cur + `)?\s*(?P<amount>` + amountExpr + `)` + tail),
		},
	}
}

// alternation escapes keywords for literal matching, longest first. Inner
// spaces accept any whitespace run.
func alternation(words []string) string {
	if len(words) == 0 {
		// matches nothing
		return `[^\s\S]`
	}
	sorted := keywords.SortLongestFirst(words)
	parts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		parts = append(parts, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	return `(?:` + strings.Join(parts, "|") + `)`
}

func compile(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

func isLetterOrDigitBefore(s string, i int) bool {
	if i <= 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLetterAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}

// AmountOnly reports whether line holds exactly one amount and nothing else
// besides currency marks. The currency found, if any, is returned with it.
func (c *Compiler) AmountOnly(line string) (AmountToken, string, bool) {
	amounts := FindAmounts(line)
	if len(amounts) != 1 {
		return AmountToken{}, "", false
	}
	a := amounts[0]
	rest := line[:a.Start] + " " + line[a.End:]
	cur := c.Currency().FindString(rest)
	rest = c.Currency().ReplaceAllString(rest, "")
	if strings.Trim(rest, " :*=") != "" {
		return AmountToken{}, "", false
	}
	return a, cur, true
}
