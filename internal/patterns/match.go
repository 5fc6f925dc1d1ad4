package patterns

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
)

// Variant is one compiled layout of a keyword + amount line.
type Variant struct {
	Name        string
	Specificity float64
	re          *regexp.Regexp
}

// AmountPattern tries its variants from most to least specific.
type AmountPattern struct {
	Category keywords.Category
	variants []Variant
}

// Match is a keyword + amount hit on one line.
type Match struct {
	Keyword     string
	Amount      decimal.Decimal
	Rate        *decimal.Decimal
	Currency    string
	Variant     string
	Specificity float64
	Start       int
	End         int
}

// Variants lists the compiled variant names in evaluation order.
func (p *AmountPattern) Variants() []string {
	out := make([]string, 0, len(p.variants))
	for _, v := range p.variants {
		out = append(out, v.Name)
	}
	return out
}

// Find returns the first variant match on line.
func (p *AmountPattern) Find(line string) (Match, bool) {
	for _, v := range p.variants {
		m := v.re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		group := func(name string) string {
			i := v.re.SubexpIndex(name)
			if i < 0 || m[2*i] < 0 {
				return ""
			}
			return line[m[2*i]:m[2*i+1]]
		}
		amount, err := ParseAmount(group("amount"))
		if err != nil {
			continue
		}
		out := Match{
			Keyword:     strings.ToLower(group("kw")),
			Amount:      amount,
			Variant:     v.Name,
			Specificity: v.Specificity,
			Start:       m[0],
			End:         m[1],
		}
		if cur := group("cur"); cur != "" {
			out.Currency = cur
		} else {
			out.Currency = group("tcur")
		}
		if r := group("rate"); r != "" {
			if rate, err := ParseRate(r); err == nil {
				out.Rate = &rate
			}
		}
		return out, true
	}
	return Match{}, false
}

// Token is one keyword occurrence reported by a LabelPattern.
type Token struct {
	Category keywords.Category
	Keyword  string
	Start    int
	End      int
}

// LabelPattern detects whole-word keyword occurrences.
type LabelPattern struct {
	re       *regexp.Regexp
	category map[string]keywords.Category
}

// FindAll returns keyword occurrences that are not part of a longer word.
func (p *LabelPattern) FindAll(line string) []Token {
	var out []Token
	for _, loc := range p.re.FindAllStringIndex(line, -1) {
		start, end := loc[0], loc[1]
		if isLetterOrDigitBefore(line, start) || isLetterAfter(line, end) {
			continue
		}
		kw := strings.ToLower(line[start:end])
		out = append(out, Token{Category: p.lookup(kw), Keyword: kw, Start: start, End: end})
	}
	return out
}

// Match reports whether line contains any keyword as a whole word.
func (p *LabelPattern) Match(line string) bool {
	return len(p.FindAll(line)) > 0
}

// First returns the leftmost whole-word occurrence.
func (p *LabelPattern) First(line string) (Token, bool) {
	all := p.FindAll(line)
	if len(all) == 0 {
		return Token{}, false
	}
	return all[0], true
}

func (p *LabelPattern) lookup(kw string) keywords.Category {
	if cat, ok := p.category[kw]; ok {
		return cat
	}
	// whitespace inside the match may differ from the registry form
	return p.category[strings.Join(strings.Fields(kw), " ")]
}
