package evidence

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
)

// patternStrategy votes for a currency by counting symbol and code
// occurrences over the whole document.
type patternStrategy struct {
	compiler *patterns.Compiler
}

func (s *patternStrategy) Source() constants.Source { return constants.SourcePattern }

func (s *patternStrategy) Collect(in Input) ([]Evidence, error) {
	re := s.compiler.Currency()
	reg := s.compiler.Registry()

	type tally struct {
		count   int
		confSum float64
		lines   int
		first   int
	}
	tallies := map[string]*tally{}
	for i, l := range in.Lines {
		seen := map[string]bool{}
		for _, loc := range re.FindAllStringIndex(l.Text, -1) {
			tok := l.Text[loc[0]:loc[1]]
			if !standalone(l.Text, loc[0], loc[1], tok) {
				continue
			}
			code, ok := reg.CurrencyCode(tok)
			if !ok {
				continue
			}
			t, ok := tallies[code]
			if !ok {
				t = &tally{first: i}
				tallies[code] = t
			}
			t.count++
			if !seen[code] {
				seen[code] = true
				t.confSum += l.Confidence
				t.lines++
			}
		}
	}

	codes := make([]string, 0, len(tallies))
	for c := range tallies {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	out := make([]Evidence, 0, len(codes))
	for _, code := range codes {
		t := tallies[code]
		conf := min(0.5+0.1*float64(t.count), 0.9) * (t.confSum / float64(t.lines))
		e := lineEvidence(s.Source(), constants.FieldCurrency, Text(code), conf, t.first, in.Lines[t.first])
		e.Supporting = map[string]any{"occurrences": t.count}
		out = append(out, e)
	}
	return out, nil
}

// standalone rejects alphabetic currency tokens glued to other letters, so
// "kr" in "Kreuzberg" is not a krona.
func standalone(s string, start, end int, tok string) bool {
	first, _ := utf8.DecodeRuneInString(tok)
	if !unicode.IsLetter(first) {
		return true
	}
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
