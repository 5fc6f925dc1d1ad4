package keywords

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

// Registry holds per-language keyword tables and currency tables.
// It is safe for concurrent use; Extend callers must invalidate any
// compiled patterns built from the registry.
type Registry struct {
	mu      sync.RWMutex
	tables  map[constants.Language]table
	symbols map[string]string
	codes   []string
}

// NewRegistry returns a registry seeded with the built-in tables.
func NewRegistry() *Registry {
	r := &Registry{
		tables:  make(map[constants.Language]table, len(builtin)),
		symbols: make(map[string]string, len(builtinSymbols)),
		codes:   append([]string(nil), builtinCodes...),
	}
	for lang, t := range builtin {
		cp := make(table, len(t))
		for cat, words := range t {
			for _, w := range words {
				cp[cat] = appendUnique(cp[cat], canonical(w))
			}
		}
		r.tables[lang] = cp
	}
	for sym, code := range builtinSymbols {
		r.symbols[sym] = code
	}
	return r
}

// Keywords returns the deduplicated union of keywords for a category across
// the given languages, or across every language when none are given.
func (r *Registry) Keywords(cat Category, langs ...constants.Language) []string {
	if len(langs) == 0 {
		langs = constants.Languages
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, lang := range langs {
		t, ok := r.tables[lang]
		if !ok {
			continue
		}
		for _, w := range t[cat] {
			out = appendUnique(out, w)
		}
	}
	return out
}

// Extend adds keywords for one language and category.
func (r *Registry) Extend(lang constants.Language, cat Category, words ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[lang]
	if !ok {
		t = make(table)
		r.tables[lang] = t
	}
	for _, w := range words {
		if c := canonical(w); c != "" {
			t[cat] = appendUnique(t[cat], c)
		}
	}
}

// CurrencySymbols returns known symbols, longest first.
func (r *Registry) CurrencySymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	sortLongestFirst(out)
	return out
}

// CurrencyCodes returns known ISO 4217 codes.
func (r *Registry) CurrencyCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.codes...)
}

// CurrencyCode resolves a symbol or code token to an ISO 4217 code.
func (r *Registry) CurrencyCode(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if code, ok := r.symbols[strings.ToLower(token)]; ok {
		return code, true
	}
	if code, ok := r.symbols[token]; ok {
		return code, true
	}
	upper := strings.ToUpper(token)
	for _, c := range r.codes {
		if c == upper {
			return c, true
		}
	}
	return "", false
}

func canonical(w string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(w)))
}

func appendUnique(list []string, w string) []string {
	for _, x := range list {
		if x == w {
			return list
		}
	}
	return append(list, w)
}

// sortLongestFirst orders by rune length descending, then lexically.
func sortLongestFirst(words []string) {
	sort.SliceStable(words, func(i, j int) bool {
		li, lj := len([]rune(words[i])), len([]rune(words[j]))
		if li != lj {
			return li > lj
		}
		return words[i] < words[j]
	})
}

// SortLongestFirst returns a copy of words ordered for regex alternation.
func SortLongestFirst(words []string) []string {
	out := append([]string(nil), words...)
	sortLongestFirst(out)
	return out
}
