package constants

import "strings"

// Language is a two-letter code of a supported receipt language.
type Language string

const (
	English Language = "en"
	Finnish Language = "fi"
	Swedish Language = "sv"
	German  Language = "de"
	French  Language = "fr"
	Italian Language = "it"
	Spanish Language = "es"
)

// Languages lists every supported language in registry order.
var Languages = []Language{English, Finnish, Swedish, German, French, Italian, Spanish}

// ParseLanguage accepts codes such as "de", "de-DE", "deu" or "german".
func ParseLanguage(s string) (Language, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(normalized, "-_"); i > 0 {
		normalized = normalized[:i]
	}
	aliases := map[string]Language{
		"eng": English, "english": English,
		"fin": Finnish, "finnish": Finnish, "suomi": Finnish,
		"swe": Swedish, "swedish": Swedish, "svenska": Swedish,
		"deu": German, "ger": German, "german": German, "deutsch": German,
		"fra": French, "fre": French, "french": French,
		"ita": Italian, "italian": Italian,
		"spa": Spanish, "spanish": Spanish,
	}
	if l, ok := aliases[normalized]; ok {
		return l, true
	}
	for _, l := range Languages {
		if normalized == string(l) {
			return l, true
		}
	}
	return "", false
}
