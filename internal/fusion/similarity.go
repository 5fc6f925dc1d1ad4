package fusion

import (
	"math"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
)

// maxRateGap is the largest rate difference, in points, two breakdown
// entries may have and still describe the same tax rate.
const maxRateGap = 0.5

// Similarity scores two values of the same field in [0,1].
func Similarity(field constants.Field, a, b evidence.Value) float64 {
	switch x := a.(type) {
	case evidence.Amount:
		if y, ok := b.(evidence.Amount); ok {
			return numericSimilarity(float64(x), float64(y))
		}
	case evidence.Rate:
		if y, ok := b.(evidence.Rate); ok {
			return numericSimilarity(float64(x), float64(y))
		}
	case evidence.Breakdown:
		if y, ok := b.(evidence.Breakdown); ok {
			if math.Abs(x.Rate-y.Rate) > maxRateGap {
				return 0
			}
			return numericSimilarity(x.Tax, y.Tax)
		}
	case evidence.Item:
		if y, ok := b.(evidence.Item); ok {
			return min(textSimilarity(x.Name, y.Name), numericSimilarity(x.Price, y.Price))
		}
	case evidence.Text:
		if y, ok := b.(evidence.Text); ok {
			if fuzzyText(field) {
				return textSimilarity(string(x), string(y))
			}
			if normalizeText(string(x)) == normalizeText(string(y)) {
				return 1
			}
			return 0
		}
	}
	return 0
}

// fuzzyText reports whether near spellings of a field are the same value.
// Dates, codes and numbers are exact: 2024-05-12 and 2024-05-13 differ.
func fuzzyText(field constants.Field) bool {
	return field == constants.FieldMerchantName
}

func numericSimilarity(a, b float64) float64 {
	if a == b {
		return 1
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return 1
	}
	return clamp01(1 - math.Abs(a-b)/scale)
}

func textSimilarity(a, b string) float64 {
	a, b = normalizeText(a), normalizeText(b)
	if a == b {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
