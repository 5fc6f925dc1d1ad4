package fusion

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
)

// Cluster is a group of evidence judged to describe one true value.
type Cluster struct {
	Field      constants.Field     `json:"field"`
	Value      evidence.Value      `json:"value"`
	Confidence float64             `json:"confidence"`
	Variance   float64             `json:"variance"`
	Consistent bool                `json:"consistent"`
	Members    []evidence.Evidence `json:"members"`
	Outliers   []evidence.Evidence `json:"outliers,omitempty"`
}

// Sources lists member sources without duplicates, in member order.
func (c Cluster) Sources() []constants.Source {
	var out []constants.Source
	seen := map[constants.Source]bool{}
	for _, m := range c.Members {
		if !seen[m.Source] {
			seen[m.Source] = true
			out = append(out, m.Source)
		}
	}
	return out
}

// Number is the numeric reading of the centroid.
func (c Cluster) Number() (float64, bool) {
	return evidence.Number(c.Value)
}

// anchor returns the most trusted member carrying a position.
func (c Cluster) anchor() (evidence.Evidence, bool) {
	var best evidence.Evidence
	found := false
	for _, m := range c.Members {
		if m.Position == nil {
			continue
		}
		if !found || m.Confidence > best.Confidence {
			best, found = m, true
		}
	}
	return best, found
}

// NewCluster consolidates members into a centroid. Numeric members outside
// the IQR fence are set aside first when there are at least three of them,
// unless they still read as the same value as the median.
func NewCluster(field constants.Field, members []evidence.Evidence, cfg Config) Cluster {
	c := Cluster{Field: field, Consistent: true}
	if len(members) == 0 {
		return c
	}

	kept := members
	if numbers, ok := numericReadings(members); ok {
		mask := RemoveOutliers(numbers, cfg.OutlierFactor)
		sorted := append([]float64(nil), numbers...)
		sort.Float64s(sorted)
		median := quantile(sorted, 0.5)
		for i, v := range numbers {
			// a tight cluster has a zero IQR; near readings stay in it
			if !mask[i] && numericSimilarity(v, median) >= cfg.SimilarityThreshold {
				mask[i] = true
			}
		}
		kept = make([]evidence.Evidence, 0, len(members))
		for i, m := range members {
			if mask[i] {
				kept = append(kept, m)
			} else {
				c.Outliers = append(c.Outliers, m)
			}
		}
	}
	c.Members = kept

	weights := make([]float64, len(kept))
	confs := make([]float64, len(kept))
	for i, m := range kept {
		weights[i] = m.Confidence * cfg.weight(m.Source)
		confs[i] = weights[i]
	}

	c.Value = centroid(kept, weights)
	c.Variance = dispersion(field, kept, c.Value)

	conf := noisyOr(confs) * (1 - math.Min(c.Variance, 1))
	if c.Variance > cfg.MaxClusterVariance {
		c.Consistent = false
		conf /= 2
	}
	c.Confidence = clamp01(conf)
	return c
}

func numericReadings(members []evidence.Evidence) ([]float64, bool) {
	out := make([]float64, 0, len(members))
	for _, m := range members {
		switch m.Value.(type) {
		case evidence.Amount, evidence.Rate:
			v, _ := evidence.Number(m.Value)
			out = append(out, v)
		default:
			return nil, false
		}
	}
	return out, true
}

// centroid is the weighted mean for numbers, a weighted vote for text, and a
// per-part weighted mean for breakdowns and items.
func centroid(members []evidence.Evidence, weights []float64) evidence.Value {
	switch members[0].Value.(type) {
	case evidence.Amount:
		return evidence.Amount(round2(weightedMean(members, weights, func(v evidence.Value) (float64, bool) {
			return float64(v.(evidence.Amount)), true
		})))
	case evidence.Rate:
		return evidence.Rate(round2(weightedMean(members, weights, func(v evidence.Value) (float64, bool) {
			return float64(v.(evidence.Rate)), true
		})))
	case evidence.Breakdown:
		b := evidence.Breakdown{
			Rate: round2(weightedMean(members, weights, func(v evidence.Value) (float64, bool) {
				return v.(evidence.Breakdown).Rate, true
			})),
			Tax: round2(weightedMean(members, weights, func(v evidence.Value) (float64, bool) {
				return v.(evidence.Breakdown).Tax, true
			})),
		}
		b.Net = optionalMean(members, weights, func(v evidence.Value) *float64 { return v.(evidence.Breakdown).Net })
		b.Gross = optionalMean(members, weights, func(v evidence.Value) *float64 { return v.(evidence.Breakdown).Gross })
		return b
	case evidence.Item:
		lead := members[heaviest(weights)].Value.(evidence.Item)
		it := evidence.Item{
			Name: lead.Name,
			Price: round2(weightedMean(members, weights, func(v evidence.Value) (float64, bool) {
				return v.(evidence.Item).Price, true
			})),
		}
		for _, i := range byWeight(weights) {
			if q := members[i].Value.(evidence.Item).Quantity; q != nil {
				qty := *q
				it.Quantity = &qty
				break
			}
		}
		return it
	case evidence.Text:
		return vote(members, weights)
	}
	return members[0].Value
}

func weightedMean(members []evidence.Evidence, weights []float64, read func(evidence.Value) (float64, bool)) float64 {
	var sum, total, plain float64
	n := 0
	for i, m := range members {
		v, ok := read(m.Value)
		if !ok {
			continue
		}
		sum += v * weights[i]
		total += weights[i]
		plain += v
		n++
	}
	if n == 0 {
		return 0
	}
	if total == 0 {
		return plain / float64(n)
	}
	return sum / total
}

func optionalMean(members []evidence.Evidence, weights []float64, read func(evidence.Value) *float64) *float64 {
	found := false
	mean := weightedMean(members, weights, func(v evidence.Value) (float64, bool) {
		p := read(v)
		if p == nil {
			return 0, false
		}
		found = true
		return *p, true
	})
	if !found {
		return nil
	}
	r := round2(mean)
	return &r
}

// vote picks the text with the largest total weight; ties keep the first seen.
func vote(members []evidence.Evidence, weights []float64) evidence.Value {
	totals := map[string]float64{}
	var order []string
	first := map[string]evidence.Text{}
	for i, m := range members {
		t := m.Value.(evidence.Text)
		key := normalizeText(string(t))
		if _, ok := first[key]; !ok {
			first[key] = t
			order = append(order, key)
		}
		totals[key] += weights[i]
	}
	best := order[0]
	for _, k := range order[1:] {
		if totals[k] > totals[best] {
			best = k
		}
	}
	return first[best]
}

// dispersion is the normalized variance of numeric members, or one minus the
// mean similarity to the centroid for other kinds.
func dispersion(field constants.Field, members []evidence.Evidence, center evidence.Value) float64 {
	if numbers, ok := numericReadings(members); ok {
		return normalizedVariance(numbers)
	}
	if len(members) < 2 {
		return 0
	}
	var sim float64
	for _, m := range members {
		sim += Similarity(field, m.Value, center)
	}
	return 1 - sim/float64(len(members))
}

func heaviest(weights []float64) int {
	best := 0
	for i, w := range weights {
		if w > weights[best] {
			best = i
		}
	}
	return best
}

// byWeight returns indexes ordered by descending weight, stable.
func byWeight(weights []float64) []int {
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return weights[idx[a]] > weights[idx[b]] })
	return idx
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
