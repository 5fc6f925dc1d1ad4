package fusion

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
	"github.com/joseph-ayodele/receipts-extractor/internal/taxtable"
)

const crossCheckPenalty = 0.8

// Config tunes clustering and cross-validation.
type Config struct {
	SourceWeights       map[constants.Source]float64
	SimilarityThreshold float64
	MaxClusterVariance  float64
	OutlierFactor       float64
	Tolerance           taxtable.Tolerance
}

func DefaultConfig() Config {
	return Config{
		SourceWeights:       constants.DefaultSourceWeights(),
		SimilarityThreshold: 0.85,
		MaxClusterVariance:  0.1,
		OutlierFactor:       1.5,
		Tolerance:           taxtable.DefaultTolerance(),
	}
}

func (c Config) weight(src constants.Source) float64 {
	if w, ok := c.SourceWeights[src]; ok {
		return w
	}
	return 1
}

// Validation is the outcome of the document-level arithmetic and layout checks.
type Validation struct {
	MathChecked    bool     `json:"math_checked"`
	MathConsistent bool     `json:"math_consistent"`
	Discrepancy    float64  `json:"discrepancy,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Outcome holds every cluster per field, ordered by confidence. A failed
// cross-check lowers the leading total cluster and re-sorts the totals.
type Outcome struct {
	Clusters   map[constants.Field][]Cluster `json:"clusters"`
	Validation Validation                    `json:"validation"`
}

// Best returns the leading cluster of a field.
func (o Outcome) Best(f constants.Field) (Cluster, bool) {
	cs := o.Clusters[f]
	if len(cs) == 0 {
		return Cluster{}, false
	}
	return cs[0], true
}

// Count is the number of clusters over all fields.
func (o Outcome) Count() int {
	n := 0
	for _, cs := range o.Clusters {
		n += len(cs)
	}
	return n
}

// Fuser clusters evidence per field and cross-checks the results.
type Fuser struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{cfg: cfg, logger: logger}
}

// Fuse is deterministic for a given evidence order.
func (f *Fuser) Fuse(all []evidence.Evidence) Outcome {
	out := Outcome{Clusters: make(map[constants.Field][]Cluster)}
	byField := evidence.ByField(all)
	for _, field := range constants.AllFields {
		ev := byField[field]
		if len(ev) == 0 {
			continue
		}
		clusters := f.clusterField(field, ev)
		if len(clusters) > 0 {
			out.Clusters[field] = clusters
		}
	}
	out.Validation = f.crossValidate(out)
	return out
}

func (f *Fuser) clusterField(field constants.Field, ev []evidence.Evidence) []Cluster {
	var seeds, modifiers []evidence.Evidence
	for _, e := range ev {
		if e.Modifier {
			modifiers = append(modifiers, e)
		} else {
			seeds = append(seeds, e)
		}
	}
	sort.SliceStable(seeds, func(i, j int) bool { return seeds[i].Confidence > seeds[j].Confidence })

	type group struct {
		seed    evidence.Evidence
		members []evidence.Evidence
	}
	var groups []*group
	join := func(e evidence.Evidence) *group {
		var target *group
		bestSim := 0.0
		for _, g := range groups {
			sim := Similarity(field, e.Value, g.seed.Value)
			if sim >= f.cfg.SimilarityThreshold && sim > bestSim {
				target, bestSim = g, sim
			}
		}
		return target
	}
	for _, e := range seeds {
		if g := join(e); g != nil {
			g.members = append(g.members, e)
			continue
		}
		groups = append(groups, &group{seed: e, members: []evidence.Evidence{e}})
	}
	// modifiers only strengthen an existing cluster
	for _, e := range modifiers {
		if g := join(e); g != nil {
			g.members = append(g.members, e)
		}
	}

	out := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		c := NewCluster(field, g.members, f.cfg)
		if !c.Consistent {
			f.logger.Debug("fusion.cluster.inconsistent", "field", field, "variance", c.Variance, "members", len(c.Members))
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// crossValidate checks subtotal + tax = total and the vertical order of
// subtotal and total. A failed sum lowers the total's confidence.
func (f *Fuser) crossValidate(o Outcome) Validation {
	v := Validation{MathConsistent: true}
	sub, okSub := o.Best(constants.FieldSubtotal)
	total, okTotal := o.Best(constants.FieldTotal)
	tax, okTax := TaxTotal(o)

	if okSub && okTotal && okTax {
		s, _ := sub.Number()
		t, _ := total.Number()
		v.MathChecked = true
		if !f.cfg.Tolerance.Within(s+tax, t) {
			v.MathConsistent = false
			v.Discrepancy = round2(s + tax - t)
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"subtotal %.2f + tax %.2f = %.2f does not match total %.2f", s, tax, s+tax, t))
			cs := o.Clusters[constants.FieldTotal]
			cs[0].Confidence *= crossCheckPenalty
			sort.SliceStable(cs, func(i, j int) bool { return cs[i].Confidence > cs[j].Confidence })
			if next, _ := cs[0].Number(); next != t {
				f.logger.Debug("fusion.total.replaced", "penalized", t, "total", next, "confidence", cs[0].Confidence)
			}
		}
	}

	if okSub && okTotal {
		sa, okA := sub.anchor()
		ta, okB := total.anchor()
		if okA && okB && ta.Position.Y < sa.Position.Y {
			v.Warnings = append(v.Warnings, "total appears above subtotal")
		}
	}
	return v
}

// TaxTotal is the best tax_amount cluster, or the sum of breakdown clusters.
func TaxTotal(o Outcome) (float64, bool) {
	if c, ok := o.Best(constants.FieldTaxAmount); ok {
		return c.Number()
	}
	cs := o.Clusters[constants.FieldTaxBreakdown]
	if len(cs) == 0 {
		return 0, false
	}
	var sum float64
	for _, c := range cs {
		sum += c.Value.(evidence.Breakdown).Tax
	}
	return round2(sum), true
}
