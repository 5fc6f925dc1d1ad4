package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
	"github.com/joseph-ayodele/receipts-extractor/internal/taxtable"
)

// Input is what every strategy reads. Lines are already grouped.
type Input struct {
	Lines     []ocr.TextLine
	Languages []constants.Language
	Candidate *llm.Candidate
}

// Strategy produces evidence from one angle. Strategies must not mutate Input.
type Strategy interface {
	Source() constants.Source
	Collect(in Input) ([]Evidence, error)
}

// Config tunes collection.
type Config struct {
	// Enabled restricts the strategies that run; empty means all.
	Enabled          []constants.Source
	MinConfidence    float64
	Tolerance        taxtable.Tolerance
	SpatialTolerance float64 // pixels
	MinTaxRate       float64
	MaxTaxRate       float64
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:    0.3,
		Tolerance:        taxtable.DefaultTolerance(),
		SpatialTolerance: 30,
		MinTaxRate:       0,
		MaxTaxRate:       50,
	}
}

// Collection is the output of one collection pass.
type Collection struct {
	Evidence []Evidence
	Dropped  int
	Warnings []string
	BySource map[constants.Source]int
}

// Collector runs the enabled strategies concurrently and merges their output
// in a fixed strategy order, so results do not depend on scheduling.
type Collector struct {
	cfg        Config
	strategies []Strategy
	clock      func() time.Time
	logger     *slog.Logger
}

type Option func(*Collector)

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.clock = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// WithStrategies replaces the built-in strategy set.
func WithStrategies(s ...Strategy) Option {
	return func(c *Collector) { c.strategies = s }
}

func NewCollector(compiler *patterns.Compiler, cfg Config, opts ...Option) *Collector {
	if compiler == nil {
		compiler = patterns.NewCompiler(nil)
	}
	c := &Collector{
		cfg:    cfg,
		clock:  time.Now,
		logger: slog.Default(),
	}
	c.strategies = builtinStrategies(compiler, cfg)
	for _, opt := range opts {
		opt(c)
	}
	c.strategies = filterEnabled(c.strategies, cfg.Enabled)
	return c
}

func builtinStrategies(compiler *patterns.Compiler, cfg Config) []Strategy {
	return []Strategy{
		&tableStrategy{compiler: compiler, detector: taxtable.NewDetector(compiler, cfg.Tolerance)},
		&textStrategy{compiler: compiler},
		&summaryStrategy{compiler: compiler},
		&spatialStrategy{compiler: compiler, tolerance: cfg.SpatialTolerance},
		&calculationStrategy{compiler: compiler, minRate: cfg.MinTaxRate, maxRate: cfg.MaxTaxRate},
		&patternStrategy{compiler: compiler},
		&bboxStrategy{compiler: compiler, tolerance: cfg.SpatialTolerance},
		&linguisticStrategy{compiler: compiler},
		&candidateStrategy{},
	}
}

func filterEnabled(all []Strategy, enabled []constants.Source) []Strategy {
	if len(enabled) == 0 {
		return all
	}
	on := make(map[constants.Source]bool, len(enabled))
	for _, s := range enabled {
		on[s] = true
	}
	out := make([]Strategy, 0, len(all))
	for _, s := range all {
		if on[s.Source()] {
			out = append(out, s)
		}
	}
	return out
}

// Sources lists the strategies that will run, in merge order.
func (c *Collector) Sources() []constants.Source {
	out := make([]constants.Source, 0, len(c.strategies))
	for _, s := range c.strategies {
		out = append(out, s.Source())
	}
	return out
}

// Collect runs every strategy over in. A failing or panicking strategy fails
// the whole pass.
func (c *Collector) Collect(ctx context.Context, in Input) (Collection, error) {
	results := make([][]Evidence, len(c.strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range c.strategies {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("strategy %s panicked: %v", s.Source(), r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			ev, err := s.Collect(in)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s.Source(), err)
			}
			results[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Collection{}, err
	}

	now := c.clock()
	out := Collection{BySource: make(map[constants.Source]int)}
	seenWarning := make(map[string]bool)
	for i, batch := range results {
		src := c.strategies[i].Source()
		for _, e := range batch {
			if err := e.Validate(); err != nil {
				c.logger.Warn("discarding malformed evidence", "source", src, "field", e.Field, "error", err)
				out.Dropped++
				continue
			}
			for _, w := range e.Warnings() {
				if !seenWarning[w] {
					seenWarning[w] = true
					out.Warnings = append(out.Warnings, w)
				}
			}
			if e.Confidence < c.cfg.MinConfidence {
				out.Dropped++
				continue
			}
			e.Timestamp = now
			out.Evidence = append(out.Evidence, e)
			out.BySource[e.Source]++
		}
	}
	c.logger.Debug("evidence collected",
		"strategies", len(c.strategies),
		"kept", len(out.Evidence),
		"dropped", out.Dropped,
	)
	return out, nil
}

// ByField groups evidence per field preserving order.
func ByField(all []Evidence) map[constants.Field][]Evidence {
	out := make(map[constants.Field][]Evidence)
	for _, e := range all {
		out[e.Field] = append(out[e.Field], e)
	}
	return out
}

// FieldCounts counts evidence per field name.
func FieldCounts(all []Evidence) map[string]int {
	out := make(map[string]int)
	for _, e := range all {
		out[string(e.Field)]++
	}
	return out
}
