// Package engine runs the extraction pipeline over one OCR result:
// grouping, evidence collection, fusion and assembly.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/assemble"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
	"github.com/joseph-ayodele/receipts-extractor/internal/fusion"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/patterns"
	"github.com/joseph-ayodele/receipts-extractor/internal/training"
)

// Report is a result together with everything that produced it.
type Report struct {
	Result   entity.ExtractionResult `json:"result"`
	Lines    []ocr.TextLine          `json:"lines"`
	Evidence []evidence.Evidence     `json:"evidence"`
	Outcome  fusion.Outcome          `json:"fusion"`
	Training []training.Example      `json:"training,omitempty"`
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg       Config
	registry  *keywords.Registry
	compiler  *patterns.Compiler
	grouper   *ocr.Grouper
	collector *evidence.Collector
	fuser     *fusion.Fuser
	assembler *assemble.Assembler
	trainer   *training.Builder
	clock     func() time.Time
	logger    *slog.Logger

	strategies []evidence.Strategy
}

type Option func(*Engine)

// WithClock replaces the wall clock used for timestamps and stage timings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStrategies replaces the built-in evidence strategies.
func WithStrategies(s ...evidence.Strategy) Option {
	return func(e *Engine) { e.strategies = s }
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		registry: keywords.NewRegistry(),
		grouper:  ocr.NewGrouper(ocr.DefaultGrouperConfig()),
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if !cfg.EnableDebugLogging {
		e.logger = slog.New(levelFloor{Handler: e.logger.Handler(), min: slog.LevelInfo})
	}

	cfg.applyKeywords(e.registry)
	e.compiler = patterns.NewCompiler(e.registry)

	copts := []evidence.Option{evidence.WithClock(e.clock), evidence.WithLogger(e.logger)}
	if e.strategies != nil {
		copts = append(copts, evidence.WithStrategies(e.strategies...))
	}
	e.collector = evidence.NewCollector(e.compiler, cfg.collectorConfig(), copts...)
	e.fuser = fusion.New(cfg.fusionConfig(), e.logger)
	e.assembler = assemble.New(cfg.assembleConfig(), e.compiler)
	e.trainer = training.NewBuilder(e.compiler, cfg.MinClusterConfidence, cfg.SpatialTolerancePixels)
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// ExtendKeywords adds keywords at runtime and drops compiled patterns so the
// next extraction sees them.
func (e *Engine) ExtendKeywords(lang constants.Language, cat keywords.Category, words ...string) {
	e.registry.Extend(lang, cat, words...)
	e.compiler.Invalidate()
}

// Extract never fails: unusable input yields a failed result with a single
// warning explaining why.
func (e *Engine) Extract(ctx context.Context, r ocr.Result) entity.ExtractionResult {
	return e.run(ctx, r, nil, false).Result
}

// ExtractWithCandidate fuses a model-produced candidate as llm evidence.
func (e *Engine) ExtractWithCandidate(ctx context.Context, r ocr.Result, c *llm.Candidate) entity.ExtractionResult {
	return e.run(ctx, r, c, false).Result
}

// Explain returns the result with its lines, evidence, clusters and
// training examples.
func (e *Engine) Explain(ctx context.Context, r ocr.Result, c *llm.Candidate) Report {
	return e.run(ctx, r, c, true)
}

func (e *Engine) run(ctx context.Context, r ocr.Result, cand *llm.Candidate, explain bool) (rep Report) {
	start := e.clock()
	logger := e.logger
	if ref := common.SourceRefFromContext(ctx); ref != "" {
		logger = logger.With("source_ref", ref)
	}
	logger.Info("engine.extract.start",
		"text_lines", len(r.TextLines),
		"detected_language", r.DetectedLanguage,
		"candidate", cand != nil,
	)

	fail := func(reason string) Report {
		res := assemble.Failed(reason)
		res.Metadata.ProcessingTimes.TotalMs = e.since(start)
		logger.Warn("engine.extract.failed", "reason", reason, "elapsed_ms", res.Metadata.ProcessingTimes.TotalMs)
		return Report{Result: res}
	}
	defer func() {
		if p := recover(); p != nil {
			rep = fail(fmt.Sprintf("internal error: %v", p))
		}
	}()

	if err := r.Validate(); err != nil {
		return fail(err.Error())
	}
	if r.IsEmpty() {
		return fail("no text in OCR result")
	}
	langs := Languages(r.DetectedLanguage)

	e.state(constants.StateCollecting)
	t0 := e.clock()
	lines := e.grouper.Group(r.Lines())
	groupingMs := e.since(t0)
	if len(lines) == 0 {
		return fail("no text in OCR result")
	}

	t0 = e.clock()
	col, err := e.collector.Collect(ctx, evidence.Input{Lines: lines, Languages: langs, Candidate: cand})
	if err != nil {
		return fail("evidence collection failed: " + err.Error())
	}
	collectionMs := e.since(t0)

	e.state(constants.StateFusing)
	t0 = e.clock()
	outcome := e.fuser.Fuse(col.Evidence)
	fusionMs := e.since(t0)

	t0 = e.clock()
	res := e.assembler.Assemble(assemble.Input{Lines: lines, Languages: langs, Outcome: outcome, Warnings: col.Warnings})
	assemblyMs := e.since(t0)

	res.Metadata.EvidenceSummary.Total = len(col.Evidence)
	res.Metadata.EvidenceSummary.Dropped = col.Dropped
	res.Metadata.EvidenceSummary.BySource = sourceCounts(col.BySource)
	res.Metadata.EvidenceSummary.ByField = evidence.FieldCounts(col.Evidence)
	res.Metadata.Languages = languageNames(langs)
	res.Metadata.ProcessingTimes = entity.ProcessingTimes{
		GroupingMs:   groupingMs,
		CollectionMs: collectionMs,
		FusionMs:     fusionMs,
		AssemblyMs:   assemblyMs,
		TotalMs:      e.since(start),
	}
	e.state(constants.StateAssembled)

	logger.Info("engine.extract.ok",
		"lines", len(lines),
		"evidence", len(col.Evidence),
		"clusters", outcome.Count(),
		"confidence", res.Confidence,
		"needs_verification", res.NeedsVerification,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Metadata.ProcessingTimes.TotalMs,
	)

	rep = Report{Result: res}
	if explain {
		rep.Lines = lines
		rep.Evidence = col.Evidence
		rep.Outcome = outcome
		rep.Training = e.trainer.Build(lines, langs, outcome)
	}
	return rep
}

func (e *Engine) state(s constants.ExtractionState) {
	e.logger.Debug("engine.state", "state", s)
}

func (e *Engine) since(t time.Time) float64 {
	ms := float64(e.clock().Sub(t)) / float64(time.Millisecond)
	return math.Round(ms*1000) / 1000
}

// Languages picks the keyword languages for a document: the detected
// language plus English, or every language when detection gave nothing usable.
func Languages(detected string) []constants.Language {
	lang, ok := constants.ParseLanguage(detected)
	if !ok {
		return append([]constants.Language(nil), constants.Languages...)
	}
	if lang == constants.English {
		return []constants.Language{constants.English}
	}
	return []constants.Language{lang, constants.English}
}

func languageNames(langs []constants.Language) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, string(l))
	}
	return out
}

func sourceCounts(m map[constants.Source]int) map[string]int {
	out := make(map[string]int, len(m))
	for src, n := range m {
		out[string(src)] = n
	}
	return out
}

// levelFloor drops records below min. It keeps debug records out of the
// engine's logs unless enableDebugLogging is set.
type levelFloor struct {
	slog.Handler
	min slog.Level
}

func (h levelFloor) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.min && h.Handler.Enabled(ctx, l)
}

func (h levelFloor) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelFloor{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h levelFloor) WithGroup(name string) slog.Handler {
	return levelFloor{Handler: h.Handler.WithGroup(name), min: h.min}
}
