package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
)

// Request is one document submitted to a ranked run.
type Request struct {
	Result    ocr.Result
	SourceRef string
}

// Step is one way of extracting a document.
type Step struct {
	Name string
	Run  func(ctx context.Context, req Request) (entity.ExtractionResult, error)
}

// Ranked tries steps in order and stops at the first result whose
// confidence reaches Threshold. Failing steps are logged and skipped; when no
// step reaches the threshold the most confident result wins.
type Ranked struct {
	Logger    *slog.Logger
	Threshold float64
	Steps     []Step
}

func NewRanked(threshold float64, steps ...Step) *Ranked {
	return &Ranked{Logger: slog.Default(), Threshold: threshold, Steps: steps}
}

// Run returns the chosen result and the name of the step that produced it.
func (r *Ranked) Run(ctx context.Context, req Request) (entity.ExtractionResult, string, error) {
	var (
		best     entity.ExtractionResult
		bestStep string
		found    bool
		errs     []error
	)
	for _, s := range r.Steps {
		if err := ctx.Err(); err != nil {
			return best, bestStep, err
		}
		res, err := s.Run(ctx, req)
		if err != nil {
			r.Logger.Warn("ranked.step.failed", "step", s.Name, "source_ref", req.SourceRef, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		r.Logger.Debug("ranked.step.ok", "step", s.Name, "confidence", res.Confidence)
		if !found || res.Confidence > best.Confidence {
			best, bestStep, found = res, s.Name, true
		}
		if res.Confidence >= r.Threshold {
			return res, s.Name, nil
		}
	}
	if !found {
		return best, "", common.NewAppError("EXTRACTION_FAILED", "every step failed", errors.Join(append(errs, common.ErrInternal)...))
	}
	return best, bestStep, nil
}

// RuleStep runs the engine on the OCR result alone.
func RuleStep(e *Engine) Step {
	return Step{Name: "rules", Run: func(ctx context.Context, req Request) (entity.ExtractionResult, error) {
		return e.Extract(ctx, req.Result), nil
	}}
}

// CandidateStep asks provider for a candidate and fuses it with the rule evidence.
func CandidateStep(e *Engine, provider llm.CandidateProvider) Step {
	return Step{Name: "rules+llm", Run: func(ctx context.Context, req Request) (entity.ExtractionResult, error) {
		langs := languageNames(Languages(req.Result.DetectedLanguage))
		cand, _, err := provider.ExtractCandidate(ctx, llm.CandidateRequest{
			OCRText:    documentText(req.Result),
			Languages:  langs,
			SourceHint: req.SourceRef,
		})
		if err != nil {
			return entity.ExtractionResult{}, fmt.Errorf("candidate: %w", err)
		}
		return e.ExtractWithCandidate(ctx, req.Result, &cand), nil
	}}
}

func documentText(r ocr.Result) string {
	if strings.TrimSpace(r.Text) != "" {
		return r.Text
	}
	var b strings.Builder
	for _, l := range r.TextLines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
