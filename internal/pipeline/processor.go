// Package pipeline runs one document through the ranked extraction steps
// with an optional content-hash result cache in front.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/engine"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/repository"
)

// StepCache names outcomes served from the result cache.
const StepCache = "cache"

// Outcome is the processed form of one document.
type Outcome struct {
	SourceRef   string                  `json:"source_ref"`
	ContentHash string                  `json:"content_hash,omitempty"`
	Step        string                  `json:"step"`
	Result      entity.ExtractionResult `json:"result"`
}

// Processor coordinates cache lookup, ranked extraction and cache write-back.
type Processor struct {
	Logger  *slog.Logger
	Ranked  *engine.Ranked
	Results repository.ResultRepository // nil disables caching
	Salt    string
}

func NewProcessor(logger *slog.Logger, ranked *engine.Ranked, results repository.ResultRepository, salt string) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Ranked: ranked, Results: results, Salt: salt}
}

// ProcessFile loads an OCR payload from disk and processes it.
func (p *Processor) ProcessFile(ctx context.Context, path string) (Outcome, error) {
	r, err := ingest.Load(path)
	if err != nil {
		p.Logger.Error("processor.load.failed", "path", path, "err", err)
		return Outcome{SourceRef: path}, err
	}
	return p.Process(common.WithSourceRef(ctx, path), r, path)
}

// Process extracts r, consulting the cache first. Failed extractions are not
// cached.
func (p *Processor) Process(ctx context.Context, r ocr.Result, sourceRef string) (Outcome, error) {
	start := time.Now()
	out := Outcome{SourceRef: sourceRef}
	reqID := common.RequestIDFromContext(ctx)

	if p.Results != nil {
		hash, err := repository.ContentHash(r, p.Salt)
		if err != nil {
			return out, err
		}
		out.ContentHash = hash
		stored, err := p.Results.Get(ctx, hash)
		switch {
		case err == nil:
			out.Step = StepCache
			out.Result = stored.Result
			p.Logger.Info("processor.cache.hit", "request_id", reqID, "source_ref", sourceRef, "content_hash", hash)
			return out, nil
		case !errors.Is(err, common.ErrNotFound):
			p.Logger.Warn("processor.cache.unavailable", "request_id", reqID, "content_hash", hash, "err", err)
		}
	}

	res, step, err := p.Ranked.Run(ctx, engine.Request{Result: r, SourceRef: sourceRef})
	if err != nil {
		p.Logger.Error("processor.extract.failed", "request_id", reqID, "source_ref", sourceRef, "err", err)
		return out, err
	}
	out.Step = step
	out.Result = res

	if p.Results != nil && res.Metadata.State != constants.StateFailed {
		if _, err := p.Results.Put(ctx, out.ContentHash, sourceRef, res); err != nil {
			p.Logger.Warn("processor.cache.write.failed", "request_id", reqID, "content_hash", out.ContentHash, "err", err)
		}
	}

	p.Logger.Info("processor.extract.ok",
		"request_id", reqID,
		"source_ref", sourceRef,
		"step", step,
		"confidence", res.Confidence,
		"needs_verification", res.NeedsVerification,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
