package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/engine"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
	"github.com/joseph-ayodele/receipts-extractor/internal/repository"
)

const maxSourceRef = 1024

type ExtractRequest struct {
	OCRResult *ocr.Result `json:"ocr_result"`
	SourceRef string      `json:"source_ref,omitempty"`
	// Explain bypasses the cache and returns the full report.
	Explain bool `json:"explain,omitempty"`
}

type ExtractResponse struct {
	pipeline.Outcome
	// Report is an engine.Report; evidence values are a sum type, so it
	// stays raw JSON for clients.
	Report json.RawMessage `json:"report,omitempty"`
}

type ListRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListResponse struct {
	Results []StoredResult `json:"results"`
}

type StoredResult struct {
	pipeline.Outcome
	UpdatedAt time.Time `json:"updated_at"`
}

type ExportRequest struct {
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type ExportResponse struct {
	// XLSX is the workbook, base64 encoded by encoding/json.
	XLSX []byte `json:"xlsx"`
	Rows int    `json:"rows"`
}

// ExtractionService serves extraction over gRPC. Results may be nil, which
// disables the listing and export methods.
type ExtractionService struct {
	engine    *engine.Engine
	processor *pipeline.Processor
	results   repository.ResultRepository
	exporter  *export.Service
	logger    *slog.Logger
}

func NewExtractionService(e *engine.Engine, p *pipeline.Processor, results repository.ResultRepository, exporter *export.Service, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{engine: e, processor: p, results: results, exporter: exporter, logger: logger}
}

func (s *ExtractionService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExtractRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	v := common.NewValidator().
		Field("ocr_result", req.OCRResult, common.Required).
		Field("source_ref", req.SourceRef, common.MaxLength(maxSourceRef))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	ctx = common.WithSourceRef(ctx, req.SourceRef)

	if req.Explain {
		rep := s.engine.Explain(ctx, *req.OCRResult, nil)
		raw, err := json.Marshal(rep)
		if err != nil {
			return nil, common.InternalErrorf("encode report: %v", err)
		}
		return toStruct(ExtractResponse{
			Outcome: pipeline.Outcome{SourceRef: req.SourceRef, Step: "explain", Result: rep.Result},
			Report:  raw,
		})
	}

	out, err := s.processor.Process(ctx, *req.OCRResult, req.SourceRef)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(ExtractResponse{Outcome: out})
}

func (s *ExtractionService) ListNeedingVerification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	stored, err := s.flagged(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	resp := ListResponse{Results: make([]StoredResult, 0, len(stored))}
	for _, r := range stored {
		resp.Results = append(resp.Results, StoredResult{
			Outcome: pipeline.Outcome{
				SourceRef:   r.SourceRef,
				ContentHash: r.ContentHash,
				Step:        pipeline.StepCache,
				Result:      r.Result,
			},
			UpdatedAt: r.UpdatedAt,
		})
	}
	return toStruct(resp)
}

// ExportXLSX exports cached results that need verification.
// - only from -> from..today (inclusive)
// - only to   -> beginning..to (inclusive)
// - none      -> all.
func (s *ExtractionService) ExportXLSX(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExportRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	var fromPtr, toPtr *time.Time
	if fd := strings.TrimSpace(req.FromDate); fd != "" {
		t, err := time.Parse("2006-01-02", fd)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("from_date %q must be YYYY-MM-DD", fd)
		}
		fromPtr = &t
	}
	if td := strings.TrimSpace(req.ToDate); td != "" {
		t, err := time.Parse("2006-01-02", td)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("to_date %q must be YYYY-MM-DD", td)
		}
		toPtr = &t
	}

	stored, err := s.flagged(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	rows := make([]export.Row, 0, len(stored))
	for _, r := range stored {
		rows = append(rows, export.Row{SourceRef: r.SourceRef, Result: r.Result})
	}
	xlsx, err := s.exporter.ExportXLSX(ctx, rows, fromPtr, toPtr)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "request_id", common.RequestIDFromContext(ctx), "err", err)
		return nil, common.InternalError(err.Error())
	}
	return toStruct(ExportResponse{XLSX: xlsx, Rows: len(rows)})
}

func (s *ExtractionService) flagged(ctx context.Context, limit int) ([]*repository.StoredResult, error) {
	if s.results == nil {
		return nil, status.Error(codes.FailedPrecondition, "result cache is not configured")
	}
	stored, err := s.results.ListNeedingVerification(ctx, limit)
	if err != nil {
		s.logger.Error("list results failed", "request_id", common.RequestIDFromContext(ctx), "err", err)
		return nil, common.ToStatus(err)
	}
	return stored, nil
}
