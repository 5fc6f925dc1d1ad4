package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/app"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/engine"
	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
)

// runllm repeats the candidate step on one OCR payload so provider drift is
// visible in the logs.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: runllm <ocr.json|ocr.txt> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 10
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg := common.LoadConfig()
	if cfg.LLM.Provider == "" {
		logger.Error("LLM_PROVIDER env var is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	doc, err := ingest.Load(path)
	if err != nil {
		logger.Error("load ocr payload", "path", path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	engineCfg, err := engine.LoadConfig(cfg.Engine.ConfigPath)
	if err != nil {
		logger.Error("load engine config", "error", err)
		os.Exit(1)
	}
	e, err := engine.New(engineCfg, engine.WithLogger(logger))
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}
	provider, closer, err := app.NewProvider(ctx, cfg.LLM, logger)
	if err != nil {
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	step := engine.CandidateStep(e, provider)
	baseline := e.Extract(ctx, doc)

	// --- Loop N times on the SAME payload
	base := filepath.Base(path)
	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(ctx, cfg.LLM.Timeout+5*time.Second)
		start := time.Now()
		logger.Info("candidate.run.start", "iter", i, "basename", base)

		res, err := step.Run(runCtx, engine.Request{Result: doc, SourceRef: path})
		cancelRun()

		if err != nil {
			logger.Error("candidate.run.error", "iter", i, "err", err)
		} else {
			logger.Info("candidate.run.ok",
				"iter", i,
				"confidence", res.Confidence,
				"rules_confidence", baseline.Confidence,
				"total", res.Total,
				"needs_verification", res.NeedsVerification,
				"elapsed_ms", time.Since(start).Milliseconds())
		}

		time.Sleep(750 * time.Millisecond)
	}

	logger.Info("done", "path", path, "times", times)
}
