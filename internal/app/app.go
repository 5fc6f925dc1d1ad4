// Package app wires configuration into the engine, the optional result cache
// and the optional candidate provider shared by the binaries.
package app

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/engine"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
	"github.com/joseph-ayodele/receipts-extractor/internal/repository"
)

// Runtime holds the wired components. Close releases them.
type Runtime struct {
	Engine    *engine.Engine
	Ranked    *engine.Ranked
	Processor *pipeline.Processor
	DB        *repository.DB
	Results   repository.ResultRepository

	logger  *slog.Logger
	closers []io.Closer
}

// NewLogger builds a JSON or text slog logger at the configured level.
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Build loads the engine configuration and wires the runtime. An empty DSN
// disables the result cache; an empty provider runs the rule engine alone.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Runtime, error) {
	engineCfg, err := engine.LoadConfig(cfg.Engine.ConfigPath)
	if err != nil {
		logger.Error("failed to load engine config", "path", cfg.Engine.ConfigPath, "error", err)
		return nil, err
	}
	e, err := engine.New(engineCfg, engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Engine: e, logger: logger}

	steps := []engine.Step{engine.RuleStep(e)}
	provider, closer, err := NewProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}
	if provider != nil {
		steps = append(steps, engine.CandidateStep(e, provider))
	}
	rt.Ranked = engine.NewRanked(cfg.LLM.Threshold, steps...)
	rt.Ranked.Logger = logger

	if cfg.Database.DSN != "" {
		db, err := repository.Open(ctx, repository.Config(cfg.Database), logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.DB = db
		if err := db.HealthCheck(ctx, cfg.Database.DialTimeout, logger); err != nil {
			rt.Close()
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate result cache", "error", err)
			rt.Close()
			return nil, err
		}
		rt.Results = repository.NewResultRepository(db, logger)
	} else {
		logger.Info("result cache disabled", "reason", "DB_URL is empty")
	}

	rt.Processor = pipeline.NewProcessor(logger, rt.Ranked, rt.Results, engineCfg.Fingerprint())
	return rt, nil
}

// NewProvider returns the configured candidate provider, or nil when none is
// configured. The closer is non-nil for providers holding connections.
func NewProvider(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.CandidateProvider, io.Closer, error) {
	switch cfg.Provider {
	case "":
		return nil, nil, nil
	case "openai":
		logger.Info("candidate provider initialized", "provider", cfg.Provider, "model", cfg.Model)
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			logger.Error("failed to create candidate provider", "provider", cfg.Provider, "error", err)
			return nil, nil, err
		}
		logger.Info("candidate provider initialized", "provider", cfg.Provider, "model", cfg.Model)
		return c, c, nil
	}
	return nil, nil, common.NewAppError("CONFIG_ERROR", "unknown LLM_PROVIDER "+cfg.Provider, common.ErrInvalidInput)
}

func (rt *Runtime) Close() {
	if rt.DB != nil {
		rt.DB.Close(rt.logger)
	}
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			rt.logger.Warn("failed to close provider", "error", err)
		}
	}
}
