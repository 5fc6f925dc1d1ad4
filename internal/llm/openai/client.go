package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

var _ llm.CandidateProvider = (*Client)(nil)

// ExtractCandidate implements llm.CandidateProvider using text-only chat/completions in JSON mode.
func (c *Client) ExtractCandidate(ctx context.Context, req llm.CandidateRequest) (llm.Candidate, []byte, error) {
	if c.cfg.APIKey == "" {
		return llm.Candidate{}, nil, llm.ErrMissingAPIKey
	}
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"languages", req.Languages,
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildCandidateJSONSchema())},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error", "provider", "openai", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Candidate{}, raw, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error", "provider", "openai", "error", err, "raw_bytes", len(raw))
		return llm.Candidate{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return llm.Candidate{}, raw, fmt.Errorf("no choices in openai response")
	}

	out, content, err := llm.DecodeCandidate(cc.Choices[0].Message.Content, c.logger)
	if err != nil {
		return llm.Candidate{}, content, err
	}

	c.logger.Info("llm.extract.ok",
		"provider", "openai",
		"merchant", out.MerchantName,
		"date", out.Date,
		"has_total", out.Total != nil,
		"currency", out.Currency,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
