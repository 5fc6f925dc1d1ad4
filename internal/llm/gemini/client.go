package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

var _ llm.CandidateProvider = (*Client)(nil)

// Config for the Gemini client.
type Config struct {
	APIKey      string // if empty, falls back to env GEMINI_API_KEY
	Model       string // default gemini-2.5-pro
	Temperature float32
	Timeout     time.Duration
}

// Client implements llm.CandidateProvider using Google Gemini.
type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, llm.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)

	return &Client{cfg: cfg, client: client, model: model, logger: logger}, nil
}

// ExtractCandidate sends the OCR text with the candidate contract and decodes the reply.
func (c *Client) ExtractCandidate(ctx context.Context, req llm.CandidateRequest) (llm.Candidate, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	c.logger.Info("llm.extract.start", "provider", "gemini", "model", c.cfg.Model, "text_len", len(req.OCRText))

	prompt := llm.BuildSystemPrompt(req) + "\n\n" + llm.BuildUserPrompt(req)
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("llm.extract.http_error", "provider", "gemini", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Candidate{}, nil, fmt.Errorf("generating content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return llm.Candidate{}, nil, fmt.Errorf("no response from gemini")
	}

	out, content, err := llm.DecodeCandidate(text, c.logger)
	if err != nil {
		return llm.Candidate{}, content, err
	}
	c.logger.Info("llm.extract.ok",
		"provider", "gemini",
		"merchant", out.MerchantName,
		"has_total", out.Total != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// Close closes the Gemini client.
func (c *Client) Close() error {
	return c.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
