package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/engine"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

func fixed(name string, conf float64, calls *[]string) engine.Step {
	return engine.Step{Name: name, Run: func(context.Context, engine.Request) (entity.ExtractionResult, error) {
		*calls = append(*calls, name)
		return entity.ExtractionResult{Confidence: conf}, nil
	}}
}

func failing(name string, calls *[]string) engine.Step {
	return engine.Step{Name: name, Run: func(context.Context, engine.Request) (entity.ExtractionResult, error) {
		*calls = append(*calls, name)
		return entity.ExtractionResult{}, errors.New("provider unavailable")
	}}
}

func quietRanked(threshold float64, steps ...engine.Step) *engine.Ranked {
	r := engine.NewRanked(threshold, steps...)
	r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return r
}

func TestRanked(t *testing.T) {
	tests := []struct {
		name      string
		steps     func(calls *[]string) []engine.Step
		wantStep  string
		wantConf  float64
		wantCalls []string
	}{
		{
			name: "first confident result stops",
			steps: func(c *[]string) []engine.Step {
				return []engine.Step{fixed("rules", 0.8, c), fixed("rules+llm", 0.95, c)}
			},
			wantStep: "rules", wantConf: 0.8, wantCalls: []string{"rules"},
		},
		{
			name: "falls through to a later step",
			steps: func(c *[]string) []engine.Step {
				return []engine.Step{fixed("rules", 0.4, c), fixed("rules+llm", 0.9, c)}
			},
			wantStep: "rules+llm", wantConf: 0.9, wantCalls: []string{"rules", "rules+llm"},
		},
		{
			name: "errors are skipped",
			steps: func(c *[]string) []engine.Step {
				return []engine.Step{failing("rules+llm", c), fixed("rules", 0.75, c)}
			},
			wantStep: "rules", wantConf: 0.75, wantCalls: []string{"rules+llm", "rules"},
		},
		{
			name: "best result when none is confident",
			steps: func(c *[]string) []engine.Step {
				return []engine.Step{fixed("a", 0.5, c), fixed("b", 0.6, c), fixed("c", 0.55, c)}
			},
			wantStep: "b", wantConf: 0.6, wantCalls: []string{"a", "b", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			res, step, err := quietRanked(0.7, tt.steps(&calls)...).Run(context.Background(), engine.Request{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStep, step)
			assert.Equal(t, tt.wantConf, res.Confidence)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRankedAllFail(t *testing.T) {
	var calls []string
	_, _, err := quietRanked(0.7, failing("x", &calls), failing("y", &calls)).Run(context.Background(), engine.Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInternal)
	assert.Contains(t, err.Error(), "provider unavailable")
}

type stubProvider struct {
	cand llm.Candidate
	err  error
	got  llm.CandidateRequest
}

func (p *stubProvider) ExtractCandidate(_ context.Context, req llm.CandidateRequest) (llm.Candidate, []byte, error) {
	p.got = req
	return p.cand, nil, p.err
}

func TestRankedWithCandidateStep(t *testing.T) {
	e := newEngine(t, engine.DefaultConfig())
	p := &stubProvider{cand: llm.Candidate{MerchantName: "Corner Store", Date: "2024-05-12", Confidence: 0.95}}

	r := quietRanked(0.7, engine.RuleStep(e), engine.CandidateStep(e, p))
	res, step, err := r.Run(context.Background(), engine.Request{Result: scenarioA(), SourceRef: "a.json"})
	require.NoError(t, err)

	// the rule result lacks merchant and date, so the candidate step runs
	assert.Equal(t, "rules+llm", step)
	require.NotNil(t, res.MerchantName)
	assert.Equal(t, "Corner Store", *res.MerchantName)
	assert.Equal(t, "a.json", p.got.SourceHint)
	assert.Equal(t, []string{"en"}, p.got.Languages)
	assert.Contains(t, p.got.OCRText, "TOTAL $222.35")
}
