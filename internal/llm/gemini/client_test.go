package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("```json\n{\"total\": "),
				genai.Text("18.59}\n```"),
			}},
		}},
	}
	text := responseText(resp)
	assert.Equal(t, "```json\n{\"total\": 18.59}\n```", text)

	cand, _, err := llm.DecodeCandidate(text, nil)
	require.NoError(t, err)
	require.NotNil(t, cand.Total)
	assert.Equal(t, 18.59, *cand.Total)

	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}
