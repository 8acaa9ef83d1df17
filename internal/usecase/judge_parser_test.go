package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-rag/internal/usecase"
)

const validVerdictJSON = `{
  "baseline_scores": {
    "relevance": 4, "factual_accuracy": 3, "specificity": 2,
    "temporal_accuracy": 3, "completeness": 3, "coherence": 5,
    "lack_of_hallucination": 4
  },
  "rag_scores": {
    "relevance": 5, "factual_accuracy": 5, "specificity": 5,
    "groundedness_to_source": 5, "temporal_accuracy": 5,
    "completeness": 4, "coherence": 4, "lack_of_hallucination": 5
  },
  "comparative_summary": "RAG wins on detail and grounding."
}`

func TestParseJudgeVerdict_FencedJSON(t *testing.T) {
	raw := "Here is my evaluation:\n\n```json\n" + validVerdictJSON + "\n```\n\nHope that helps."

	verdict, err := usecase.ParseJudgeVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, 4, verdict.BaselineScores.Relevance)
	assert.Equal(t, 5, verdict.RAGScores.FactualAccuracy)
	assert.Equal(t, 5, verdict.RAGScores.Groundedness.Score)
	assert.False(t, verdict.RAGScores.Groundedness.NA)
	assert.Equal(t, "RAG wins on detail and grounding.", verdict.ComparativeSummary)
	assert.Equal(t, raw, verdict.Raw)
}

func TestParseJudgeVerdict_BareJSONWithProse(t *testing.T) {
	raw := "Sure! " + validVerdictJSON + " Let me know if you need anything else."

	verdict, err := usecase.ParseJudgeVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, 5, verdict.BaselineScores.Coherence)
}

func TestParseJudgeVerdict_GroundednessNA(t *testing.T) {
	raw := `{
  "baseline_scores": {"relevance": 3, "factual_accuracy": 3, "specificity": 3,
    "temporal_accuracy": 3, "completeness": 3, "coherence": 3, "lack_of_hallucination": 3},
  "rag_scores": {"relevance": 3, "factual_accuracy": 3, "specificity": 3,
    "groundedness_to_source": "N/A", "temporal_accuracy": 3,
    "completeness": 3, "coherence": 3, "lack_of_hallucination": 3},
  "comparative_summary": "Even."
}`

	verdict, err := usecase.ParseJudgeVerdict(raw)
	require.NoError(t, err)
	assert.True(t, verdict.RAGScores.Groundedness.NA)
}

func TestParseJudgeVerdict_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "I cannot evaluate these responses."},
		{"truncated object", `{"baseline_scores": {"relevance": 4`},
		{"missing rag_scores", `{"baseline_scores": {}, "comparative_summary": "x"}`},
		{"bad groundedness type", `{"baseline_scores": {}, "rag_scores": {"groundedness_to_source": "high"}, "comparative_summary": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecase.ParseJudgeVerdict(tt.raw)
			assert.Error(t, err)
		})
	}
}
