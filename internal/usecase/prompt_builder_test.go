package usecase_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"news-rag/internal/domain"
	"news-rag/internal/usecase"
)

func sampleResult() domain.RetrievalResult {
	return domain.RetrievalResult{
		Articles: []domain.ArticleMatch{
			{
				Article: domain.Article{
					ID:          "art-1",
					Title:       "Flood warnings issued",
					URL:         "https://example.com/flood",
					PublishedAt: "2015-12-05",
					Body:        "Storm Desmond brought record rainfall to Cumbria.",
				},
				MinDistance: 0.12,
				ChunkHits:   3,
			},
			{
				Article: domain.Article{
					ID:          "art-2",
					Title:       "Climate summit closes",
					URL:         "https://example.com/summit",
					PublishedAt: "2015-12-12",
					Body:        "Delegates in Paris reached a landmark agreement.",
				},
				MinDistance: 0.31,
				ChunkHits:   1,
			},
		},
	}
}

func TestPromptBuilder_Baseline(t *testing.T) {
	b := usecase.NewPromptBuilder(100)
	assert.Equal(t, "what happened in December 2015?", b.Baseline("what happened in December 2015?"))
}

func TestPromptBuilder_Augmented(t *testing.T) {
	b := usecase.NewPromptBuilder(0)
	prompt := b.Augmented("what happened?", sampleResult())

	assert.Contains(t, prompt, "[ARTICLE 1 START | URL: https://example.com/flood | DATE: 2015-12-05]")
	assert.Contains(t, prompt, "[ARTICLE 1 END]")
	assert.Contains(t, prompt, "[ARTICLE 2 START | URL: https://example.com/summit | DATE: 2015-12-12]")
	assert.Contains(t, prompt, "Storm Desmond brought record rainfall to Cumbria.")
	assert.Contains(t, prompt, "Delegates in Paris reached a landmark agreement.")
	assert.Contains(t, prompt, "CITE IT using numbered references like [1], [2], [3]")
	assert.Contains(t, prompt, "Question: what happened?")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))

	// Marker order must follow the ranked context list.
	assert.Less(t,
		strings.Index(prompt, "[ARTICLE 1 START"),
		strings.Index(prompt, "[ARTICLE 2 START"))
}

func TestPromptBuilder_Augmented_TruncatesLongArticles(t *testing.T) {
	b := usecase.NewPromptBuilder(10)
	result := sampleResult()
	prompt := b.Augmented("q", result)

	assert.Contains(t, prompt, result.Articles[0].Article.Body[:10]+"...")
	assert.NotContains(t, prompt, result.Articles[0].Article.Body)
}

func TestPromptBuilder_Augmented_TruncatesOnRuneBoundary(t *testing.T) {
	b := usecase.NewPromptBuilder(5)
	result := sampleResult()
	result.Articles[0].Article.Body = "日本語のニュース記事"

	prompt := b.Augmented("q", result)

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, "日本語のニ...")
	assert.NotContains(t, prompt, "日本語のニュ")
}

func TestPromptBuilder_ContextChars(t *testing.T) {
	result := sampleResult()
	full := len(result.Articles[0].Article.Body) + len(result.Articles[1].Article.Body)

	assert.Equal(t, full, usecase.NewPromptBuilder(0).ContextChars(result))
	// Capped articles count the cap plus the ellipsis.
	assert.Equal(t, 13+13, usecase.NewPromptBuilder(10).ContextChars(result))
}

func TestPromptBuilder_Judge(t *testing.T) {
	b := usecase.NewPromptBuilder(100)
	prompt := b.Judge("the query", "baseline says", "rag says", sampleResult())

	assert.Contains(t, prompt, "[1] Flood warnings issued | https://example.com/flood | 2015-12-05")
	assert.Contains(t, prompt, "the query")
	assert.Contains(t, prompt, "baseline says")
	assert.Contains(t, prompt, "rag says")
	assert.Contains(t, prompt, "\"baseline_scores\"")
	assert.Contains(t, prompt, "\"rag_scores\"")
	assert.Contains(t, prompt, "\"groundedness_to_source\"")
	assert.Contains(t, prompt, "\"comparative_summary\"")
	assert.Contains(t, prompt, "Lack of Hallucination")
}
