package usecase

import (
	"fmt"
	"strings"

	"news-rag/internal/domain"
)

// PromptBuilder renders the three prompt shapes the pipeline needs:
// the bare baseline prompt, the context-augmented prompt, and the
// judge's scoring prompt. Citation indices [n] match the 1-based
// position of each article in the deduplicated, ranked context list,
// the same list callers return alongside the answer, so citations
// stay resolvable.
type PromptBuilder struct {
	maxArticleChars int
}

// NewPromptBuilder creates a builder that caps each article's text in
// the augmented prompt at maxArticleChars characters.
func NewPromptBuilder(maxArticleChars int) *PromptBuilder {
	return &PromptBuilder{maxArticleChars: maxArticleChars}
}

// Baseline returns the query as-is; the baseline path deliberately adds
// no corpus context.
func (b *PromptBuilder) Baseline(query string) string {
	return query
}

// Augmented renders the context-grounded prompt. Each article is
// wrapped in numbered markers and the instructions demand numbered
// citations matching those markers.
func (b *PromptBuilder) Augmented(query string, result domain.RetrievalResult) string {
	var contextItems []string
	for i, match := range result.Articles {
		text := b.capArticle(match.Article.Body)

		var sb strings.Builder
		fmt.Fprintf(&sb, "[ARTICLE %d START | URL: %s | DATE: %s]\n", i+1, match.Article.URL, match.Article.PublishedAt)
		sb.WriteString(text)
		fmt.Fprintf(&sb, "\n[ARTICLE %d END]", i+1)
		contextItems = append(contextItems, sb.String())
	}
	contextBlock := strings.Join(contextItems, "\n\n---\n\n")

	var sb strings.Builder
	sb.WriteString("You are an AI assistant answering questions, leveraging the full text of relevant news articles provided in the context below.\n\n")
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Analyze the full text provided in the \"Context\" section below to answer the \"Question\". Each article's text is clearly marked with [ARTICLE n START | URL: <URL> | DATE: <DATE>] and [ARTICLE n END].\n")
	sb.WriteString("2. Synthesize information across the provided articles if they cover the same topic from different angles.\n")
	sb.WriteString("3. Extract specific details, names, dates, opinions, and arguments directly from the article text.\n")
	sb.WriteString("4. When using information from a specific article, CITE IT using numbered references like [1], [2], [3] corresponding to the article numbers. For example: \"According to reports [1]\" or \"The article states [2]\".\n")
	sb.WriteString("5. If the provided articles are relevant but don't fully answer the question, you may supplement with general knowledge BUT explicitly say you are adding information beyond the provided articles.\n")
	sb.WriteString("6. If the provided articles seem completely irrelevant, state that the context was not helpful and answer from general knowledge.\n")
	sb.WriteString("7. Answer the specific question asked comprehensively, using the depth provided by the full articles.\n\n")
	sb.WriteString("Context:\n---\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer:", query)

	return sb.String()
}

// ContextChars reports the total size of the serialized context block,
// recorded per query by the evaluation harness.
func (b *PromptBuilder) ContextChars(result domain.RetrievalResult) int {
	total := 0
	for _, match := range result.Articles {
		total += len(b.capArticle(match.Article.Body))
	}
	return total
}

func (b *PromptBuilder) capArticle(text string) string {
	if cut, ok := truncateRunes(text, b.maxArticleChars); ok {
		return cut + "..."
	}
	return text
}

// Judge renders the scoring prompt for the evaluation harness. The
// judge grades both responses on a fixed rubric and must reply with
// one JSON object. The retrieval result is summarized so groundedness
// can be judged against the actual sources.
func (b *PromptBuilder) Judge(query, baselineResponse, ragResponse string, result domain.RetrievalResult) string {
	var sb strings.Builder
	sb.WriteString("You are an expert evaluator assessing the quality of two AI-generated answers (Baseline vs. RAG) to a query about historical news events. The RAG response had access to archived news articles.\n\n")
	if len(result.Articles) > 0 {
		sb.WriteString("**Articles provided to the RAG response:**\n")
		for i, match := range result.Articles {
			fmt.Fprintf(&sb, "[%d] %s | %s | %s\n", i+1, match.Article.Title, match.Article.URL, match.Article.PublishedAt)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("**Task:** Evaluate both responses on the criteria below (1=Very Poor, 5=Excellent). Output only a valid JSON object adhering strictly to the specified format. Scores must be integers between 1 and 5.\n\n")
	sb.WriteString("**Criteria:**\n")
	sb.WriteString("1. **Relevance (1-5):** How directly does the response address the specific query?\n")
	sb.WriteString("2. **Factual Accuracy (1-5):** Accuracy of the information about the covered period?\n")
	sb.WriteString("3. **Specificity/Detail (1-5):** Richness in specific details (names, dates, figures)?\n")
	sb.WriteString("4. **Groundedness (RAG only) (1-5):** Does the RAG response seem based on plausible sources? Assign \"N/A\" (as a string) for the baseline.\n")
	sb.WriteString("5. **Temporal Accuracy (1-5):** Does the response correctly stay within the covered timeframe?\n")
	sb.WriteString("6. **Completeness (1-5):** How thoroughly does the response address all aspects of the query?\n")
	sb.WriteString("7. **Coherence/Readability (1-5):** How well-structured and clear is the response?\n")
	sb.WriteString("8. **Lack of Hallucination (1-5):** How free from plausible but false information?\n\n")
	fmt.Fprintf(&sb, "**Query:**\n```text\n%s\n```\n\n", query)
	fmt.Fprintf(&sb, "**Baseline Response:**\n```text\n%s\n```\n\n", baselineResponse)
	fmt.Fprintf(&sb, "**RAG Response:**\n```text\n%s\n```\n\n", ragResponse)
	sb.WriteString("Return your ratings in the exact JSON format below (no extra keys, no comments):\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString("  \"baseline_scores\": {\n")
	sb.WriteString("    \"relevance\": <score_int>,\n")
	sb.WriteString("    \"factual_accuracy\": <score_int>,\n")
	sb.WriteString("    \"specificity\": <score_int>,\n")
	sb.WriteString("    \"temporal_accuracy\": <score_int>,\n")
	sb.WriteString("    \"completeness\": <score_int>,\n")
	sb.WriteString("    \"coherence\": <score_int>,\n")
	sb.WriteString("    \"lack_of_hallucination\": <score_int>\n")
	sb.WriteString("  },\n")
	sb.WriteString("  \"rag_scores\": {\n")
	sb.WriteString("    \"relevance\": <score_int>,\n")
	sb.WriteString("    \"factual_accuracy\": <score_int>,\n")
	sb.WriteString("    \"specificity\": <score_int>,\n")
	sb.WriteString("    \"groundedness_to_source\": <score_int_or_NA_string>,\n")
	sb.WriteString("    \"temporal_accuracy\": <score_int>,\n")
	sb.WriteString("    \"completeness\": <score_int>,\n")
	sb.WriteString("    \"coherence\": <score_int>,\n")
	sb.WriteString("    \"lack_of_hallucination\": <score_int>\n")
	sb.WriteString("  },\n")
	sb.WriteString("  \"comparative_summary\": \"<1-2 sentence comparison>\"\n")
	sb.WriteString("}\n```")

	return sb.String()
}
