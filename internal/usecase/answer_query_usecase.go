package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"news-rag/internal/domain"
)

const noContextNote = "(No relevant archived articles found to augment response.)"

const chunkSummaryChars = 500

// ChunkSummary is the per-article trace returned to API callers:
// a preview of the matched article rather than its full body.
type ChunkSummary struct {
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	Title       string  `json:"title"`
	Date        string  `json:"date"`
	ArticleID   string  `json:"article_id"`
	MinDistance float64 `json:"min_distance"`
}

// AnswerQueryOutput carries both generation paths plus the retrieval
// trace for one interactive query.
type AnswerQueryOutput struct {
	StandardResponse string
	RAGResponse      string
	RetrievedChunks  []ChunkSummary
	Cached           bool
}

// AnswerQueryUsecase serves interactive queries: retrieve context, run
// both generation paths concurrently and return them side by side.
// Identical queries within the cache TTL are answered from cache
// without touching the LLM.
type AnswerQueryUsecase interface {
	Execute(ctx context.Context, query string) (*AnswerQueryOutput, error)
}

type answerQueryUsecase struct {
	retrieve     RetrieveArticlesUsecase
	generatePair GeneratePairUsecase
	prompts      *PromptBuilder
	cache        *expirable.LRU[string, *AnswerQueryOutput]
	logger       *slog.Logger
}

func NewAnswerQueryUsecase(
	retrieve RetrieveArticlesUsecase,
	generatePair GeneratePairUsecase,
	prompts *PromptBuilder,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) AnswerQueryUsecase {
	var cache *expirable.LRU[string, *AnswerQueryOutput]
	if cacheSize > 0 {
		cache = expirable.NewLRU[string, *AnswerQueryOutput](cacheSize, nil, cacheTTL)
	}
	return &answerQueryUsecase{
		retrieve:     retrieve,
		generatePair: generatePair,
		prompts:      prompts,
		cache:        cache,
		logger:       logger,
	}
}

func (u *answerQueryUsecase) Execute(ctx context.Context, query string) (*AnswerQueryOutput, error) {
	if u.cache != nil {
		if cached, ok := u.cache.Get(query); ok {
			u.logger.Info("answer_cache_hit", slog.String("query", truncateForLog(query)))
			hit := *cached
			hit.Cached = true
			return &hit, nil
		}
	}

	retrieval, err := u.retrieve.Execute(ctx, RetrieveArticlesInput{Query: query})
	if err != nil {
		// A retrieval failure degrades the RAG path to an unaugmented
		// generation instead of failing the request.
		u.logger.Warn("retrieval_failed_degrading",
			slog.String("query", truncateForLog(query)),
			slog.String("error", err.Error()))
		retrieval = &domain.RetrievalResult{}
	}

	ragPrompt := u.prompts.Augmented(query, *retrieval)
	noContext := len(retrieval.Articles) == 0
	if noContext {
		// Nothing to ground on: run the RAG path as a second plain
		// generation and label it so callers can tell.
		ragPrompt = u.prompts.Baseline(query)
	}

	pair := u.generatePair.Execute(ctx, GeneratePairInput{
		BaselinePrompt: u.prompts.Baseline(query),
		RAGPrompt:      ragPrompt,
	})
	if pair.Baseline.Failed() && pair.RAG.Failed() {
		return nil, fmt.Errorf("both generation paths failed: baseline: %s; rag: %s",
			pair.Baseline.ErrorDetail, pair.RAG.ErrorDetail)
	}

	out := &AnswerQueryOutput{
		StandardResponse: pair.Baseline.Text,
		RAGResponse:      pair.RAG.Text,
	}
	if pair.Baseline.Failed() {
		out.StandardResponse = "ERROR: " + pair.Baseline.ErrorDetail
	}
	if pair.RAG.Failed() {
		out.RAGResponse = "ERROR: " + pair.RAG.ErrorDetail
	} else if noContext {
		out.RAGResponse = noContextNote + "\n\n" + pair.RAG.Text
	}

	for _, match := range retrieval.Articles {
		preview := match.Article.Body
		if cut, ok := truncateRunes(preview, chunkSummaryChars); ok {
			preview = cut + "..."
		}
		out.RetrievedChunks = append(out.RetrievedChunks, ChunkSummary{
			Text:        preview,
			Source:      match.Article.URL,
			Title:       match.Article.Title,
			Date:        match.Article.PublishedAt,
			ArticleID:   match.Article.ID,
			MinDistance: match.MinDistance,
		})
	}

	// Only fully successful answers are worth caching.
	if u.cache != nil && !pair.Baseline.Failed() && !pair.RAG.Failed() {
		u.cache.Add(query, out)
	}
	return out, nil
}
