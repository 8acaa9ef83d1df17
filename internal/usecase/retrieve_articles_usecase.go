package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"news-rag/internal/domain"
)

// RetrieveArticlesInput defines the parameters of one retrieval.
// Zero values fall back to the configured defaults.
type RetrieveArticlesInput struct {
	Query     string
	KChunks   int
	KArticles int
}

// RetrieveArticlesUsecase embeds a query, searches the vector index and
// aggregates chunk hits into a ranked, per-article-deduplicated
// context.
type RetrieveArticlesUsecase interface {
	Execute(ctx context.Context, input RetrieveArticlesInput) (*domain.RetrievalResult, error)
}

type retrieveArticlesUsecase struct {
	index     domain.VectorIndex
	encoder   domain.VectorEncoder
	kChunks   int
	kArticles int
	logger    *slog.Logger
}

// NewRetrieveArticlesUsecase wires the retriever over a loaded index.
// It refuses an encoder whose version differs from the one the index
// was built with: distances across embedding spaces are meaningless.
func NewRetrieveArticlesUsecase(
	index domain.VectorIndex,
	encoder domain.VectorEncoder,
	kChunks, kArticles int,
	logger *slog.Logger,
) (RetrieveArticlesUsecase, error) {
	if built := index.Meta().EncoderVersion; built != "" && built != encoder.Version() {
		return nil, &domain.ConfigError{
			Field:  "embedding_model",
			Reason: fmt.Sprintf("index was built with encoder %q but %q is configured", built, encoder.Version()),
		}
	}
	return &retrieveArticlesUsecase{
		index:     index,
		encoder:   encoder,
		kChunks:   kChunks,
		kArticles: kArticles,
		logger:    logger,
	}, nil
}

func (u *retrieveArticlesUsecase) Execute(ctx context.Context, input RetrieveArticlesInput) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, fmt.Errorf("query is empty")
	}

	kChunks := input.KChunks
	if kChunks <= 0 {
		kChunks = u.kChunks
	}
	kArticles := input.KArticles
	if kArticles <= 0 {
		kArticles = u.kArticles
	}

	start := time.Now()

	// 1. Embed the query.
	vectors, err := u.encoder.Encode(ctx, []string{input.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}

	// 2. Nearest chunks.
	hits, err := u.index.Search(ctx, vectors[0], kChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if len(hits) == 0 {
		u.logger.Info("retrieval_empty", slog.String("query", truncateForLog(input.Query)))
		return &domain.RetrievalResult{}, nil
	}

	// 3. Group hits by article, keeping the best distance per article.
	type articleAgg struct {
		minDistance float64
		hitCount    int
	}
	agg := make(map[string]*articleAgg)
	for _, hit := range hits {
		a, ok := agg[hit.ArticleID]
		if !ok {
			agg[hit.ArticleID] = &articleAgg{minDistance: hit.Distance, hitCount: 1}
			continue
		}
		a.hitCount++
		if hit.Distance < a.minDistance {
			a.minDistance = hit.Distance
		}
	}

	// 4. Rank articles: distance ascending, ties by article id.
	ids := make([]string, 0, len(agg))
	for id := range agg {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := agg[ids[i]].minDistance, agg[ids[j]].minDistance
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > kArticles {
		ids = ids[:kArticles]
	}

	// 5. Attach article-level context. Showing only the matched chunk
	// loses discourse context for the generator, so the whole article
	// record rides along (the prompt builder caps its length).
	articles, err := u.index.GetArticles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve articles: %w", err)
	}

	result := &domain.RetrievalResult{}
	for _, id := range ids {
		article, ok := articles[id]
		if !ok {
			u.logger.Warn("article_lookup_miss", slog.String("article_id", id))
			continue
		}
		result.Articles = append(result.Articles, domain.ArticleMatch{
			Article:     article,
			MinDistance: agg[id].minDistance,
			ChunkHits:   agg[id].hitCount,
		})
	}

	u.logger.Info("retrieval_completed",
		slog.Int("chunk_hits", len(hits)),
		slog.Int("articles", len(result.Articles)),
		slog.Duration("elapsed", time.Since(start)))

	return result, nil
}

func truncateForLog(s string) string {
	if cut, ok := truncateRunes(s, 100); ok {
		return cut + "..."
	}
	return s
}

// truncateRunes shortens s to at most limit runes, cutting on a rune
// boundary so multibyte characters are never split. The second return
// reports whether anything was cut; limit <= 0 means no limit.
func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}
