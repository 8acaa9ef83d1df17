package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"news-rag/internal/domain"
)

// Sections excluded from indexing. Guardian article ids embed the
// section path, so matching on the id covers them.
var skipSections = []string{"fashion", "food", "travel", "lifeandstyle", "books", "film", "stage"}

const minArticleChars = 500

// IndexCorpusInput carries one corpus snapshot into a build.
type IndexCorpusInput struct {
	Articles []domain.Article
}

// IndexCorpusOutput summarizes a finished build.
type IndexCorpusOutput struct {
	ArticlesIndexed  int
	ArticlesFiltered int
	ChunkCount       int
	CorpusHash       string
}

// IndexCorpusUsecase runs the offline build: filter the corpus, chunk
// every surviving article, embed the chunks in concurrent batches and
// seal the index with its build metadata.
type IndexCorpusUsecase interface {
	Execute(ctx context.Context, input IndexCorpusInput) (*IndexCorpusOutput, error)
}

type indexCorpusUsecase struct {
	builder    domain.IndexBuilder
	encoder    domain.VectorEncoder
	chunker    domain.Chunker
	dimensions int
	batchSize  int
	workers    int
	retries    int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewIndexCorpusUsecase(
	builder domain.IndexBuilder,
	encoder domain.VectorEncoder,
	chunker domain.Chunker,
	dimensions, batchSize, workers, retries int,
	backoff time.Duration,
	logger *slog.Logger,
) IndexCorpusUsecase {
	return &indexCorpusUsecase{
		builder:    builder,
		encoder:    encoder,
		chunker:    chunker,
		dimensions: dimensions,
		batchSize:  batchSize,
		workers:    workers,
		retries:    retries,
		backoff:    backoff,
		logger:     logger,
	}
}

func (u *indexCorpusUsecase) Execute(ctx context.Context, input IndexCorpusInput) (*IndexCorpusOutput, error) {
	start := time.Now()

	kept := filterArticles(input.Articles)
	filtered := len(input.Articles) - len(kept)
	u.logger.Info("corpus_filtered",
		slog.Int("input", len(input.Articles)),
		slog.Int("kept", len(kept)),
		slog.Int("dropped", filtered))
	if len(kept) == 0 {
		return nil, fmt.Errorf("no articles left after filtering")
	}

	if err := u.builder.AddArticles(ctx, kept); err != nil {
		return nil, fmt.Errorf("failed to store articles: %w", err)
	}

	var chunks []domain.Chunk
	for _, article := range kept {
		cs, err := u.chunker.Chunk(article)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk article %s: %w", article.ID, err)
		}
		chunks = append(chunks, cs...)
	}
	u.logger.Info("corpus_chunked", slog.Int("chunks", len(chunks)))

	if err := u.embedAndStore(ctx, chunks); err != nil {
		return nil, err
	}

	hash := corpusHash(kept)
	meta := domain.IndexMeta{
		Dimensions:     u.dimensions,
		EncoderVersion: u.encoder.Version(),
		ChunkSize:      u.chunker.Size(),
		ChunkOverlap:   u.chunker.Overlap(),
		ChunkCount:     len(chunks),
		ArticleCount:   len(kept),
		CorpusHash:     hash,
		BuiltAt:        time.Now().UTC(),
	}
	if err := u.builder.Seal(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to seal index: %w", err)
	}

	u.logger.Info("index_built",
		slog.Int("articles", len(kept)),
		slog.Int("chunks", len(chunks)),
		slog.String("corpus_hash", hash),
		slog.Duration("elapsed", time.Since(start)))

	return &IndexCorpusOutput{
		ArticlesIndexed:  len(kept),
		ArticlesFiltered: filtered,
		ChunkCount:       len(chunks),
		CorpusHash:       hash,
	}, nil
}

// embedAndStore embeds chunks batch by batch with a bounded worker
// pool. Batches are independent, so worker errors cancel the group and
// the first one wins.
func (u *indexCorpusUsecase) embedAndStore(ctx context.Context, chunks []domain.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	var mu sync.Mutex // guards builder writes
	for startIdx := 0; startIdx < len(chunks); startIdx += u.batchSize {
		end := startIdx + u.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[startIdx:end]

		g.Go(func() error {
			vectors, err := u.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if err := u.builder.AddChunks(gctx, batch, vectors); err != nil {
				return fmt.Errorf("failed to store batch of %d chunks: %w", len(batch), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// embedBatch retries a failed batch with backoff, halving the batch on
// each retry. Oversized payloads are the usual failure, so shrinking
// recovers more often than repeating the same request.
func (u *indexCorpusUsecase) embedBatch(ctx context.Context, batch []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	size := len(texts)
	var lastErr error
	for attempt := 0; attempt <= u.retries; attempt++ {
		if attempt > 0 {
			u.logger.Warn("embed_batch_retry",
				slog.Int("attempt", attempt),
				slog.Int("sub_batch", size),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * u.backoff):
			}
		}

		vectors, err := u.encodeInParts(ctx, texts, size)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if size > 1 {
			size = (size + 1) / 2
		}
	}
	return nil, fmt.Errorf("embedding batch failed after %d retries: %w", u.retries, lastErr)
}

// encodeInParts embeds texts in sequential sub-batches of at most size
// items so the whole batch either lands or fails.
func (u *indexCorpusUsecase) encodeInParts(ctx context.Context, texts []string, size int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		part, err := u.encoder.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(part) != end-start {
			return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(part), end-start)
		}
		vectors = append(vectors, part...)
	}
	return vectors, nil
}

func filterArticles(articles []domain.Article) []domain.Article {
	var kept []domain.Article
	for _, a := range articles {
		if len(a.Body) <= minArticleChars {
			continue
		}
		id := strings.ToLower(a.ID)
		skip := false
		for _, section := range skipSections {
			if strings.Contains(id, section) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, a)
		}
	}
	return kept
}

// corpusHash fingerprints the filtered corpus so a served index can be
// traced back to the exact snapshot it was built from.
func corpusHash(articles []domain.Article) string {
	h := sha256.New()
	for _, a := range articles {
		h.Write([]byte(a.ID))
		h.Write([]byte{0})
		h.Write([]byte(a.Body))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
