package domain

import (
	"context"
	"time"
)

// RetrievalHit is one nearest-neighbor result from the vector index,
// already resolved to its owning article. Lower distance means more
// similar.
type RetrievalHit struct {
	ChunkID   string
	ArticleID string
	Distance  float64
}

// ArticleMatch is one distinct article surfaced by retrieval, ranked by
// the smallest distance among its matched chunks.
type ArticleMatch struct {
	Article     Article
	MinDistance float64
	ChunkHits   int // number of chunks of this article in the hit set
}

// RetrievalResult is an ordered, per-article-deduplicated retrieval
// outcome. Articles are sorted by MinDistance ascending, ties broken by
// article id.
type RetrievalResult struct {
	Articles []ArticleMatch
}

// IndexMeta describes the build the index file was produced by. The
// retriever uses it to reject an encoder mismatch before serving.
type IndexMeta struct {
	Dimensions     int
	EncoderVersion string
	ChunkSize      int
	ChunkOverlap   int
	ChunkCount     int
	ArticleCount   int
	CorpusHash     string
	BuiltAt        time.Time
}

// VectorIndex is the read-only serving handle over the built index and
// its chunk lookup table. Implementations must be safe for concurrent
// readers; nothing mutates the index at query time.
type VectorIndex interface {
	// Search returns the k nearest chunks ordered ascending by
	// distance. If the index holds fewer than k vectors it returns all
	// of them; an empty index returns no hits and no error.
	Search(ctx context.Context, vector []float32, k int) ([]RetrievalHit, error)

	// GetArticles resolves article ids to full article records.
	GetArticles(ctx context.Context, ids []string) (map[string]Article, error)

	Meta() IndexMeta
}

// IndexBuilder is the write side used by the offline build job. The
// index is built once per corpus snapshot and sealed with its metadata.
type IndexBuilder interface {
	AddArticles(ctx context.Context, articles []Article) error
	AddChunks(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Seal(ctx context.Context, meta IndexMeta) error
}
