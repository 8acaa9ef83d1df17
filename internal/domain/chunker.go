package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunk represents a bounded, offset-tracked window of an article's
// body. Offsets are rune offsets into the normalized body so that
// adjacent chunks can be stitched back together exactly.
type Chunk struct {
	ID        string // stable hash of (article id, start, end)
	ArticleID string
	Ordinal   int // sequence number within the article (0-indexed)
	Text      string
	Start     int // inclusive rune offset
	End       int // exclusive rune offset
}

// Chunker splits an article body into chunks.
type Chunker interface {
	Chunk(article Article) ([]Chunk, error)
	Size() int
	Overlap() int
}

type slidingChunker struct {
	size    int
	overlap int
}

// NewSlidingChunker creates a chunker producing fixed-size windows with
// backward-looking overlap. The overlap must be smaller than the size,
// otherwise the window could never advance.
func NewSlidingChunker(size, overlap int) (Chunker, error) {
	if size <= 0 {
		return nil, &ConfigError{Field: "chunk_size", Reason: fmt.Sprintf("must be positive, got %d", size)}
	}
	if overlap < 0 || overlap >= size {
		return nil, &ConfigError{Field: "chunk_overlap", Reason: fmt.Sprintf("must be in [0, size), got %d with size %d", overlap, size)}
	}
	return &slidingChunker{size: size, overlap: overlap}, nil
}

func (c *slidingChunker) Size() int    { return c.size }
func (c *slidingChunker) Overlap() int { return c.overlap }

// Chunk windows the normalized article body. The same article and the
// same parameters always yield the same boundaries and the same ids.
// An article shorter than the chunk size yields exactly one chunk
// covering the whole text.
func (c *slidingChunker) Chunk(article Article) ([]Chunk, error) {
	normalized := normalizeNewlines(article.Body)
	runes := []rune(normalized)
	if len(runes) == 0 {
		return nil, nil
	}

	step := c.size - c.overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			ID:        chunkID(article.ID, start, end),
			ArticleID: article.ID,
			Ordinal:   len(chunks),
			Text:      string(runes[start:end]),
			Start:     start,
			End:       end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

func chunkID(articleID string, start, end int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", articleID, start, end)))
	return hex.EncodeToString(sum[:])
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
