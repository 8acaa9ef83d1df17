package domain

import "context"

// VectorEncoder defines the interface for generating embeddings.
// Encode is batched and order-preserving: result i corresponds to
// texts[i]. A failure anywhere in the batch fails the whole call so
// that no item is silently dropped.
//
// The same encoder (model and parameters) must be used to embed chunks
// at build time and queries at search time. Distances are only
// meaningful within one embedding space, so the index records the
// encoder version at build and the retriever checks it at load.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
