// Package genai implements the embedding, generation and judge
// capability contracts against the Gemini REST API.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"news-rag/internal/domain"
)

// Embedder calls the batch embedding endpoint. One call embeds the
// whole batch or fails as a whole; callers retry or shrink the batch.
type Embedder struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewEmbedder(baseURL, apiKey, model string, client *http.Client) *Embedder {
	return &Embedder{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  client,
	}
}

type embedContentRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Encode embeds all texts in one batch call, preserving order.
func (e *Embedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	slog.Debug("embed_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model))
	start := time.Now()

	reqBody := batchEmbedRequest{Requests: make([]embedContentRequest, len(texts))}
	for i, text := range texts {
		reqBody.Requests[i] = embedContentRequest{
			Model:   "models/" + e.Model,
			Content: embedContent{Parts: []embedPart{{Text: text}}},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents?key=%s", e.BaseURL, e.Model, e.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		slog.Error("embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to call embedding endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Error("embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
	}

	var respBody batchEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(respBody.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(respBody.Embeddings))
	}

	vectors := make([][]float32, len(respBody.Embeddings))
	for i, emb := range respBody.Embeddings {
		if len(emb.Values) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		vectors[i] = emb.Values
	}

	slog.Debug("embed_completed",
		slog.Int("embedding_count", len(vectors)),
		slog.Duration("elapsed", time.Since(start)))

	return vectors, nil
}

func (e *Embedder) Version() string {
	return e.Model
}

var _ domain.VectorEncoder = (*Embedder)(nil)
