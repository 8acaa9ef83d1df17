package genai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"news-rag/internal/adapter/genai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_Encode_OrderPreserving(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Requests []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)
		assert.Equal(t, "first", req.Requests[0].Content.Parts[0].Text)
		assert.Equal(t, "second", req.Requests[1].Content.Parts[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings": [{"values": [1, 0]}, {"values": [0, 1]}]}`))
	}))
	defer server.Close()

	embedder := genai.NewEmbedder(server.URL, "test-key", "text-embedding-004", server.Client())

	vectors, err := embedder.Encode(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestEmbedder_Encode_WholeBatchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	embedder := genai.NewEmbedder(server.URL, "test-key", "text-embedding-004", server.Client())

	_, err := embedder.Encode(context.Background(), []string{"a", "b", "c"})
	assert.Error(t, err)
}

func TestEmbedder_Encode_CountMismatchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": [{"values": [1, 0]}]}`))
	}))
	defer server.Close()

	embedder := genai.NewEmbedder(server.URL, "test-key", "text-embedding-004", server.Client())

	_, err := embedder.Encode(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedder_Encode_EmptyInput(t *testing.T) {
	embedder := genai.NewEmbedder("http://unused", "test-key", "text-embedding-004", http.DefaultClient)

	vectors, err := embedder.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedder_Version(t *testing.T) {
	embedder := genai.NewEmbedder("http://unused", "test-key", "text-embedding-004", http.DefaultClient)
	assert.Equal(t, "text-embedding-004", embedder.Version())
}
