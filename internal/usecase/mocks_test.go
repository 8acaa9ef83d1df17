package usecase_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"news-rag/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockVectorEncoder mocks domain.VectorEncoder
type mockVectorEncoder struct {
	mock.Mock
	version string
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockVectorEncoder) Version() string {
	if m.version != "" {
		return m.version
	}
	return "test-embedder"
}

// mockVectorIndex mocks domain.VectorIndex
type mockVectorIndex struct {
	mock.Mock
	meta domain.IndexMeta
}

func (m *mockVectorIndex) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievalHit, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalHit), args.Error(1)
}

func (m *mockVectorIndex) GetArticles(ctx context.Context, ids []string) (map[string]domain.Article, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Article), args.Error(1)
}

func (m *mockVectorIndex) Meta() domain.IndexMeta {
	return m.meta
}

// mockLLMClient mocks domain.LLMClient
type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "test-llm"
}
