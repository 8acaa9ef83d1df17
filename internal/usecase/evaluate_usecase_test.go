package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"news-rag/internal/domain"
	"news-rag/internal/usecase"
)

// mockRetrieveUsecase mocks usecase.RetrieveArticlesUsecase
type mockRetrieveUsecase struct {
	mock.Mock
}

func (m *mockRetrieveUsecase) Execute(ctx context.Context, input usecase.RetrieveArticlesInput) (*domain.RetrievalResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrievalResult), args.Error(1)
}

// mockGeneratePairUsecase mocks usecase.GeneratePairUsecase
type mockGeneratePairUsecase struct {
	mock.Mock
}

func (m *mockGeneratePairUsecase) Execute(ctx context.Context, input usecase.GeneratePairInput) usecase.GeneratePairOutput {
	args := m.Called(ctx, input)
	return args.Get(0).(usecase.GeneratePairOutput)
}

// memorySink collects records in order.
type memorySink struct {
	records []usecase.EvaluationRecord
}

func (s *memorySink) Write(_ context.Context, record usecase.EvaluationRecord) error {
	s.records = append(s.records, record)
	return nil
}

func successPair(baseline, rag string) usecase.GeneratePairOutput {
	return usecase.GeneratePairOutput{
		Baseline: usecase.GenerationRecord{Kind: usecase.KindBaseline, Text: baseline, Duration: 100 * time.Millisecond},
		RAG:      usecase.GenerationRecord{Kind: usecase.KindRAG, Text: rag, Duration: 150 * time.Millisecond},
	}
}

func TestEvaluateUsecase_Execute_JudgeFailureKeepsPartialRecord(t *testing.T) {
	mockRetrieve := new(mockRetrieveUsecase)
	mockPair := new(mockGeneratePairUsecase)
	sink := &memorySink{}

	retrieval := &domain.RetrievalResult{
		Articles: []domain.ArticleMatch{
			{Article: domain.Article{ID: "art-1", Title: "T1", Body: "body one"}, MinDistance: 0.2, ChunkHits: 2},
		},
	}
	mockRetrieve.On("Execute", mock.Anything, mock.Anything).Return(retrieval, nil)
	mockPair.On("Execute", mock.Anything, mock.Anything).Return(successPair("baseline text here", "rag text [1] and [2]"))

	// Query q2's judge call fails; q1 and q3 parse fine.
	verdictText := "```json\n" + validVerdictJSON + "\n```"
	flakyJudge := &flakyLLM{failOn: 2, text: verdictText}
	uc := usecase.NewEvaluateUsecase(
		mockRetrieve, mockPair, flakyJudge,
		usecase.NewPromptBuilder(1000), sink,
		0, time.Second, 10000, 1024, testLogger())

	queries := []usecase.TestQuery{
		{ID: "q1", Query: "first question"},
		{ID: "q2", Query: "second question"},
		{ID: "q3", Query: "third question"},
	}
	records, err := uc.Execute(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Order preserved, one record per query.
	assert.Equal(t, "q1", records[0].QueryID)
	assert.Equal(t, "q2", records[1].QueryID)
	assert.Equal(t, "q3", records[2].QueryID)
	assert.Equal(t, records[0].RunID, records[2].RunID)

	// q2 keeps its generation data despite the judge failure.
	failed := records[1]
	assert.Nil(t, failed.Judge)
	assert.NotEmpty(t, failed.JudgeError)
	assert.Equal(t, "rag text [1] and [2]", failed.RAGResponse)
	assert.Equal(t, 2, failed.RAGCitationCount)
	assert.Equal(t, 3, failed.BaselineWordCount)
	assert.Equal(t, 1, failed.RetrievedArticles)

	require.NotNil(t, records[0].Judge)
	assert.Equal(t, 5, records[0].Judge.RAGScores.FactualAccuracy)

	// Sink saw every record as it completed.
	assert.Len(t, sink.records, 3)
}

func TestEvaluateUsecase_Execute_GenerationFailureRecorded(t *testing.T) {
	mockRetrieve := new(mockRetrieveUsecase)
	mockPair := new(mockGeneratePairUsecase)
	mockJudge := new(mockLLMClient)

	mockRetrieve.On("Execute", mock.Anything, mock.Anything).Return(&domain.RetrievalResult{}, nil)
	mockPair.On("Execute", mock.Anything, mock.Anything).Return(usecase.GeneratePairOutput{
		Baseline: usecase.GenerationRecord{
			Kind:        usecase.KindBaseline,
			ErrorTag:    domain.GenerationErrSafetyFiltered,
			ErrorDetail: "blocked by safety filter",
		},
		RAG: usecase.GenerationRecord{Kind: usecase.KindRAG, Text: "fine [1]"},
	})
	mockJudge.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: validVerdictJSON, Done: true}, nil)

	uc := usecase.NewEvaluateUsecase(
		mockRetrieve, mockPair, mockJudge,
		usecase.NewPromptBuilder(1000), nil,
		0, time.Second, 10000, 1024, testLogger())

	records, err := uc.Execute(context.Background(), []usecase.TestQuery{{ID: "q1", Query: "q"}})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, string(domain.GenerationErrSafetyFiltered), rec.BaselineErrorTag)
	assert.True(t, strings.HasPrefix(rec.BaselineResponse, "ERROR: "))
	assert.Zero(t, rec.BaselineWordCount)
	assert.Empty(t, rec.RAGErrorTag)

	// The judge still ran, over the error placeholder text.
	mockJudge.AssertCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateUsecase_Execute_TruncatesJudgeInput(t *testing.T) {
	mockRetrieve := new(mockRetrieveUsecase)
	mockPair := new(mockGeneratePairUsecase)
	mockJudge := new(mockLLMClient)

	longAnswer := strings.Repeat("x", 500)
	mockRetrieve.On("Execute", mock.Anything, mock.Anything).Return(&domain.RetrievalResult{}, nil)
	mockPair.On("Execute", mock.Anything, mock.Anything).Return(successPair(longAnswer, longAnswer))

	var judgePrompt string
	mockJudge.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { judgePrompt = args.String(1) }).
		Return(&domain.LLMResponse{Text: validVerdictJSON, Done: true}, nil)

	uc := usecase.NewEvaluateUsecase(
		mockRetrieve, mockPair, mockJudge,
		usecase.NewPromptBuilder(1000), nil,
		0, time.Second, 100, 1024, testLogger())

	_, err := uc.Execute(context.Background(), []usecase.TestQuery{{ID: "q1", Query: "q"}})
	require.NoError(t, err)

	assert.Contains(t, judgePrompt, strings.Repeat("x", 100)+"... [truncated]")
	assert.NotContains(t, judgePrompt, strings.Repeat("x", 101))
}

func TestEvaluateUsecase_Execute_SkipsEmptyQueries(t *testing.T) {
	mockRetrieve := new(mockRetrieveUsecase)
	mockPair := new(mockGeneratePairUsecase)
	mockJudge := new(mockLLMClient)

	mockRetrieve.On("Execute", mock.Anything, mock.Anything).Return(&domain.RetrievalResult{}, nil)
	mockPair.On("Execute", mock.Anything, mock.Anything).Return(successPair("a", "b"))
	mockJudge.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: validVerdictJSON, Done: true}, nil)

	uc := usecase.NewEvaluateUsecase(
		mockRetrieve, mockPair, mockJudge,
		usecase.NewPromptBuilder(1000), nil,
		0, time.Second, 10000, 1024, testLogger())

	records, err := uc.Execute(context.Background(), []usecase.TestQuery{
		{ID: "q1", Query: "real"},
		{ID: "q2", Query: "   "},
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// flakyLLM fails its Nth Generate call and succeeds otherwise.
type flakyLLM struct {
	failOn int
	calls  int
	text   string
}

func (l *flakyLLM) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	l.calls++
	if l.calls == l.failOn {
		return nil, &domain.GenerationError{Tag: domain.GenerationErrTransport, Cause: context.DeadlineExceeded}
	}
	return &domain.LLMResponse{Text: l.text, Done: true}, nil
}

func (l *flakyLLM) Version() string { return "flaky" }
