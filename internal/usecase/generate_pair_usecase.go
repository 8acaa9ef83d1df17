package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"news-rag/internal/domain"
)

// Generation kinds as recorded in results and API responses.
const (
	KindBaseline = "baseline"
	KindRAG      = "rag"
)

// GenerationRecord captures one generation path's outcome. A failed
// path carries its error tag and detail instead of text; the other
// path is unaffected.
type GenerationRecord struct {
	Kind        string
	Text        string
	Duration    time.Duration
	ErrorTag    domain.GenerationErrorTag
	ErrorDetail string
}

// Failed reports whether this path produced an error instead of text.
func (r GenerationRecord) Failed() bool {
	return r.ErrorTag != ""
}

// GeneratePairInput carries the two prompts of one query. The RAG
// prompt is already context-augmented by the caller.
type GeneratePairInput struct {
	BaselinePrompt string
	RAGPrompt      string
}

// GeneratePairOutput holds both paths' records, always populated.
type GeneratePairOutput struct {
	Baseline GenerationRecord
	RAG      GenerationRecord
}

// GeneratePairUsecase runs the baseline and RAG generations
// concurrently with isolated failures: a timeout, safety block or
// transport error on one path never cancels the other.
type GeneratePairUsecase interface {
	Execute(ctx context.Context, input GeneratePairInput) GeneratePairOutput
}

type generatePairUsecase struct {
	llm        domain.LLMClient
	maxTokens  int
	genTimeout time.Duration
	logger     *slog.Logger
}

func NewGeneratePairUsecase(llm domain.LLMClient, maxTokens int, genTimeout time.Duration, logger *slog.Logger) GeneratePairUsecase {
	return &generatePairUsecase{
		llm:        llm,
		maxTokens:  maxTokens,
		genTimeout: genTimeout,
		logger:     logger,
	}
}

func (u *generatePairUsecase) Execute(ctx context.Context, input GeneratePairInput) GeneratePairOutput {
	var out GeneratePairOutput
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Baseline = u.runPath(ctx, KindBaseline, input.BaselinePrompt)
	}()
	go func() {
		defer wg.Done()
		out.RAG = u.runPath(ctx, KindRAG, input.RAGPrompt)
	}()
	wg.Wait()

	return out
}

// runPath executes one generation under its own timeout, derived from
// the caller's context so external cancellation still applies.
func (u *generatePairUsecase) runPath(ctx context.Context, kind, prompt string) GenerationRecord {
	pathCtx, cancel := context.WithTimeout(ctx, u.genTimeout)
	defer cancel()

	start := time.Now()
	resp, err := u.llm.Generate(pathCtx, prompt, u.maxTokens)
	elapsed := time.Since(start)

	record := GenerationRecord{Kind: kind, Duration: elapsed}
	if err != nil {
		record.ErrorTag = domain.TagOf(err)
		record.ErrorDetail = err.Error()
		u.logger.Warn("generation_failed",
			slog.String("kind", kind),
			slog.String("error_tag", string(record.ErrorTag)),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed))
		return record
	}

	record.Text = resp.Text
	u.logger.Info("generation_completed",
		slog.String("kind", kind),
		slog.Int("chars", len(resp.Text)),
		slog.Duration("elapsed", elapsed))
	return record
}
