package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"news-rag/internal/domain"
)

var citationPattern = regexp.MustCompile(`\[\d+\]`)

// TestQuery is one entry of the evaluation query set.
type TestQuery struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// ContextSummary is the per-article trace kept in an evaluation
// record: enough to audit what the RAG path saw without storing
// article bodies.
type ContextSummary struct {
	ArticleID   string  `json:"id"`
	Title       string  `json:"title"`
	MinDistance float64 `json:"dist"`
}

// EvaluationRecord is one JSONL row of an evaluation run. Both
// generation paths and the judge report into it independently; a
// failure on any of the three leaves the rest of the record intact.
type EvaluationRecord struct {
	RunID     string `json:"run_id"`
	QueryID   string `json:"query_id"`
	QueryText string `json:"query_text"`
	Timestamp string `json:"timestamp"`

	BaselineResponse  string  `json:"baseline_response"`
	BaselineWordCount int     `json:"baseline_response_wc"`
	BaselineDuration  float64 `json:"baseline_llm_duration"`
	BaselineErrorTag  string  `json:"baseline_error_tag,omitempty"`

	RAGResponse       string           `json:"rag_response"`
	RAGWordCount      int              `json:"rag_response_wc"`
	RAGCitationCount  int              `json:"rag_citation_count"`
	RAGErrorTag       string           `json:"rag_error_tag,omitempty"`
	RetrievedArticles int              `json:"rag_retrieved_articles_count"`
	RetrievedContext  []ContextSummary `json:"rag_retrieved_context_summary"`
	MinDistances      []float64        `json:"rag_min_distances"`
	RetrievalDuration float64          `json:"rag_retrieval_duration"`
	RAGLLMDuration    float64          `json:"rag_llm_duration"`
	RAGTotalDuration  float64          `json:"rag_total_duration"`
	ContextChars      int              `json:"rag_context_length_chars"`

	Judge         *JudgeVerdict `json:"llm_evaluation"`
	JudgeError    string        `json:"llm_evaluation_error,omitempty"`
	JudgeDuration float64       `json:"llm_evaluation_duration"`

	TotalDuration float64 `json:"query_eval_duration_total"`
}

// ResultSink receives records as they complete, so a crash mid-run
// loses at most the in-flight query.
type ResultSink interface {
	Write(ctx context.Context, record EvaluationRecord) error
}

// EvaluateUsecase drives a full evaluation run: for each test query it
// retrieves context, generates the baseline/RAG pair, asks the judge
// to grade both, and emits one record. Queries run strictly in order
// and are paced to respect upstream API quotas.
type EvaluateUsecase interface {
	Execute(ctx context.Context, queries []TestQuery) ([]EvaluationRecord, error)
}

type evaluateUsecase struct {
	retrieve       RetrieveArticlesUsecase
	generatePair   GeneratePairUsecase
	judge          domain.LLMClient
	prompts        *PromptBuilder
	sink           ResultSink
	limiter        *rate.Limiter
	judgeTimeout   time.Duration
	judgeInputCap  int
	judgeMaxTokens int
	logger         *slog.Logger
}

func NewEvaluateUsecase(
	retrieve RetrieveArticlesUsecase,
	generatePair GeneratePairUsecase,
	judge domain.LLMClient,
	prompts *PromptBuilder,
	sink ResultSink,
	queryInterval time.Duration,
	judgeTimeout time.Duration,
	judgeInputCap int,
	judgeMaxTokens int,
	logger *slog.Logger,
) EvaluateUsecase {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if queryInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(queryInterval), 1)
	}
	return &evaluateUsecase{
		retrieve:       retrieve,
		generatePair:   generatePair,
		judge:          judge,
		prompts:        prompts,
		sink:           sink,
		limiter:        limiter,
		judgeTimeout:   judgeTimeout,
		judgeInputCap:  judgeInputCap,
		judgeMaxTokens: judgeMaxTokens,
		logger:         logger,
	}
}

func (u *evaluateUsecase) Execute(ctx context.Context, queries []TestQuery) ([]EvaluationRecord, error) {
	runID := uuid.NewString()
	runStart := time.Now()
	u.logger.Info("evaluation_started",
		slog.String("run_id", runID),
		slog.Int("queries", len(queries)))

	records := make([]EvaluationRecord, 0, len(queries))
	for i, q := range queries {
		if strings.TrimSpace(q.Query) == "" {
			u.logger.Warn("query_skipped_empty", slog.String("query_id", q.ID))
			continue
		}
		if err := u.limiter.Wait(ctx); err != nil {
			return records, fmt.Errorf("evaluation cancelled: %w", err)
		}

		queryID := q.ID
		if queryID == "" {
			queryID = fmt.Sprintf("query_%d", i+1)
		}
		u.logger.Info("query_started",
			slog.String("run_id", runID),
			slog.String("query_id", queryID))

		record := u.evaluateOne(ctx, runID, queryID, q.Query)
		records = append(records, record)

		if u.sink != nil {
			if err := u.sink.Write(ctx, record); err != nil {
				return records, fmt.Errorf("failed to persist record %s: %w", queryID, err)
			}
		}
	}

	u.logger.Info("evaluation_completed",
		slog.String("run_id", runID),
		slog.Int("records", len(records)),
		slog.Duration("elapsed", time.Since(runStart)))
	return records, nil
}

func (u *evaluateUsecase) evaluateOne(ctx context.Context, runID, queryID, query string) EvaluationRecord {
	record := EvaluationRecord{
		RunID:     runID,
		QueryID:   queryID,
		QueryText: query,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	queryStart := time.Now()

	// Retrieval feeds the RAG path only; a failure here degrades the
	// RAG prompt to no context instead of killing the query.
	retrievalStart := time.Now()
	retrieval := &domain.RetrievalResult{}
	if result, err := u.retrieve.Execute(ctx, RetrieveArticlesInput{Query: query}); err != nil {
		u.logger.Error("evaluation_retrieval_failed",
			slog.String("query_id", queryID),
			slog.String("error", err.Error()))
	} else {
		retrieval = result
	}
	record.RetrievalDuration = time.Since(retrievalStart).Seconds()
	record.RetrievedArticles = len(retrieval.Articles)
	record.ContextChars = u.prompts.ContextChars(*retrieval)
	for _, match := range retrieval.Articles {
		record.RetrievedContext = append(record.RetrievedContext, ContextSummary{
			ArticleID:   match.Article.ID,
			Title:       match.Article.Title,
			MinDistance: match.MinDistance,
		})
		record.MinDistances = append(record.MinDistances, match.MinDistance)
	}

	pair := u.generatePair.Execute(ctx, GeneratePairInput{
		BaselinePrompt: u.prompts.Baseline(query),
		RAGPrompt:      u.prompts.Augmented(query, *retrieval),
	})

	record.BaselineDuration = pair.Baseline.Duration.Seconds()
	baselineText := pair.Baseline.Text
	if pair.Baseline.Failed() {
		record.BaselineErrorTag = string(pair.Baseline.ErrorTag)
		baselineText = "ERROR: " + pair.Baseline.ErrorDetail
	}
	record.BaselineResponse = baselineText
	record.BaselineWordCount = wordCount(pair.Baseline.Text)

	record.RAGLLMDuration = pair.RAG.Duration.Seconds()
	record.RAGTotalDuration = record.RetrievalDuration + record.RAGLLMDuration
	ragText := pair.RAG.Text
	if pair.RAG.Failed() {
		record.RAGErrorTag = string(pair.RAG.ErrorTag)
		ragText = "ERROR: " + pair.RAG.ErrorDetail
	}
	record.RAGResponse = ragText
	record.RAGWordCount = wordCount(pair.RAG.Text)
	record.RAGCitationCount = countCitations(pair.RAG.Text)

	u.judgeResponses(ctx, query, baselineText, ragText, *retrieval, &record)

	record.TotalDuration = time.Since(queryStart).Seconds()
	return record
}

// judgeResponses grades the pair; any failure lands in JudgeError so
// the generation data already collected survives.
func (u *evaluateUsecase) judgeResponses(ctx context.Context, query, baselineText, ragText string, retrieval domain.RetrievalResult, record *EvaluationRecord) {
	judgeCtx, cancel := context.WithTimeout(ctx, u.judgeTimeout)
	defer cancel()

	prompt := u.prompts.Judge(query,
		capText(baselineText, u.judgeInputCap),
		capText(ragText, u.judgeInputCap),
		retrieval)

	judgeStart := time.Now()
	resp, err := u.judge.Generate(judgeCtx, prompt, u.judgeMaxTokens)
	record.JudgeDuration = time.Since(judgeStart).Seconds()
	if err != nil {
		record.JudgeError = err.Error()
		u.logger.Error("evaluation_judge_failed",
			slog.String("query_id", record.QueryID),
			slog.String("error", err.Error()))
		return
	}

	verdict, err := ParseJudgeVerdict(resp.Text)
	if err != nil {
		record.JudgeError = err.Error()
		u.logger.Error("evaluation_judge_unparseable",
			slog.String("query_id", record.QueryID),
			slog.String("error", err.Error()))
		return
	}
	record.Judge = verdict
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func countCitations(s string) int {
	return len(citationPattern.FindAllString(s, -1))
}

func capText(s string, limit int) string {
	if cut, ok := truncateRunes(s, limit); ok {
		return cut + "... [truncated]"
	}
	return s
}
