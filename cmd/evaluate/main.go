package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"news-rag/internal/adapter/genai"
	"news-rag/internal/adapter/results"
	"news-rag/internal/adapter/vecstore"
	"news-rag/internal/infra/config"
	"news-rag/internal/infra/httpclient"
	"news-rag/internal/infra/logger"
	"news-rag/internal/usecase"
)

func main() {
	cfg := config.Load()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the baseline-vs-RAG evaluation harness over the test query set",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(ctx, cfg, log)
		},
	}

	if err := root.Execute(); err != nil {
		log.Error("evaluation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	queries, err := loadQueries(cfg.QueriesPath)
	if err != nil {
		return err
	}
	log.Info("queries loaded", "path", cfg.QueriesPath, "count", len(queries))

	store, err := vecstore.Open(cfg.IndexPath, log)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer store.Close()

	embedder := genai.NewEmbedder(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.EmbeddingModel,
		httpclient.NewPooledClient(time.Duration(cfg.EmbedTimeout)*time.Second))
	generator := genai.NewGenerator(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.GeneratorModel,
		httpclient.NewPooledClient(time.Duration(cfg.GenTimeout)*time.Second))
	judge := genai.NewGenerator(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.JudgeModel,
		httpclient.NewPooledClient(time.Duration(cfg.JudgeTimeout)*time.Second))

	retrieveUsecase, err := usecase.NewRetrieveArticlesUsecase(
		store, embedder, cfg.RetrieveChunks, cfg.RetrieveArticles, log)
	if err != nil {
		return err
	}
	generatePairUsecase := usecase.NewGeneratePairUsecase(
		generator, cfg.MaxOutputTokens, time.Duration(cfg.GenTimeout)*time.Second, log)
	promptBuilder := usecase.NewPromptBuilder(cfg.MaxArticleChars)

	sink, err := results.NewJSONLWriter(cfg.ResultsPath, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	evaluateUsecase := usecase.NewEvaluateUsecase(
		retrieveUsecase,
		generatePairUsecase,
		judge,
		promptBuilder,
		sink,
		time.Duration(cfg.QueryIntervalMS)*time.Millisecond,
		time.Duration(cfg.JudgeTimeout)*time.Second,
		cfg.JudgeInputLimit,
		cfg.MaxOutputTokens,
		log,
	)

	records, err := evaluateUsecase.Execute(ctx, queries)
	if err != nil {
		return err
	}
	log.Info("evaluation run finished",
		"records", len(records),
		"results_path", cfg.ResultsPath)
	return nil
}

func loadQueries(path string) ([]usecase.TestQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query set: %w", err)
	}
	var queries []usecase.TestQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("failed to parse query set: %w", err)
	}
	return queries, nil
}
