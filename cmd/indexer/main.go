package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"news-rag/internal/adapter/corpusfile"
	"news-rag/internal/adapter/genai"
	"news-rag/internal/adapter/guardian"
	"news-rag/internal/adapter/vecstore"
	"news-rag/internal/domain"
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
		Use:   "indexer",
		Short: "Build the news article vector index",
	}
	root.AddCommand(newFetchCmd(ctx, cfg, log), newBuildCmd(ctx, cfg, log))

	if err := root.Execute(); err != nil {
		log.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func newFetchCmd(ctx context.Context, cfg *config.Config, log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch articles from the Guardian archive into the corpus file",
		RunE: func(_ *cobra.Command, _ []string) error {
			source := &guardian.Client{
				BaseURL:  cfg.GuardianURL,
				APIKey:   cfg.GuardianAPIKey,
				PageSize: cfg.PageSize,
				Client:   httpclient.NewPooledClient(30 * time.Second),
				Limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
				Logger:   log,
			}

			articles, err := source.FetchArticles(ctx, cfg.FromDate, cfg.ToDate, cfg.FetchTarget)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			if len(articles) == 0 {
				return fmt.Errorf("no articles fetched for %s..%s", cfg.FromDate, cfg.ToDate)
			}
			return corpusfile.Save(cfg.CorpusPath, articles, log)
		},
	}
	return cmd
}

func newBuildCmd(ctx context.Context, cfg *config.Config, log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Chunk, embed and index the corpus file",
		RunE: func(_ *cobra.Command, _ []string) error {
			articles, err := corpusfile.Load(cfg.CorpusPath, log)
			if err != nil {
				return err
			}

			chunker, err := domain.NewSlidingChunker(cfg.ChunkSize, cfg.ChunkOverlap)
			if err != nil {
				return err
			}
			embedder := genai.NewEmbedder(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.EmbeddingModel,
				httpclient.NewPooledClient(time.Duration(cfg.EmbedTimeout)*time.Second))

			builder, err := vecstore.NewBuilder(cfg.IndexPath, cfg.EmbedDims, log)
			if err != nil {
				return err
			}
			defer builder.Close()

			indexUsecase := usecase.NewIndexCorpusUsecase(
				builder, embedder, chunker,
				cfg.EmbedDims, cfg.EmbedBatchSize, cfg.EmbedWorkers, cfg.EmbedRetries,
				time.Duration(cfg.EmbedBackoffSec)*time.Second,
				log,
			)

			out, err := indexUsecase.Execute(ctx, usecase.IndexCorpusInput{Articles: articles})
			if err != nil {
				return err
			}
			log.Info("index build finished",
				"path", cfg.IndexPath,
				"articles", out.ArticlesIndexed,
				"filtered", out.ArticlesFiltered,
				"chunks", out.ChunkCount,
				"corpus_hash", out.CorpusHash)
			return nil
		},
	}
	return cmd
}
