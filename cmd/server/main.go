package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"news-rag/internal/adapter/genai"
	"news-rag/internal/adapter/httpapi"
	"news-rag/internal/adapter/vecstore"
	"news-rag/internal/infra/config"
	"news-rag/internal/infra/httpclient"
	"news-rag/internal/infra/logger"
	"news-rag/internal/usecase"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New()
	slog.SetDefault(log)

	// 3. Open the sealed index
	store, err := vecstore.Open(cfg.IndexPath, log)
	if err != nil {
		log.Error("failed to open index", "path", cfg.IndexPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 4. Initialize Adapters
	embedder := genai.NewEmbedder(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.EmbeddingModel,
		httpclient.NewPooledClient(time.Duration(cfg.EmbedTimeout)*time.Second))
	generator := genai.NewGenerator(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.GeneratorModel,
		httpclient.NewPooledClient(time.Duration(cfg.GenTimeout)*time.Second))

	// 5. Initialize Usecases
	retrieveUsecase, err := usecase.NewRetrieveArticlesUsecase(
		store, embedder, cfg.RetrieveChunks, cfg.RetrieveArticles, log)
	if err != nil {
		log.Error("failed to initialize retriever", "error", err)
		os.Exit(1)
	}
	generatePairUsecase := usecase.NewGeneratePairUsecase(
		generator, cfg.MaxOutputTokens, time.Duration(cfg.GenTimeout)*time.Second, log)
	promptBuilder := usecase.NewPromptBuilder(cfg.MaxArticleChars)
	answerUsecase := usecase.NewAnswerQueryUsecase(
		retrieveUsecase,
		generatePairUsecase,
		promptBuilder,
		cfg.CacheSize,
		time.Duration(cfg.CacheTTLMin)*time.Minute,
		log,
	)

	// 6. Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 7. Register Handlers
	handler := httpapi.NewHandler(answerUsecase, store.Meta(), log)
	handler.Register(e)

	// 8. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr,
			"articles", store.Meta().ArticleCount, "chunks", store.Meta().ChunkCount)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
