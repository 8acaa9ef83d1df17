package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"news-rag/internal/domain"
	"news-rag/internal/usecase"
)

type Handler struct {
	answerUsecase usecase.AnswerQueryUsecase
	indexMeta     domain.IndexMeta
	logger        *slog.Logger
}

func NewHandler(answerUsecase usecase.AnswerQueryUsecase, indexMeta domain.IndexMeta, logger *slog.Logger) *Handler {
	return &Handler{
		answerUsecase: answerUsecase,
		indexMeta:     indexMeta,
		logger:        logger,
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	StandardResponse string                 `json:"standard_response"`
	RAGResponse      string                 `json:"rag_response"`
	RetrievedChunks  []usecase.ChunkSummary `json:"retrieved_chunks"`
	Cached           bool                   `json:"cached,omitempty"`
}

// Answer both generation paths for one query
// (POST /api/query)
func (h *Handler) Query(ctx echo.Context) error {
	var req queryRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing 'query' in request body"})
	}

	output, err := h.answerUsecase.Execute(ctx.Request().Context(), req.Query)
	if err != nil {
		h.logger.Error("query_failed", slog.String("error", err.Error()))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	chunks := output.RetrievedChunks
	if chunks == nil {
		chunks = []usecase.ChunkSummary{}
	}
	return ctx.JSON(http.StatusOK, queryResponse{
		StandardResponse: output.StandardResponse,
		RAGResponse:      output.RAGResponse,
		RetrievedChunks:  chunks,
		Cached:           output.Cached,
	})
}

// Report index metadata alongside liveness
// (GET /api/health)
func (h *Handler) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":          "ok",
		"article_count":   h.indexMeta.ArticleCount,
		"chunk_count":     h.indexMeta.ChunkCount,
		"encoder_version": h.indexMeta.EncoderVersion,
		"built_at":        h.indexMeta.BuiltAt,
	})
}

// Register binds the API routes onto an echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/api/query", h.Query)
	e.GET("/api/health", h.Health)
}
