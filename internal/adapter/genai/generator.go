package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"news-rag/internal/domain"
)

const generationTemperature = 0.2

// Generator calls the text generation endpoint. The same type serves as
// the answer generator and, with a different model name, as the judge.
// Failures come back as *domain.GenerationError so the orchestrator can
// tell a safety block from a transport problem.
type Generator struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewGenerator(baseURL, apiKey, model string, client *http.Client) *Generator {
	return &Generator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  client,
	}
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends the prompt and extracts the first candidate's text.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	slog.Debug("generate_started", slog.String("model", g.Model))
	start := time.Now()

	reqBody := generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     generationTemperature,
			MaxOutputTokens: maxTokens,
		},
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrTransport,
			Cause: fmt.Errorf("failed to marshal generate request: %w", err),
		}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.BaseURL, g.Model, g.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrTransport,
			Cause: fmt.Errorf("failed to create generate request: %w", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		slog.Error("generate_failed",
			slog.String("model", g.Model),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrTransport,
			Cause: fmt.Errorf("failed to call generation endpoint: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("generate_bad_status",
			slog.String("model", g.Model),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrTransport,
			Cause: fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrMalformedResponse,
			Cause: fmt.Errorf("failed to decode generation response: %w", err),
		}
	}

	if genResp.PromptFeedback.BlockReason != "" {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrSafetyFiltered,
			Cause: fmt.Errorf("prompt blocked: %s", genResp.PromptFeedback.BlockReason),
		}
	}
	if len(genResp.Candidates) == 0 {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrEmptyCandidates,
			Cause: fmt.Errorf("response had no candidates"),
		}
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrSafetyFiltered,
			Cause: fmt.Errorf("candidate stopped for safety"),
		}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, &domain.GenerationError{
			Tag:   domain.GenerationErrMalformedResponse,
			Cause: fmt.Errorf("candidate carried no text"),
		}
	}

	slog.Debug("generate_completed",
		slog.String("model", g.Model),
		slog.Duration("elapsed", time.Since(start)))

	return &domain.LLMResponse{
		Text: text,
		Done: candidate.FinishReason == "" || candidate.FinishReason == "STOP",
	}, nil
}

func (g *Generator) Version() string {
	return g.Model
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

var _ domain.LLMClient = (*Generator)(nil)
