package corpusfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"news-rag/internal/domain"
)

// articleRow is the JSONL wire form of one article. Field names match
// the Guardian content API so a corpus file can be inspected with the
// same tooling as raw API output.
type articleRow struct {
	ID                 string `json:"id"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	BodyText           string `json:"bodyText"`
}

// Save writes articles as JSON Lines, one article per line,
// replacing any existing file.
func Save(path string, articles []domain.Article, logger *slog.Logger) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create corpus directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create corpus file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, a := range articles {
		row := articleRow{
			ID:                 a.ID,
			WebTitle:           a.Title,
			WebURL:             a.URL,
			WebPublicationDate: a.PublishedAt,
			BodyText:           a.Body,
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode article %s: %w", a.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush corpus file: %w", err)
	}

	logger.Info("corpus_saved", slog.String("path", path), slog.Int("articles", len(articles)))
	return nil
}

// Load reads a JSONL corpus file. Unparseable lines are skipped with a
// warning so one corrupt record does not discard a whole fetch run.
func Load(path string, logger *slog.Logger) ([]domain.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	var articles []domain.Article
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var row articleRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			logger.Warn("corpus_line_skipped",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("error", err.Error()))
			continue
		}
		articles = append(articles, domain.Article{
			ID:          row.ID,
			Title:       row.WebTitle,
			URL:         row.WebURL,
			PublishedAt: row.WebPublicationDate,
			Body:        row.BodyText,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	logger.Info("corpus_loaded", slog.String("path", path), slog.Int("articles", len(articles)))
	return articles, nil
}
