package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"news-rag/internal/usecase"
)

// JSONLWriter appends evaluation records to a JSON Lines file, one
// record per line, flushed per write so an aborted run keeps every
// completed query.
type JSONLWriter struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

func NewJSONLWriter(path string, logger *slog.Logger) (*JSONLWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create results directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	return &JSONLWriter{file: f, logger: logger}, nil
}

func (w *JSONLWriter) Write(_ context.Context, record usecase.EvaluationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", record.QueryID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.QueryID, err)
	}
	w.logger.Debug("result_written", slog.String("query_id", record.QueryID))
	return nil
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

var _ usecase.ResultSink = (*JSONLWriter)(nil)
