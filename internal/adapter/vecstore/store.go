// Package vecstore persists chunk vectors, the chunk lookup table and
// the article table in a single SQLite file, using sqlite-vec for KNN
// search. The file is the on-disk index artifact: building writes it
// once, serving opens it read-only.
package vecstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"news-rag/internal/domain"
)

const (
	metaKeyDimensions     = "dimensions"
	metaKeyEncoderVersion = "encoder_version"
	metaKeyChunkSize      = "chunk_size"
	metaKeyChunkOverlap   = "chunk_overlap"
	metaKeyChunkCount     = "chunk_count"
	metaKeyArticleCount   = "article_count"
	metaKeyCorpusHash     = "corpus_hash"
	metaKeyBuiltAt        = "built_at"
)

func openDB(path string) (*sql.DB, error) {
	// Registers the sqlite-vec extension on every new connection.
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	return db, nil
}

// serializeFloat32 converts a vector to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Builder is the write side of the store, used by the offline index
// build. It is not safe for concurrent use.
type Builder struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// NewBuilder creates (or truncates) the index file at path. The vector
// dimensionality is fixed for the lifetime of the file.
func NewBuilder(path string, dimensions int, logger *slog.Logger) (*Builder, error) {
	if dimensions <= 0 {
		return nil, &domain.ConfigError{Field: "dimensions", Reason: fmt.Sprintf("must be positive, got %d", dimensions)}
	}
	if path != ":memory:" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing previous index file: %w", err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			published_at TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY,
			chunk_id TEXT NOT NULL UNIQUE,
			article_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(embedding float[%d])`, dimensions),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	logger.Info("index builder opened",
		slog.String("path", path),
		slog.Int("dimensions", dimensions))

	return &Builder{db: db, dimensions: dimensions, logger: logger}, nil
}

// AddArticles inserts corpus articles into the lookup table.
func (b *Builder) AddArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range articles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO articles(id, title, url, published_at, body) VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.Title, a.URL, a.PublishedAt, a.Body,
		); err != nil {
			return fmt.Errorf("inserting article %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// AddChunks inserts chunk metadata rows and their vectors. The vec0
// rowid is kept aligned with the chunks rowid so that search results
// map back to domain ids without a separate translation table.
func (b *Builder) AddChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, c := range chunks {
		if len(vectors[i]) != b.dimensions {
			return fmt.Errorf("chunk %s: vector has %d dimensions, index expects %d", c.ID, len(vectors[i]), b.dimensions)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(chunk_id, article_id, ordinal, start_offset, end_offset, content) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.ArticleID, c.Ordinal, c.Start, c.End, c.Text,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for chunk %s: %w", c.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_vectors(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(vectors[i]),
		); err != nil {
			return fmt.Errorf("inserting vector for chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Seal records the build metadata. Counts are taken from the tables
// themselves, not trusted from the caller.
func (b *Builder) Seal(ctx context.Context, meta domain.IndexMeta) error {
	var chunkCount, articleCount int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunkCount); err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&articleCount); err != nil {
		return fmt.Errorf("counting articles: %w", err)
	}

	builtAt := meta.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}

	rows := map[string]string{
		metaKeyDimensions:     strconv.Itoa(b.dimensions),
		metaKeyEncoderVersion: meta.EncoderVersion,
		metaKeyChunkSize:      strconv.Itoa(meta.ChunkSize),
		metaKeyChunkOverlap:   strconv.Itoa(meta.ChunkOverlap),
		metaKeyChunkCount:     strconv.Itoa(chunkCount),
		metaKeyArticleCount:   strconv.Itoa(articleCount),
		metaKeyCorpusHash:     meta.CorpusHash,
		metaKeyBuiltAt:        builtAt.Format(time.RFC3339),
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO index_meta(key, value) VALUES (?, ?)`, key, value,
		); err != nil {
			return fmt.Errorf("writing meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	b.logger.Info("index sealed",
		slog.Int("chunks", chunkCount),
		slog.Int("articles", articleCount),
		slog.String("encoder_version", meta.EncoderVersion))

	return nil
}

// Close releases the underlying database handle.
func (b *Builder) Close() error {
	return b.db.Close()
}

var _ domain.IndexBuilder = (*Builder)(nil)

// Store is the read-only serving handle. Safe for concurrent readers;
// nothing writes to the file after Seal.
type Store struct {
	db     *sql.DB
	meta   domain.IndexMeta
	logger *slog.Logger
}

// Open loads an index file and verifies that the vector table and the
// chunk lookup table agree with each other and with the sealed
// metadata. A disagreement means the file pair was produced by
// different builds, and the store refuses to serve from it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("index file missing at %s (run the indexer first): %w", path, err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	meta, err := readMeta(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var vectorCount, chunkCount, articleCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&vectorCount); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counting vectors: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunkCount); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&articleCount); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counting articles: %w", err)
	}

	if vectorCount != chunkCount {
		_ = db.Close()
		return nil, &domain.IndexMismatchError{
			Detail: fmt.Sprintf("vector table holds %d rows, chunk table holds %d", vectorCount, chunkCount),
		}
	}
	if chunkCount != meta.ChunkCount {
		_ = db.Close()
		return nil, &domain.IndexMismatchError{
			Detail: fmt.Sprintf("chunk table holds %d rows, sealed metadata expects %d", chunkCount, meta.ChunkCount),
		}
	}
	if articleCount != meta.ArticleCount {
		_ = db.Close()
		return nil, &domain.IndexMismatchError{
			Detail: fmt.Sprintf("article table holds %d rows, sealed metadata expects %d", articleCount, meta.ArticleCount),
		}
	}

	logger.Info("index opened",
		slog.String("path", path),
		slog.Int("chunks", chunkCount),
		slog.Int("articles", articleCount),
		slog.String("encoder_version", meta.EncoderVersion))

	return &Store{db: db, meta: meta, logger: logger}, nil
}

func readMeta(db *sql.DB) (domain.IndexMeta, error) {
	rows, err := db.Query(`SELECT key, value FROM index_meta`)
	if err != nil {
		return domain.IndexMeta{}, fmt.Errorf("reading index metadata (index not sealed?): %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.IndexMeta{}, fmt.Errorf("scanning meta row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return domain.IndexMeta{}, fmt.Errorf("iterating meta rows: %w", err)
	}

	if len(values) == 0 {
		return domain.IndexMeta{}, &domain.IndexMismatchError{Detail: "index file has no sealed metadata"}
	}

	meta := domain.IndexMeta{
		EncoderVersion: values[metaKeyEncoderVersion],
		CorpusHash:     values[metaKeyCorpusHash],
	}
	meta.Dimensions, _ = strconv.Atoi(values[metaKeyDimensions])
	meta.ChunkSize, _ = strconv.Atoi(values[metaKeyChunkSize])
	meta.ChunkOverlap, _ = strconv.Atoi(values[metaKeyChunkOverlap])
	meta.ChunkCount, _ = strconv.Atoi(values[metaKeyChunkCount])
	meta.ArticleCount, _ = strconv.Atoi(values[metaKeyArticleCount])
	if raw, ok := values[metaKeyBuiltAt]; ok {
		meta.BuiltAt, _ = time.Parse(time.RFC3339, raw)
	}

	return meta, nil
}

// Meta returns the sealed build metadata.
func (s *Store) Meta() domain.IndexMeta {
	return s.meta
}

// Search runs a KNN query over the vector table and resolves each hit
// to its chunk and article ids. Results come back ordered ascending by
// distance (vec0 uses L2). An empty index returns no hits.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.RetrievalHit, error) {
	if k > s.meta.ChunkCount {
		k = s.meta.ChunkCount
	}
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.meta.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), s.meta.Dimensions)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.article_id,
			v.distance
		FROM chunk_vectors v
		INNER JOIN chunks c ON c.id = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, serializeFloat32(vector), k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var hit domain.RetrievalHit
		if err := rows.Scan(&hit.ChunkID, &hit.ArticleID, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}

	return hits, nil
}

// GetArticles resolves article ids to full records.
func (s *Store) GetArticles(ctx context.Context, ids []string) (map[string]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, title, url, published_at, body
		FROM articles
		WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	articles := make(map[string]domain.Article, len(ids))
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.PublishedAt, &a.Body); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}

	return articles, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ domain.VectorIndex = (*Store)(nil)
