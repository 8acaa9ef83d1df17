package config

import (
	"os"
	"strconv"
	"strings"
)

// Config carries every tunable the pipeline reads. Values come from the
// environment with development-friendly defaults; API keys may also be
// supplied via *_FILE paths for secret mounts.
type Config struct {
	Env  string
	Port string

	// Corpus & index artifacts
	IndexPath   string
	CorpusPath  string
	ResultsPath string
	QueriesPath string

	// Archive fetch window
	GuardianAPIKey string
	GuardianURL    string
	FromDate       string
	ToDate         string
	PageSize       int
	FetchTarget    int

	// Chunking & embedding
	ChunkSize       int
	ChunkOverlap    int
	EmbedDims       int
	EmbedBatchSize  int
	EmbedWorkers    int
	EmbedRetries    int
	EmbedBackoffSec int

	// Models
	GenAIAPIKey    string
	GenAIBaseURL   string
	EmbeddingModel string
	GeneratorModel string
	JudgeModel     string

	// Retrieval
	RetrieveChunks   int
	RetrieveArticles int
	MaxArticleChars  int

	// Generation & evaluation
	MaxOutputTokens int
	EmbedTimeout    int // seconds
	GenTimeout      int // seconds
	JudgeTimeout    int // seconds
	QueryIntervalMS int // pause between evaluation queries
	JudgeInputLimit int // chars of each response passed to the judge

	// Query API answer cache
	CacheSize   int
	CacheTTLMin int
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "5001"),

		IndexPath:   getEnv("INDEX_PATH", "data/news_index.db"),
		CorpusPath:  getEnv("CORPUS_PATH", "data/guardian_articles.jsonl"),
		ResultsPath: getEnv("RESULTS_PATH", "data/evaluation_results.jsonl"),
		QueriesPath: getEnv("QUERIES_PATH", "test_queries.json"),

		GuardianAPIKey: getSecret("GUARDIAN_API_KEY", "GUARDIAN_API_KEY_FILE", ""),
		GuardianURL:    getEnv("GUARDIAN_API_URL", "https://content.guardianapis.com"),
		FromDate:       getEnv("CORPUS_FROM_DATE", "2015-12-03"),
		ToDate:         getEnv("CORPUS_TO_DATE", "2015-12-31"),
		PageSize:       getEnvInt("GUARDIAN_PAGE_SIZE", 50),
		FetchTarget:    getEnvInt("GUARDIAN_TOTAL_ARTICLES_TO_FETCH", 200),

		ChunkSize:       getEnvInt("CHUNK_SIZE", 512),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 64),
		EmbedDims:       getEnvInt("EMBEDDING_DIMENSIONS", 768),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 64),
		EmbedWorkers:    getEnvInt("EMBED_WORKERS", 4),
		EmbedRetries:    getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedBackoffSec: getEnvInt("EMBED_RETRY_BACKOFF_SEC", 2),

		GenAIAPIKey:    getSecret("GOOGLE_API_KEY", "GOOGLE_API_KEY_FILE", ""),
		GenAIBaseURL:   getEnv("GENAI_BASE_URL", "https://generativelanguage.googleapis.com"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		GeneratorModel: getEnv("GENERATOR_MODEL", "gemini-1.5-flash"),
		JudgeModel:     getEnv("JUDGE_MODEL", "gemini-1.5-pro-latest"),

		RetrieveChunks:   getEnvInt("RETRIEVE_CHUNKS", 14),
		RetrieveArticles: getEnvInt("RETRIEVE_ARTICLES", 7),
		MaxArticleChars:  getEnvInt("MAX_ARTICLE_CHARS", 50000),

		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 2048),
		EmbedTimeout:    getEnvInt("EMBED_TIMEOUT_SECONDS", 30),
		GenTimeout:      getEnvInt("GEN_TIMEOUT_SECONDS", 120),
		JudgeTimeout:    getEnvInt("JUDGE_TIMEOUT_SECONDS", 180),
		QueryIntervalMS: getEnvInt("EVAL_QUERY_INTERVAL_MS", 5000),
		JudgeInputLimit: getEnvInt("JUDGE_INPUT_LIMIT", 10000),

		CacheSize:   getEnvInt("ANSWER_CACHE_SIZE", 128),
		CacheTTLMin: getEnvInt("ANSWER_CACHE_TTL_MINUTES", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
