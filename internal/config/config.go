package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingDims      int

	Repo        string // owner/name
	GitHubToken string
	ReposDir    string
	CacheDir    string

	MaxFiles             int
	EmbedBatchSize       int
	DescribeFiles        bool
	DescriptionSaveEvery int
	TrustSnapshots       bool

	IndexBackend     string
	QdrantURL        string
	QdrantCollection string

	NumHits              int
	RankFilterExtensions bool
	EmbedEnriched        bool
	ForceEdit            bool

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or one of its parents, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		Repo:               getEnv("REPO", ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", ""),
		ReposDir:           getEnv("REPOS_DIR", "repos"),
		CacheDir:           getEnv("CACHE_DIR", "embeddings"),
		IndexBackend:       strings.ToLower(getEnv("INDEX_BACKEND", "flat")),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "files"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	// EMBEDDING_DIMS must match the output width of the embedding model.
	// Changing it invalidates every embedding snapshot under CACHE_DIR.
	dimsStr := getEnv("EMBEDDING_DIMS", "")
	if dimsStr == "" {
		return nil, fmt.Errorf("EMBEDDING_DIMS is required")
	}
	dims, err := strconv.Atoi(dimsStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be a valid integer: %w", err)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be greater than 0")
	}
	cfg.EmbeddingDims = dims

	ints := []struct {
		key  string
		def  int
		min  int
		dest *int
	}{
		{"MAX_FILES", 1000, 1, &cfg.MaxFiles},
		{"EMBED_BATCH_SIZE", 50, 1, &cfg.EmbedBatchSize},
		{"DESCRIPTION_SAVE_EVERY", 10, 1, &cfg.DescriptionSaveEvery},
		{"NUM_HITS", 5, 1, &cfg.NumHits},
	}
	for _, f := range ints {
		v, err := getEnvInt(f.key, f.def)
		if err != nil {
			return nil, err
		}
		if v < f.min {
			return nil, fmt.Errorf("%s must be at least %d", f.key, f.min)
		}
		*f.dest = v
	}

	bools := []struct {
		key  string
		dest *bool
	}{
		{"DESCRIBE_FILES", &cfg.DescribeFiles},
		{"TRUST_SNAPSHOTS", &cfg.TrustSnapshots},
		{"RANK_FILTER_EXTENSIONS", &cfg.RankFilterExtensions},
		{"EMBED_ENRICHED", &cfg.EmbedEnriched},
		{"FORCE_EDIT", &cfg.ForceEdit},
	}
	for _, f := range bools {
		v, err := getEnvBool(f.key, false)
		if err != nil {
			return nil, err
		}
		*f.dest = v
	}

	switch cfg.IndexBackend {
	case "flat", "qdrant":
	default:
		return nil, fmt.Errorf("INDEX_BACKEND must be flat or qdrant, got %q", cfg.IndexBackend)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}
