package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"intigra"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"intigra"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Storage
	StorageDir          string   `envconfig:"STORAGE_DIR" default:"data/parquet"`
	SupportedExtensions []string `envconfig:"SUPPORTED_EXTENSIONS" default:".pdf,.txt,.docx"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`

	// Retrieval
	RerankThreshold  float64 `envconfig:"RERANK_THRESHOLD" default:"-5.0"`
	MaxRetrievalPool int     `envconfig:"MAX_RETRIEVAL_POOL" default:"20"`
	DefaultTopK      int     `envconfig:"DEFAULT_TOP_K" default:"5"`

	// Models. Empty model names and RERANK_URL fall back to each provider's default.
	EmbedProvider     string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel        string `envconfig:"EMBED_MODEL"`
	GeneratorProvider string `envconfig:"GENERATOR_PROVIDER" default:"ollama"`
	GeneratorModel    string `envconfig:"GENERATOR_MODEL"`
	OllamaURL         string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	RerankProvider    string `envconfig:"RERANK_PROVIDER" default:"tei"`
	RerankURL         string `envconfig:"RERANK_URL"`
	RerankAPIKey      string `envconfig:"RERANK_API_KEY"`

	// Messaging
	NSQDHost                 string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQLookupd               string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHTTP                 string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableEvents             bool   `envconfig:"ENABLE_EVENTS" default:"false"`
	IndexReloadOnJobComplete bool   `envconfig:"INDEX_RELOAD_ON_JOB_COMPLETE" default:"false"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	cfg.SupportedExtensions = normalizeExtensions(cfg.SupportedExtensions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.StorageDir == "" {
		return fmt.Errorf("%w: STORAGE_DIR", ErrMissingRequired)
	}
	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("%w: SUPPORTED_EXTENSIONS", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalidValue)
	}
	if c.MaxRetrievalPool < 1 {
		return fmt.Errorf("%w: MAX_RETRIEVAL_POOL must be at least 1", ErrInvalidValue)
	}
	if c.DefaultTopK < 1 {
		return fmt.Errorf("%w: DEFAULT_TOP_K must be at least 1", ErrInvalidValue)
	}
	switch c.EmbedProvider {
	case "ollama":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY (EMBED_PROVIDER=gemini)", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: EMBED_PROVIDER %q", ErrInvalidValue, c.EmbedProvider)
	}
	switch c.GeneratorProvider {
	case "ollama":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY (GENERATOR_PROVIDER=gemini)", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: GENERATOR_PROVIDER %q", ErrInvalidValue, c.GeneratorProvider)
	}
	switch c.RerankProvider {
	case "tei", "jina", "cohere", "none":
	default:
		return fmt.Errorf("%w: RERANK_PROVIDER %q", ErrInvalidValue, c.RerankProvider)
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
