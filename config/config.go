package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the RAG service
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Startup    StartupConfig    `mapstructure:"startup"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
}

// IsProduction reports whether error details must be hidden from clients.
func (g GeneralConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(g.Environment), "production")
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string          `mapstructure:"address"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	return s.RateLimit.Validate()
}

// RateLimitConfig describes the per-client request budgets.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	GlobalRequests int           `mapstructure:"global_requests"`
	GlobalWindow   time.Duration `mapstructure:"global_window"`
	ChatRequests   int           `mapstructure:"chat_requests"`
	ChatWindow     time.Duration `mapstructure:"chat_window"`
	IngestRequests int           `mapstructure:"ingest_requests"`
	IngestWindow   time.Duration `mapstructure:"ingest_window"`
}

func (r RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.GlobalRequests <= 0 || r.ChatRequests <= 0 || r.IngestRequests <= 0 {
		return fmt.Errorf("server.rate_limit request budgets must be > 0")
	}
	if r.GlobalWindow <= 0 || r.ChatWindow <= 0 || r.IngestWindow <= 0 {
		return fmt.Errorf("server.rate_limit windows must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL           string        `mapstructure:"url"`
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	DBName        string        `mapstructure:"dbname"`
	SSLMode       string        `mapstructure:"sslmode"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MigrationsDir string        `mapstructure:"migrations_dir"`
	AutoMigrate   bool          `mapstructure:"auto_migrate"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// Vector store backends.
const (
	VectorProviderQdrant  = "qdrant"
	VectorProviderChromem = "chromem"
)

// VectorConfig selects and configures the vector database.
type VectorConfig struct {
	Provider   string        `mapstructure:"provider"`
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Path is the chromem persistence directory; empty keeps data in memory.
	Path      string `mapstructure:"path"`
	Dimension int    `mapstructure:"dimension"`
}

func (v VectorConfig) Validate() error {
	switch v.Provider {
	case VectorProviderQdrant:
		if strings.TrimSpace(v.URL) == "" {
			return fmt.Errorf("vector.url required for qdrant")
		}
	case VectorProviderChromem:
	default:
		return fmt.Errorf("vector.provider %q not supported", v.Provider)
	}
	if strings.TrimSpace(v.Collection) == "" {
		return fmt.Errorf("vector.collection required")
	}
	if v.Dimension <= 0 {
		return fmt.Errorf("vector.dimension must be > 0")
	}
	return nil
}

// Embedding backends.
const (
	EmbeddingProviderJina   = "jina"
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderGemini = "gemini"
)

// EmbeddingConfig configures the embedding API.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	BatchSize int    `mapstructure:"batch_size"`
}

func (e EmbeddingConfig) Validate() error {
	switch e.Provider {
	case EmbeddingProviderJina, EmbeddingProviderOpenAI, EmbeddingProviderGemini:
		if strings.TrimSpace(e.APIKey) == "" {
			return fmt.Errorf("embedding.api_key required for %s", e.Provider)
		}
	case EmbeddingProviderOllama:
	default:
		return fmt.Errorf("embedding.provider %q not supported", e.Provider)
	}
	if strings.TrimSpace(e.Model) == "" {
		return fmt.Errorf("embedding.model required")
	}
	return nil
}

// Generation backends.
const (
	GenerationProviderGemini = "gemini"
	GenerationProviderOpenAI = "openai"
)

// GenerationConfig configures the generative model API.
type GenerationConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
}

func (g GenerationConfig) Validate() error {
	switch g.Provider {
	case GenerationProviderGemini, GenerationProviderOpenAI:
	default:
		return fmt.Errorf("generation.provider %q not supported", g.Provider)
	}
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("generation.api_key required")
	}
	if strings.TrimSpace(g.Model) == "" {
		return fmt.Errorf("generation.model required")
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be within [0, 2]")
	}
	return nil
}

// ChatConfig tunes retrieval and session memory.
type ChatConfig struct {
	TopK               int           `mapstructure:"top_k"`
	HistoryMaxMessages int           `mapstructure:"history_max_messages"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
}

// Normalize applies defaults for unset chat values.
func (c ChatConfig) Normalize() ChatConfig {
	if c.TopK <= 0 {
		c.TopK = 4
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = time.Hour
	}
	if c.HistoryMaxMessages < 0 {
		c.HistoryMaxMessages = 0
	}
	return c
}

// IngestConfig tunes chunking and the corpus location.
type IngestConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	CorpusPath   string `mapstructure:"corpus_path"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be within [0, chunk_size)")
	}
	return nil
}

// StartupConfig bounds how long dependencies may take to come up.
type StartupConfig struct {
	Retries int           `mapstructure:"retries"`
	Delay   time.Duration `mapstructure:"delay"`
}

// Normalize applies defaults for unset startup values.
func (s StartupConfig) Normalize() StartupConfig {
	if s.Retries < 0 {
		s.Retries = 0
	}
	if s.Delay <= 0 {
		s.Delay = 2 * time.Second
	}
	return s
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.environment", "development")
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.global_requests", 100)
	v.SetDefault("server.rate_limit.global_window", "15m")
	v.SetDefault("server.rate_limit.chat_requests", 30)
	v.SetDefault("server.rate_limit.chat_window", "15m")
	v.SetDefault("server.rate_limit.ingest_requests", 5)
	v.SetDefault("server.rate_limit.ingest_window", "1h")

	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "postgres")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "newsrag")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", "5s")
	v.SetDefault("storage.postgres.migrations_dir", "migrations")
	v.SetDefault("storage.postgres.auto_migrate", true)

	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", "5s")

	v.SetDefault("vector.provider", VectorProviderQdrant)
	v.SetDefault("vector.url", "http://localhost:6333")
	v.SetDefault("vector.api_key", "")
	v.SetDefault("vector.collection", "news_articles")
	v.SetDefault("vector.timeout", "30s")
	v.SetDefault("vector.path", "")
	v.SetDefault("vector.dimension", 1024)

	v.SetDefault("embedding.provider", EmbeddingProviderJina)
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("generation.provider", GenerationProviderGemini)
	v.SetDefault("generation.model", "gemini-2.5-flash")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.temperature", 0.2)

	v.SetDefault("chat.top_k", 4)
	v.SetDefault("chat.history_max_messages", 20)
	v.SetDefault("chat.session_ttl", "1h")

	v.SetDefault("ingest.chunk_size", 1024)
	v.SetDefault("ingest.chunk_overlap", 128)
	v.SetDefault("ingest.corpus_path", "")

	v.SetDefault("startup.retries", 5)
	v.SetDefault("startup.delay", "2s")
}

// bindLegacyEnv lets the provider-native variable names used by existing
// deployments fill the matching keys when the prefixed variable is unset.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"generation.api_key":        {"NEWSRAG_GENERATION_API_KEY", "GEMINI_API_KEY"},
		"embedding.api_key":         {"NEWSRAG_EMBEDDING_API_KEY", "JINA_API_KEY"},
		"vector.url":                {"NEWSRAG_VECTOR_URL", "QDRANT_URL"},
		"vector.api_key":            {"NEWSRAG_VECTOR_API_KEY", "QDRANT_API_KEY"},
		"storage.postgres.url":      {"NEWSRAG_STORAGE_POSTGRES_URL", "DATABASE_URL"},
		"storage.postgres.host":     {"NEWSRAG_STORAGE_POSTGRES_HOST", "POSTGRES_HOST"},
		"storage.postgres.port":     {"NEWSRAG_STORAGE_POSTGRES_PORT", "POSTGRES_PORT"},
		"storage.postgres.user":     {"NEWSRAG_STORAGE_POSTGRES_USER", "POSTGRES_USER"},
		"storage.postgres.password": {"NEWSRAG_STORAGE_POSTGRES_PASSWORD", "POSTGRES_PASSWORD"},
		"storage.postgres.dbname":   {"NEWSRAG_STORAGE_POSTGRES_DBNAME", "POSTGRES_DB"},
		"storage.redis.host":        {"NEWSRAG_STORAGE_REDIS_HOST", "REDIS_HOST"},
		"storage.redis.port":        {"NEWSRAG_STORAGE_REDIS_PORT", "REDIS_PORT"},
		"general.environment":       {"NEWSRAG_GENERAL_ENVIRONMENT", "APP_ENV", "NODE_ENV"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig loads config from path, or from config.json in the usual
// locations when path is empty. A missing file is fine when no explicit path
// was given; defaults and NEWSRAG_* environment variables still apply.
// A .env file, if present, must be loaded by the caller beforehand.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("NEWSRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Chat = cfg.Chat.Normalize()
	cfg.Startup = cfg.Startup.Normalize()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. LoadConfig only checks what all commands
// need; commands that reach the vector, embedding and model APIs call this.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.Server,
		c.Storage.Redis,
		c.Storage.Postgres,
		c.Vector,
		c.Embedding,
		c.Generation,
		c.Ingest,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
