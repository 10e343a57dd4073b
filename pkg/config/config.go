package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	OpenAI   OpenAIConfig
	Pipeline PipelineConfig
	Search   SearchConfig
	External ExternalConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates on-disk document storage.
type StorageConfig struct {
	DocumentsDir string
}

// OpenAIConfig configures the embedding and chat clients.
type OpenAIConfig struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	EmbedTimeout   time.Duration
}

// PipelineConfig tunes document processing and auto-indexing.
type PipelineConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	MinChunkSize      int
	MaxFileSizeBytes  int64
	AllowedMIMEs      []string
	WorkerConcurrency int
	WorkerRetries     int
}

// SearchConfig tunes similarity search defaults.
type SearchConfig struct {
	DefaultLimit     int
	DefaultThreshold float64
	QueryLogEnabled  bool
}

// ExternalConfig governs the web search and crawl fallback tier.
type ExternalConfig struct {
	Enabled         bool
	SearchURL       string
	SearchAPIKey    string
	CrawlURL        string
	SearchTimeout   time.Duration
	CrawlTimeout    time.Duration
	MaxResults      int
	MaxContentBytes int64
	HealthCacheTTL  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		DocumentsDir: v.GetString("DOCUMENTS_STORAGE_DIR"),
	}

	cfg.OpenAI = OpenAIConfig{
		APIKey:         v.GetString("OPENAI_API_KEY"),
		EmbeddingModel: v.GetString("OPENAI_EMBEDDING_MODEL"),
		ChatModel:      v.GetString("OPENAI_CHAT_MODEL"),
		EmbedTimeout:   parseDuration(v.GetString("OPENAI_EMBED_TIMEOUT"), 15*time.Second),
	}

	maxFileSize := v.GetInt64("PIPELINE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	cfg.Pipeline = PipelineConfig{
		ChunkSize:         v.GetInt("PIPELINE_CHUNK_SIZE"),
		ChunkOverlap:      v.GetInt("PIPELINE_CHUNK_OVERLAP"),
		MinChunkSize:      v.GetInt("PIPELINE_MIN_CHUNK_SIZE"),
		MaxFileSizeBytes:  maxFileSize,
		AllowedMIMEs:      splitAndTrim(v.GetString("PIPELINE_ALLOWED_MIME_TYPES")),
		WorkerConcurrency: v.GetInt("PIPELINE_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("PIPELINE_WORKER_RETRIES"),
	}

	cfg.Search = SearchConfig{
		DefaultLimit:     v.GetInt("SEARCH_DEFAULT_LIMIT"),
		DefaultThreshold: v.GetFloat64("SEARCH_DEFAULT_THRESHOLD"),
		QueryLogEnabled:  v.GetBool("SEARCH_QUERY_LOG_ENABLED"),
	}

	maxContent := v.GetInt64("EXTERNAL_MAX_CONTENT_BYTES")
	if maxContent <= 0 {
		maxContent = 1024 * 1024
	}
	cfg.External = ExternalConfig{
		Enabled:         v.GetBool("EXTERNAL_SEARCH_ENABLED"),
		SearchURL:       v.GetString("EXTERNAL_SEARCH_URL"),
		SearchAPIKey:    v.GetString("EXTERNAL_SEARCH_API_KEY"),
		CrawlURL:        v.GetString("EXTERNAL_CRAWL_URL"),
		SearchTimeout:   parseDuration(v.GetString("EXTERNAL_SEARCH_TIMEOUT"), 5*time.Second),
		CrawlTimeout:    parseDuration(v.GetString("EXTERNAL_CRAWL_TIMEOUT"), 30*time.Second),
		MaxResults:      v.GetInt("EXTERNAL_MAX_RESULTS"),
		MaxContentBytes: maxContent,
		HealthCacheTTL:  parseDuration(v.GetString("EXTERNAL_HEALTH_CACHE_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "berri")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./documents")

	v.SetDefault("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini")

	v.SetDefault("PIPELINE_CHUNK_SIZE", 1500)
	v.SetDefault("PIPELINE_CHUNK_OVERLAP", 200)
	v.SetDefault("PIPELINE_MIN_CHUNK_SIZE", 100)
	v.SetDefault("PIPELINE_ALLOWED_MIME_TYPES", "text/plain,application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	v.SetDefault("PIPELINE_WORKER_CONCURRENCY", 2)
	v.SetDefault("PIPELINE_WORKER_RETRIES", 2)

	v.SetDefault("SEARCH_DEFAULT_LIMIT", 5)
	v.SetDefault("SEARCH_DEFAULT_THRESHOLD", 0.3)
	v.SetDefault("SEARCH_QUERY_LOG_ENABLED", true)

	v.SetDefault("EXTERNAL_SEARCH_ENABLED", false)
	v.SetDefault("EXTERNAL_MAX_RESULTS", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
