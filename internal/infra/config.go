package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MetadataBackendPostgres = "postgres"
	MetadataBackendRedis    = "redis"
	MetadataBackendMemory   = "memory"

	StorageBackendS3         = "s3"
	StorageBackendFilesystem = "filesystem"

	envProduction = "production"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string

	MetadataBackend string
	DatabaseURL     string
	RunMigrations   bool
	RedisURL        string
	RedisKeyPrefix  string

	StorageBackend   string
	StoragePath      string
	StorageBaseURL   string
	StorageKeyPrefix string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3AccessKeyID    string
	S3SecretKey      string
	S3PublicBaseURL  string
	S3UsePathStyle   bool

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIPromptModel string
	OpenAIImageModel  string
	MockImageBaseURL  string

	SignedURLCacheTTL time.Duration
	SignedURLTTL      time.Duration
	AssetIDPrefixes   []string
	MaxAssetBytes     int64

	UpstreamTimeout   time.Duration
	GenerationTimeout time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	CORSOrigins       []string
}

// IsProduction reports whether the service runs in production execution mode.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == envProduction
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	publicBaseURL := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/")
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          port,
		PublicBaseURL: publicBaseURL,

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RunMigrations:  getEnvBool("RUN_MIGRATIONS", true),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "designer:"),

		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendFilesystem)),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   strings.TrimRight(getEnv("STORAGE_BASE_URL", publicBaseURL+"/static"), "/"),
		StorageKeyPrefix: getEnv("STORAGE_KEY_PREFIX", "designs"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:    os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:      os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:  strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		S3UsePathStyle:   getEnvBool("S3_USE_PATH_STYLE", false),

		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIPromptModel: getEnv("OPENAI_PROMPT_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:  getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		MockImageBaseURL:  getEnv("MOCK_IMAGE_BASE_URL", "https://picsum.photos"),

		SignedURLCacheTTL: time.Second * time.Duration(getEnvInt("SIGNED_URL_CACHE_TTL_SECONDS", 300)),
		SignedURLTTL:      time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 86400)),
		AssetIDPrefixes:   getEnvList("ASSET_ID_PREFIXES", []string{"asset-", "temp-", "tmp-"}),
		MaxAssetBytes:     int64(getEnvInt("MAX_ASSET_BYTES", 20<<20)),

		UpstreamTimeout:   time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 10)),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 60)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}

	cfg.MetadataBackend = strings.ToLower(os.Getenv("METADATA_BACKEND"))
	if cfg.MetadataBackend == "" {
		cfg.MetadataBackend = MetadataBackendMemory
		if cfg.DatabaseURL != "" {
			cfg.MetadataBackend = MetadataBackendPostgres
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.MetadataBackend {
	case MetadataBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for metadata backend %q", c.MetadataBackend)
		}
	case MetadataBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for metadata backend %q", c.MetadataBackend)
		}
	case MetadataBackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("metadata backend %q is not allowed in production", c.MetadataBackend)
		}
	default:
		return fmt.Errorf("unsupported METADATA_BACKEND %q", c.MetadataBackend)
	}

	switch c.StorageBackend {
	case StorageBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for storage backend %q", c.StorageBackend)
		}
	case StorageBackendFilesystem:
		if c.IsProduction() {
			return fmt.Errorf("storage backend %q is not allowed in production", c.StorageBackend)
		}
		if strings.TrimSpace(c.StoragePath) == "" {
			return fmt.Errorf("STORAGE_PATH is required for storage backend %q", c.StorageBackend)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.SignedURLCacheTTL <= 0 || c.SignedURLTTL <= 0 {
		return fmt.Errorf("signed url ttls must be positive")
	}
	if len(c.AssetIDPrefixes) == 0 {
		return fmt.Errorf("ASSET_ID_PREFIXES must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
