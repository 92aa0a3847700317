package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	API         APIConfig
	Acquisition AcquisitionConfig
	Storage     StorageConfig
	S3          S3Config
	Database    DatabaseConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Notify      NotifyConfig
	CORS        CORSConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type APIConfig struct {
	APIKey            string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type AcquisitionConfig struct {
	AttemptTimeout      time.Duration
	QualityCeilings     []int
	MinArtifactSize     int64
	ContainerBlacklist  []string
	PlaceholderDuration time.Duration
	TempDir             string
	FFmpegPath          string
	MaxConcurrent       int
	YouTubeHTTPTimeout  time.Duration
}

type StorageConfig struct {
	Backend   string
	OutputDir string
}

type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	EndpointURL     string
}

type DatabaseConfig struct {
	Driver string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Timeout  time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type NotifyConfig struct {
	TelegramBotToken string
	TelegramChatID   int64
}

// Enabled reports whether operator notifications are configured.
func (n NotifyConfig) Enabled() bool {
	return n.TelegramBotToken != "" && n.TelegramChatID != 0
}

type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         int
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"

	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongo"
)

// loader collects every invalid or missing value so Load can report them
// together.
type loader struct {
	errs []error
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	l := &loader{}
	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")

	// API configuration
	cfg.API.APIKey = getEnv("API_KEY", "")
	cfg.API.RateLimitRequests = l.getEnvInt("RATE_LIMIT_REQUESTS", 100)
	cfg.API.RateLimitWindow = l.getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)

	// Acquisition configuration
	cfg.Acquisition.AttemptTimeout = l.getEnvDuration("ATTEMPT_TIMEOUT", 120*time.Second)
	cfg.Acquisition.QualityCeilings = l.getEnvIntSlice("QUALITY_CEILINGS", []int{1080, 720, 480, 360})
	cfg.Acquisition.MinArtifactSize = l.getEnvInt64("MIN_ARTIFACT_SIZE", 100)
	cfg.Acquisition.ContainerBlacklist = getEnvStringSlice("CONTAINER_BLACKLIST", []string{"mhtml", "mht", "html"})
	cfg.Acquisition.PlaceholderDuration = l.getEnvDuration("PLACEHOLDER_DURATION", 2*time.Second)
	cfg.Acquisition.TempDir = getEnv("TEMP_DIR", "")
	cfg.Acquisition.FFmpegPath = getEnv("FFMPEG_PATH", "ffmpeg")
	cfg.Acquisition.MaxConcurrent = l.getEnvInt("MAX_CONCURRENT_ACQUISITIONS", 5)
	cfg.Acquisition.YouTubeHTTPTimeout = l.getEnvDuration("YOUTUBE_HTTP_TIMEOUT", 30*time.Second)

	if cfg.Acquisition.MaxConcurrent < 1 {
		l.errs = append(l.errs, fmt.Errorf("invalid MAX_CONCURRENT_ACQUISITIONS: must be at least 1"))
	}
	if cfg.Acquisition.MinArtifactSize < 1 {
		l.errs = append(l.errs, fmt.Errorf("invalid MIN_ARTIFACT_SIZE: must be at least 1"))
	}

	// Storage configuration
	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal))
	cfg.Storage.OutputDir = getEnv("OUTPUT_DIR", "./downloads")

	cfg.S3.Region = getEnv("AWS_REGION", "us-east-1")
	cfg.S3.EndpointURL = getEnv("AWS_ENDPOINT_URL", "") // Optional for LocalStack
	switch cfg.Storage.Backend {
	case StorageLocal:
	case StorageS3:
		cfg.S3.BucketName = l.getEnvRequired("S3_BUCKET_NAME")
		cfg.S3.AccessKeyID = l.getEnvRequired("AWS_ACCESS_KEY_ID")
		cfg.S3.SecretAccessKey = l.getEnvRequired("AWS_SECRET_ACCESS_KEY")
	default:
		l.errs = append(l.errs, fmt.Errorf("invalid STORAGE_BACKEND %q: expected local or s3", cfg.Storage.Backend))
	}

	// Database configuration
	cfg.Database.Driver = strings.ToLower(getEnv("DATABASE_DRIVER", DatabaseMemory))
	switch cfg.Database.Driver {
	case DatabaseMemory:
	case DatabasePostgres:
		cfg.Postgres.Host = getEnv("POSTGRES_HOST", "localhost")
		cfg.Postgres.Port = l.getEnvInt("POSTGRES_PORT", 5432)
		cfg.Postgres.User = l.getEnvRequired("POSTGRES_USER")
		cfg.Postgres.Password = l.getEnvRequired("POSTGRES_PASSWORD")
		cfg.Postgres.Database = getEnv("POSTGRES_DATABASE", "mediagrab")
		cfg.Postgres.SSLMode = getEnv("POSTGRES_SSLMODE", "disable")
		cfg.Postgres.Timeout = l.getEnvDuration("POSTGRES_TIMEOUT", 10*time.Second)
	case DatabaseMongo:
		cfg.MongoDB.URI = getEnv("MONGODB_URI", "mongodb://localhost:27017")
		cfg.MongoDB.Database = getEnv("MONGODB_DATABASE", "mediagrab")
		cfg.MongoDB.Timeout = l.getEnvDuration("MONGODB_TIMEOUT", 10*time.Second)
	default:
		l.errs = append(l.errs, fmt.Errorf("invalid DATABASE_DRIVER %q: expected memory, postgres or mongo", cfg.Database.Driver))
	}

	// Notification configuration
	cfg.Notify.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Notify.TelegramChatID = l.getEnvInt64("TELEGRAM_CHAT_ID", 0)

	cfg.CORS = loadCORSConfig()

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		l.errs = append(l.errs, fmt.Errorf("required environment variable %s is not set", key))
	}
	return value
}

func (l *loader) getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (l *loader) getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (l *loader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return duration
}

func (l *loader) getEnvIntSlice(key string, defaultValue []int) []int {
	parts := getEnvStringSlice(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			l.errs = append(l.errs, fmt.Errorf("invalid %s: %q is not a positive integer", key, part))
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvStringSlice splits a comma separated value, trimming blanks.
func getEnvStringSlice(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func loadCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:        getEnvBool("CORS_ENABLED", false),
		AllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods: getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{
			"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Correlation-ID",
		}),
		ExposedHeaders: getEnvStringSlice("CORS_EXPOSED_HEADERS", []string{"X-Correlation-ID", "X-Request-ID"}),
		MaxAge:         getEnvInt("CORS_MAX_AGE", 3600),
	}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
