package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort      string
	PublicBaseURL string
	JWTSecret     []byte
	AdminKeyHash  string
	Database      DatabaseConfig
	Redis         RedisConfig
	Upstream      UpstreamConfig
	Publisher     PublisherConfig
	Verify        VerifyConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// UpstreamConfig selects and configures the image-generation backend
type UpstreamConfig struct {
	Backend          string // "conversational" or "synthesis"
	Cookies          string // conversational session cookies
	SynthesisURL     string
	SynthesisAPIKey  string
	SynthesisCDNBase string
}

// PublisherConfig selects and configures the result publisher
type PublisherConfig struct {
	Mode          string // "local" or "s3"
	TempImageDir  string
	TempRetention time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	S3PublicBase  string
}

// VerifyConfig holds external auth-provider settings
type VerifyConfig struct {
	APIKey string // empty disables verification
}

// RateLimitConfig holds per-IP prompt rate limit settings
type RateLimitConfig struct {
	PromptLimit  int // requests per window, 0 disables
	PromptWindow time.Duration
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	Enabled       bool
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	RedisKey      string
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	Instance      string
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from the environment, honoring a local .env
// file when present.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:      getEnvString("HTTP_PORT", "3000"),
		PublicBaseURL: getEnvString("PUBLIC_BASE_URL", "http://localhost:3000"),
		JWTSecret:     []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		AdminKeyHash:  getEnvString("ADMIN_KEY_HASH", ""),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Upstream: UpstreamConfig{
			Backend:          getEnvString("UPSTREAM_BACKEND", "conversational"),
			Cookies:          getEnvString("UPSTREAM_COOKIES", ""),
			SynthesisURL:     getEnvString("SYNTHESIS_URL", ""),
			SynthesisAPIKey:  getEnvString("SYNTHESIS_API_KEY", ""),
			SynthesisCDNBase: getEnvString("SYNTHESIS_CDN_BASE", ""),
		},
		Publisher: PublisherConfig{
			Mode:          getEnvString("PUBLISH_MODE", "local"),
			TempImageDir:  getEnvString("TEMP_IMAGE_DIR", "temp/images"),
			TempRetention: getEnvDuration("TEMP_IMAGE_RETENTION", 120*time.Second),
			S3Bucket:      getEnvString("PUBLISH_S3_BUCKET", ""),
			S3Region:      getEnvString("PUBLISH_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("PUBLISH_S3_PREFIX", "images/"),
			S3PublicBase:  getEnvString("PUBLISH_S3_PUBLIC_BASE", ""),
		},
		Verify: VerifyConfig{
			APIKey: getEnvString("VERIFY_API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			PromptLimit:  getEnvInt("PROMPT_RATE_LIMIT", 0),
			PromptWindow: getEnvDuration("PROMPT_RATE_WINDOW", 1*time.Minute),
		},
		Audit: AuditConfig{
			Enabled:       getEnvString("AUDIT_ENABLED", "false") == "true",
			BufferSize:    getEnvInt("AUDIT_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("AUDIT_FLUSH_SIZE", 500),
			FlushInterval: getEnvDuration("AUDIT_FLUSH_INTERVAL", 1*time.Minute),
			RedisKey:      getEnvString("AUDIT_REDIS_KEY", "gateway:audit"),
			S3Bucket:      getEnvString("AUDIT_S3_BUCKET", ""),
			S3Region:      getEnvString("AUDIT_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("AUDIT_S3_PREFIX", "audit/"),
			Instance:      getEnvString("POD_NAME", "gateway-0"),
		},
	}

	return cfg, nil
}
