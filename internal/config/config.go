package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"invoicetrack/internal/logger"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string

	// Per-invoice write lock.
	LockTTL  time.Duration
	LockWait time.Duration
}

type StorageConfig struct {
	Driver       string // local or s3
	DocumentDir  string
	ExportDir    string
	PublicPrefix string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type DocumentAIConfig struct {
	Enabled          bool
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	CredentialsFile  string
	Timeout          time.Duration
}

type ScanConfig struct {
	Interval time.Duration
	CacheTTL time.Duration
}

type AppConfig struct {
	Port        string
	ExternalURL string
	AuthTokens  []string

	Postgres   PostgresConfig
	Redis      RedisConfig
	Storage    StorageConfig
	S3         S3Config
	DocumentAI DocumentAIConfig
	Scan       ScanConfig
	Log        logger.LogConfig

	ExportRetention time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration value %q: %v", s, err)
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() AppConfig {
	return AppConfig{
		Port:        getenv("APP_PORT", "8010"),
		ExternalURL: getenv("APP_EXTERNAL_URL", ""),
		AuthTokens:  splitList(getenv("APP_AUTH_TOKENS", "")),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "invoicetrack"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "invoicetrack"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "invoicetrack:"),
			LockTTL:     mustDuration(getenv("REDIS_LOCK_TTL", "15s")),
			LockWait:    mustDuration(getenv("REDIS_LOCK_WAIT", "5s")),
		},
		Storage: StorageConfig{
			Driver:       getenv("STORAGE_DRIVER", "local"),
			DocumentDir:  getenv("STORAGE_DOCUMENT_DIR", "./uploads"),
			ExportDir:    getenv("STORAGE_EXPORT_DIR", "./exports"),
			PublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", ""),
			SecretAccessKey: getenv("S3_SECRET_KEY", ""),
			Bucket:          getenv("S3_BUCKET", "invoice-documents"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", "documents/"),
		},
		DocumentAI: DocumentAIConfig{
			Enabled:          mustBool(getenv("DOCUMENT_AI_ENABLED", "false")),
			ProjectID:        getenv("GOOGLE_CLOUD_PROJECT", ""),
			Location:         getenv("GOOGLE_CLOUD_LOCATION", "us"),
			ProcessorID:      getenv("DOCUMENT_AI_PROCESSOR_ID", ""),
			ProcessorVersion: getenv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
			CredentialsFile:  getenv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			Timeout:          mustDuration(getenv("DOCUMENT_AI_TIMEOUT", "60s")),
		},
		Scan: ScanConfig{
			Interval: mustDuration(getenv("SCAN_INTERVAL", "15m")),
			CacheTTL: mustDuration(getenv("SCAN_CACHE_TTL", "1h")),
		},
		Log: logger.LogConfig{
			Level:      getenv("LOG_LEVEL", "info"),
			Format:     getenv("LOG_FORMAT", "json"),
			TimeFormat: getenv("LOG_TIME_FORMAT", time.RFC3339),
			Output:     getenv("LOG_OUTPUT", "stdout"),
		},
		ExportRetention: mustDuration(getenv("EXPORT_RETENTION", "30m")),
	}
}
