// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetWebhookRatePerSecond() float64
	GetWebhookRateBurst() int
}

// WhatsAppConfig provides settings for the WhatsApp Cloud API.
type WhatsAppConfig interface {
	GetWhatsAppVerifyToken() string
	GetWhatsAppAccessToken() string
	GetWhatsAppPhoneNumberID() string
	GetWhatsAppAPIBaseURL() string
	IsWhatsAppEnabled() bool
}

// GeminiConfig provides settings for the hosted language model.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetModelTimeout() time.Duration
	IsGeminiEnabled() bool
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetDatasetBucket() string
	IsMinIOEnabled() bool
}

// DatasetConfig provides the object path of every raw dataset extract.
// An empty path means the dataset is not configured.
type DatasetConfig interface {
	GetDatasetPath(dataset string) string
	GetDatasetDir() string
	GetFetchTimeout() time.Duration
	GetRefreshCron() string
}

// SchedulerConfig provides settings for the Redis-backed task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// AssistantConfig provides tunables of the dispatch loop and the query tools.
type AssistantConfig interface {
	GetMaxToolRounds() int
	GetPurchaseHistoryDays() int
	GetPaymentPortalURL() string
	GetDedupCapacity() int
	GetDedupTTL() time.Duration
	GetSendTimeout() time.Duration
	GetDefaultPhoneRegion() string
	GetConversationRetention() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	WebhookRatePerSecond float64
	WebhookRateBurst     int
	DatabaseURL          string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	WhatsAppVerifyToken  string
	WhatsAppAccessToken  string
	WhatsAppPhoneID      string
	WhatsAppAPIBaseURL   string
	GeminiAPIKey         string
	GeminiModel          string
	ModelTimeout         time.Duration
	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	DatasetBucket        string
	DatasetPaths         map[string]string
	DatasetDir           string
	FetchTimeout         time.Duration
	RefreshCron          string
	MaxToolRounds        int
	PurchaseHistoryDays  int
	PaymentPortalURL     string
	DedupCapacity        int
	DedupTTL             time.Duration
	SendTimeout          time.Duration
	DefaultPhoneRegion   string
	ChatLogRetention     time.Duration
}

// datasetEnv maps dataset names to the environment variable holding their object path.
var datasetEnv = map[string]string{
	"ledger":              "DATASET_PATH_LEDGER",
	"customers":           "DATASET_PATH_CUSTOMERS",
	"inventory":           "DATASET_PATH_INVENTORY",
	"suppliers":           "DATASET_PATH_SUPPLIERS",
	"sales":               "DATASET_PATH_SALES",
	"collections":         "DATASET_PATH_COLLECTIONS",
	"supplementary_sales": "DATASET_PATH_SUPPLEMENTARY_SALES",
	"prices":              "DATASET_PATH_PRICES",
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string              { return c.HTTPAddr }
func (c *Config) GetWebhookRatePerSecond() float64 { return c.WebhookRatePerSecond }
func (c *Config) GetWebhookRateBurst() int         { return c.WebhookRateBurst }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppVerifyToken() string   { return c.WhatsAppVerifyToken }
func (c *Config) GetWhatsAppAccessToken() string   { return c.WhatsAppAccessToken }
func (c *Config) GetWhatsAppPhoneNumberID() string { return c.WhatsAppPhoneID }
func (c *Config) GetWhatsAppAPIBaseURL() string    { return c.WhatsAppAPIBaseURL }
func (c *Config) IsWhatsAppEnabled() bool {
	return c.WhatsAppAccessToken != "" && c.WhatsAppPhoneID != ""
}

// GeminiConfig implementation
func (c *Config) GetGeminiAPIKey() string        { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string         { return c.GeminiModel }
func (c *Config) GetModelTimeout() time.Duration { return c.ModelTimeout }
func (c *Config) IsGeminiEnabled() bool          { return c.GeminiAPIKey != "" }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetDatasetBucket() string  { return c.DatasetBucket }
func (c *Config) IsMinIOEnabled() bool      { return c.MinIOEndpoint != "" }

// DatasetConfig implementation
func (c *Config) GetDatasetPath(dataset string) string { return c.DatasetPaths[dataset] }
func (c *Config) GetDatasetDir() string                { return c.DatasetDir }
func (c *Config) GetFetchTimeout() time.Duration       { return c.FetchTimeout }
func (c *Config) GetRefreshCron() string               { return c.RefreshCron }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// AssistantConfig implementation
func (c *Config) GetMaxToolRounds() int         { return c.MaxToolRounds }
func (c *Config) GetPurchaseHistoryDays() int   { return c.PurchaseHistoryDays }
func (c *Config) GetPaymentPortalURL() string   { return c.PaymentPortalURL }
func (c *Config) GetDedupCapacity() int         { return c.DedupCapacity }
func (c *Config) GetDedupTTL() time.Duration    { return c.DedupTTL }
func (c *Config) GetSendTimeout() time.Duration { return c.SendTimeout }
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultPhoneRegion }
func (c *Config) GetConversationRetention() time.Duration {
	return c.ChatLogRetention
}

// IsDatabaseEnabled reports whether a Postgres URL is configured.
func (c *Config) IsDatabaseEnabled() bool { return c.DatabaseURL != "" }

// IsRedisEnabled reports whether a Redis URL is configured.
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	paths := make(map[string]string, len(datasetEnv))
	for name, key := range datasetEnv {
		if v := strings.TrimSpace(getEnv(key, "")); v != "" {
			paths[name] = v
		}
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		WebhookRatePerSecond: mustFloat(getEnv("WEBHOOK_RATE_PER_SECOND", "20")),
		WebhookRateBurst:     mustInt(getEnv("WEBHOOK_RATE_BURST", "40")),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		WhatsAppVerifyToken:  getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAccessToken:  getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneID:      getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIBaseURL:   getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-flash-latest"),
		ModelTimeout:         mustDuration(getEnv("MODEL_TIMEOUT", "60s")),
		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:       getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:       getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:          strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		DatasetBucket:        getEnv("DATASET_BUCKET", "datasets"),
		DatasetPaths:         paths,
		DatasetDir:           getEnv("DATASET_DIR", ""),
		FetchTimeout:         mustDuration(getEnv("DATASET_FETCH_TIMEOUT", "60s")),
		RefreshCron:          getEnv("DATASET_REFRESH_CRON", ""),
		MaxToolRounds:        mustInt(getEnv("MAX_TOOL_ROUNDS", "8")),
		PurchaseHistoryDays:  mustInt(getEnv("PURCHASE_HISTORY_DAYS", "60")),
		PaymentPortalURL:     getEnv("PAYMENT_PORTAL_URL", ""),
		DedupCapacity:        mustInt(getEnv("DEDUP_CAPACITY", "1000")),
		DedupTTL:             mustDuration(getEnv("DEDUP_TTL", "24h")),
		SendTimeout:          mustDuration(getEnv("SEND_TIMEOUT", "10s")),
		DefaultPhoneRegion:   getEnv("DEFAULT_PHONE_REGION", "CO"),
		ChatLogRetention:     mustDuration(getEnv("CONVERSATION_RETENTION", "2160h")),
	}

	if cfg.MaxToolRounds < 1 {
		return nil, fmt.Errorf("MAX_TOOL_ROUNDS must be positive")
	}
	if cfg.PurchaseHistoryDays < 1 {
		return nil, fmt.Errorf("PURCHASE_HISTORY_DAYS must be positive")
	}
	if cfg.DedupCapacity < 1 {
		return nil, fmt.Errorf("DEDUP_CAPACITY must be positive")
	}
	if cfg.IsWhatsAppEnabled() && cfg.WhatsAppVerifyToken == "" {
		return nil, fmt.Errorf("WHATSAPP_VERIFY_TOKEN is required when WhatsApp delivery is enabled")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}
