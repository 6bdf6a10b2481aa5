package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/radai/internal/storage"
)

// AI provider names.
const (
	AIProviderGemini    = "gemini"
	AIProviderAnthropic = "anthropic"
	AIProviderMock      = "mock"
)

// Notification provider names.
const (
	NotifyProviderEmailJS = "emailjs"
	NotifyProviderResend  = "resend"
	NotifyProviderSMTP    = "smtp"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Storage Configuration
	StorageProvider string // memory, local, r2, redis or postgres

	// Local Storage (development)
	LocalStoragePath string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Endpoint        string // Optional S3-compatible endpoint override

	// Redis and Postgres storage
	RedisURL    string
	DatabaseUrl string

	// AI Provider Configuration
	AIProvider          string // gemini, anthropic or mock
	GeminiAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	AnthropicAPIKey     string
	AnthropicModel      string
	AIRequestTimeout    time.Duration // Zero keeps the transport default
	AIMaxImageDimension int           // Zero disables downscaling

	// Notification Configuration
	NotifyProvider    string // emailjs, resend or smtp
	NotifyFromName    string
	NotifyTimeout     time.Duration // Zero keeps the transport default
	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	ResendAPIKey      string
	ResendFrom        string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string

	// Flow sessions
	SessionTTL       time.Duration
	AnalyzeRateLimit int // Analyses per client IP per minute

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsEnabled  bool
	MetricsUsername string
	MetricsPassword string
}

// NewConfig loads .env when present and reads the environment.
//
// Only structural mistakes fail here. Missing model or email credentials
// are reported by MissingCredentials and surface as config_missing errors
// when the capability is used.
func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", storage.ProviderLocal),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseUrl: getEnv("DATABASE_URL", ""),

		AIProvider:          getEnv("AI_PROVIDER", AIProviderGemini),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnv("ANTHROPIC_MODEL", ""),
		AIRequestTimeout:    getEnvDuration("AI_REQUEST_TIMEOUT", 0),
		AIMaxImageDimension: getEnvInt("AI_MAX_IMAGE_DIMENSION", 2048),

		NotifyProvider:    getEnv("NOTIFY_PROVIDER", NotifyProviderEmailJS),
		NotifyFromName:    getEnv("NOTIFY_FROM_NAME", "RadAI Orchestrator"),
		NotifyTimeout:     getEnvDuration("NOTIFY_REQUEST_TIMEOUT", 0),
		EmailJSServiceID:  getEnv("EMAILJS_SERVICE_ID", ""),
		EmailJSTemplateID: getEnv("EMAILJS_TEMPLATE_ID", ""),
		EmailJSPublicKey:  getEnv("EMAILJS_PUBLIC_KEY", ""),
		EmailJSPrivateKey: getEnv("EMAILJS_PRIVATE_KEY", ""),
		ResendAPIKey:      getEnv("RESEND_API_KEY", ""),
		ResendFrom:        getEnv("RESEND_FROM", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnvInt("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          getEnv("SMTP_FROM_EMAIL", ""),

		SessionTTL:       getEnvDuration("SESSION_TTL", time.Hour),
		AnalyzeRateLimit: getEnvInt("ANALYZE_RATE_LIMIT", 10),

		// Metrics authentication
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	// Validate storage configuration
	switch c.StorageProvider {
	case storage.ProviderMemory, storage.ProviderLocal:
	case storage.ProviderR2:
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY are required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccountID == "" && c.R2Endpoint == "" {
			return fmt.Errorf("R2_ACCOUNT_ID or R2_ENDPOINT is required when STORAGE_PROVIDER is 'r2'")
		}
	case storage.ProviderRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORAGE_PROVIDER is 'redis'")
		}
	case storage.ProviderPostgres:
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_PROVIDER is 'postgres'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be one of memory, local, r2, redis or postgres, got: %s", c.StorageProvider)
	}

	switch c.AIProvider {
	case AIProviderGemini, AIProviderAnthropic, AIProviderMock:
	default:
		return fmt.Errorf("AI_PROVIDER must be one of gemini, anthropic or mock, got: %s", c.AIProvider)
	}

	switch c.NotifyProvider {
	case NotifyProviderEmailJS, NotifyProviderResend, NotifyProviderSMTP:
	default:
		return fmt.Errorf("NOTIFY_PROVIDER must be one of emailjs, resend or smtp, got: %s", c.NotifyProvider)
	}

	if c.AIMaxImageDimension < 0 {
		return fmt.Errorf("AI_MAX_IMAGE_DIMENSION must not be negative, got: %d", c.AIMaxImageDimension)
	}
	if c.AnalyzeRateLimit < 1 {
		return fmt.Errorf("ANALYZE_RATE_LIMIT must be at least 1, got: %d", c.AnalyzeRateLimit)
	}
	return nil
}

// MissingCredentials lists the unset variables the selected AI and
// notification providers need. Startup continues; the caller logs them.
func (c *Config) MissingCredentials() []string {
	var missing []string
	add := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch c.AIProvider {
	case AIProviderGemini:
		add("GEMINI_API_KEY", c.GeminiAPIKey)
	case AIProviderAnthropic:
		add("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	}

	switch c.NotifyProvider {
	case NotifyProviderEmailJS:
		add("EMAILJS_SERVICE_ID", c.EmailJSServiceID)
		add("EMAILJS_TEMPLATE_ID", c.EmailJSTemplateID)
		add("EMAILJS_PUBLIC_KEY", c.EmailJSPublicKey)
	case NotifyProviderResend:
		add("RESEND_API_KEY", c.ResendAPIKey)
		add("RESEND_FROM", c.ResendFrom)
	case NotifyProviderSMTP:
		add("SMTP_HOST", c.SMTPHost)
		add("SMTP_FROM_EMAIL", c.SMTPFrom)
	}
	return missing
}

// IsProduction reports whether HTTPS-only settings apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
