package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/radai/internal/storage"
)

// clearEnv blanks every variable NewConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "PORT", "LOG_LEVEL", "STORAGE_PROVIDER", "LOCAL_STORAGE_PATH",
		"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_ENDPOINT",
		"REDIS_URL", "DATABASE_URL",
		"AI_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
		"AI_REQUEST_TIMEOUT", "AI_MAX_IMAGE_DIMENSION",
		"NOTIFY_PROVIDER", "NOTIFY_FROM_NAME", "NOTIFY_REQUEST_TIMEOUT",
		"EMAILJS_SERVICE_ID", "EMAILJS_TEMPLATE_ID", "EMAILJS_PUBLIC_KEY", "EMAILJS_PRIVATE_KEY",
		"RESEND_API_KEY", "RESEND_FROM",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM_EMAIL",
		"SESSION_TTL", "ANALYZE_RATE_LIMIT", "METRICS_ENABLED", "METRICS_USERNAME", "METRICS_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, storage.ProviderLocal, cfg.StorageProvider)
	assert.Equal(t, "./data", cfg.LocalStoragePath)
	assert.Equal(t, AIProviderGemini, cfg.AIProvider)
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.GeminiModel)
	assert.Zero(t, cfg.AIRequestTimeout)
	assert.Equal(t, 2048, cfg.AIMaxImageDimension)
	assert.Equal(t, NotifyProviderEmailJS, cfg.NotifyProvider)
	assert.Equal(t, "RadAI Orchestrator", cfg.NotifyFromName)
	assert.Zero(t, cfg.NotifyTimeout)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.AnalyzeRateLimit)
	assert.True(t, cfg.MetricsEnabled)
}

func TestNewConfig_MissingCredentialsDoNotFail(t *testing.T) {
	clearEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GEMINI_API_KEY",
		"EMAILJS_SERVICE_ID",
		"EMAILJS_TEMPLATE_ID",
		"EMAILJS_PUBLIC_KEY",
	}, cfg.MissingCredentials())
}

func TestMissingCredentials_PerProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"mock and complete emailjs", Config{AIProvider: AIProviderMock, NotifyProvider: NotifyProviderEmailJS, EmailJSServiceID: "s", EmailJSTemplateID: "t", EmailJSPublicKey: "p"}, nil},
		{"anthropic and resend", Config{AIProvider: AIProviderAnthropic, NotifyProvider: NotifyProviderResend, ResendFrom: "a@b.c"}, []string{"ANTHROPIC_API_KEY", "RESEND_API_KEY"}},
		{"smtp without host", Config{AIProvider: AIProviderMock, NotifyProvider: NotifyProviderSMTP, SMTPFrom: "a@b.c"}, []string{"SMTP_HOST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.MissingCredentials())
		})
	}
}

func TestNewConfig_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "s3"}, "STORAGE_PROVIDER"},
		{"r2 without bucket", map[string]string{"STORAGE_PROVIDER": "r2", "R2_ACCESS_KEY_ID": "k", "R2_SECRET_ACCESS_KEY": "s", "R2_ACCOUNT_ID": "a"}, "R2_BUCKET_NAME"},
		{"r2 without account or endpoint", map[string]string{"STORAGE_PROVIDER": "r2", "R2_BUCKET_NAME": "b", "R2_ACCESS_KEY_ID": "k", "R2_SECRET_ACCESS_KEY": "s"}, "R2_ACCOUNT_ID"},
		{"redis without url", map[string]string{"STORAGE_PROVIDER": "redis"}, "REDIS_URL"},
		{"postgres without dsn", map[string]string{"STORAGE_PROVIDER": "postgres"}, "DATABASE_URL"},
		{"unknown ai provider", map[string]string{"AI_PROVIDER": "openai"}, "AI_PROVIDER"},
		{"unknown notify provider", map[string]string{"NOTIFY_PROVIDER": "sendgrid"}, "NOTIFY_PROVIDER"},
		{"negative dimension", map[string]string{"AI_MAX_IMAGE_DIMENSION": "-1"}, "AI_MAX_IMAGE_DIMENSION"},
		{"zero rate limit", map[string]string{"ANALYZE_RATE_LIMIT": "0"}, "ANALYZE_RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("AI_REQUEST_TIMEOUT", "45s")
	t.Setenv("NOTIFY_REQUEST_TIMEOUT", "20s")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, storage.ProviderMemory, cfg.StorageProvider)
	assert.Equal(t, 45*time.Second, cfg.AIRequestTimeout)
	assert.Equal(t, 20*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 8080, cfg.Port, "malformed numbers fall back to the default")
	assert.False(t, cfg.MetricsEnabled)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "production", "info").Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "production logs are JSON: %s", buf.String())

	buf.Reset()
	NewLogger(&buf, "development", "info").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestBuild_MemoryMock(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("NOTIFY_PROVIDER", "resend")

	cfg, err := NewConfig()
	require.NoError(t, err)

	app, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "mock", app.Analyzer.Name())
	assert.Equal(t, "resend", app.Notifier.Name())
	assert.IsType(t, &storage.MemoryStorage{}, app.Storage)
	assert.NotNil(t, app.Service)
}

func TestBuild_LocalStorage(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCAL_STORAGE_PATH", t.TempDir())
	t.Setenv("NOTIFY_PROVIDER", "smtp")

	cfg, err := NewConfig()
	require.NoError(t, err)

	app, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, "gemini", app.Analyzer.Name())
	assert.Equal(t, "smtp", app.Notifier.Name())
	assert.IsType(t, &storage.LocalStorage{}, app.Storage)
	assert.NoError(t, app.Close())
}
