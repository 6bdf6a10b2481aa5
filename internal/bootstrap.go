package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/ai/anthropic"
	"github.com/DukeRupert/radai/internal/ai/gemini"
	"github.com/DukeRupert/radai/internal/ai/mock"
	"github.com/DukeRupert/radai/internal/email"
	"github.com/DukeRupert/radai/internal/service"
	"github.com/DukeRupert/radai/internal/storage"
	"github.com/DukeRupert/radai/internal/store"
)

// App holds the components shared by the HTTP server and the CLI.
type App struct {
	Storage  storage.Storage
	Reports  *store.ReportStore
	Analyzer ai.Analyzer
	Notifier email.Notifier
	Service  service.ReportService

	closers []func() error
}

// Build wires storage, the analysis and notification providers, and the
// report service from cfg.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	app := &App{}

	st, err := app.openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Storage = st
	app.Reports = store.New(st, logger)
	app.Analyzer = NewAnalyzer(cfg, logger)
	app.Notifier = NewNotifier(cfg, logger)
	app.Service = service.NewReportService(
		app.Analyzer,
		app.Notifier,
		app.Reports,
		st,
		service.NewImageNormalizer(cfg.AIMaxImageDimension),
		logger,
	)

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn("capability credentials are not set; affected actions will fail with config_missing",
			"missing", missing,
			"ai_provider", cfg.AIProvider,
			"notify_provider", cfg.NotifyProvider,
		)
	}

	logger.Info("application initialized",
		"storage", cfg.StorageProvider,
		"ai_provider", app.Analyzer.Name(),
		"notify_provider", app.Notifier.Name(),
	)
	return app, nil
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *App) openStorage(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderMemory:
		logger.Warn("using in-memory storage; reports are lost on restart")
		return storage.NewMemoryStorage(), nil

	case storage.ProviderLocal:
		st, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: cfg.LocalStoragePath}, logger)
		if err != nil {
			return nil, fmt.Errorf("local storage initialization failed: %w", err)
		}
		return st, nil

	case storage.ProviderR2:
		st, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Endpoint:        cfg.R2Endpoint,
			UsePathStyle:    cfg.R2Endpoint != "",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("r2 storage initialization failed: %w", err)
		}
		return st, nil

	case storage.ProviderRedis:
		st, err := storage.NewRedisStorage(ctx, storage.RedisConfig{URL: cfg.RedisURL}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis storage initialization failed: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, nil

	case storage.ProviderPostgres:
		if err := MigrateDatabase(ctx, cfg.DatabaseUrl); err != nil {
			return nil, err
		}
		st, err := storage.NewPostgresStorage(ctx, storage.PostgresConfig{DatabaseURL: cfg.DatabaseUrl}, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres storage initialization failed: %w", err)
		}
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
}

// NewAnalyzer returns the configured analysis provider. A missing API key
// is not an error here; the provider reports it on first use.
func NewAnalyzer(cfg *Config, logger *slog.Logger) ai.Analyzer {
	providerCfg := ai.ProviderConfig{RequestTimeout: cfg.AIRequestTimeout}

	switch cfg.AIProvider {
	case AIProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: providerCfg,
		}, logger)
	case AIProviderMock:
		return mock.New(logger)
	default:
		return gemini.New(gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			BaseURL:        cfg.GeminiBaseURL,
			ProviderConfig: providerCfg,
		}, logger)
	}
}

// NewNotifier returns the configured notification provider.
func NewNotifier(cfg *Config, logger *slog.Logger) email.Notifier {
	switch cfg.NotifyProvider {
	case NotifyProviderResend:
		return email.NewResendNotifier(email.ResendConfig{
			APIKey:   cfg.ResendAPIKey,
			From:     cfg.ResendFrom,
			FromName: cfg.NotifyFromName,
			Timeout:  cfg.NotifyTimeout,
		}, logger)
	case NotifyProviderSMTP:
		return email.NewSMTPNotifier(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.NotifyFromName,
		}, logger)
	default:
		return email.NewEmailJSNotifier(email.EmailJSConfig{
			ServiceID:  cfg.EmailJSServiceID,
			TemplateID: cfg.EmailJSTemplateID,
			PublicKey:  cfg.EmailJSPublicKey,
			PrivateKey: cfg.EmailJSPrivateKey,
			FromName:   cfg.NotifyFromName,
			Timeout:    cfg.NotifyTimeout,
		}, logger)
	}
}
