// Package main provides the data diagnostics CLI for the paper analysis
// database. It runs the verification suite once and exits non-zero when
// any check errs or reports problems; applied repairs alone do not fail
// the run. With -serve it keeps running, re-checking on an interval and
// exposing the latest report and Prometheus metrics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperlyzer/analysis-service/internal/config"
	"github.com/paperlyzer/analysis-service/internal/database"
	"github.com/paperlyzer/analysis-service/internal/diagnostics"
	"github.com/paperlyzer/analysis-service/internal/domain"
	"github.com/paperlyzer/analysis-service/internal/observability"
	"github.com/paperlyzer/analysis-service/internal/repository"
	"github.com/paperlyzer/analysis-service/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serve := flag.Bool("serve", false, "keep running and expose /healthz, /report, /metrics")
	interval := flag.Duration("interval", 5*time.Minute, "re-check interval in -serve mode")
	repair := flag.Bool("repair", true, "apply the sentence-flag drift repair")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Diagnostics.Repair = cfg.Diagnostics.Repair && *repair

	format := "console"
	if *serve {
		format = cfg.Logging.Format
	}
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     format,
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "diagnose").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics("paperlyzer")
	suite := buildSuite(ctx, cfg, db, metrics, logger)

	if !*serve {
		report := suite.Run(ctx)
		report.Render(os.Stdout)
		if report.Failed() {
			return fmt.Errorf("%d problem(s) found", report.Problems())
		}
		return nil
	}

	return serveLoop(ctx, cfg, db, suite, *interval, logger)
}

// buildSuite wires the check suite. The webhook base URL can be overridden
// at runtime through the system_settings table, so the client is built
// after consulting it.
func buildSuite(ctx context.Context, cfg *config.Config, db *database.DB, metrics *observability.Metrics, logger zerolog.Logger) *diagnostics.Suite {
	paperRepo := repository.NewPgPaperRepository(db)
	selectionRepo := repository.NewPgSelectionRepository(db)
	queueRepo := repository.NewPgQueueRepository(db)
	settingsRepo := repository.NewPgSettingsRepository(db)

	webhookCfg := cfg.Webhook
	if setting, err := settingsRepo.Get(ctx, domain.SettingWebhookBaseURL); err == nil {
		if override, ok := setting.Value["url"].(string); ok && override != "" {
			logger.Info().Str("base_url", override).Msg("webhook base URL overridden by system setting")
			webhookCfg.BaseURL = override
		}
	}
	client := webhook.NewClient(webhookCfg, metrics, logger)

	return diagnostics.NewSuite(metrics, logger,
		diagnostics.NewSchemaPresenceCheck(database.NewInspector(db)),
		diagnostics.NewSentenceFlagDriftCheck(paperRepo, cfg.Diagnostics.Repair),
		diagnostics.NewSelectionUniquenessCheck(selectionRepo),
		diagnostics.NewOrphanScanCheck(db),
		diagnostics.NewQueueHealthCheck(queueRepo, cfg.Diagnostics.StuckThreshold),
		diagnostics.NewWebhookWiringCheck(client),
	)
}

// serveLoop runs the suite on an interval while serving the latest report.
func serveLoop(ctx context.Context, cfg *config.Config, db *database.DB, suite *diagnostics.Suite, interval time.Duration, logger zerolog.Logger) error {
	server := diagnostics.NewServer(cfg.Diagnostics.ListenAddr, db, cfg.Metrics.Path, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	server.SetReport(suite.Run(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
			}
			return nil
		case err := <-errCh:
			return fmt.Errorf("diagnostics server: %w", err)
		case <-ticker.C:
			server.SetReport(suite.Run(ctx))
		}
	}
}
