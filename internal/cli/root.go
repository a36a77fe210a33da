package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/obrasai/vigia/internal/config"
	"github.com/obrasai/vigia/pkg/engine"
	"github.com/obrasai/vigia/pkg/notify"
	"github.com/obrasai/vigia/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vigia",
	Short: "Vigia - Detecção de desvios orçamentários em obras",
	Long: `Vigia monitora o orçamento de obras em andamento, compara o realizado
com o previsto por categoria e gera alertas com severidade escalonada
(BAIXO, MEDIO, ALTO, CRITICO) quando o desvio ultrapassa os limites
configurados para cada obra.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.vigia/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates the storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(
			cfg.Notify.Slack.WebhookURL,
			cfg.Notify.Slack.Channel,
		))
	}

	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(
			cfg.Notify.Webhook.URL,
			cfg.Notify.Webhook.Secret,
		))
	}

	return notifiers
}

// initEngine wires the full deviation engine on top of a storage backend.
func initEngine(cfg *config.Config) (*engine.Orchestrator, *engine.LifecycleManager, *engine.StatsAggregator, storage.Storage, error) {
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	notifiers := initNotifiers(cfg)
	calculator := engine.NewCalculator(store, logger)
	lifecycle := engine.NewLifecycleManager(store, notifiers, logger)
	pipeline := engine.NewPipeline(store, calculator, lifecycle, cfg.Thresholds.Defaults, logger)

	orchestrator := engine.NewOrchestrator(store, pipeline, engine.OrchestratorConfig{
		BatchSize:   cfg.Engine.BatchSize,
		BatchPause:  config.Duration(cfg.Engine.BatchPause, time.Second),
		ObraTimeout: config.Duration(cfg.Engine.ObraTimeout, 30*time.Second),
	}, logger)

	stats := engine.NewStatsAggregator(store)

	return orchestrator, lifecycle, stats, store, nil
}
