package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/obrasai/vigia/pkg/model"
)

// Config holds all Vigia configuration.
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig defines HTTP API settings.
type ServerConfig struct {
	Listen       string `mapstructure:"listen" validate:"required"`
	ReadTimeout  string `mapstructure:"read_timeout" validate:"omitempty,duration"`
	WriteTimeout string `mapstructure:"write_timeout" validate:"omitempty,duration"`
}

// EngineConfig tunes the batch orchestrator and scheduler.
type EngineConfig struct {
	BatchSize        int    `mapstructure:"batch_size" validate:"gte=1,lte=100"`
	BatchPause       string `mapstructure:"batch_pause" validate:"omitempty,duration"`
	ObraTimeout      string `mapstructure:"obra_timeout" validate:"omitempty,duration"`
	ScheduleInterval string `mapstructure:"schedule_interval" validate:"omitempty,duration"`
}

// ThresholdsConfig defines the system default severity boundaries, used for
// projects without an active per-project configuration. An optional YAML
// profile file overrides the inline defaults.
type ThresholdsConfig struct {
	Defaults model.Thresholds `mapstructure:"defaults"`
	File     string           `mapstructure:"file"`
}

// NotifyConfig defines downstream alert channels.
type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Slack   SlackConfig   `mapstructure:"slack"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true,omitempty,url"`
	Secret  string `mapstructure:"secret"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
	Channel    string `mapstructure:"channel"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from file and environment variables, resolves
// the threshold profile (if any) and validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".vigia"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	defaults := model.DefaultThresholds()
	v.SetDefault("storage.path", filepath.Join(home, ".vigia", "vigia.db"))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("engine.batch_size", 5)
	v.SetDefault("engine.batch_pause", "1s")
	v.SetDefault("engine.obra_timeout", "30s")
	v.SetDefault("engine.schedule_interval", "0s") // 0 disables the scheduler
	v.SetDefault("thresholds.defaults.baixo", defaults.Baixo)
	v.SetDefault("thresholds.defaults.medio", defaults.Medio)
	v.SetDefault("thresholds.defaults.alto", defaults.Alto)
	v.SetDefault("thresholds.defaults.critico", defaults.Critico)
	v.SetDefault("notify.slack.channel", "#obras-alertas")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("VIGIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Thresholds.File != "" {
		th, err := LoadThresholdProfile(cfg.Thresholds.File)
		if err != nil {
			return nil, fmt.Errorf("load threshold profile: %w", err)
		}
		cfg.Thresholds.Defaults = th
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadThresholdProfile reads a YAML file with the four default severity
// boundaries (keys: baixo, medio, alto, critico).
func LoadThresholdProfile(path string) (model.Thresholds, error) {
	var th model.Thresholds

	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parse profile: %w", err)
	}
	return th, nil
}
