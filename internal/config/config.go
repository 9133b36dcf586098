package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Feed      FeedConfig      `yaml:"feed" mapstructure:"feed"`
	Region    RegionConfig    `yaml:"region" mapstructure:"region"`
	State     StateConfig     `yaml:"state" mapstructure:"state"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	Telegram  TelegramConfig  `yaml:"telegram" mapstructure:"telegram"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Decoder   DecoderConfig   `yaml:"decoder" mapstructure:"decoder"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// FeedConfig configures the upstream NOTAM feed.
type FeedConfig struct {
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	Token       string   `yaml:"token" mapstructure:"token"`
	Stations    []string `yaml:"stations" mapstructure:"stations"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PageSize    int      `yaml:"page_size" mapstructure:"page_size"`
}

// RegionConfig describes the monitored airspace.
type RegionConfig struct {
	FIR      string `yaml:"fir" mapstructure:"fir"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// StateConfig locates the durable state aggregate.
type StateConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LedgerConfig configures the run-history backend.
type LedgerConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxEntries  int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// TelegramConfig holds the notification channel credentials.
type TelegramConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	ChatID string `yaml:"chat_id" mapstructure:"chat_id"`
}

// AnthropicConfig holds the explanation-service credential pool and model.
type AnthropicConfig struct {
	Keys      []string `yaml:"keys" mapstructure:"keys"`
	Model     string   `yaml:"model" mapstructure:"model"`
	MaxTokens int64    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DecoderConfig configures the out-of-process NOTAM decoder.
type DecoderConfig struct {
	Command     string   `yaml:"command" mapstructure:"command"`
	Args        []string `yaml:"args" mapstructure:"args"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RunConfig bounds a single pipeline run.
type RunConfig struct {
	DeadlineSecs int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	MaxParallel  int `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// ServerConfig configures the read-only status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NOTAMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("feed.base_url", "https://avwx.rest/api/notam")
	v.SetDefault("feed.stations", []string{"OIIE"})
	v.SetDefault("feed.timeout_secs", 20)
	v.SetDefault("feed.page_size", 50)
	v.SetDefault("region.fir", "OIIX")
	v.SetDefault("region.timezone", "Asia/Tehran")
	v.SetDefault("state.path", "state.json")
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.database_url", "notamwatch.db")
	v.SetDefault("ledger.max_entries", 250)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("decoder.command", "notamdecode")
	v.SetDefault("decoder.timeout_secs", 20)
	v.SetDefault("run.deadline_secs", 300)
	v.SetDefault("run.max_parallel", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
