// Package config loads process bootstrap configuration for the deskflowd
// daemon. It is deliberately narrow: user-facing recording/shortcut
// definitions are an external GUI/CLI concern per spec.md §1 and are never
// parsed here.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds all bootstrap configuration for the daemon.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Replay     ReplayConfig     `mapstructure:"replay"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Version    string           `mapstructure:"version"`
}

// ServiceConfig identifies this process instance.
type ServiceConfig struct {
	Name        string `mapstructure:"name" envconfig:"SERVICE_NAME" default:"deskflowd"`
	Environment string `mapstructure:"environment" envconfig:"ENVIRONMENT" default:"development"`
}

// StorageConfig controls the persisted state layout of spec.md §6.
type StorageConfig struct {
	AppDataDir       string `mapstructure:"app_data_dir" envconfig:"APP_DATA_DIR" default:"./deskflow-data"`
	BusyTimeout      time.Duration `mapstructure:"busy_timeout" envconfig:"DB_BUSY_TIMEOUT" default:"5s"`
	HistoryRetention int    `mapstructure:"history_retention" envconfig:"HISTORY_RETENTION" default:"100"`
}

// EncryptionConfig controls at-rest blob encryption (spec.md §4.7).
// The master passphrase is supplied out-of-band per spec.md §6 and is
// never persisted or logged.
type EncryptionConfig struct {
	Enabled            bool   `mapstructure:"enabled" envconfig:"ENCRYPTION_ENABLED" default:"true"`
	Passphrase          string `mapstructure:"-" envconfig:"DESKFLOW_PASSPHRASE"`
	PBKDF2Iterations   int    `mapstructure:"pbkdf2_iterations" envconfig:"PBKDF2_ITERATIONS" default:"100000"`
}

// CaptureConfig controls the Capture Engine and Event Filter.
type CaptureConfig struct {
	MouseMoveCoalesceHz   int           `mapstructure:"mouse_move_coalesce_hz" envconfig:"MOUSE_MOVE_HZ" default:"120"`
	ClickCoalesceWindow   time.Duration `mapstructure:"click_coalesce_window" envconfig:"CLICK_COALESCE_WINDOW" default:"250ms"`
	DoubleClickWindow     time.Duration `mapstructure:"double_click_window" envconfig:"DOUBLE_CLICK_WINDOW" default:"500ms"`
	DoubleClickRadiusPx   int           `mapstructure:"double_click_radius_px" envconfig:"DOUBLE_CLICK_RADIUS_PX" default:"5"`
}

// ReplayConfig controls default PlaybackSettings overrides.
type ReplayConfig struct {
	DefaultSpeedMultiplier float64       `mapstructure:"default_speed_multiplier" envconfig:"DEFAULT_SPEED" default:"1.0"`
	DefaultMaxRetries      int           `mapstructure:"default_max_retries" envconfig:"DEFAULT_MAX_RETRIES" default:"3"`
	WindowRetryPause       time.Duration `mapstructure:"window_retry_pause" envconfig:"WINDOW_RETRY_PAUSE" default:"50ms"`
	ClipboardRestoreBound  time.Duration `mapstructure:"clipboard_restore_bound" envconfig:"CLIPBOARD_RESTORE_BOUND" default:"1s"`
}

// SchedulerConfig controls the scheduler's control loop cadence (spec.md §4.8).
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" envconfig:"SCHEDULER_TICK" default:"1s"`
}

// BackupConfig controls the optional S3-compatible cloud backup of blobs.
type BackupConfig struct {
	Enabled   bool   `mapstructure:"enabled" envconfig:"BACKUP_ENABLED" default:"false"`
	Bucket    string `mapstructure:"bucket" envconfig:"BACKUP_BUCKET"`
	Prefix    string `mapstructure:"prefix" envconfig:"BACKUP_PREFIX" default:"deskflow/recordings"`
	Region    string `mapstructure:"region" envconfig:"BACKUP_REGION" default:"us-east-1"`
	Endpoint  string `mapstructure:"endpoint" envconfig:"BACKUP_ENDPOINT"`
}

// LoggerConfig controls the zap-backed Logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// TelemetryConfig controls tracing/metrics.
type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	MetricsAddr    string `mapstructure:"metrics_addr" envconfig:"METRICS_ADDR" default:"127.0.0.1:9090"`
	ServiceName    string `mapstructure:"service_name" envconfig:"TELEMETRY_SERVICE_NAME"`
}

// Load loads configuration from an optional ./configs/config.yaml plus
// environment variable overrides.
func Load() (*Config, error) {
	var cfg Config

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Service.Name
	}
	if version := os.Getenv("VERSION"); version != "" {
		cfg.Version = version
	} else {
		cfg.Version = "dev"
	}

	if cfg.Encryption.Enabled && cfg.Encryption.Passphrase == "" {
		return nil, fmt.Errorf("encryption enabled but DESKFLOW_PASSPHRASE is not set")
	}

	return &cfg, nil
}
