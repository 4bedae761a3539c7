// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Metadata backends understood by the service.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Marshal  MarshalConfig  `mapstructure:"marshal"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Console  ConsoleConfig  `mapstructure:"console"`
}

// ServerConfig controls the HTTP host surface.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the log destination.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Output      string `mapstructure:"output"`
}

// WorkerConfig tunes the progress worker.
type WorkerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

// MarshalConfig tunes the presentation loop.
type MarshalConfig struct {
	BufferSize  int           `mapstructure:"buffer_size"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
}

// HooksConfig sets the callback priorities. Lower values run first.
type HooksConfig struct {
	StartingPriority int `mapstructure:"starting_priority"`
	EndingPriority   int `mapstructure:"ending_priority"`
}

// MetadataConfig selects where run counters are read from.
type MetadataConfig struct {
	Backend  string         `mapstructure:"backend"`
	BaseDir  string         `mapstructure:"base_dir"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	GCS      GCSConfig      `mapstructure:"gcs"`
}

// PostgresConfig controls access to the work item table.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// GCSConfig names the bucket holding attribute sidecars.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// PubSubConfig holds metadata for run lifecycle notifications. Publishing is
// disabled when TopicName is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TUIConfig controls the terminal progress display.
type TUIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Width   int    `mapstructure:"width"`
	Title   string `mapstructure:"title"`
}

// ConsoleConfig controls the plain text bar written to stdout when the TUI is
// disabled.
type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Width   int  `mapstructure:"width"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOTPROGRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("worker.tick_interval", 500*time.Millisecond)
	v.SetDefault("worker.read_timeout", 5*time.Second)
	v.SetDefault("marshal.buffer_size", 64)
	v.SetDefault("marshal.sink_timeout", 5*time.Second)
	v.SetDefault("hooks.starting_priority", 200)
	v.SetDefault("hooks.ending_priority", 5)
	v.SetDefault("metadata.backend", BackendMemory)
	v.SetDefault("metadata.postgres.table", "work_items")
	v.SetDefault("metadata.postgres.max_conns", 4)
	v.SetDefault("tui.enabled", false)
	v.SetDefault("tui.width", 40)
	v.SetDefault("tui.title", "Shot progress")
	v.SetDefault("console.enabled", false)
	v.SetDefault("console.width", 30)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Worker.TickInterval <= 0 {
		return fmt.Errorf("worker.tick_interval must be > 0")
	}
	if c.Worker.ReadTimeout <= 0 {
		return fmt.Errorf("worker.read_timeout must be > 0")
	}
	if c.Marshal.BufferSize <= 0 {
		return fmt.Errorf("marshal.buffer_size must be > 0")
	}
	if c.Marshal.SinkTimeout <= 0 {
		return fmt.Errorf("marshal.sink_timeout must be > 0")
	}
	switch c.Metadata.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Metadata.BaseDir == "" {
			return fmt.Errorf("metadata.base_dir must be set for the file backend")
		}
	case BackendPostgres:
		if c.Metadata.Postgres.DSN == "" {
			return fmt.Errorf("metadata.postgres.dsn must be set for the postgres backend")
		}
	case BackendGCS:
		if c.Metadata.GCS.Bucket == "" {
			return fmt.Errorf("metadata.gcs.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("metadata.backend %q is not supported", c.Metadata.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.TUI.Enabled && c.Console.Enabled {
		return fmt.Errorf("tui.enabled and console.enabled are mutually exclusive")
	}
	return nil
}
