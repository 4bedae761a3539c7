package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
  output: /tmp/shotprogress.log
worker:
  tick_interval: 250ms
  read_timeout: 2s
marshal:
  buffer_size: 16
  sink_timeout: 1s
hooks:
  starting_priority: 300
  ending_priority: 1
metadata:
  backend: postgres
  postgres:
    dsn: postgres://lab@localhost/shots
    table: sequences
pubsub:
  project_id: lab
  topic_name: shot-progress
tui:
  enabled: true
  width: 60
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.Enabled {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Logging.Development || cfg.Logging.Output != "/tmp/shotprogress.log" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Worker.TickInterval != 250*time.Millisecond || cfg.Worker.ReadTimeout != 2*time.Second {
		t.Fatalf("unexpected worker config: %+v", cfg.Worker)
	}
	if cfg.Marshal.BufferSize != 16 || cfg.Marshal.SinkTimeout != time.Second {
		t.Fatalf("unexpected marshal config: %+v", cfg.Marshal)
	}
	if cfg.Hooks.StartingPriority != 300 || cfg.Hooks.EndingPriority != 1 {
		t.Fatalf("unexpected hooks config: %+v", cfg.Hooks)
	}
	if cfg.Metadata.Backend != BackendPostgres || cfg.Metadata.Postgres.Table != "sequences" {
		t.Fatalf("unexpected metadata config: %+v", cfg.Metadata)
	}
	if cfg.Metadata.Postgres.MaxConns != 4 {
		t.Fatalf("expected default max_conns 4, got %d", cfg.Metadata.Postgres.MaxConns)
	}
	if cfg.PubSub.TopicName != "shot-progress" {
		t.Fatalf("unexpected pubsub config: %+v", cfg.PubSub)
	}
	if !cfg.TUI.Enabled || cfg.TUI.Width != 60 || cfg.TUI.Title != "Shot progress" {
		t.Fatalf("unexpected tui config: %+v", cfg.TUI)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Worker.TickInterval != 500*time.Millisecond {
		t.Fatalf("expected 500ms tick, got %v", cfg.Worker.TickInterval)
	}
	if cfg.Hooks.StartingPriority != 200 || cfg.Hooks.EndingPriority != 5 {
		t.Fatalf("unexpected default priorities: %+v", cfg.Hooks)
	}
	if cfg.Metadata.Backend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Metadata.Backend)
	}
	if cfg.Logging.Output != "stderr" {
		t.Fatalf("expected stderr output, got %q", cfg.Logging.Output)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Enabled: true, Port: 8080},
		Worker:   WorkerConfig{TickInterval: time.Second, ReadTimeout: time.Second},
		Marshal:  MarshalConfig{BufferSize: 1, SinkTimeout: time.Second},
		Metadata: MetadataConfig{Backend: BackendMemory},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "tick", mutate: func(c *Config) { c.Worker.TickInterval = 0 }, want: "worker.tick_interval"},
		{name: "read timeout", mutate: func(c *Config) { c.Worker.ReadTimeout = 0 }, want: "worker.read_timeout"},
		{name: "buffer", mutate: func(c *Config) { c.Marshal.BufferSize = 0 }, want: "marshal.buffer_size"},
		{name: "sink timeout", mutate: func(c *Config) { c.Marshal.SinkTimeout = 0 }, want: "marshal.sink_timeout"},
		{name: "backend", mutate: func(c *Config) { c.Metadata.Backend = "redis" }, want: "not supported"},
		{name: "file dir", mutate: func(c *Config) { c.Metadata.Backend = BackendFile }, want: "metadata.base_dir"},
		{name: "postgres dsn", mutate: func(c *Config) { c.Metadata.Backend = BackendPostgres }, want: "metadata.postgres.dsn"},
		{name: "gcs bucket", mutate: func(c *Config) { c.Metadata.Backend = BackendGCS }, want: "metadata.gcs.bucket"},
		{name: "pubsub project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
		{name: "tui and console", mutate: func(c *Config) { c.TUI.Enabled = true; c.Console.Enabled = true }, want: "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.want)
			}
		})
	}

	disabled := base
	disabled.Server = ServerConfig{Enabled: false}
	if err := disabled.Validate(); err != nil {
		t.Fatalf("disabled server should not require a port: %v", err)
	}
}
