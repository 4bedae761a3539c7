// Package app builds the long-lived services and runs them until a signal
// arrives, acting as the dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/api"
	"github.com/JakeFAU/shotprogress/internal/clock/system"
	"github.com/JakeFAU/shotprogress/internal/config"
	"github.com/JakeFAU/shotprogress/internal/hooks"
	"github.com/JakeFAU/shotprogress/internal/id/uuid"
	"github.com/JakeFAU/shotprogress/internal/logging"
	"github.com/JakeFAU/shotprogress/internal/marshal"
	"github.com/JakeFAU/shotprogress/internal/marshal/sinks"
	"github.com/JakeFAU/shotprogress/internal/metadata/file"
	"github.com/JakeFAU/shotprogress/internal/metadata/gcs"
	"github.com/JakeFAU/shotprogress/internal/metadata/memory"
	"github.com/JakeFAU/shotprogress/internal/metadata/postgres"
	"github.com/JakeFAU/shotprogress/internal/metrics"
	"github.com/JakeFAU/shotprogress/internal/plugin"
	"github.com/JakeFAU/shotprogress/internal/progress"
	"github.com/JakeFAU/shotprogress/internal/tui"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	reader    progress.Reader
	workItems *memory.Reader
	pgReader  *postgres.Reader
	storage   *storage.Client
	pubsub    *pubsub.Client

	state     *sinks.StateSink
	marshal   *marshal.Marshal
	plugin    *plugin.Plugin
	hooks     *hooks.Registry
	server    *api.Server
	program   *tea.Program
	tuiSink   *tui.ProgramSink
	tuiRan    atomic.Bool
	renderers []marshal.Renderer

	stdout io.Writer
}

// Build wires every component described by cfg. The returned App owns the
// clients it created; call Run (or Close when Run is never called).
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Output)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger, os.Stdout)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, stdout io.Writer) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		stdout:   stdout,
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mtr, err := metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}

	a.logger.Info("building application dependencies",
		zap.String("metadata_backend", cfg.Metadata.Backend),
		zap.Bool("server", cfg.Server.Enabled),
		zap.Bool("tui", cfg.TUI.Enabled),
	)
	if err := a.setupMetadata(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.setupRenderers(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.marshal = marshal.New(marshal.Config{
		BufferSize:    cfg.Marshal.BufferSize,
		RenderTimeout: cfg.Marshal.SinkTimeout,
		Metrics:       mtr,
		Logger:        logger.Named("marshal"),
	}, a.renderers...)

	a.plugin = plugin.New(a.reader, a.marshal, plugin.Config{
		StartingPriority: cfg.Hooks.StartingPriority,
		EndingPriority:   cfg.Hooks.EndingPriority,
		Logger:           logger.Named("plugin"),
		Worker: progress.Config{
			TickInterval: cfg.Worker.TickInterval,
			ReadTimeout:  cfg.Worker.ReadTimeout,
			Clock:        system.New(),
			IDs:          uuid.New(),
			Metrics:      mtr,
			Logger:       logger.Named("worker"),
		},
	})

	hooksLogger := logger.Named("hooks")
	a.hooks = hooks.NewRegistry()
	a.hooks.SetHandler(func(evt hooks.Type, result hooks.Result) {
		if result.Error != nil {
			hooksLogger.Warn("callback failed",
				zap.String("event", string(evt)),
				zap.String("callback", result.Name),
				zap.Error(result.Error),
			)
		}
	})
	if err := a.hooks.Register(a.plugin.Callbacks()...); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("register callbacks: %w", err)
	}

	deps := api.Deps{
		Snapshots: a.state,
		Hooks:     a.hooks,
		Gatherer:  a.registry,
		Metrics:   mtr,
		Ready: func() error {
			if !a.plugin.Running() {
				return errors.New("progress worker not running")
			}
			return nil
		},
	}
	if a.workItems != nil {
		deps.WorkItems = a.workItems
	}
	a.server = api.NewServer(deps, logger.Named("api"))
	return a, nil
}

func (a *App) setupMetadata(ctx context.Context) error {
	md := a.cfg.Metadata
	switch md.Backend {
	case config.BackendFile:
		a.logger.Info("using file metadata backend", zap.String("base_dir", md.BaseDir))
		a.reader = file.New(md.BaseDir)
	case config.BackendPostgres:
		reader, err := postgres.New(ctx, postgres.Config{
			DSN:      md.Postgres.DSN,
			Table:    md.Postgres.Table,
			MaxConns: md.Postgres.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("postgres metadata init failed: %w", err)
		}
		a.pgReader = reader
		a.reader = reader
		a.logger.Info("using postgres metadata backend", zap.String("table", md.Postgres.Table))
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		reader, err := gcs.New(client, gcs.Config{Bucket: md.GCS.Bucket})
		if err != nil {
			return fmt.Errorf("gcs metadata init failed: %w", err)
		}
		a.reader = reader
		a.logger.Info("using gcs metadata backend", zap.String("bucket", md.GCS.Bucket))
	default:
		a.logger.Info("using in-memory metadata backend")
		a.workItems = memory.New()
		a.reader = a.workItems
	}
	return nil
}

func (a *App) setupRenderers(ctx context.Context) error {
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("prometheus sink init failed: %w", err)
	}
	a.renderers = append(a.renderers,
		sinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	)

	if a.cfg.PubSub.TopicName != "" {
		a.pubsub, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.renderers = append(a.renderers, sinks.NewPubSubSink(a.pubsub.Topic(a.cfg.PubSub.TopicName)))
		a.logger.Info("Pub/Sub run events enabled",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
	} else {
		a.logger.Warn("No Pub/Sub topic configured, run events are not published")
	}

	switch {
	case a.cfg.TUI.Enabled:
		a.program = tea.NewProgram(tui.NewModel(a.cfg.TUI.Title, a.cfg.TUI.Width), tea.WithOutput(a.stdout))
		a.tuiSink = tui.NewProgramSink(a.program)
		a.renderers = append(a.renderers, a.tuiSink)
	case a.cfg.Console.Enabled:
		a.renderers = append(a.renderers, sinks.NewWriterSink(a.stdout, a.cfg.Console.Width))
	}

	// Last, so a snapshot visible through the API was applied everywhere else.
	a.state = sinks.NewStateSink()
	a.renderers = append(a.renderers, a.state)
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts the worker, the HTTP server and the terminal UI, then blocks until
// ctx ends, a termination signal arrives, or the UI quits.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.plugin.Setup(ctx); err != nil {
		return fmt.Errorf("plugin setup: %w", err)
	}
	a.logger.Info("application started")

	programDone := make(chan struct{})
	if a.program != nil {
		a.tuiRan.Store(true)
		go func() {
			defer close(programDone)
			defer a.tuiSink.Detach()
			if _, err := a.program.Run(); err != nil {
				a.logger.Error("terminal ui error", zap.Error(err))
			}
			stop()
		}()
	} else {
		close(programDone)
	}

	var srv *http.Server
	if a.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.server.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}
	err := a.Close(shutdownCtx)
	select {
	case <-programDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("terminal ui did not exit before shutdown deadline")
	}
	return err
}

// Close tears the worker down before closing the presentation loop so the
// final snapshots are rendered, then releases clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.plugin != nil {
		if err := a.plugin.Teardown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.tuiSink != nil && !a.tuiRan.Load() {
		a.tuiSink.Detach()
	}
	if a.marshal != nil {
		if err := a.marshal.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfrastructure() {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgReader != nil {
		a.pgReader.Close()
	}
}
