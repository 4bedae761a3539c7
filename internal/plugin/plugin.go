// Package plugin binds the progress worker to the host's callback registry and
// owns the worker's lifecycle.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/command"
	"github.com/JakeFAU/shotprogress/internal/hooks"
	"github.com/JakeFAU/shotprogress/internal/progress"
)

// Default callback priorities. Lower values run first, so the starting hook
// runs after collaborators that affect timing and the ending hook runs early.
const (
	DefaultStartingPriority = 200
	DefaultEndingPriority   = 5
)

// ErrTornDown is returned by Setup once Teardown has been called.
var ErrTornDown = errors.New("plugin torn down")

// Config controls the plugin.
type Config struct {
	Name             string
	StartingPriority int
	EndingPriority   int
	Worker           progress.Config
	Logger           *zap.Logger
}

// Plugin feeds host lifecycle callbacks into the progress worker.
type Plugin struct {
	cfg      Config
	commands *command.Channel
	worker   *progress.Worker
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	abort   context.CancelFunc
	done    chan struct{}
}

// New constructs a Plugin. The worker is not started until Setup.
func New(reader progress.Reader, presenter progress.Presenter, cfg Config) *Plugin {
	if cfg.Name == "" {
		cfg.Name = "shotprogress"
	}
	if cfg.StartingPriority == 0 {
		cfg.StartingPriority = DefaultStartingPriority
	}
	if cfg.EndingPriority == 0 {
		cfg.EndingPriority = DefaultEndingPriority
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Worker.Logger == nil {
		cfg.Worker.Logger = logger
	}
	commands := command.NewChannel()
	return &Plugin{
		cfg:      cfg,
		commands: commands,
		worker:   progress.NewWorker(commands, reader, presenter, cfg.Worker),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Setup starts the worker goroutine. Cancelling ctx later does not stop the
// worker; use Teardown.
func (p *Plugin) Setup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrTornDown
	}
	if p.started {
		return fmt.Errorf("plugin %s already set up", p.cfg.Name)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.abort = cancel
	p.started = true
	go func() {
		defer close(p.done)
		p.worker.Run(runCtx)
	}()
	p.logger.Info("plugin set up",
		zap.String("plugin", p.cfg.Name),
		zap.Int("starting_priority", p.cfg.StartingPriority),
		zap.Int("ending_priority", p.cfg.EndingPriority),
	)
	return nil
}

// Teardown asks the worker to shut down and waits for it to exit. It is safe
// to call more than once and before Setup. If ctx ends first the worker is
// aborted and the context error is returned.
func (p *Plugin) Teardown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.stopped = true
		p.mu.Unlock()
		return nil
	}
	if !p.stopped {
		p.stopped = true
		p.commands.Enqueue(command.Shutdown())
	}
	abort := p.abort
	p.mu.Unlock()

	select {
	case <-p.done:
		p.logger.Info("plugin torn down", zap.String("plugin", p.cfg.Name))
		return nil
	case <-ctx.Done():
		abort()
		<-p.done
		return fmt.Errorf("teardown %s: %w", p.cfg.Name, ctx.Err())
	}
}

// OnWorkStarting enqueues a start command for handle and returns immediately.
func (p *Plugin) OnWorkStarting(_ context.Context, handle string) error {
	p.commands.Enqueue(command.Start(command.Handle(handle)))
	return nil
}

// OnWorkEnding enqueues a stop command and returns immediately.
func (p *Plugin) OnWorkEnding(_ context.Context, handle string) error {
	p.commands.Enqueue(command.Stop(command.Handle(handle)))
	return nil
}

// Callbacks returns the registrations to install in the host registry.
func (p *Plugin) Callbacks() []hooks.Registration {
	return []hooks.Registration{
		{
			Name:     p.cfg.Name,
			Type:     hooks.WorkStarting,
			Priority: p.cfg.StartingPriority,
			Callback: p.OnWorkStarting,
		},
		{
			Name:     p.cfg.Name,
			Type:     hooks.WorkEnding,
			Priority: p.cfg.EndingPriority,
			Callback: p.OnWorkEnding,
		},
	}
}

// Pending reports how many commands are waiting for the worker.
func (p *Plugin) Pending() int {
	return p.commands.Len()
}

// Running reports whether the worker was set up and not yet torn down.
func (p *Plugin) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}
