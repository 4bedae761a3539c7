// Package marshal confines every presentation-affecting call to a single
// goroutine. Snapshots pushed from the progress worker (or anywhere else) are
// applied in FIFO order to the registered renderers on that goroutine.
// PushSync waits until the snapshot was applied; Push never blocks and drops
// on backpressure with a rate-limited warning.
package marshal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/metrics"
	"github.com/JakeFAU/shotprogress/internal/progress"
)

// Renderer applies snapshots to a presentation surface. Render is only ever
// called from the marshal goroutine.
type Renderer interface {
	Render(ctx context.Context, snap progress.Snapshot) error
	Close(ctx context.Context) error
}

// Config controls buffering and rendering for the Marshal.
//   - BufferSize: size of the internal request channel (default 64).
//   - RenderTimeout: per-renderer timeout while applying a snapshot (default 5s).
//   - BaseContext: parent context passed to renderer calls (defaults to context.Background()).
//   - Metrics: optional collectors for applied, dropped and failed snapshots.
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize    int
	RenderTimeout time.Duration
	BaseContext   context.Context
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

const (
	defaultBufferSize    = 64
	defaultRenderTimeout = 5 * time.Second
	dropLogInterval      = 5 * time.Second
)

type request struct {
	snap progress.Snapshot
	done chan struct{}
}

// Marshal owns the presentation goroutine. It is safe for concurrent use.
type Marshal struct {
	cfg         Config
	renderers   []Renderer
	requests    chan request
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *zap.Logger
	metrics     *metrics.Metrics
	dropLimiter rateLimiter
	dropped     atomic.Int64
	closed      atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// New initializes a Marshal and starts the presentation goroutine.
func New(cfg Config, renderers ...Renderer) *Marshal {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = defaultRenderTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Marshal{
		cfg:         cfg,
		renderers:   append([]Renderer(nil), renderers...),
		requests:    make(chan request, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
		metrics:     cfg.Metrics,
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	go m.run()
	return m
}

// Push enqueues snap without waiting for it to be applied and reports whether
// it was accepted. If the buffer is full the snapshot is dropped and a
// rate-limited warning is logged.
func (m *Marshal) Push(snap progress.Snapshot) bool {
	if m == nil || m.closed.Load() {
		return false
	}
	select {
	case m.requests <- request{snap: snap}:
		return true
	default:
		m.metrics.ObserveSnapshotDropped()
		m.dropped.Add(1)
		if m.dropLimiter.Allow(time.Now()) {
			count := m.dropped.Swap(0)
			m.logger.Warn("snapshots dropped due to backpressure", zap.Int64("dropped", count))
		}
		return false
	}
}

// PushSync enqueues snap behind any pending snapshots and blocks until every
// renderer has applied it. It returns immediately once the Marshal is closed.
func (m *Marshal) PushSync(snap progress.Snapshot) {
	if m == nil || m.closed.Load() {
		return
	}
	req := request{snap: snap, done: make(chan struct{})}
	select {
	case m.requests <- req:
	case <-m.stopCh:
		return
	}
	select {
	case <-req.done:
	case <-m.doneCh:
	}
}

// Close applies the remaining snapshots, closes the renderers, and blocks until
// the presentation goroutine exits. It is safe to call multiple times.
func (m *Marshal) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.closeCtx = ctx
		close(m.stopCh)
	})
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("marshal close wait: %w", ctx.Err())
	}
}

func (m *Marshal) run() {
	defer close(m.doneCh)
	for {
		select {
		case req := <-m.requests:
			m.apply(req)
		case <-m.stopCh:
			m.drain()
			return
		}
	}
}

func (m *Marshal) drain() {
	for {
		select {
		case req := <-m.requests:
			m.apply(req)
		default:
			m.closeRenderers()
			return
		}
	}
}

func (m *Marshal) apply(req request) {
	if req.done != nil {
		defer close(req.done)
	}
	m.metrics.ObserveSnapshot(string(req.snap.Phase))
	for _, renderer := range m.renderers {
		if renderer == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(m.cfg.BaseContext, m.cfg.RenderTimeout)
		if err := safeRender(ctx, renderer, req.snap); err != nil {
			m.metrics.ObserveRenderFailure()
			m.logger.Warn("snapshot render failed",
				zap.String("renderer", fmt.Sprintf("%T", renderer)),
				zap.String("phase", string(req.snap.Phase)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func safeRender(ctx context.Context, r Renderer, snap progress.Snapshot) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer panic: %v", rec)
		}
	}()
	return r.Render(ctx, snap)
}

func (m *Marshal) closeRenderers() {
	ctx := m.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, renderer := range m.renderers {
		if renderer == nil {
			continue
		}
		if err := renderer.Close(ctx); err != nil {
			m.logger.Warn("renderer close failed", zap.Error(err))
		}
	}
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, snap progress.Snapshot) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, snap progress.Snapshot) error {
	return f(ctx, snap)
}

// Close implements Renderer; it performs no action.
func (RendererFunc) Close(context.Context) error {
	return nil
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
