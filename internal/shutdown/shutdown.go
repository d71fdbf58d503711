// Package shutdown cancels a running pipeline on SIGINT/SIGTERM and releases
// its resources (history database, file watcher, mock server) in reverse
// registration order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/logger"
)

// Cleanup releases one resource.
type Cleanup func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
	Signals []os.Signal
	Logger  *logger.Logger
}

// DefaultConfig returns a 10s cleanup budget on SIGINT and SIGTERM.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Handler owns the run context and the cleanup list.
type Handler struct {
	mu       sync.Mutex
	cleanups []Cleanup
	names    []string

	stopping atomic.Bool
	received atomic.Value
	done     chan struct{}
	timeout  time.Duration
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
}

// New creates a handler whose context is derived from parent.
func New(parent context.Context, cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = def.Signals
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		log:     cfg.Logger.WithComponent("shutdown"),
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}
	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()
	return h
}

func (h *Handler) listen() {
	select {
	case sig := <-h.sigChan:
		h.received.Store(sig)
		h.log.WithField("signal", sig.String()).Warn("interrupted, cancelling run")
		h.Shutdown()
	case <-h.ctx.Done():
	}
}

// Register adds a cleanup; cleanups run last-registered first.
func (h *Handler) Register(name string, fn Cleanup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, fn)
	h.names = append(h.names, name)
}

// RegisterCloser registers a Close method as a cleanup.
func (h *Handler) RegisterCloser(name string, closer interface{ Close() error }) {
	h.Register(name, func(context.Context) error { return closer.Close() })
}

// Context is cancelled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether shutdown was triggered by a signal.
func (h *Handler) Interrupted() bool {
	return h.received.Load() != nil
}

// Done is closed once every cleanup has run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown cancels the context and runs the cleanups. It is safe to call
// more than once and returns the cleanup errors of the first call.
func (h *Handler) Shutdown() []error {
	if !h.stopping.CompareAndSwap(false, true) {
		<-h.done
		return nil
	}
	defer close(h.done)

	signal.Stop(h.sigChan)
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	cleanups := append([]Cleanup(nil), h.cleanups...)
	names := append([]string(nil), h.names...)
	h.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := run(ctx, names[i], cleanups[i]); err != nil {
			h.log.WithError(err).Warnf("cleanup %s failed", names[i])
			errs = append(errs, err)
		}
	}
	return errs
}

func run(ctx context.Context, name string, fn Cleanup) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{Name: name}
	}
}

// Trigger simulates an interrupt.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGINT:
	default:
	}
}

// TimeoutError is returned when a cleanup exceeds the shutdown budget.
type TimeoutError struct {
	Name string
}

func (e *TimeoutError) Error() string {
	return "shutdown cleanup timed out: " + e.Name
}
