// Package server runs the arcade's long-lived services: it starts them
// together, waits for a signal, cancellation or the first failure, and stops
// them in reverse order.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultStopTimeout bounds how long shutdown waits on one service.
const DefaultStopTimeout = 10 * time.Second

// Service is a long-running component. Start blocks until the service stops
// or fails; Stop asks it to finish and returns once it has.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls StartFn.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls StopFn.
func (f *FuncService) Stop() { f.StopFn() }

// LoopService adapts a context-driven loop, such as a ticker, into a Service.
// Stop cancels the loop's context and waits for it to return.
type LoopService struct {
	run     func(ctx context.Context)
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// NewLoopService wraps run.
//
// Precondition: run must return once its context is cancelled.
func NewLoopService(run func(ctx context.Context)) *LoopService {
	ctx, cancel := context.WithCancel(context.Background())
	return &LoopService{run: run, ctx: ctx, cancel: cancel, stopped: make(chan struct{})}
}

// Start runs the loop until Stop.
func (s *LoopService) Start() error {
	defer s.once.Do(func() { close(s.stopped) })
	s.run(s.ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (s *LoopService) Stop() {
	s.cancel()
	<-s.stopped
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithStopTimeout sets how long shutdown waits on each service before
// logging it as stuck and moving on.
func WithStopTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.stopTimeout = d }
}

// WithSignals replaces the signals that trigger shutdown. No signals means
// only cancellation or a failure ends Run.
func WithSignals(sigs ...os.Signal) Option {
	return func(l *Lifecycle) { l.signals = sigs }
}

type entry struct {
	name string
	svc  Service
}

// Lifecycle owns an ordered set of services.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	signals     []os.Signal

	mu      sync.Mutex
	entries []entry
}

// NewLifecycle creates an empty Lifecycle that shuts down on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add appends a named service. Services start in the order they were added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{name: name, svc: svc})
}

// Names returns registered service names in start order.
func (l *Lifecycle) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.name
	}
	return names
}

// Run starts every service and blocks until a shutdown signal arrives, ctx
// is cancelled, or a service fails.
//
// Postcondition: Every service has been stopped, or given up on after the
// stop timeout. The error is the first service failure, or nil on a clean
// shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	entries := append([]entry(nil), l.entries...)
	l.mu.Unlock()

	failed := make(chan error, len(entries))
	for _, e := range entries {
		go l.start(e, failed)
	}
	l.logger.Info("services started",
		zap.Int("count", len(entries)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	if len(l.signals) > 0 {
		signal.Notify(sigCh, l.signals...)
		defer signal.Stop(sigCh)
	}

	var err error
	select {
	case sig := <-sigCh:
		l.logger.Info("shutting down", zap.Stringer("signal", sig))
	case err = <-failed:
		l.logger.Error("shutting down after failure", zap.Error(err))
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.String("reason", "context cancelled"))
	}

	l.stopAll(entries)
	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return err
}

func (l *Lifecycle) start(e entry, failed chan<- error) {
	l.logger.Debug("starting service", zap.String("service", e.name))
	began := time.Now()
	if err := e.svc.Start(); err != nil {
		l.logger.Error("service failed",
			zap.String("service", e.name),
			zap.Duration("uptime", time.Since(began)),
			zap.Error(err),
		)
		failed <- fmt.Errorf("service %s: %w", e.name, err)
	}
}

func (l *Lifecycle) stopAll(entries []entry) {
	for i := len(entries) - 1; i >= 0; i-- {
		l.stop(entries[i])
	}
}

// stop waits at most stopTimeout for one service; a stuck Stop keeps running
// in the background.
func (l *Lifecycle) stop(e entry) {
	began := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.svc.Stop()
	}()
	select {
	case <-done:
		l.logger.Info("service stopped",
			zap.String("service", e.name),
			zap.Duration("elapsed", time.Since(began)),
		)
	case <-time.After(l.stopTimeout):
		l.logger.Warn("service did not stop in time",
			zap.String("service", e.name),
			zap.Duration("timeout", l.stopTimeout),
		)
	}
}
