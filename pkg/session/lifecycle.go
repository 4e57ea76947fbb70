package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ShutdownHookTimeout bounds how long Shutdown waits for its hooks.
const ShutdownHookTimeout = 5 * time.Second

// Lifecycle carries a session's cancellation and its teardown hooks.
type Lifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu       sync.Mutex
	hooks    []func(reason string)
	shutdown bool
}

// NewLifecycle creates a Lifecycle whose context is canceled by Shutdown.
func NewLifecycle(parent context.Context, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Lifecycle{ctx: ctx, cancel: cancel, logger: logger}
}

// Shutdown runs every registered hook once, concurrently, waits up to
// ShutdownHookTimeout for them and then cancels the context. Later calls do
// nothing.
func (l *Lifecycle) Shutdown(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shutdown {
		return
	}
	l.shutdown = true

	l.logger.Info("Session shutdown initiated", slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, hook := range l.hooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("Shutdown hook panicked", slog.Any("panic", r))
				}
			}()
			h(reason)
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Debug("All shutdown hooks completed")
	case <-time.After(ShutdownHookTimeout):
		l.logger.Warn("Shutdown hooks timed out", slog.Duration("timeout", ShutdownHookTimeout))
	}

	l.cancel()
}

// OnShutdown registers a teardown hook. Hooks run concurrently and must
// handle their own errors. Registering after Shutdown runs the hook at once.
func (l *Lifecycle) OnShutdown(hook func(reason string)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shutdown {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("Shutdown hook panicked", slog.Any("panic", r))
				}
			}()
			hook("session already shut down")
		}()
		return
	}
	l.hooks = append(l.hooks, hook)
}

// Context is canceled once Shutdown has finished.
func (l *Lifecycle) Context() context.Context {
	return l.ctx
}

// Done is closed once Shutdown has finished.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.ctx.Done()
}

// IsShutdown reports whether Shutdown has started.
func (l *Lifecycle) IsShutdown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shutdown
}
