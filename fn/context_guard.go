package fn

import (
	"context"
	"sync"
	"time"
)

// ContextGuard is an embeddable struct that provides a wait group and main
// quit channel that can be used to create guarded contexts.
type ContextGuard struct {
	// DefaultTimeout is the timeout applied to contexts created by
	// WithCtxQuit and CtxBlocking.
	DefaultTimeout time.Duration

	// Wg tracks the goroutines of the embedding sub-system.
	Wg sync.WaitGroup

	// Quit is closed once the embedding sub-system shuts down.
	Quit chan struct{}
}

// WithCtxQuit is used to create a cancellable context that will be cancelled
// if the main quit signal is triggered or after the default timeout occurred.
func (g *ContextGuard) WithCtxQuit() (context.Context, func()) {
	return g.WithCtxQuitCustomTimeout(g.DefaultTimeout)
}

// WithCtxQuitCustomTimeout is used to create a cancellable context that will
// be cancelled if the main quit signal is triggered or after the given timeout
// occurred.
func (g *ContextGuard) WithCtxQuitCustomTimeout(
	timeout time.Duration) (context.Context, func()) {

	timeoutCtx, timeoutCancel := context.WithTimeout(
		context.Background(), timeout,
	)
	ctx, cancel := g.guard(timeoutCtx)

	return ctx, func() {
		cancel()
		timeoutCancel()
	}
}

// WithCtxQuitFrom derives a context from parent that is additionally
// cancelled when the main quit signal is triggered. This is used when a
// caller supplied context must be honored as well.
func (g *ContextGuard) WithCtxQuitFrom(
	parent context.Context) (context.Context, func()) {

	return g.guard(parent)
}

// CtxBlocking is used to create a cancellable context that will NOT be
// cancelled if the main quit signal is triggered, to block shutdown of
// important tasks. The context is still bound by the default timeout.
func (g *ContextGuard) CtxBlocking() (context.Context, func()) {
	return context.WithTimeout(context.Background(), g.DefaultTimeout)
}

// guard wraps parent so it is also cancelled when Quit is closed.
func (g *ContextGuard) guard(
	parent context.Context) (context.Context, func()) {

	ctx, cancel := context.WithCancel(parent)

	g.Wg.Add(1)
	go func() {
		defer g.Wg.Done()
		defer cancel()

		select {
		case <-g.Quit:
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
