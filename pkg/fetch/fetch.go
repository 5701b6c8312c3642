// Package fetch loads remote collections with per-invocation cancellation.
//
// A Fetcher owns one logical request site. Starting a new invocation cancels
// the previous one, and only the most recently started invocation may commit
// its result. Cancellation is never reported as an error.
package fetch

import (
	"context"
	"errors"
	"maps"
	"net/url"
	"slices"
	"sync"

	"orderdesk/pkg/logger"
)

// Status is the state of a Fetcher or of a single Call.
type Status int

const (
	Idle Status = iota
	Loading
	Succeeded
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	// ErrSuperseded is the result of a call replaced by a newer one.
	ErrSuperseded = errors.New("fetch: superseded by a newer request")
	// ErrClosed is the result of a call discarded because the Fetcher closed.
	ErrClosed = errors.New("fetch: closed")
)

// Lister lists a remote collection.
type Lister[T any] interface {
	List(ctx context.Context, query url.Values) ([]T, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc[T any] func(ctx context.Context, query url.Values) ([]T, error)

func (f ListerFunc[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	return f(ctx, query)
}

// State is a snapshot of a Fetcher.
type State[T any] struct {
	Data    []T
	Err     error
	Loading bool
	Status  Status
	// Revision increases with every committed success.
	Revision uint64
}

// Call is one invocation.
type Call struct {
	done   chan struct{}
	cancel context.CancelFunc
	status Status
	err    error
}

func newCall(cancel context.CancelFunc) *Call {
	return &Call{done: make(chan struct{}), cancel: cancel, status: Loading}
}

// Done is closed once the call has committed or been discarded.
func (c *Call) Done() <-chan struct{} { return c.done }

// Err is the outcome after Done: nil on success, the failure, or
// ErrSuperseded / ErrClosed / context.Canceled when discarded.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Status reports Loading until the call finishes.
func (c *Call) Status() Status {
	select {
	case <-c.done:
		return c.status
	default:
		return Loading
	}
}

// Wait blocks until the call finishes or ctx is done.
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the request. Calling it more than once, or after the call
// finished, has no effect.
func (c *Call) Cancel() { c.cancel() }

func (c *Call) finish(status Status, err error) {
	c.status = status
	c.err = err
	close(c.done)
}

// Fetcher loads one collection.
type Fetcher[T any] struct {
	src Lister[T]
	log *logger.Logger

	mu        sync.Mutex
	seq       uint64
	current   *Call
	query     url.Values
	state     State[T]
	settled   Status
	observers []func(State[T])
	closed    bool
}

// New returns an idle Fetcher reading from src.
func New[T any](src Lister[T], log *logger.Logger) *Fetcher[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher[T]{src: src, log: log}
}

// Fetch starts a new invocation, cancelling the one in flight.
func (f *Fetcher[T]) Fetch(ctx context.Context, query url.Values) *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.start(ctx, query)
}

// Update starts a new invocation only when query differs from the last one,
// or when nothing was started yet. Otherwise it returns the current call.
func (f *Fetcher[T]) Update(ctx context.Context, query url.Values) *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil && !f.closed && sameQuery(f.query, query) {
		return f.current
	}
	return f.start(ctx, query)
}

// Current returns the most recently started call, or nil.
func (f *Fetcher[T]) Current() *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// State returns a snapshot. Data is a copy.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// OnChange registers fn to receive every visible state transition. fn runs
// with the Fetcher locked and must not call back into it.
func (f *Fetcher[T]) OnChange(fn func(State[T])) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.observers = append(f.observers, fn)
	}
}

// Close cancels the request in flight and suppresses every later state
// change. It is idempotent.
func (f *Fetcher[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.observers = nil
	if f.current != nil {
		f.current.Cancel()
	}
}

func (f *Fetcher[T]) start(ctx context.Context, query url.Values) *Call {
	if f.closed {
		c := newCall(func() {})
		c.finish(Cancelled, ErrClosed)
		return c
	}
	if f.current != nil {
		f.current.Cancel()
	}
	f.seq++
	cctx, cancel := context.WithCancel(ctx)
	c := newCall(cancel)
	f.current = c
	f.query = maps.Clone(query)
	f.state.Loading = true
	f.state.Status = Loading
	f.notify()

	go f.run(cctx, f.seq, c, query)
	return c
}

func (f *Fetcher[T]) run(ctx context.Context, seq uint64, c *Call, query url.Values) {
	data, err := f.src.List(ctx, query)
	canceled := ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)
	c.cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.closed:
		c.finish(Cancelled, ErrClosed)
		return
	case seq != f.seq:
		c.finish(Cancelled, ErrSuperseded)
		return
	case canceled || (err != nil && errors.Is(err, context.Canceled)):
		// The live call was aborted by its caller: drop back to the last
		// settled status without recording an error.
		f.state.Loading = false
		f.state.Status = f.settled
		f.notify()
		c.finish(Cancelled, context.Canceled)
		return
	case err != nil:
		f.log.Warn(ctx, "fetch failed", "error", err)
		f.state.Err = err
		f.state.Loading = false
		f.state.Status = Failed
		f.settled = Failed
		f.notify()
		c.finish(Failed, err)
		return
	}
	if data == nil {
		data = []T{}
	}
	f.state.Data = data
	f.state.Err = nil
	f.state.Loading = false
	f.state.Status = Succeeded
	f.state.Revision++
	f.settled = Succeeded
	f.notify()
	c.finish(Succeeded, nil)
}

func (f *Fetcher[T]) notify() {
	for _, fn := range f.observers {
		fn(f.snapshot())
	}
}

func (f *Fetcher[T]) snapshot() State[T] {
	s := f.state
	s.Data = slices.Clone(f.state.Data)
	return s
}

func sameQuery(a, b url.Values) bool {
	return maps.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}
