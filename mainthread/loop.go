package mainthread

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/internal/goid"
	"github.com/wippyai/surface-host/platform"
)

// State is the executor lifecycle state.
type State int32

const (
	StateAwake State = iota
	StateRunning
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

var (
	// ErrAlreadyRunning is returned by Run when the loop was already started.
	ErrAlreadyRunning = errors.New(errors.PhaseDispatch, errors.KindAlreadyRunning).
		Detail("event loop is already running").
		Build()

	// ErrTerminated is returned by Run after the loop has shut down.
	ErrTerminated = errors.InvalidState(errors.PhaseDispatch, "run event loop", StateTerminated.String())
)

// DefaultPollTimeout bounds how long the loop blocks in Platform.Poll.
const DefaultPollTimeout = 100 * time.Millisecond

// EventHandler receives native events on the main thread.
type EventHandler func(platform.Event)

// task is one dispatch channel entry. The loop calls run exactly once, or
// reject exactly once when the loop shuts down first.
type task struct {
	run    func()
	reject func(error)
}

// Loop is the main-thread executor. It owns the native event loop and runs
// closures submitted through its Proxy.
//
// Run must be called from the main goroutine of a program whose main
// package locked the OS thread in init.
type Loop struct {
	platform    platform.Platform
	handler     EventHandler
	metrics     *Metrics
	logger      *zap.Logger
	done        chan struct{}
	queue       []*task
	pollTimeout time.Duration
	loopID      atomic.Uint64
	state       atomic.Int32
	mu          sync.Mutex
	started     atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l *zap.Logger) Option {
	return func(loop *Loop) {
		if l != nil {
			loop.logger = l
		}
	}
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *Metrics) Option {
	return func(loop *Loop) {
		loop.metrics = m
	}
}

// WithEventHandler installs a handler for native events.
func WithEventHandler(h EventHandler) Option {
	return func(loop *Loop) {
		loop.handler = h
	}
}

// WithPollTimeout sets how long one Poll may block. A negative value blocks
// until an event arrives or the loop is woken.
func WithPollTimeout(d time.Duration) Option {
	return func(loop *Loop) {
		loop.pollTimeout = d
	}
}

// New creates an executor over p. It does not start the loop.
func New(p platform.Platform, opts ...Option) *Loop {
	l := &Loop{
		platform:    p,
		logger:      Logger(),
		done:        make(chan struct{}),
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.state.Store(int32(StateAwake))
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Platform returns the native platform the loop drives.
func (l *Loop) Platform() platform.Platform {
	return l.platform
}

// Done is closed once the loop has terminated and every pending item has
// been resolved or rejected.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Proxy returns a new handle for submitting work to this loop.
func (l *Loop) Proxy() *Proxy {
	return &Proxy{loop: l}
}

// Run drives the event loop on the calling goroutine until Exit is called,
// ctx is done, or the platform reports quit. On return every queued item
// has been rejected with a channel-closed error.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() == StateTerminated {
		return ErrTerminated
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	// Exit may already have moved the loop to terminating; then it shuts
	// down on the first iteration.
	l.state.CompareAndSwap(int32(StateAwake), int32(StateRunning))

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopID.Store(goid.Current())
	defer l.loopID.Store(0)
	defer close(l.done)

	stop := context.AfterFunc(ctx, l.Exit)
	defer stop()

	l.logger.Debug("event loop started", zap.Duration("poll_timeout", l.pollTimeout))

	var runErr error
	for l.State() == StateRunning {
		events, err := l.platform.Poll(l.pollTimeout)
		if err != nil {
			l.logger.Error("platform poll failed", zap.Error(err))
			runErr = errors.Wrap(errors.PhaseDispatch, errors.KindInvalidState, err, "poll native events")
			l.Exit()
			break
		}
		l.handleEvents(events)
		l.drain()
	}

	rejected := l.shutdown()
	l.logger.Debug("event loop terminated", zap.Int("rejected", rejected))
	return runErr
}

// Exit requests termination. Safe from any goroutine, including dispatched
// closures. Work submitted after Exit is rejected.
func (l *Loop) Exit() {
	l.mu.Lock()
	switch l.State() {
	case StateAwake, StateRunning:
		l.state.Store(int32(StateTerminating))
	}
	l.mu.Unlock()
	l.platform.Wake()
}

func (l *Loop) isLoopThread() bool {
	id := l.loopID.Load()
	return id != 0 && id == goid.Current()
}

func (l *Loop) handleEvents(events []platform.Event) {
	for _, ev := range events {
		l.metrics.event(ev.Kind.String())
		if l.handler != nil {
			l.safeHandle(ev)
		}
		if ev.Kind == platform.EventQuit {
			l.logger.Debug("platform requested quit")
			l.Exit()
		}
	}
}

func (l *Loop) safeHandle(ev platform.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panicked",
				zap.Stringer("event", ev.Kind),
				zap.Any("panic", r))
		}
	}()
	l.handler(ev)
}

// enqueue appends t to the dispatch queue. The state check and the append
// happen under the same lock that shutdown holds while draining.
func (l *Loop) enqueue(t *task) error {
	l.mu.Lock()
	switch l.State() {
	case StateTerminating, StateTerminated:
		l.mu.Unlock()
		l.metrics.rejected("submit", 1)
		return errors.ChannelClosed()
	}
	l.queue = append(l.queue, t)
	depth := len(l.queue)
	l.mu.Unlock()

	l.metrics.depth(depth)
	l.platform.Wake()
	return nil
}

// drain runs every item queued before the call, in submission order.
// Items enqueued by those closures run on the next iteration.
func (l *Loop) drain() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	l.metrics.depth(0)

	for _, t := range batch {
		l.execute(t)
	}
}

func (l *Loop) execute(t *task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatched closure panicked", zap.Any("panic", r))
			l.metrics.panicked()
			t.reject(errors.Panicked(r))
		}
		l.metrics.dispatched(time.Since(start))
	}()
	t.run()
}

// shutdown rejects whatever is still queued and marks the loop terminated.
func (l *Loop) shutdown() int {
	l.mu.Lock()
	l.state.Store(int32(StateTerminating))
	rest := l.queue
	l.queue = nil
	l.state.Store(int32(StateTerminated))
	l.mu.Unlock()

	l.metrics.depth(0)
	l.metrics.rejected("shutdown", len(rest))
	for _, t := range rest {
		t.reject(errors.ChannelClosed())
	}
	return len(rest)
}
