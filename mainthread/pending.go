package mainthread

import (
	"context"
	"sync"

	"github.com/wippyai/surface-host/errors"
)

// Pending is the one-shot result slot of a submitted closure. It is
// resolved with the closure's value or rejected with an error exactly once.
type Pending[T any] struct {
	loop  *Loop
	done  chan struct{}
	err   error
	value T
	once  sync.Once
}

func newPending[T any](l *Loop) *Pending[T] {
	return &Pending[T]{loop: l, done: make(chan struct{})}
}

func (p *Pending[T]) resolve(v T) {
	p.once.Do(func() {
		p.value = v
		close(p.done)
	})
}

func (p *Pending[T]) reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed when the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the closure has run or was rejected. Returning early
// because ctx is done does not cancel the closure.
//
// Awaiting an unresolved item from the loop goroutine would deadlock, so it
// fails with a reentrant error instead.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
	}

	var zero T
	if p.loop.isLoopThread() {
		return zero, errors.Reentrant()
	}

	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Submit enqueues fn for the main thread. It fails with a channel-closed
// error, without blocking, once the loop is terminating.
func Submit[T any](p *Proxy, fn func() T) (*Pending[T], error) {
	pending := newPending[T](p.loop)
	t := &task{
		run:    func() { pending.resolve(fn()) },
		reject: pending.reject,
	}
	if err := p.loop.enqueue(t); err != nil {
		return nil, err
	}
	return pending, nil
}

// Call runs fn on the main thread through s and waits for its value.
func Call[T any](ctx context.Context, s Spawner, fn func() T) (T, error) {
	var zero T
	v, err := s.Spawn(ctx, func() any { return fn() })
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.New(errors.PhaseDispatch, errors.KindInvalidState).
			Detail("main-thread result has type %T", v).
			Build()
	}
	return out, nil
}
