package mainthread

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/platform"
)

// Spawner runs closures on the main thread and waits for their results.
type Spawner interface {
	Spawn(ctx context.Context, fn func() any) (any, error)
}

// Proxy is a cheap, copyable handle for submitting work to a Loop from any
// goroutine. All clones target the same loop.
type Proxy struct {
	loop *Loop
}

var _ Spawner = (*Proxy)(nil)

// Clone returns a new handle to the same loop.
func (p *Proxy) Clone() *Proxy {
	return &Proxy{loop: p.loop}
}

// Loop returns the executor this proxy submits to.
func (p *Proxy) Loop() *Loop {
	return p.loop
}

// Spawn runs fn on the main thread and blocks until it returns. Called from
// the loop goroutine it fails with a reentrant error and submits nothing.
func (p *Proxy) Spawn(ctx context.Context, fn func() any) (any, error) {
	if p.loop.isLoopThread() {
		return nil, errors.Reentrant()
	}
	pending, err := Submit(p, fn)
	if err != nil {
		return nil, err
	}
	return pending.Await(ctx)
}

type windowResult struct {
	window platform.Window
	err    error
}

// CreateWindow creates a native window on the main thread. If ctx ends
// before the window exists the call returns ctx's error, and a window the
// loop creates afterwards is closed on the main thread instead of leaking.
func (p *Proxy) CreateWindow(ctx context.Context, desc platform.WindowDesc) (platform.Window, error) {
	if p.loop.isLoopThread() {
		return nil, errors.Reentrant()
	}
	pending, err := Submit(p, func() windowResult {
		if err := ctx.Err(); err != nil {
			return windowResult{err: err}
		}
		w, err := p.loop.platform.CreateWindow(desc)
		return windowResult{window: w, err: err}
	})
	if err != nil {
		return nil, err
	}
	res, err := pending.Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			go p.closeAbandoned(pending)
		}
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	p.loop.logger.Debug("window created")
	return res.window, nil
}

func (p *Proxy) closeAbandoned(pending *Pending[windowResult]) {
	<-pending.Done()
	res, err := pending.Await(context.Background())
	if err != nil || res.window == nil {
		return
	}
	w := res.window
	if _, err := Submit(p, func() error { return w.Close() }); err != nil {
		p.loop.logger.Warn("abandoned window left open", zap.Error(err))
		return
	}
	p.loop.logger.Debug("abandoned window closed")
}
