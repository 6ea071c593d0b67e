package mainthread

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/platform"
	"github.com/wippyai/surface-host/platform/headless"
)

// startLoop runs a loop on its own goroutine and stops it on cleanup.
func startLoop(t *testing.T, opts ...Option) (*Loop, *headless.Platform, <-chan error) {
	t.Helper()
	p := headless.New()
	loop, errc := startLoopOn(t, p, opts...)
	return loop, p, errc
}

func startLoopOn(t *testing.T, p platform.Platform, opts ...Option) (*Loop, <-chan error) {
	t.Helper()
	loop := New(p, append([]Option{WithPollTimeout(10 * time.Millisecond)}, opts...)...)
	errc := make(chan error, 1)
	go func() {
		errc <- loop.Run(context.Background())
	}()
	t.Cleanup(func() {
		loop.Exit()
		select {
		case <-loop.Done():
		case <-time.After(5 * time.Second):
			t.Error("loop did not terminate")
		}
	})
	return loop, errc
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmit_FIFOAndValues(t *testing.T) {
	loop, _, _ := startLoop(t)
	proxy := loop.Proxy()
	ctx := awaitCtx(t)

	const n = 200
	var order []int
	pendings := make([]*Pending[int], 0, n)
	for i := 0; i < n; i++ {
		i := i
		p, err := Submit(proxy, func() int {
			order = append(order, i)
			return i * i
		})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		pendings = append(pendings, p)
	}

	for i, p := range pendings {
		v, err := p.Await(ctx)
		if err != nil {
			t.Fatalf("Await %d: %v", i, err)
		}
		if v != i*i {
			t.Errorf("item %d: got %d, want %d", i, v, i*i)
		}
	}

	// Every closure has run, so reading order is safe after the awaits.
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order broken at %d: got %d", i, got)
		}
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	loop, _, _ := startLoop(t)
	ctx := awaitCtx(t)

	got, err := Call(ctx, loop.Proxy(), func() string { return "hello" })
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}

	type pair struct{ a, b int }
	p, err := Call(ctx, loop.Proxy().Clone(), func() *pair { return nil })
	if err != nil || p != nil {
		t.Errorf("nil result: got %v, %v", p, err)
	}
}

func TestCall_RunsOnLoopGoroutine(t *testing.T) {
	loop, _, _ := startLoop(t)
	ctx := awaitCtx(t)

	onLoop, err := Call(ctx, loop.Proxy(), loop.isLoopThread)
	if err != nil {
		t.Fatal(err)
	}
	if !onLoop {
		t.Error("closure did not run on the loop goroutine")
	}
	if loop.isLoopThread() {
		t.Error("test goroutine reported as loop goroutine")
	}
}

func TestSubmit_AfterShutdown(t *testing.T) {
	loop, _, errc := startLoop(t)
	loop.Exit()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := Submit(loop.Proxy(), func() int { return 1 })
		done <- err
	}()

	select {
	case err := <-done:
		if !stderrors.Is(err, errors.ErrChannelClosed) {
			t.Errorf("Submit after shutdown: %v, want channel closed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit hung after shutdown")
	}

	_, err := Call(awaitCtx(t), loop.Proxy(), func() int { return 1 })
	if !stderrors.Is(err, errors.ErrChannelClosed) {
		t.Errorf("Call after shutdown: %v", err)
	}
	if loop.State() != StateTerminated {
		t.Errorf("State() = %v", loop.State())
	}
}

func TestShutdown_RejectsQueuedItems(t *testing.T) {
	loop := New(headless.New(), WithPollTimeout(time.Millisecond))
	proxy := loop.Proxy()

	var ran atomic.Bool
	pending, err := Submit(proxy, func() int {
		ran.Store(true)
		return 1
	})
	if err != nil {
		t.Fatalf("Submit before Run: %v", err)
	}

	loop.Exit()
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, err = pending.Await(awaitCtx(t))
	if !stderrors.Is(err, errors.ErrChannelClosed) {
		t.Errorf("queued item: %v, want channel closed", err)
	}
	if ran.Load() {
		t.Error("rejected closure must not run")
	}
}

func TestShutdown_RejectsWorkQueuedBehindExit(t *testing.T) {
	loop, _, errc := startLoop(t)
	proxy := loop.Proxy()
	ctx := awaitCtx(t)

	var behind *Pending[int]
	_, err := Call(ctx, proxy, func() bool {
		behind, _ = Submit(proxy, func() int { return 2 })
		loop.Exit()
		return true
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if behind == nil {
		t.Fatal("inner Submit failed")
	}
	if _, err := behind.Await(ctx); !stderrors.Is(err, errors.ErrChannelClosed) {
		t.Errorf("item behind Exit: %v, want channel closed", err)
	}
}

func TestReentrantAwait(t *testing.T) {
	loop, _, _ := startLoop(t)
	proxy := loop.Proxy()
	ctx := awaitCtx(t)

	type result struct {
		spawnErr error
		awaitErr error
	}
	res, err := Call(ctx, proxy, func() result {
		var r result
		_, r.spawnErr = proxy.Spawn(ctx, func() any { return 1 })
		inner, err := Submit(proxy, func() int { return 1 })
		if err != nil {
			r.awaitErr = err
			return r
		}
		_, r.awaitErr = inner.Await(ctx)
		return r
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !stderrors.Is(res.spawnErr, errors.ErrReentrant) {
		t.Errorf("Spawn from loop: %v, want reentrant", res.spawnErr)
	}
	if !stderrors.Is(res.awaitErr, errors.ErrReentrant) {
		t.Errorf("Await from loop: %v, want reentrant", res.awaitErr)
	}

	// The loop must still be serving work.
	if v, err := Call(ctx, proxy, func() int { return 7 }); err != nil || v != 7 {
		t.Errorf("loop stalled after reentrant call: %v, %v", v, err)
	}
}

func TestPanicIsDeliveredToCaller(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	loop, _, _ := startLoop(t, WithMetrics(metrics))
	ctx := awaitCtx(t)

	_, err := Call(ctx, loop.Proxy(), func() int { panic("boom") })
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindPanic {
		t.Fatalf("err = %v, want panic error", err)
	}
	if e.Value != "boom" {
		t.Errorf("panic value = %v", e.Value)
	}

	if v, err := Call(ctx, loop.Proxy(), func() int { return 3 }); err != nil || v != 3 {
		t.Errorf("loop died after panic: %v, %v", v, err)
	}
	if got := testutil.ToFloat64(metrics.TasksPanicked); got != 1 {
		t.Errorf("panicked metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.TasksDispatched); got != 2 {
		t.Errorf("dispatched metric = %v, want 2", got)
	}
}

func TestAwait_ContextDoesNotCancelWork(t *testing.T) {
	loop, _, _ := startLoop(t)

	release := make(chan struct{})
	var ran atomic.Bool
	blocker, err := Submit(loop.Proxy(), func() bool {
		<-release
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	pending, err := Submit(loop.Proxy(), func() bool {
		ran.Store(true)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pending.Await(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Await with cancelled ctx: %v", err)
	}

	close(release)
	if _, err := blocker.Await(awaitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := pending.Await(awaitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if !ran.Load() {
		t.Error("abandoned item should still run")
	}
}

func TestRun_Misuse(t *testing.T) {
	loop, _, errc := startLoop(t)
	ctx := awaitCtx(t)

	// Wait until the first loop is definitely running.
	if _, err := Call(ctx, loop.Proxy(), func() int { return 0 }); err != nil {
		t.Fatal(err)
	}
	if err := loop.Run(ctx); !stderrors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run: %v, want already running", err)
	}

	loop.Exit()
	<-errc
	if err := loop.Run(ctx); err != ErrTerminated {
		t.Errorf("Run after shutdown: %v, want terminated", err)
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	loop := New(headless.New(), WithPollTimeout(-1))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	if _, err := Call(awaitCtx(t), loop.Proxy(), func() int { return 0 }); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop ignored context cancellation")
	}
}

func TestRun_StopsOnPlatformQuit(t *testing.T) {
	var seen []platform.EventKind
	loop, p, errc := startLoop(t, WithEventHandler(func(ev platform.Event) {
		seen = append(seen, ev.Kind)
	}))

	p.Inject(platform.Event{Kind: platform.EventKey, Key: "q"}, platform.Event{Kind: platform.EventQuit})

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop ignored quit event")
	}
	<-loop.Done()

	if len(seen) != 2 || seen[0] != platform.EventKey || seen[1] != platform.EventQuit {
		t.Errorf("handler saw %v", seen)
	}
}

func TestProxy_CreateWindow(t *testing.T) {
	loop, p, _ := startLoop(t)
	ctx := awaitCtx(t)

	w, err := loop.Proxy().CreateWindow(ctx, platform.WindowDesc{Title: "canvas", Width: 320, Height: 240})
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if w.Title() != "canvas" {
		t.Errorf("Title() = %q", w.Title())
	}
	if p.Created() != 1 {
		t.Errorf("Created() = %d", p.Created())
	}

	if _, err := loop.Proxy().CreateWindow(ctx, platform.WindowDesc{}); err == nil {
		t.Error("invalid descriptor should fail")
	}
	if loop.State() != StateRunning {
		t.Errorf("State() = %v after window creation", loop.State())
	}
}

// gatedPlatform holds window creation until the gate opens.
type gatedPlatform struct {
	*headless.Platform
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedPlatform) CreateWindow(desc platform.WindowDesc) (platform.Window, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.Platform.CreateWindow(desc)
}

func TestProxy_CreateWindowAfterCallerLeft(t *testing.T) {
	desc := platform.WindowDesc{Title: "late", Width: 64, Height: 64}

	t.Run("expired before dispatch", func(t *testing.T) {
		loop, p, _ := startLoop(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := loop.Proxy().CreateWindow(ctx, desc); !stderrors.Is(err, context.Canceled) {
			t.Fatalf("CreateWindow = %v, want context.Canceled", err)
		}
		// FIFO: once this item runs the window closure has run too.
		if _, err := Call(awaitCtx(t), loop.Proxy(), func() int { return 0 }); err != nil {
			t.Fatalf("Call: %v", err)
		}
		if p.Created() != 0 {
			t.Errorf("Created() = %d, want 0", p.Created())
		}
	})

	t.Run("expired while creating", func(t *testing.T) {
		g := &gatedPlatform{
			Platform: headless.New(),
			entered:  make(chan struct{}, 1),
			gate:     make(chan struct{}),
		}
		loop, _ := startLoopOn(t, g)
		ctx, cancel := context.WithCancel(context.Background())

		errc := make(chan error, 1)
		go func() {
			_, err := loop.Proxy().CreateWindow(ctx, desc)
			errc <- err
		}()

		select {
		case <-g.entered:
		case <-time.After(5 * time.Second):
			t.Fatal("window closure never ran")
		}
		cancel()
		if err := <-errc; !stderrors.Is(err, context.Canceled) {
			t.Fatalf("CreateWindow = %v, want context.Canceled", err)
		}
		close(g.gate)

		deadline := time.Now().Add(5 * time.Second)
		for g.Created() != 1 || len(g.Windows()) != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("Created() = %d, open windows = %d; abandoned window not closed", g.Created(), len(g.Windows()))
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
}

func TestStress_ConcurrentSubmittersWithNativeEvents(t *testing.T) {
	var events atomic.Int64
	loop, p, _ := startLoop(t, WithEventHandler(func(platform.Event) {
		events.Add(1)
	}))
	ctx := awaitCtx(t)

	const (
		workers = 8
		calls   = 250
		native  = 500
	)

	stopInject := make(chan struct{})
	injected := make(chan int, 1)
	go func() {
		n := 0
		defer func() { injected <- n }()
		for n < native {
			select {
			case <-stopInject:
				return
			default:
			}
			p.Inject(platform.Event{Kind: platform.EventPointer, X: float64(n)})
			n++
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			proxy := loop.Proxy().Clone()
			last := -1
			seq := 0
			for i := 0; i < calls; i++ {
				want := w*calls + i
				got, err := Call(ctx, proxy, func() int {
					if seq <= last {
						panic("out of order")
					}
					last = seq
					seq++
					return want
				})
				if err != nil {
					errs <- err
					return
				}
				if got != want {
					errs <- stderrors.New("value mismatch")
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(stopInject)
	total := <-injected
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// The second call is drained in an iteration whose poll started after
	// the last injection.
	for i := 0; i < 2; i++ {
		if _, err := Call(ctx, loop.Proxy(), func() int { return 0 }); err != nil {
			t.Fatal(err)
		}
	}
	if got := events.Load(); got != int64(total) {
		t.Errorf("handled %d native events, injected %d", got, total)
	}
}
