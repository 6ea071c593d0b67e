package host

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/gpu"
	"github.com/wippyai/surface-host/graphics"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/platform"
	"github.com/wippyai/surface-host/platform/headless"
	"github.com/wippyai/surface-host/resource"
	"github.com/wippyai/surface-host/wasi"
)

func runLoop(t *testing.T) (*mainthread.Loop, *headless.Platform) {
	t.Helper()
	p := headless.New()
	loop := mainthread.New(p, mainthread.WithPollTimeout(5*time.Millisecond))
	go func() { _ = loop.Run(context.Background()) }()
	t.Cleanup(func() {
		loop.Exit()
		<-loop.Done()
	})
	return loop, p
}

func TestNew_RequiresProxy(t *testing.T) {
	if _, err := New(nil); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindInvalidInput}) {
		t.Errorf("New(nil): %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	loop := mainthread.New(headless.New())
	s, err := New(loop.Proxy())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.Table() == nil || s.Ctx() == nil || s.Instance() == nil {
		t.Fatal("defaults not populated")
	}
	if s.Instance().Backends() != gpu.BackendsAll {
		t.Errorf("default backends = %v", s.Instance().Backends())
	}
	if s.Proxy().Loop() != loop {
		t.Error("proxy targets the wrong loop")
	}
}

func TestInstance_SameOnEveryAccess(t *testing.T) {
	inst := gpu.NewInstance(gpu.InstanceDescriptor{Backends: gpu.BackendSoftware})
	defer inst.Release()

	loop := mainthread.New(headless.New())
	s, err := New(loop.Proxy(), WithInstance(inst))
	if err != nil {
		t.Fatal(err)
	}
	if inst.Refs() != 2 {
		t.Errorf("Refs() = %d, want 2 after New", inst.Refs())
	}

	first := s.Instance()
	for i := 0; i < 100; i++ {
		if s.Instance() != first {
			t.Fatal("Instance() returned a different instance")
		}
	}
	if first != inst {
		t.Error("Instance() should be the shared instance")
	}

	_ = s.Close()
	_ = s.Close()
	if inst.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1 after Close", inst.Refs())
	}
}

func TestUIThreadSpawner_FreshCloneSameLoop(t *testing.T) {
	loop, _ := runLoop(t)
	s, err := New(loop.Proxy(), WithContext(wasi.NewBuilder().Build()))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	a := s.UIThreadSpawner().(*mainthread.Proxy)
	b := s.UIThreadSpawner().(*mainthread.Proxy)
	if a == b || a == s.Proxy() {
		t.Error("UIThreadSpawner should allocate a new spawner each call")
	}
	if a.Loop() != loop || b.Loop() != loop {
		t.Error("spawners must target the state's loop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := mainthread.Call(ctx, a, func() int { return 5 })
	if err != nil || v != 5 {
		t.Errorf("Call via spawner: %v, %v", v, err)
	}
}

func TestCreateCanvas(t *testing.T) {
	loop, p := runLoop(t)
	table := resource.NewTable()
	s, err := New(loop.Proxy(), WithTable(table))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := s.CreateCanvas(ctx, platform.WindowDesc{Title: "canvas", Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("CreateCanvas: %v", err)
	}
	surface, ok := resource.Lookup[*graphics.Surface](table, h, resource.KindSurface)
	if !ok {
		t.Fatal("surface not in table")
	}
	if w, h := surface.Size(); w != 800 || h != 600 {
		t.Errorf("Size() = %dx%d", w, h)
	}
	if p.Created() != 1 {
		t.Errorf("Created() = %d", p.Created())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !surface.Window().(*headless.Window).Closed() {
		t.Error("closing the state should close its windows")
	}
	if loop.State() != mainthread.StateRunning {
		t.Errorf("loop state = %v", loop.State())
	}
}

func TestCreateCanvas_AfterShutdown(t *testing.T) {
	loop, _ := runLoop(t)
	s, err := New(loop.Proxy())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	loop.Exit()
	<-loop.Done()

	_, err = s.CreateCanvas(context.Background(), platform.WindowDesc{Width: 1, Height: 1})
	if !stderrors.Is(err, errors.ErrChannelClosed) {
		t.Errorf("CreateCanvas after shutdown: %v", err)
	}
	if s.Table().Len() != 0 {
		t.Error("failed canvas should not leave a handle")
	}
}
