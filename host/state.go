package host

import (
	"context"
	"sync"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/gpu"
	"github.com/wippyai/surface-host/graphics"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/platform"
	"github.com/wippyai/surface-host/resource"
	"github.com/wippyai/surface-host/wasi"
)

// State is the capability surface of one component instantiation. Host
// functions reach the handle table, the execution context, the shared
// graphics instance and the main thread only through it.
type State struct {
	table     *resource.Table
	wasiCtx   *wasi.Context
	instance  *gpu.Instance
	proxy     *mainthread.Proxy
	closeOnce sync.Once
}

// Option configures a State.
type Option func(*State)

// WithInstance shares an existing graphics instance. The state takes its
// own reference.
func WithInstance(inst *gpu.Instance) Option {
	return func(s *State) {
		s.instance = inst
	}
}

// WithContext sets the execution context. Defaults to inherited stdio.
func WithContext(c *wasi.Context) Option {
	return func(s *State) {
		s.wasiCtx = c
	}
}

// WithTable sets the handle table. Defaults to a fresh table.
func WithTable(t *resource.Table) Option {
	return func(s *State) {
		s.table = t
	}
}

// New builds the capability surface around proxy.
func New(proxy *mainthread.Proxy, opts ...Option) (*State, error) {
	if proxy == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "host state requires a main-thread proxy")
	}
	s := &State{proxy: proxy}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = resource.NewTable()
	}
	if s.wasiCtx == nil {
		s.wasiCtx = wasi.Inherited()
	}
	if s.instance == nil {
		s.instance = gpu.NewInstance(gpu.InstanceDescriptor{
			Backends: gpu.BackendsAll,
			Flags:    gpu.FlagsFromBuildConfig(),
		})
	} else {
		s.instance.Retain()
	}
	return s, nil
}

// Table returns the handle table.
func (s *State) Table() *resource.Table {
	return s.table
}

// Ctx returns the execution context.
func (s *State) Ctx() *wasi.Context {
	return s.wasiCtx
}

// Instance returns the shared graphics instance. Every call returns the
// same instance.
func (s *State) Instance() *gpu.Instance {
	return s.instance
}

// Proxy returns the state's main-thread proxy.
func (s *State) Proxy() *mainthread.Proxy {
	return s.proxy
}

// UIThreadSpawner returns a new spawner targeting the main thread.
func (s *State) UIThreadSpawner() mainthread.Spawner {
	return s.proxy.Clone()
}

// CreateCanvas creates a window on the main thread, blocking until it
// exists, and returns its surface handle.
func (s *State) CreateCanvas(ctx context.Context, desc platform.WindowDesc) (resource.Handle, error) {
	w, err := s.proxy.CreateWindow(ctx, desc)
	if err != nil {
		return 0, err
	}
	surface := graphics.NewSurface(w, s.UIThreadSpawner())
	h := s.table.Insert(resource.KindSurface, surface)
	if h == 0 {
		_ = surface.Close(context.WithoutCancel(ctx))
		return 0, errors.InvalidState(errors.PhaseHost, "create canvas", "closed")
	}
	return h, nil
}

// Close drops every resource and releases the state's instance reference.
func (s *State) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.table.Close()
		s.instance.Release()
	})
	return err
}
