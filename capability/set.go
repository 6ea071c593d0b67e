package capability

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/linker"
	"github.com/wippyai/surface-host/resource"
)

// Handler implements one capability function. Parameters are read from
// stack; the returned error becomes the function's errno.
type Handler func(ctx context.Context, s *host.State, mod api.Module, stack []uint64) error

// Func is a capability function. Every function returns a single i32 errno.
type Func struct {
	Handler Handler
	Name    string
	Params  []api.ValueType
}

// Set is a group of capability functions imported from one module.
type Set struct {
	Namespace string
	Funcs     []Func
}

var errnoResult = []api.ValueType{api.ValueTypeI32}

// Register defines every function of the set in l.
func (set Set) Register(l *linker.Linker) {
	ns := l.Namespace(set.Namespace)
	for _, f := range set.Funcs {
		ns.DefineFunc(f.Name, wrap(set.Namespace, f), f.Params, errnoResult)
	}
}

func wrap(namespace string, f Func) linker.HostFunc {
	return func(ctx context.Context, s *host.State, mod api.Module, stack []uint64) {
		err := f.Handler(ctx, s, mod, stack)
		errno := ErrnoOf(err)
		if err != nil {
			Logger().Debug("capability call failed",
				zap.String("namespace", namespace),
				zap.String("func", f.Name),
				zap.Stringer("errno", errno),
				zap.Error(err))
		}
		stack[0] = api.EncodeU32(uint32(errno))
	}
}

// All returns every capability set the host offers.
func All() []Set {
	return []Set{WebGPU(), FrameBuffer(), GraphicsContext(), Surface()}
}

// Link registers all capability sets and WASI preview1 in l.
func Link(l *linker.Linker) {
	for _, set := range All() {
		set.Register(l)
	}
	l.AddWASI()
}

func i32s(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

func lookup[T any](s *host.State, h uint32, kind resource.Kind) (T, error) {
	v, ok := resource.Lookup[T](s.Table(), resource.Handle(h), kind)
	if !ok {
		var zero T
		return zero, errors.BadHandle(h, kind.String())
	}
	return v, nil
}

// insert stores v and writes its handle to out. On a memory fault the
// handle is dropped again so the component cannot leak it.
func insert(s *host.State, mod api.Module, kind resource.Kind, v any, out uint32) error {
	h := s.Table().Insert(kind, v)
	if h == 0 {
		return errors.InvalidState(errors.PhaseHost, "insert "+kind.String(), "closed")
	}
	if err := writeU32(mod, out, uint32(h)); err != nil {
		s.Table().Remove(h)
		return err
	}
	return nil
}

// drop removes a handle if it refers to one of kinds.
func drop(s *host.State, h uint32, kinds ...resource.Kind) error {
	handle := resource.Handle(h)
	kind, ok := s.Table().Kind(handle)
	if !ok {
		return errors.BadHandle(h, "resource")
	}
	for _, k := range kinds {
		if k == kind {
			if _, ok := s.Table().Remove(handle); !ok {
				return errors.BadHandle(h, kind.String())
			}
			return nil
		}
	}
	return errors.BadHandle(h, kinds[0].String())
}
