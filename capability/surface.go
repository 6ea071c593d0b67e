package capability

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/graphics"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/platform"
	"github.com/wippyai/surface-host/resource"
)

// SurfaceNamespace is the import module of the windowing set.
const SurfaceNamespace = "wasi:surface/surface"

// Surface exposes native windows. Window creation, connection and
// destruction run on the main thread; the calling worker blocks until the
// loop has serviced the request.
func Surface() Set {
	return Set{
		Namespace: SurfaceNamespace,
		Funcs: []Func{
			{Name: "create-window", Params: i32s(5), Handler: surfaceCreateWindow},
			{Name: "connect-graphics-context", Params: i32s(2), Handler: surfaceConnect},
			{Name: "size", Params: i32s(3), Handler: surfaceSize},
			{Name: "drop", Params: i32s(1), Handler: dropSurface},
		},
	}
}

// create-window(width, height, title-ptr, title-len, out) -> errno
func surfaceCreateWindow(ctx context.Context, s *host.State, mod api.Module, stack []uint64) error {
	title, err := readString(mod, api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	if err != nil {
		return err
	}
	out := api.DecodeU32(stack[4])
	// Fail on a bad out pointer before a window exists.
	if err := writeU32(mod, out, 0); err != nil {
		return err
	}

	h, err := s.CreateCanvas(ctx, platform.WindowDesc{
		Title:     title,
		Width:     api.DecodeU32(stack[0]),
		Height:    api.DecodeU32(stack[1]),
		Resizable: true,
	})
	if err != nil {
		return err
	}
	if err := writeU32(mod, out, uint32(h)); err != nil {
		s.Table().Remove(h)
		return err
	}
	return nil
}

// connect-graphics-context(surface, ctx) -> errno
func surfaceConnect(ctx context.Context, s *host.State, _ api.Module, stack []uint64) error {
	surface, err := lookup[*graphics.Surface](s, api.DecodeU32(stack[0]), resource.KindSurface)
	if err != nil {
		return err
	}
	gc, err := lookup[*graphics.Context](s, api.DecodeU32(stack[1]), resource.KindGraphicsContext)
	if err != nil {
		return err
	}
	// Connect in the loop so it is ordered with presents already queued.
	_, err = mainthread.Call(ctx, s.UIThreadSpawner(), func() struct{} {
		gc.Connect(surface)
		return struct{}{}
	})
	return err
}

// size(surface, out-w, out-h) -> errno
func surfaceSize(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	surface, err := lookup[*graphics.Surface](s, api.DecodeU32(stack[0]), resource.KindSurface)
	if err != nil {
		return err
	}
	w, h := surface.Size()
	if err := writeU32(mod, api.DecodeU32(stack[1]), w); err != nil {
		return err
	}
	return writeU32(mod, api.DecodeU32(stack[2]), h)
}

// drop(handle) -> errno. Closing the window happens on the main thread.
func dropSurface(_ context.Context, s *host.State, _ api.Module, stack []uint64) error {
	return drop(s, api.DecodeU32(stack[0]), resource.KindSurface)
}
