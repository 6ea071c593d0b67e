package capability

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/graphics"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/resource"
)

// GraphicsContextNamespace is the import module of the graphics context set.
const GraphicsContextNamespace = "wasi:graphics-context/graphics-context"

// GraphicsContext exposes contexts binding a frame buffer to a surface.
func GraphicsContext() Set {
	return Set{
		Namespace: GraphicsContextNamespace,
		Funcs: []Func{
			{Name: "create", Params: i32s(1), Handler: graphicsContextCreate},
			{Name: "attach-frame-buffer", Params: i32s(2), Handler: graphicsContextAttach},
			{Name: "present", Params: i32s(1), Handler: graphicsContextPresent},
			{Name: "drop", Params: i32s(1), Handler: dropGraphicsContext},
		},
	}
}

// create(out) -> errno
func graphicsContextCreate(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	return insert(s, mod, resource.KindGraphicsContext, graphics.NewContext(), api.DecodeU32(stack[0]))
}

// attach-frame-buffer(ctx, fb) -> errno
func graphicsContextAttach(_ context.Context, s *host.State, _ api.Module, stack []uint64) error {
	gc, err := lookup[*graphics.Context](s, api.DecodeU32(stack[0]), resource.KindGraphicsContext)
	if err != nil {
		return err
	}
	fb, err := lookup[*graphics.FrameBuffer](s, api.DecodeU32(stack[1]), resource.KindFrameBuffer)
	if err != nil {
		return err
	}
	gc.AttachFrameBuffer(fb)
	return nil
}

// present(ctx) -> errno. Blocks until the main thread has shown the frame.
func graphicsContextPresent(ctx context.Context, s *host.State, _ api.Module, stack []uint64) error {
	gc, err := lookup[*graphics.Context](s, api.DecodeU32(stack[0]), resource.KindGraphicsContext)
	if err != nil {
		return err
	}
	return gc.Present(ctx)
}

// drop(handle) -> errno
func dropGraphicsContext(_ context.Context, s *host.State, _ api.Module, stack []uint64) error {
	return drop(s, api.DecodeU32(stack[0]), resource.KindGraphicsContext)
}
