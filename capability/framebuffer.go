package capability

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/graphics"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/resource"
)

// FrameBufferNamespace is the import module of the frame buffer set.
const FrameBufferNamespace = "wasi:frame-buffer/frame-buffer"

// FrameBuffer exposes CPU-side RGBA frame buffers.
func FrameBuffer() Set {
	return Set{
		Namespace: FrameBufferNamespace,
		Funcs: []Func{
			{Name: "create", Params: i32s(3), Handler: frameBufferCreate},
			{Name: "write", Params: i32s(3), Handler: frameBufferWrite},
			{Name: "drop", Params: i32s(1), Handler: dropFrameBuffer},
		},
	}
}

// create(width, height, out) -> errno
func frameBufferCreate(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	fb, err := graphics.NewFrameBuffer(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		return err
	}
	return insert(s, mod, resource.KindFrameBuffer, fb, api.DecodeU32(stack[2]))
}

// write(fb, ptr, len) -> errno
func frameBufferWrite(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	fb, err := lookup[*graphics.FrameBuffer](s, api.DecodeU32(stack[0]), resource.KindFrameBuffer)
	if err != nil {
		return err
	}
	pixels, err := readBytes(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	if err != nil {
		return err
	}
	return fb.Write(pixels)
}

// drop(handle) -> errno
func dropFrameBuffer(_ context.Context, s *host.State, _ api.Module, stack []uint64) error {
	return drop(s, api.DecodeU32(stack[0]), resource.KindFrameBuffer)
}
