package capability

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/gpu"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/resource"
)

// WebGPUNamespace is the import module of the graphics device set.
const WebGPUNamespace = "wasi:webgpu/webgpu"

// WebGPU exposes the shared graphics instance: adapters, devices and
// buffers. None of these calls need the main thread.
func WebGPU() Set {
	i32, i64 := api.ValueTypeI32, api.ValueTypeI64
	return Set{
		Namespace: WebGPUNamespace,
		Funcs: []Func{
			{Name: "request-adapter", Params: []api.ValueType{i32, i32}, Handler: requestAdapter},
			{Name: "adapter-request-device", Params: []api.ValueType{i32, i32}, Handler: adapterRequestDevice},
			{Name: "device-create-buffer", Params: []api.ValueType{i32, i64, i32}, Handler: deviceCreateBuffer},
			{Name: "buffer-write", Params: []api.ValueType{i32, i64, i32, i32}, Handler: bufferWrite},
			{Name: "buffer-read", Params: []api.ValueType{i32, i64, i32, i32}, Handler: bufferRead},
			{Name: "drop", Params: i32s(1), Handler: dropWebGPU},
		},
	}
}

// request-adapter(backends, out) -> errno
func requestAdapter(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	backends := gpu.Backends(api.DecodeU32(stack[0]))
	out := api.DecodeU32(stack[1])

	adapter, err := s.Instance().RequestAdapter(gpu.AdapterOptions{Backends: backends})
	if err != nil {
		return err
	}
	return insert(s, mod, resource.KindAdapter, adapter, out)
}

// adapter-request-device(adapter, out) -> errno
func adapterRequestDevice(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	adapter, err := lookup[*gpu.Adapter](s, api.DecodeU32(stack[0]), resource.KindAdapter)
	if err != nil {
		return err
	}
	device, err := adapter.RequestDevice(gpu.DeviceDescriptor{})
	if err != nil {
		return err
	}
	if err := insert(s, mod, resource.KindDevice, device, api.DecodeU32(stack[1])); err != nil {
		device.Destroy()
		return err
	}
	return nil
}

// device-create-buffer(device, size, out) -> errno
func deviceCreateBuffer(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	device, err := lookup[*gpu.Device](s, api.DecodeU32(stack[0]), resource.KindDevice)
	if err != nil {
		return err
	}
	buf, err := device.CreateBuffer(gpu.BufferDescriptor{Size: stack[1]})
	if err != nil {
		return err
	}
	if err := insert(s, mod, resource.KindBuffer, buf, api.DecodeU32(stack[2])); err != nil {
		buf.Destroy()
		return err
	}
	return nil
}

// buffer-write(buffer, offset, ptr, len) -> errno
func bufferWrite(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	buf, err := lookup[*gpu.Buffer](s, api.DecodeU32(stack[0]), resource.KindBuffer)
	if err != nil {
		return err
	}
	data, err := readBytes(mod, api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	if err != nil {
		return err
	}
	return buf.Write(stack[1], data)
}

// buffer-read(buffer, offset, ptr, len) -> errno
func bufferRead(_ context.Context, s *host.State, mod api.Module, stack []uint64) error {
	buf, err := lookup[*gpu.Buffer](s, api.DecodeU32(stack[0]), resource.KindBuffer)
	if err != nil {
		return err
	}
	n := api.DecodeU32(stack[3])
	if uint64(n) > buf.Size() {
		return gpu.ErrOutOfRange
	}
	data := make([]byte, n)
	if err := buf.Read(stack[1], data); err != nil {
		return err
	}
	return writeBytes(mod, api.DecodeU32(stack[2]), data)
}

// drop(handle) -> errno
func dropWebGPU(_ context.Context, s *host.State, _ api.Module, stack []uint64) error {
	return drop(s, api.DecodeU32(stack[0]), resource.KindBuffer, resource.KindDevice, resource.KindAdapter)
}
