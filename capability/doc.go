// Package capability implements the host functions a component imports.
//
// Each Set is one import module: wasi:webgpu/webgpu,
// wasi:frame-buffer/frame-buffer, wasi:graphics-context/graphics-context
// and wasi:surface/surface. Every function returns an i32 Errno and passes
// results through pointer parameters into guest memory. Resources are
// handed out as handles into the caller's host.State table.
//
// Calls that touch native windows are dispatched to the main thread and
// block the calling worker until serviced. If the main-thread executor has
// shut down they fail fast with ErrnoChannelClosed.
package capability
