// Package gpu is the host's shared graphics device layer.
//
// One Instance exists per process. It is created with the enabled backend
// set and build-dependent flags, shared by every host state through
// Retain/Release, and safe for concurrent use without extra locking.
// Adapters, devices and buffers hang off it; buffers live in host memory
// and are served by the software backend.
package gpu
