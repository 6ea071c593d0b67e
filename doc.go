// Package surfacehost hosts a sandboxed WebAssembly graphics component whose
// windowing calls must run on the process main thread.
//
// Windowing and GPU-surface APIs only work on the initial OS thread, while
// the component runs its entry point on a worker. The host bridges the two
// with a main-thread dispatch channel: the worker submits closures through a
// proxy and blocks until the event loop has run them.
//
// # Architecture Overview
//
// The repository is organized into packages with distinct responsibilities:
//
//	surfacehost/
//	├── mainthread/        Event loop, dispatch queue, proxy and Pending results
//	├── platform/          Native windowing abstraction
//	│   └── headless/      In-process backend used by tests and CI
//	├── host/              Capability surface handed to host functions
//	├── capability/        Host functions imported by the component
//	├── linker/            Import namespaces, linkage checks, host modules
//	├── session/           Artifact loading and entry-point execution
//	├── gpu/               Shared reference-counted graphics instance
//	├── graphics/          Frame buffers, graphics contexts and surfaces
//	├── resource/          Handle table
//	├── wasi/              Component execution context (stdio, env, dirs)
//	├── wasm/              Core module header checks and a small encoder
//	├── config/            koanf configuration
//	├── errors/            Structured error types
//	└── cmd/surface-host/  Command-line entry point
//
// # Quick Start
//
// The main package pins the main thread and gives it to the loop:
//
//	func init() { runtime.LockOSThread() }
//
//	loop := mainthread.New(headless.New())
//	store, _ := host.New(loop.Proxy())
//
//	l := linker.New()
//	capability.Link(l)
//
//	sess := session.New(ctx, l)
//	if err := sess.Instantiate(ctx, "app.wasm", store); err != nil {
//	    return err // nothing ran yet
//	}
//	go func() {
//	    <-sess.Start(ctx)
//	    loop.Exit()
//	}()
//	loop.Run(ctx)
//
// # Threading
//
// Exactly one goroutine runs the loop. Any number may submit work through
// clones of its proxy; items run in submission order. Work submitted after
// shutdown begins fails with a channel-closed error instead of hanging, and
// a closure that waits on the main thread from the main thread gets a
// reentrant error instead of a deadlock.
//
// # Error Handling
//
// Errors are *errors.Error values carrying a Phase and a Kind. Use errors.Is
// with the sentinels (errors.ErrLinkage, errors.ErrChannelClosed, ...) to
// branch on them. Inside the component every capability function reports an
// errno; a closed dispatch channel maps to capability.ErrnoChannelClosed.
package surfacehost
