// Package mainthread is the bridge between worker goroutines and the
// process main thread.
//
// Native windowing and GPU surface APIs may only be driven from the thread
// that started the process. A Loop owns that thread: it polls the Platform
// for native events and, between polls, runs closures submitted from other
// goroutines in submission order. Workers hold a Proxy (or any clone of
// it) and either Submit a closure and Await its Pending result, or use Call
// to do both.
//
// Shutdown never drops work silently. Once the loop starts terminating,
// Submit fails with a channel-closed error and every item still queued is
// rejected with the same error, so a waiting worker always wakes up.
//
// Typical wiring in package main:
//
//	func init() { runtime.LockOSThread() }
//
//	func main() {
//		loop := mainthread.New(headless.New())
//		go worker(loop.Proxy())
//		_ = loop.Run(ctx)
//	}
package mainthread
