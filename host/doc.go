// Package host provides State, the capability surface handed to every
// host function a component calls.
//
// A State bundles the per-instantiation handle table, the execution
// context, a reference to the process-wide graphics instance and a proxy
// to the main-thread executor. Host functions that must touch windows use
// UIThreadSpawner or CreateCanvas; everything else runs on the calling
// worker goroutine.
package host
