// Command surface-host runs a sandboxed graphics component. The native
// event loop owns the main thread; the component's entry point runs on a
// worker and reaches the loop through the dispatch proxy.
package main

import (
	"os"
	"runtime"
)

// Window systems require their calls on the initial OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(Execute(os.Args[1:]))
}
