// Package session runs one component artifact against the host
// capabilities.
//
// A Session owns a wazero runtime. It moves through
//
//	Uninstantiated -> Instantiated -> Running -> Completed | Failed
//
// Instantiate reads, validates, links and instantiates the artifact; every
// failure there is reported before the component executes any code. Run
// calls the entry point once and blocks until it returns. Start does the
// same on a dedicated worker goroutine so the main thread stays free for
// the event loop.
package session
