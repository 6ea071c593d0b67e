// Package goid identifies the calling goroutine.
//
// It exists only to enforce main-thread affinity and to detect re-entrant
// waits on the event loop; nothing should key state on goroutine IDs.
package goid

import "runtime"

// Current returns the current goroutine's ID.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack trace starts with "goroutine NNN ["
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
