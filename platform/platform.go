// Package platform defines the native windowing layer the main-thread
// executor drives.
//
// Every Platform and Window method except Wake, Window.ID and Window.Size
// must be called from the goroutine that runs the event loop. Implementations
// report a violation with ErrWrongThread instead of corrupting native state.
package platform

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrWrongThread is returned when a main-thread-only call comes from another goroutine.
	ErrWrongThread = errors.New("platform: call must be made on the main thread")

	// ErrClosed is returned after the platform or window has been closed.
	ErrClosed = errors.New("platform: closed")

	// ErrInvalidWindow is returned for a window descriptor that cannot produce a window.
	ErrInvalidWindow = errors.New("platform: window size must be non-zero")
)

// EventKind classifies a native event.
type EventKind uint8

const (
	EventRedraw EventKind = iota
	EventResize
	EventCloseRequested
	EventKey
	EventPointer
	EventQuit
)

var eventNames = [...]string{
	EventRedraw:         "redraw",
	EventResize:         "resize",
	EventCloseRequested: "close-requested",
	EventKey:            "key",
	EventPointer:        "pointer",
	EventQuit:           "quit",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// WindowID identifies a native window.
type WindowID uint64

// Event is a native platform event. Fields not relevant to Kind are zero.
type Event struct {
	Key    string
	X, Y   float64
	Window WindowID
	Width  uint32
	Height uint32
	Kind   EventKind
}

// WindowDesc describes a window to create.
type WindowDesc struct {
	Title     string
	Width     uint32
	Height    uint32
	Resizable bool
}

// Validate reports whether the descriptor can produce a window.
func (d WindowDesc) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return ErrInvalidWindow
	}
	return nil
}

// Window is a native window owned by the main thread.
type Window interface {
	ID() WindowID
	Size() (width, height uint32)
	Title() string
	// Present copies img to the window's backing store.
	Present(img *image.RGBA) error
	Close() error
}

// Platform is the native windowing backend.
type Platform interface {
	// Poll waits up to timeout for native events and returns early when Wake
	// is called. A negative timeout waits until an event or Wake arrives.
	Poll(timeout time.Duration) ([]Event, error)

	// Wake interrupts a blocked Poll. Safe from any goroutine.
	Wake()

	CreateWindow(desc WindowDesc) (Window, error)

	Close() error
}
