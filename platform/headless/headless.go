// Package headless is an in-memory windowing backend.
//
// It behaves like a native backend from the event loop's point of view:
// windows can only be created, presented to and closed from the goroutine
// that first drives the platform, and native events arrive through Poll.
// Events are injected with Inject from any goroutine, which makes it the
// backend for tests, CI and servers without a display.
package headless

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wippyai/surface-host/internal/goid"
	"github.com/wippyai/surface-host/platform"
)

// Platform is a headless platform.Platform.
type Platform struct {
	windows map[platform.WindowID]*Window
	wake    chan struct{}
	pending []platform.Event
	owner   atomic.Uint64
	nextID  platform.WindowID
	created atomic.Int64
	mu      sync.Mutex
	closed  bool
}

var _ platform.Platform = (*Platform)(nil)

// New creates a headless platform. The first goroutine to call a
// main-thread-only method becomes its main thread.
func New() *Platform {
	return &Platform{
		windows: make(map[platform.WindowID]*Window),
		wake:    make(chan struct{}, 1),
	}
}

func (p *Platform) checkThread() error {
	id := goid.Current()
	if p.owner.CompareAndSwap(0, id) {
		return nil
	}
	if p.owner.Load() != id {
		return platform.ErrWrongThread
	}
	return nil
}

// Inject queues native events and wakes the loop. Safe from any goroutine.
func (p *Platform) Inject(events ...platform.Event) {
	p.mu.Lock()
	p.pending = append(p.pending, events...)
	p.mu.Unlock()
	p.Wake()
}

// Wake interrupts a blocked Poll.
func (p *Platform) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Platform) take() []platform.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := p.pending
	p.pending = nil
	return events
}

// Poll returns queued events, waiting up to timeout for one or for Wake.
func (p *Platform) Poll(timeout time.Duration) ([]platform.Event, error) {
	if err := p.checkThread(); err != nil {
		return nil, err
	}
	if events := p.take(); len(events) > 0 {
		return events, nil
	}
	if timeout == 0 {
		return nil, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-p.wake:
	case <-expired:
	}
	return p.take(), nil
}

// CreateWindow creates a window and queues its initial resize and redraw events.
func (p *Platform) CreateWindow(desc platform.WindowDesc) (platform.Window, error) {
	if err := p.checkThread(); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, platform.ErrClosed
	}
	p.nextID++
	w := &Window{
		platform: p,
		id:       p.nextID,
		title:    desc.Title,
		width:    desc.Width,
		height:   desc.Height,
	}
	p.windows[w.id] = w
	p.pending = append(p.pending,
		platform.Event{Kind: platform.EventResize, Window: w.id, Width: desc.Width, Height: desc.Height},
		platform.Event{Kind: platform.EventRedraw, Window: w.id},
	)
	p.mu.Unlock()

	p.created.Add(1)
	return w, nil
}

// Created returns how many windows were ever created.
func (p *Platform) Created() int {
	return int(p.created.Load())
}

// Windows returns the currently open windows.
func (p *Platform) Windows() []*Window {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Window, 0, len(p.windows))
	for _, w := range p.windows {
		out = append(out, w)
	}
	return out
}

// Window returns an open window by ID.
func (p *Platform) Window(id platform.WindowID) (*Window, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.windows[id]
	return w, ok
}

// Resize changes a window's size as a user would and queues the resize event.
func (p *Platform) Resize(id platform.WindowID, width, height uint32) {
	p.mu.Lock()
	w, ok := p.windows[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	p.Inject(platform.Event{Kind: platform.EventResize, Window: id, Width: width, Height: height})
}

// Close closes every window and rejects further window creation.
func (p *Platform) Close() error {
	p.mu.Lock()
	p.closed = true
	windows := p.windows
	p.windows = make(map[platform.WindowID]*Window)
	p.mu.Unlock()

	for _, w := range windows {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
	}
	p.Wake()
	return nil
}

// Window is a headless window. Presented frames are kept for inspection.
type Window struct {
	platform *Platform
	last     *image.RGBA
	title    string
	id       platform.WindowID
	frames   int
	width    uint32
	height   uint32
	mu       sync.Mutex
	closed   bool
}

var _ platform.Window = (*Window)(nil)

// ID returns the window's platform identifier.
func (w *Window) ID() platform.WindowID {
	return w.id
}

// Size returns the last size set at creation or by Resize.
func (w *Window) Size() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Title returns the title the window was created with.
func (w *Window) Title() string {
	return w.title
}

// Present stores a copy of img as the window's current frame.
func (w *Window) Present(img *image.RGBA) error {
	if err := w.platform.checkThread(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return platform.ErrClosed
	}
	frame := image.NewRGBA(img.Bounds())
	copy(frame.Pix, img.Pix)
	w.last = frame
	w.frames++
	return nil
}

// Frames returns how many frames were presented.
func (w *Window) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// LastFrame returns the most recently presented frame, or nil.
func (w *Window) LastFrame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Close closes the window. Closing twice is a no-op.
func (w *Window) Close() error {
	if err := w.platform.checkThread(); err != nil {
		return err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.platform.mu.Lock()
	delete(w.platform.windows, w.id)
	w.platform.mu.Unlock()
	return nil
}

// Closed reports whether the window was closed.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
