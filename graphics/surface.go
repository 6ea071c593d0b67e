package graphics

import (
	"context"
	stderrors "errors"
	"image"
	"sync"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/platform"
)

// Surface is a native window as seen from a worker goroutine. Calls that
// touch the window are hopped to the main thread through the spawner.
type Surface struct {
	window  platform.Window
	spawner mainthread.Spawner
	mu      sync.Mutex
	closed  bool
}

var _ Presenter = (*Surface)(nil)

// NewSurface wraps w, reaching the main thread through s.
func NewSurface(w platform.Window, s mainthread.Spawner) *Surface {
	return &Surface{window: w, spawner: s}
}

// Window returns the native window behind the surface.
func (s *Surface) Window() platform.Window {
	return s.window
}

// Size returns the current window size.
func (s *Surface) Size() (uint32, uint32) {
	return s.window.Size()
}

// Present shows img in the window. It blocks until the main thread has
// copied the frame.
func (s *Surface) Present(ctx context.Context, img *image.RGBA) error {
	presentErr, err := mainthread.Call(ctx, s.spawner, func() error {
		return s.window.Present(img)
	})
	if err != nil {
		return err
	}
	return presentErr
}

// Close closes the window on the main thread. Repeated calls are no-ops.
func (s *Surface) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	closeErr, err := mainthread.Call(ctx, s.spawner, s.window.Close)
	switch {
	case err == nil:
		return closeErr
	case stderrors.Is(err, errors.ErrReentrant):
		// Already on the main thread.
		return s.window.Close()
	case stderrors.Is(err, errors.ErrChannelClosed):
		// The loop is gone and took its windows with it.
		return nil
	}
	return err
}

// Drop implements resource.Dropper.
func (s *Surface) Drop() {
	_ = s.Close(context.Background())
}
