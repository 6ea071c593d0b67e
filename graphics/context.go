package graphics

import (
	"context"
	"errors"
	"image"
	"sync"
)

var (
	// ErrNoFrameBuffer is returned by Present before a frame buffer is attached.
	ErrNoFrameBuffer = errors.New("graphics: no frame buffer attached")

	// ErrNotConnected is returned by Present before the context is connected to a surface.
	ErrNotConnected = errors.New("graphics: context not connected to a surface")
)

// Presenter displays a finished frame.
type Presenter interface {
	Present(ctx context.Context, img *image.RGBA) error
}

// Context ties a frame buffer to the surface it is presented on.
type Context struct {
	fb     *FrameBuffer
	target Presenter
	frames uint64
	mu     sync.Mutex
}

// NewContext creates an unattached, unconnected graphics context.
func NewContext() *Context {
	return &Context{}
}

// AttachFrameBuffer sets the frame buffer Present reads from.
func (c *Context) AttachFrameBuffer(fb *FrameBuffer) {
	c.mu.Lock()
	c.fb = fb
	c.mu.Unlock()
}

// Connect sets the surface frames are presented on.
func (c *Context) Connect(p Presenter) {
	c.mu.Lock()
	c.target = p
	c.mu.Unlock()
}

// Present sends a snapshot of the attached frame buffer to the connected surface.
func (c *Context) Present(ctx context.Context) error {
	c.mu.Lock()
	fb, target := c.fb, c.target
	c.mu.Unlock()

	if fb == nil {
		return ErrNoFrameBuffer
	}
	if target == nil {
		return ErrNotConnected
	}
	if err := target.Present(ctx, fb.Snapshot()); err != nil {
		return err
	}

	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
	return nil
}

// Frames returns how many frames were presented successfully.
func (c *Context) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
