package graphics

import (
	"errors"
	"image"
	"sync"
)

// MaxDimension bounds frame buffer width and height.
const MaxDimension = 16384

var (
	// ErrInvalidSize is returned for zero or oversized frame buffers.
	ErrInvalidSize = errors.New("graphics: invalid frame buffer size")

	// ErrTooLarge is returned when written pixel data exceeds the frame buffer.
	ErrTooLarge = errors.New("graphics: pixel data larger than frame buffer")
)

// FrameBuffer is a CPU-side RGBA8 image a component draws into.
type FrameBuffer struct {
	img *image.RGBA
	mu  sync.RWMutex
}

// NewFrameBuffer allocates a cleared width x height frame buffer.
func NewFrameBuffer(width, height uint32) (*FrameBuffer, error) {
	if width == 0 || height == 0 || width > MaxDimension || height > MaxDimension {
		return nil, ErrInvalidSize
	}
	return &FrameBuffer{img: image.NewRGBA(image.Rect(0, 0, int(width), int(height)))}, nil
}

// Size returns the frame buffer dimensions.
func (f *FrameBuffer) Size() (uint32, uint32) {
	b := f.img.Bounds()
	return uint32(b.Dx()), uint32(b.Dy())
}

// Write copies tightly packed RGBA8 rows into the frame buffer starting at
// the top-left pixel.
func (f *FrameBuffer) Write(pixels []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(pixels) > len(f.img.Pix) {
		return ErrTooLarge
	}
	copy(f.img.Pix, pixels)
	return nil
}

// Snapshot returns a copy of the current contents.
func (f *FrameBuffer) Snapshot() *image.RGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := image.NewRGBA(f.img.Bounds())
	copy(out.Pix, f.img.Pix)
	return out
}
