package capability

import (
	stderrors "errors"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/gpu"
	"github.com/wippyai/surface-host/graphics"
	"github.com/wippyai/surface-host/platform"
)

// Errno is the status every capability function returns to the component.
type Errno uint32

const (
	ErrnoOK Errno = iota
	ErrnoBadHandle
	ErrnoInvalidArgument
	ErrnoChannelClosed
	ErrnoMemoryFault
	ErrnoUnsupported
	ErrnoInternal
)

var errnoNames = [...]string{
	ErrnoOK:              "ok",
	ErrnoBadHandle:       "bad-handle",
	ErrnoInvalidArgument: "invalid-argument",
	ErrnoChannelClosed:   "channel-closed",
	ErrnoMemoryFault:     "memory-fault",
	ErrnoUnsupported:     "unsupported",
	ErrnoInternal:        "internal",
}

func (e Errno) String() string {
	if int(e) < len(errnoNames) {
		return errnoNames[e]
	}
	return "unknown"
}

// ErrMemoryFault is returned when a pointer argument lies outside guest memory.
var ErrMemoryFault = stderrors.New("capability: guest memory access out of bounds")

// ErrnoOf maps a host error to the status reported to the component.
// A closed dispatch channel is always reported as ErrnoChannelClosed so the
// component can tell that the host is shutting down.
func ErrnoOf(err error) Errno {
	if err == nil {
		return ErrnoOK
	}

	var e *errors.Error
	switch {
	case stderrors.Is(err, errors.ErrChannelClosed):
		return ErrnoChannelClosed
	case stderrors.Is(err, ErrMemoryFault):
		return ErrnoMemoryFault
	case stderrors.Is(err, gpu.ErrDestroyed),
		stderrors.Is(err, platform.ErrClosed):
		return ErrnoBadHandle
	case stderrors.Is(err, gpu.ErrOutOfRange),
		stderrors.Is(err, gpu.ErrInvalidSize),
		stderrors.Is(err, gpu.ErrDeviceMemory),
		stderrors.Is(err, graphics.ErrInvalidSize),
		stderrors.Is(err, graphics.ErrTooLarge),
		stderrors.Is(err, graphics.ErrNoFrameBuffer),
		stderrors.Is(err, graphics.ErrNotConnected),
		stderrors.Is(err, platform.ErrInvalidWindow):
		return ErrnoInvalidArgument
	case stderrors.Is(err, gpu.ErrNoAdapter):
		return ErrnoUnsupported
	case stderrors.As(err, &e):
		switch e.Kind {
		case errors.KindBadHandle:
			return ErrnoBadHandle
		case errors.KindInvalidInput:
			return ErrnoInvalidArgument
		case errors.KindUnsupported:
			return ErrnoUnsupported
		}
	}
	return ErrnoInternal
}
