package capability

import (
	"fmt"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/errors"
)

// MaxTitleLen bounds window titles read from guest memory.
const MaxTitleLen = 4096

func memory(mod api.Module) (api.Memory, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, fmt.Errorf("%w: module exports no memory", ErrMemoryFault)
	}
	return mem, nil
}

// readBytes copies n bytes at ptr out of guest memory.
func readBytes(mod api.Module, ptr, n uint32) ([]byte, error) {
	mem, err := memory(mod)
	if err != nil {
		return nil, err
	}
	view, ok := mem.Read(ptr, n)
	if !ok {
		return nil, fmt.Errorf("%w: read %d bytes at %#x", ErrMemoryFault, n, ptr)
	}
	out := make([]byte, n)
	copy(out, view)
	return out, nil
}

func readString(mod api.Module, ptr, n uint32) (string, error) {
	if n > MaxTitleLen {
		return "", errors.InvalidInput(errors.PhaseHost, fmt.Sprintf("string of %d bytes exceeds %d", n, MaxTitleLen))
	}
	b, err := readBytes(mod, ptr, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidInput(errors.PhaseHost, "string is not valid UTF-8")
	}
	return string(b), nil
}

func writeBytes(mod api.Module, ptr uint32, data []byte) error {
	mem, err := memory(mod)
	if err != nil {
		return err
	}
	if !mem.Write(ptr, data) {
		return fmt.Errorf("%w: write %d bytes at %#x", ErrMemoryFault, len(data), ptr)
	}
	return nil
}

func writeU32(mod api.Module, ptr, v uint32) error {
	mem, err := memory(mod)
	if err != nil {
		return err
	}
	if !mem.WriteUint32Le(ptr, v) {
		return fmt.Errorf("%w: write u32 at %#x", ErrMemoryFault, ptr)
	}
	return nil
}
