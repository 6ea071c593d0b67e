package wasm

import (
	"encoding/binary"
	"errors"
)

// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
const Magic uint32 = 0x6D736100

// Version is the core module binary format version.
const Version uint32 = 0x01

var (
	// ErrNotWasm is returned for data without the WebAssembly magic number.
	ErrNotWasm = errors.New("wasm: not a WebAssembly binary")

	// ErrComponent is returned for component-model binaries, which share the
	// magic number but use a layered version header.
	ErrComponent = errors.New("wasm: binary is a component, not a core module")

	// ErrUnsupportedVersion is returned for unknown core module versions.
	ErrUnsupportedVersion = errors.New("wasm: unsupported binary version")
)

// IsComponent reports whether data carries a component-model header.
func IsComponent(data []byte) bool {
	if !hasMagic(data) {
		return false
	}
	return binary.LittleEndian.Uint32(data[4:8]) > Version
}

// CheckHeader verifies that data starts with a core module header.
func CheckHeader(data []byte) error {
	if !hasMagic(data) {
		return ErrNotWasm
	}
	switch v := binary.LittleEndian.Uint32(data[4:8]); {
	case v == Version:
		return nil
	case v > Version && v&0xffff != 0 && v>>16 != 0:
		// Components encode version 0x0d and layer 1 in the upper half.
		return ErrComponent
	default:
		return ErrUnsupportedVersion
	}
}

func hasMagic(data []byte) bool {
	return len(data) >= 8 && binary.LittleEndian.Uint32(data[0:4]) == Magic
}
