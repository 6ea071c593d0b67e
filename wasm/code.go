package wasm

import "github.com/wippyai/surface-host/wasm/internal/binary"

// Opcodes used by Code.
const (
	OpUnreachable byte = 0x00
	OpBlock       byte = 0x02
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpI32Load     byte = 0x28
	OpI32Store    byte = 0x36
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpI32Eqz      byte = 0x45
	OpI32Ne       byte = 0x47
	OpI32Add      byte = 0x6A
)

// Block types.
const (
	BlockVoid byte = 0x40
	BlockI32  byte = 0x7F
)

// Code assembles a function body.
type Code struct {
	w *binary.Writer
}

// NewCode starts an empty function body.
func NewCode() *Code {
	return &Code{w: binary.NewWriter()}
}

// Op appends raw opcodes.
func (c *Code) Op(ops ...byte) *Code {
	c.w.WriteBytes(ops)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.WriteS64(int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.w.Byte(OpI64Const)
	c.w.WriteS64(v)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code {
	c.w.Byte(OpLocalGet)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) LocalSet(idx uint32) *Code {
	c.w.Byte(OpLocalSet)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) Call(idx uint32) *Code {
	c.w.Byte(OpCall)
	c.w.WriteU32(idx)
	return c
}

// I32Load loads from the address on the stack plus offset, 4-byte aligned.
func (c *Code) I32Load(offset uint32) *Code {
	c.w.Byte(OpI32Load)
	c.w.WriteU32(2)
	c.w.WriteU32(offset)
	return c
}

// I32Store stores to the address on the stack plus offset, 4-byte aligned.
func (c *Code) I32Store(offset uint32) *Code {
	c.w.Byte(OpI32Store)
	c.w.WriteU32(2)
	c.w.WriteU32(offset)
	return c
}

// If opens an if block with the given block type.
func (c *Code) If(blockType byte) *Code {
	c.w.Byte(OpIf)
	c.w.Byte(blockType)
	return c
}

func (c *Code) Else() *Code {
	c.w.Byte(OpElse)
	return c
}

func (c *Code) End() *Code {
	c.w.Byte(OpEnd)
	return c
}

// Bytes returns the body. Callers close the function with a final End.
func (c *Code) Bytes() []byte {
	return c.w.Bytes()
}
