package wasm

import "github.com/wippyai/surface-host/wasm/internal/binary"

// Section IDs in the order they must be encoded.
const (
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionStart    byte = 8
	SectionCode     byte = 10
	SectionData     byte = 11
)

// External kinds for imports and exports.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
)

// ValType is a core value type.
type ValType byte

const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	}
	return "unknown"
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is an imported function.
type Import struct {
	Module string
	Name   string
	Type   uint32
}

// Export is an exported function or memory.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Func is a defined function: its type index, extra locals and body.
// The body must end with OpEnd.
type Func struct {
	Locals []ValType
	Body   []byte
	Type   uint32
}

// DataSegment is an active data segment for memory 0.
type DataSegment struct {
	Init   []byte
	Offset uint32
}

// Module is a minimal core module description. It covers what the host
// needs to produce small guest programs: function imports, one memory,
// exports, an optional start function and active data segments.
type Module struct {
	Start   *uint32
	Memory  *uint32
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Exports []Export
	Data    []DataSegment
}

// AddType returns the index of ft, adding it if needed.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if sameTypes(t.Params, ft.Params) && sameTypes(t.Results, ft.Results) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// ImportFunc adds a function import and returns its function index.
// Imports must be added before any defined function.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Type: m.AddType(ft)})
	return uint32(len(m.Imports) - 1)
}

// AddFunc defines a function and returns its function index.
func (m *Module) AddFunc(ft FuncType, locals []ValType, body []byte) uint32 {
	m.Funcs = append(m.Funcs, Func{Type: m.AddType(ft), Locals: locals, Body: body})
	return uint32(len(m.Imports) + len(m.Funcs) - 1)
}

// ExportFunc exports a function index under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindFunc, Index: idx})
}

// AddMemory declares memory 0 with min pages and exports it as "memory".
func (m *Module) AddMemory(minPages uint32) {
	m.Memory = &minPages
	m.Exports = append(m.Exports, Export{Name: "memory", Kind: KindMemory, Index: 0})
}

// SetStart makes idx the module's start function.
func (m *Module) SetStart(idx uint32) {
	m.Start = &idx
}

// AddData places init at offset in memory 0.
func (m *Module) AddData(offset uint32, init []byte) {
	m.Data = append(m.Data, DataSegment{Offset: offset, Init: init})
}

// Encode serializes the module.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Types)))
		for _, t := range m.Types {
			s.Byte(0x60)
			writeValTypes(s, t.Params)
			writeValTypes(s, t.Results)
		}
		writeSection(w, SectionType, s)
	}

	if len(m.Imports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			s.WriteName(imp.Module)
			s.WriteName(imp.Name)
			s.Byte(KindFunc)
			s.WriteU32(imp.Type)
		}
		writeSection(w, SectionImport, s)
	}

	if len(m.Funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			s.WriteU32(f.Type)
		}
		writeSection(w, SectionFunction, s)
	}

	if m.Memory != nil {
		s := binary.NewWriter()
		s.WriteU32(1)
		s.Byte(0x00) // min only
		s.WriteU32(*m.Memory)
		writeSection(w, SectionMemory, s)
	}

	if len(m.Exports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			s.WriteName(e.Name)
			s.Byte(e.Kind)
			s.WriteU32(e.Index)
		}
		writeSection(w, SectionExport, s)
	}

	if m.Start != nil {
		s := binary.NewWriter()
		s.WriteU32(*m.Start)
		writeSection(w, SectionStart, s)
	}

	if len(m.Funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			body := binary.NewWriter()
			body.WriteU32(uint32(len(f.Locals)))
			for _, l := range f.Locals {
				body.WriteU32(1)
				body.Byte(byte(l))
			}
			body.WriteBytes(f.Body)
			s.WriteVec(body.Bytes())
		}
		writeSection(w, SectionCode, s)
	}

	if len(m.Data) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			s.WriteU32(0) // active, memory 0
			s.Byte(OpI32Const)
			s.WriteS64(int64(int32(d.Offset)))
			s.Byte(OpEnd)
			s.WriteVec(d.Init)
		}
		writeSection(w, SectionData, s)
	}

	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, payload *binary.Writer) {
	w.Byte(id)
	w.WriteVec(payload.Bytes())
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
