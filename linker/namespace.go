package linker

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/host"
)

// HostFunc implements an imported function. It receives the capability
// surface of the calling instance, the calling module (for memory access)
// and the wazero value stack: parameters on entry, results on return.
type HostFunc func(ctx context.Context, s *host.State, mod api.Module, stack []uint64)

// FuncDef defines a host function
type FuncDef struct {
	Name        string
	Handler     HostFunc
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// Signature renders the function type as "(i32, i64) -> (i32)".
func (f *FuncDef) Signature() string {
	return signature(f.ParamTypes, f.ResultTypes)
}

func (f *FuncDef) matches(params, results []api.ValueType) bool {
	return slices.Equal(f.ParamTypes, params) && slices.Equal(f.ResultTypes, results)
}

// Namespace is one import module, such as "wasi:surface/surface".
type Namespace struct {
	funcs map[string]*FuncDef
	name  string
	mu    sync.RWMutex
}

func newNamespace(name string) *Namespace {
	return &Namespace{
		name:  name,
		funcs: make(map[string]*FuncDef),
	}
}

// Name returns the import module name.
func (ns *Namespace) Name() string {
	return ns.name
}

// DefineFunc registers a host function in this namespace.
// DefineFunc overwrites any existing function with the same name.
func (ns *Namespace) DefineFunc(name string, fn HostFunc, params, results []api.ValueType) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.funcs[name] = &FuncDef{
		Name:        name,
		Handler:     fn,
		ParamTypes:  params,
		ResultTypes: results,
	}
}

// GetFunc returns a function by name, or nil if not found
func (ns *Namespace) GetFunc(name string) *FuncDef {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.funcs[name]
}

// AllFuncs returns every function, sorted by name.
func (ns *Namespace) AllFuncs() []*FuncDef {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	result := make([]*FuncDef, 0, len(ns.funcs))
	for _, f := range ns.funcs {
		result = append(result, f)
	}
	slices.SortFunc(result, func(a, b *FuncDef) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// Len returns the number of functions defined.
func (ns *Namespace) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.funcs)
}

func signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(") -> (")
	for i, r := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(r))
	}
	b.WriteByte(')')
	return b.String()
}
