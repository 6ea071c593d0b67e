package linker

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/host"
)

// WASINamespace is the import module of WASI preview1.
const WASINamespace = wasi_snapshot_preview1.ModuleName

// Linker is the capability linkage table: the set of host functions a
// component may import. Definitions are runtime independent; Instantiate
// binds them to one runtime and one host state. Thread-safe.
type Linker struct {
	namespaces map[string]*Namespace
	mu         sync.RWMutex
	wasi       bool
}

// New creates an empty linker.
func New() *Linker {
	return &Linker{namespaces: make(map[string]*Namespace)}
}

// Namespace returns or creates the namespace for an import module.
func (l *Linker) Namespace(name string) *Namespace {
	l.mu.Lock()
	defer l.mu.Unlock()
	ns, ok := l.namespaces[name]
	if !ok {
		ns = newNamespace(name)
		l.namespaces[name] = ns
	}
	return ns
}

// DefineFunc is a convenience method to define a function at a full path.
// DefineFunc uses path format: "wasi:surface/surface#create-window"
func (l *Linker) DefineFunc(path string, fn HostFunc, params, results []api.ValueType) error {
	nsPath, funcName, err := splitFuncPath(path)
	if err != nil {
		return errors.New(errors.PhaseLinking, errors.KindRegistration).
			Detail("define %q", path).
			Cause(err).
			Build()
	}
	if nsPath == WASINamespace {
		return errors.Registration(errors.PhaseLinking, nsPath, funcName,
			fmt.Errorf("%s is provided by AddWASI", WASINamespace))
	}
	l.Namespace(nsPath).DefineFunc(funcName, fn, params, results)
	return nil
}

// Resolve looks up a function by full path: "wasi:surface/surface#size".
func (l *Linker) Resolve(path string) *FuncDef {
	nsPath, funcName, err := splitFuncPath(path)
	if err != nil {
		return nil
	}
	l.mu.RLock()
	ns := l.namespaces[nsPath]
	l.mu.RUnlock()
	if ns == nil {
		return nil
	}
	return ns.GetFunc(funcName)
}

// AddWASI links WASI preview1 (stdio, args, environment, clocks,
// filesystem) from wazero.
func (l *Linker) AddWASI() {
	l.mu.Lock()
	l.wasi = true
	l.mu.Unlock()
}

// HasWASI reports whether AddWASI was called.
func (l *Linker) HasWASI() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.wasi
}

// Namespaces returns the defined import module names, sorted.
func (l *Linker) Namespaces() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.namespaces)+1)
	for name := range l.namespaces {
		names = append(names, name)
	}
	if l.wasi {
		names = append(names, WASINamespace)
	}
	slices.Sort(names)
	return names
}

// splitFuncPath splits "ns/path#funcname" into namespace and function parts
func splitFuncPath(path string) (nsPath, funcName string, err error) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '#' {
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("linker: invalid function path %q: missing '#' separator", path)
}

// Check verifies that every import of compiled is satisfied with a matching
// signature. It runs before instantiation so a component with missing
// capabilities never starts. The error is a linkage error whose cause is a
// *errors.MissingImportsError.
func (l *Linker) Check(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule) error {
	var wasiDefs map[string]api.FunctionDefinition
	if l.HasWASI() {
		wasiMod, err := wasi_snapshot_preview1.NewBuilder(rt).Compile(ctx)
		if err != nil {
			return errors.Linkage(err)
		}
		wasiDefs = wasiMod.ExportedFunctions()
		defer wasiMod.Close(ctx)
	}

	missing := &errors.MissingImportsError{}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		params, results := def.ParamTypes(), def.ResultTypes()

		if module == WASINamespace && wasiDefs != nil {
			offered, ok := wasiDefs[name]
			switch {
			case !ok:
				missing.Add(module, name, "")
			case !slices.Equal(offered.ParamTypes(), params) || !slices.Equal(offered.ResultTypes(), results):
				missing.Add(module, name, "signature mismatch: want "+signature(params, results)+
					", have "+signature(offered.ParamTypes(), offered.ResultTypes()))
			}
			continue
		}

		fn := l.Resolve(module + "#" + name)
		switch {
		case fn == nil:
			missing.Add(module, name, "")
		case !fn.matches(params, results):
			missing.Add(module, name, "signature mismatch: want "+signature(params, results)+
				", have "+fn.Signature())
		}
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		missing.Add(module, name, "memory imports are not provided")
	}

	if len(missing.Imports) > 0 {
		Logger().Debug("linkage check failed", zap.Int("missing", len(missing.Imports)))
		return errors.Linkage(missing)
	}
	return nil
}

// Instance is the set of host modules bound to one host state.
type Instance struct {
	modules []api.Closer
}

// Close closes the host modules.
func (i *Instance) Close(ctx context.Context) error {
	var first error
	for _, m := range slices.Backward(i.modules) {
		if err := m.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	i.modules = nil
	return first
}

// Instantiate registers every namespace in rt as a host module whose
// functions see s. Each runtime can hold one binding of a linker.
func (l *Linker) Instantiate(ctx context.Context, rt wazero.Runtime, s *host.State) (*Instance, error) {
	l.mu.RLock()
	namespaces := make([]*Namespace, 0, len(l.namespaces))
	for _, ns := range l.namespaces {
		namespaces = append(namespaces, ns)
	}
	withWASI := l.wasi
	l.mu.RUnlock()

	slices.SortFunc(namespaces, func(a, b *Namespace) int {
		return strings.Compare(a.name, b.name)
	})

	inst := &Instance{}
	if withWASI {
		mod, err := wasi_snapshot_preview1.Instantiate(ctx, rt)
		if err != nil {
			return nil, errors.Instantiation(fmt.Errorf("instantiate %s: %w", WASINamespace, err))
		}
		inst.modules = append(inst.modules, mod)
	}

	for _, ns := range namespaces {
		mod, err := buildHostModule(ctx, rt, ns, s)
		if err != nil {
			_ = inst.Close(ctx)
			return nil, errors.Instantiation(fmt.Errorf("instantiate %s: %w", ns.name, err))
		}
		inst.modules = append(inst.modules, mod)
		Logger().Debug("host module instantiated",
			zap.String("namespace", ns.name),
			zap.Int("funcs", ns.Len()))
	}
	return inst, nil
}

func buildHostModule(ctx context.Context, rt wazero.Runtime, ns *Namespace, s *host.State) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ns.name)
	for _, f := range ns.AllFuncs() {
		handler := f.Handler
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handler(ctx, s, mod, stack)
			}), f.ParamTypes, f.ResultTypes).
			WithName(f.Name).
			Export(f.Name)
	}
	return builder.Instantiate(ctx)
}
