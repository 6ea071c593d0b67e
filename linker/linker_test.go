package linker

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/platform/headless"
	"github.com/wippyai/surface-host/wasm"
)

var (
	i32 = []api.ValueType{api.ValueTypeI32}
	w32 = []wasm.ValType{wasm.ValI32}
)

func nopFunc(context.Context, *host.State, api.Module, []uint64) {}

func newState(t *testing.T) *host.State {
	t.Helper()
	s, err := host.New(mainthread.New(headless.New()).Proxy())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func compile(t *testing.T, rt wazero.Runtime, m *wasm.Module) wazero.CompiledModule {
	t.Helper()
	compiled, err := rt.CompileModule(context.Background(), m.Encode())
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	return compiled
}

func TestDefineFunc(t *testing.T) {
	l := New()
	if err := l.DefineFunc("wasi:surface/surface#size", nopFunc, i32, i32); err != nil {
		t.Fatalf("DefineFunc: %v", err)
	}

	f := l.Resolve("wasi:surface/surface#size")
	if f == nil || f.Name != "size" {
		t.Fatalf("Resolve = %+v", f)
	}
	if f.Signature() != "(i32) -> (i32)" {
		t.Errorf("Signature() = %q", f.Signature())
	}
	if l.Resolve("wasi:surface/surface#missing") != nil || l.Resolve("no-separator") != nil {
		t.Error("unknown paths should not resolve")
	}

	err := l.DefineFunc("no-separator", nopFunc, nil, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLinking, Kind: errors.KindRegistration}) {
		t.Errorf("invalid path: %v", err)
	}
	if err := l.DefineFunc(WASINamespace+"#fd_write", nopFunc, nil, nil); err == nil {
		t.Error("WASI functions must come from AddWASI")
	}
}

func TestNamespaces(t *testing.T) {
	l := New()
	l.Namespace("wasi:webgpu/webgpu").DefineFunc("drop", nopFunc, i32, i32)
	l.Namespace("wasi:surface/surface").DefineFunc("drop", nopFunc, i32, i32)
	l.AddWASI()

	got := strings.Join(l.Namespaces(), ",")
	want := "wasi:surface/surface,wasi:webgpu/webgpu," + WASINamespace
	if got != want {
		t.Errorf("Namespaces() = %s, want %s", got, want)
	}

	ns := l.Namespace("wasi:webgpu/webgpu")
	ns.DefineFunc("buffer-read", nopFunc, nil, nil)
	funcs := ns.AllFuncs()
	if len(funcs) != 2 || funcs[0].Name != "buffer-read" || funcs[1].Name != "drop" {
		t.Errorf("AllFuncs() not sorted: %v", funcs)
	}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	l := New()
	l.AddWASI()
	l.Namespace("wasi:surface/surface").DefineFunc("size", nopFunc, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, i32)

	tests := []struct {
		name    string
		build   func(m *wasm.Module)
		missing []string
	}{
		{
			name: "all satisfied",
			build: func(m *wasm.Module) {
				m.ImportFunc("wasi:surface/surface", "size", wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}, Results: w32})
				m.ImportFunc(WASINamespace, "proc_exit", wasm.FuncType{Params: w32})
			},
		},
		{
			name: "missing function and namespace",
			build: func(m *wasm.Module) {
				m.ImportFunc("wasi:surface/surface", "create-window", wasm.FuncType{Results: w32})
				m.ImportFunc("wasi:audio/audio", "play", wasm.FuncType{})
			},
			missing: []string{"create-window", "play"},
		},
		{
			name: "signature mismatch",
			build: func(m *wasm.Module) {
				m.ImportFunc("wasi:surface/surface", "size", wasm.FuncType{Params: w32, Results: w32})
			},
			missing: []string{"size (signature mismatch"},
		},
		{
			name: "unknown wasi function",
			build: func(m *wasm.Module) {
				m.ImportFunc(WASINamespace, "no_such_call", wasm.FuncType{})
			},
			missing: []string{"no_such_call"},
		},
		{
			name: "wasi signature mismatch",
			build: func(m *wasm.Module) {
				m.ImportFunc(WASINamespace, "proc_exit", wasm.FuncType{})
			},
			missing: []string{"proc_exit (signature mismatch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m wasm.Module
			tt.build(&m)
			err := l.Check(ctx, rt, compile(t, rt, &m))

			if len(tt.missing) == 0 {
				if err != nil {
					t.Fatalf("Check: %v", err)
				}
				return
			}
			if !stderrors.Is(err, errors.ErrLinkage) {
				t.Fatalf("Check = %v, want linkage error", err)
			}
			var missing *errors.MissingImportsError
			if !stderrors.As(err, &missing) {
				t.Fatal("cause should be MissingImportsError")
			}
			if len(missing.Imports) != len(tt.missing) {
				t.Errorf("missing %d imports, want %d: %v", len(missing.Imports), len(tt.missing), missing)
			}
			for _, want := range tt.missing {
				if !strings.Contains(missing.Error(), want) {
					t.Errorf("%q not reported in %s", want, missing)
				}
			}
		})
	}
}

func TestCheck_WithoutWASI(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	var m wasm.Module
	m.ImportFunc(WASINamespace, "proc_exit", wasm.FuncType{Params: w32})

	err := New().Check(ctx, rt, compile(t, rt, &m))
	if !stderrors.Is(err, errors.ErrLinkage) {
		t.Errorf("Check = %v, want linkage error", err)
	}
}

func TestInstantiate_BindsState(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	state := newState(t)
	var seen *host.State

	l := New()
	l.AddWASI()
	l.Namespace("test:echo/echo").DefineFunc("double", func(_ context.Context, s *host.State, _ api.Module, stack []uint64) {
		seen = s
		stack[0] = stack[0] * 2
	}, i32, i32)

	var m wasm.Module
	double := m.ImportFunc("test:echo/echo", "double", wasm.FuncType{Params: w32, Results: w32})
	run := m.AddFunc(wasm.FuncType{Results: w32}, nil, wasm.NewCode().I32Const(21).Call(double).End().Bytes())
	m.ExportFunc("run", run)

	compiled := compile(t, rt, &m)
	if err := l.Check(ctx, rt, compiled); err != nil {
		t.Fatalf("Check: %v", err)
	}

	inst, err := l.Instantiate(ctx, rt, state)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("InstantiateModule: %v", err)
	}
	res, err := mod.ExportedFunction("run").Call(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if uint32(res[0]) != 42 {
		t.Errorf("run() = %d, want 42", res[0])
	}
	if seen != state {
		t.Error("host function did not receive the bound state")
	}

	if _, err := l.Instantiate(ctx, rt, state); !stderrors.Is(err, errors.ErrInstantiation) {
		t.Errorf("second binding into the same runtime: %v", err)
	}
}

func TestInstance_CloseReleasesModules(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	l := New()
	l.AddWASI()
	l.Namespace("test:echo/echo").DefineFunc("noop", nopFunc, nil, nil)

	inst, err := l.Instantiate(ctx, rt, newState(t))
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if len(inst.modules) != 2 || rt.Module(WASINamespace) == nil {
		t.Fatalf("modules = %d, wasi bound = %v", len(inst.modules), rt.Module(WASINamespace) != nil)
	}

	if err := inst.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, name := range []string{WASINamespace, "test:echo/echo"} {
		if rt.Module(name) != nil {
			t.Errorf("%s still bound after Close", name)
		}
	}

	again, err := l.Instantiate(ctx, rt, newState(t))
	if err != nil {
		t.Fatalf("rebinding after Close: %v", err)
	}
	_ = again.Close(ctx)
}
