// Package wasm inspects and produces WebAssembly core module binaries.
//
// CheckHeader and IsComponent classify an artifact before it reaches the
// runtime: the host runs core modules and rejects component-model
// binaries up front. Module and Code build small modules in memory, which
// the host's tests use as guest programs:
//
//	var m wasm.Module
//	run := m.AddFunc(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}, nil,
//		wasm.NewCode().I32Const(0).End().Bytes())
//	m.ExportFunc("run", run)
//	bin := m.Encode()
package wasm
