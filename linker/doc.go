// Package linker is the capability linkage table between the host and a
// component.
//
// Host capability sets register functions under their import module
// name; AddWASI adds wazero's WASI preview1. Before a component is
// instantiated, Check compares its imports against the table and reports
// every missing function or mismatched signature at once. Instantiate then
// binds the table to a runtime and to the host.State the functions run
// against.
//
// # Example
//
//	l := linker.New()
//	l.AddWASI()
//	_ = l.DefineFunc("wasi:surface/surface#size", sizeFn,
//		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
//		[]api.ValueType{api.ValueTypeI32})
//	if err := l.Check(ctx, rt, compiled); err != nil {
//		return err // errors.ErrLinkage
//	}
//	inst, _ := l.Instantiate(ctx, rt, state)
//	defer inst.Close(ctx)
package linker
