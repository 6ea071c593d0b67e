// Package wasi builds the execution context a component runs in and maps
// it onto wazero's WASI preview1 configuration.
//
// The default context inherits the host's stdio, matching how a command
// line program would run. Tests usually build one with captured output:
//
//	var out bytes.Buffer
//	ctx := wasi.NewBuilder().WithArgs("demo").WithStdout(&out).Build()
package wasi
