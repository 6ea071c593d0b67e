package wasi

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestBuilder(t *testing.T) {
	env := map[string]string{"A": "1"}
	b := NewBuilder().
		WithArgs("demo", "--fast").
		WithEnv(env).
		WithEnv(map[string]string{"B": "2"}).
		WithPreopens(map[string]string{"/data": t.TempDir()})
	ctx := b.Build()

	env["A"] = "changed"
	b.WithEnv(map[string]string{"C": "3"})

	got := ctx.Env()
	if len(got) != 2 || got["A"] != "1" || got["B"] != "2" {
		t.Errorf("Env() = %v", got)
	}
	if args := ctx.Args(); len(args) != 2 || args[0] != "demo" {
		t.Errorf("Args() = %v", args)
	}
	if _, ok := ctx.Preopens()["/data"]; !ok {
		t.Errorf("Preopens() = %v", ctx.Preopens())
	}

	got["A"] = "mutated"
	if ctx.Env()["A"] != "1" {
		t.Error("Env() must return a copy")
	}
}

func TestInherited(t *testing.T) {
	ctx := Inherited()
	if ctx.stdin != io.Reader(os.Stdin) || ctx.stdout != io.Writer(os.Stdout) || ctx.stderr != io.Writer(os.Stderr) {
		t.Error("Inherited should use the process stdio")
	}
}

func TestModuleConfig(t *testing.T) {
	var out bytes.Buffer
	ctx := NewBuilder().
		WithArgs("demo").
		WithStdin([]byte("in")).
		WithStdout(&out).
		WithEnv(map[string]string{"Z": "1", "A": "2"}).
		Build()

	if cfg := ctx.ModuleConfig("component"); cfg == nil {
		t.Fatal("ModuleConfig returned nil")
	}
	if cfg := NewBuilder().Build().ModuleConfig(""); cfg == nil {
		t.Fatal("ModuleConfig for empty context returned nil")
	}
}
