package wasi

import (
	"bytes"
	"crypto/rand"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/tetratelabs/wazero"
)

// Context is the execution environment handed to a component: stdio,
// arguments, environment and preopened directories. It is immutable once
// built.
type Context struct {
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	env      map[string]string
	preopens map[string]string
	args     []string
}

// Builder assembles a Context. The zero configuration has no arguments, no
// environment, empty stdin and discarded output.
type Builder struct {
	ctx Context
}

// NewBuilder creates a builder with closed stdio.
func NewBuilder() *Builder {
	return &Builder{ctx: Context{
		env:      make(map[string]string),
		preopens: make(map[string]string),
	}}
}

// Inherited returns a context sharing the host process's stdio.
func Inherited() *Context {
	return NewBuilder().InheritStdio().Build()
}

// InheritStdio connects the component to the host's stdin, stdout and stderr.
func (b *Builder) InheritStdio() *Builder {
	b.ctx.stdin = os.Stdin
	b.ctx.stdout = os.Stdout
	b.ctx.stderr = os.Stderr
	return b
}

// WithEnv adds environment variables
func (b *Builder) WithEnv(env map[string]string) *Builder {
	maps.Copy(b.ctx.env, env)
	return b
}

// WithArgs sets command-line arguments, program name first
func (b *Builder) WithArgs(args ...string) *Builder {
	b.ctx.args = slices.Clone(args)
	return b
}

// WithPreopens maps guest paths to host directories
func (b *Builder) WithPreopens(preopens map[string]string) *Builder {
	maps.Copy(b.ctx.preopens, preopens)
	return b
}

// WithStdin sets stdin data
func (b *Builder) WithStdin(data []byte) *Builder {
	b.ctx.stdin = bytes.NewReader(data)
	return b
}

// WithStdout redirects stdout
func (b *Builder) WithStdout(w io.Writer) *Builder {
	b.ctx.stdout = w
	return b
}

// WithStderr redirects stderr
func (b *Builder) WithStderr(w io.Writer) *Builder {
	b.ctx.stderr = w
	return b
}

// Build returns the finished context. The builder may be reused.
func (b *Builder) Build() *Context {
	c := b.ctx
	c.env = maps.Clone(b.ctx.env)
	c.preopens = maps.Clone(b.ctx.preopens)
	c.args = slices.Clone(b.ctx.args)
	return &c
}

// Env returns a copy of the environment.
func (c *Context) Env() map[string]string {
	return maps.Clone(c.env)
}

// Args returns a copy of the arguments.
func (c *Context) Args() []string {
	return slices.Clone(c.args)
}

// Preopens returns a copy of the guest to host directory mapping.
func (c *Context) Preopens() map[string]string {
	return maps.Clone(c.preopens)
}

// ModuleConfig translates the context into a wazero module configuration.
// Start functions are cleared: the session calls the entry point itself.
func (c *Context) ModuleConfig(name string) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)

	if c.stdin != nil {
		cfg = cfg.WithStdin(c.stdin)
	}
	if c.stdout != nil {
		cfg = cfg.WithStdout(c.stdout)
	}
	if c.stderr != nil {
		cfg = cfg.WithStderr(c.stderr)
	}
	if len(c.args) > 0 {
		cfg = cfg.WithArgs(c.args...)
	}
	for _, k := range slices.Sorted(maps.Keys(c.env)) {
		cfg = cfg.WithEnv(k, c.env[k])
	}
	if len(c.preopens) > 0 {
		fs := wazero.NewFSConfig()
		for _, guest := range slices.Sorted(maps.Keys(c.preopens)) {
			fs = fs.WithDirMount(c.preopens[guest], guest)
		}
		cfg = cfg.WithFSConfig(fs)
	}
	return cfg
}
