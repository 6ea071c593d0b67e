package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/gpu"
	"github.com/wippyai/surface-host/wasi"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates levels: SURFACE_HOST_RUNTIME__ON_FAILURE=continue.
const EnvPrefix = "SURFACE_HOST_"

// Entry-point failure policies.
const (
	OnFailureExit     = "exit"
	OnFailureContinue = "continue"
)

// PlatformHeadless is the only windowing backend built into the host.
const PlatformHeadless = "headless"

// Config is the top-level host configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Runtime  RuntimeConfig  `koanf:"runtime"`
	Platform PlatformConfig `koanf:"platform"`
	GPU      GPUConfig      `koanf:"gpu"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	WASI     WASIConfig     `koanf:"wasi"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// RuntimeConfig controls the component session and what the main loop does
// when the entry point returns. ShutdownGrace bounds the wait for an entry
// point that is still running after the loop stopped.
type RuntimeConfig struct {
	OnFailure        string        `koanf:"on_failure"` // "exit" or "continue"
	ExitOnSuccess    bool          `koanf:"exit_on_success"`
	EntryPoints      []string      `koanf:"entry_points"`
	MemoryLimitPages uint32        `koanf:"memory_limit_pages"`
	CacheDir         string        `koanf:"cache_dir"`
	ShutdownGrace    time.Duration `koanf:"shutdown_grace"`
}

// PlatformConfig selects the windowing backend.
type PlatformConfig struct {
	Backend     string        `koanf:"backend"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

// GPUConfig selects the graphics backends enabled on the shared instance.
type GPUConfig struct {
	Backends string `koanf:"backends"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// WASIConfig is the component's execution context. Env entries are
// KEY=VALUE; Dirs entries are HOST[:GUEST].
type WASIConfig struct {
	InheritStdio bool     `koanf:"inherit_stdio"`
	Env          []string `koanf:"env"`
	Dirs         []string `koanf:"dirs"`
	Args         []string `koanf:"args"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":                  "info",
		"log.development":            false,
		"runtime.on_failure":         OnFailureExit,
		"runtime.exit_on_success":    false,
		"runtime.entry_points":       []string{"wasi:cli/run@0.2.0#run", "run", "_start"},
		"runtime.memory_limit_pages": 0,
		"runtime.cache_dir":          "",
		"runtime.shutdown_grace":     "2s",
		"platform.backend":           PlatformHeadless,
		"platform.poll_timeout":      "100ms",
		"gpu.backends":               "all",
		"metrics.addr":               "",
		"metrics.path":               "/metrics",
		"wasi.inherit_stdio":         true,
		"wasi.env":                   []string{},
		"wasi.dirs":                  []string{},
		"wasi.args":                  []string{},
	}
}

// Load reads defaults, then the YAML file at path (if not empty), then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, configError("set default "+key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, configError("load config file "+path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, configError("load env vars", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, configError("unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configError(detail string, cause error) *errors.Error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Detail("%s", detail).
		Cause(cause).
		Build()
}

// Validate checks every field that can be wrong without touching the
// artifact.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("log.level: %v", err))
	}
	if !slices.Contains([]string{OnFailureExit, OnFailureContinue}, c.Runtime.OnFailure) {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("runtime.on_failure: %q is not %q or %q", c.Runtime.OnFailure, OnFailureExit, OnFailureContinue))
	}
	if len(c.Runtime.EntryPoints) == 0 {
		return errors.InvalidInput(errors.PhaseConfig, "runtime.entry_points: at least one entry point is required")
	}
	if c.Runtime.ShutdownGrace < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "runtime.shutdown_grace: must not be negative")
	}
	if c.Platform.Backend != PlatformHeadless {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("platform.backend: unknown backend %q", c.Platform.Backend))
	}
	if c.Platform.PollTimeout < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "platform.poll_timeout: must not be negative")
	}
	if _, err := c.Backends(); err != nil {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("gpu.backends: %v", err))
	}
	if _, err := c.WASIContext(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.Log.Level)
}

// Backends parses GPU.Backends.
func (c *Config) Backends() (gpu.Backends, error) {
	return gpu.ParseBackends(c.GPU.Backends)
}

// ExitAfter reports whether the main loop should stop once the entry point
// returned with err.
func (c *Config) ExitAfter(err error) bool {
	if err != nil {
		return c.Runtime.OnFailure == OnFailureExit
	}
	return c.Runtime.ExitOnSuccess
}

// WASIContext builds the component's execution context. args, if given,
// replace WASI.Args.
func (c *Config) WASIContext(args ...string) (*wasi.Context, error) {
	envs, err := ParseEnv(c.WASI.Env)
	if err != nil {
		return nil, err
	}
	dirs, err := ParseDirs(c.WASI.Dirs)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		args = c.WASI.Args
	}

	b := wasi.NewBuilder().WithEnv(envs).WithPreopens(dirs).WithArgs(args...)
	if c.WASI.InheritStdio {
		b.InheritStdio()
	}
	return b.Build(), nil
}

// ParseEnv parses KEY=VALUE entries.
func ParseEnv(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		key, value, ok := strings.Cut(e, "=")
		if !ok || key == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("env %q: want KEY=VALUE", e))
		}
		out[key] = value
	}
	return out, nil
}

// ParseDirs parses HOST[:GUEST] entries into a guest to host mapping. The
// guest path defaults to the host path.
func ParseDirs(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		hostDir, guest, ok := strings.Cut(e, ":")
		if !ok {
			guest = hostDir
		}
		if hostDir == "" || guest == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("dir %q: want HOST[:GUEST]", e))
		}
		if _, dup := out[guest]; dup {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("dir %q: guest path %s mounted twice", e, guest))
		}
		out[guest] = filepath.Clean(hostDir)
	}
	return out, nil
}
