package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/surface-host/errors"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/linker"
	"github.com/wippyai/surface-host/wasm"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateUninstantiated State = iota
	StateInstantiated
	StateRunning
	StateCompleted
	StateFailed
	StateClosed
)

var stateNames = [...]string{"uninstantiated", "instantiated", "running", "completed", "failed", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// DefaultEntryPoints are tried in order; the first export found is called.
var DefaultEntryPoints = []string{"wasi:cli/run@0.2.0#run", "run", "_start"}

// ModuleName is the name the component is instantiated under.
const ModuleName = "component"

// Session is one component execution.
type Session struct {
	id       uuid.UUID
	linker   *linker.Linker
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	logger   *zap.Logger
	entries  []string
	store    *host.State
	bindings *linker.Instance
	module   api.Module
	entry    string
	state    State
	mu       sync.Mutex
}

type config struct {
	logger           *zap.Logger
	entries          []string
	cacheDir         string
	memoryLimitPages uint32
}

// Option configures a Session.
type Option func(*config)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEntryPoints replaces DefaultEntryPoints.
func WithEntryPoints(names ...string) Option {
	return func(c *config) {
		if len(names) > 0 {
			c.entries = names
		}
	}
}

// WithMemoryLimitPages caps the component's linear memory, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithCacheDir keeps compiled code in dir across runs.
func WithCacheDir(dir string) Option {
	return func(c *config) {
		c.cacheDir = dir
	}
}

// New creates an uninstantiated session resolving imports through l.
func New(ctx context.Context, l *linker.Linker, opts ...Option) *Session {
	cfg := config{logger: Logger(), entries: DefaultEntryPoints}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	logger := cfg.logger.With(zap.String("session", id.String()))

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	var cache wazero.CompilationCache
	if cfg.cacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			logger.Warn("compilation cache disabled", zap.String("dir", cfg.cacheDir), zap.Error(err))
		} else {
			rtConfig = rtConfig.WithCompilationCache(cache)
		}
	}

	return &Session{
		id:      id,
		linker:  l,
		runtime: wazero.NewRuntimeWithConfig(ctx, rtConfig),
		cache:   cache,
		logger:  logger,
		entries: append([]string(nil), cfg.entries...),
	}
}

// ID identifies the session in logs and reports.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Entry returns the export Run calls. It is empty before Instantiate.
func (s *Session) Entry() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry
}

// Store returns the host state bound by Instantiate.
func (s *Session) Store() *host.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Instantiate loads the artifact at path and binds it to store. The store
// stays owned by the caller.
func (s *Session) Instantiate(ctx context.Context, path string, store *host.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninstantiated {
		return errors.InvalidState(errors.PhaseInstantiate, "instantiate", s.state.String())
	}
	if store == nil {
		return errors.InvalidInput(errors.PhaseInstantiate, "nil host state")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.ArtifactNotFound(path, err)
		}
		return errors.ArtifactInvalid(path, "read artifact", err)
	}
	if err := wasm.CheckHeader(data); err != nil {
		if stderrors.Is(err, wasm.ErrComponent) {
			return errors.ArtifactInvalid(path, "component-model binaries are not hosted; build a wasip1 core module", err)
		}
		return errors.ArtifactInvalid(path, "unsupported binary", err)
	}

	compiled, err := s.runtime.CompileModule(ctx, data)
	if err != nil {
		return errors.ArtifactInvalid(path, "compile", err)
	}
	entry := findEntry(compiled, s.entries)
	if entry == "" {
		_ = compiled.Close(ctx)
		return errors.ArtifactInvalid(path, fmt.Sprintf("no entry point among %v", s.entries), nil)
	}
	if err := s.linker.Check(ctx, s.runtime, compiled); err != nil {
		_ = compiled.Close(ctx)
		return err
	}

	bindings, err := s.linker.Instantiate(ctx, s.runtime, store)
	if err != nil {
		_ = compiled.Close(ctx)
		return err
	}
	mod, err := s.runtime.InstantiateModule(ctx, compiled, store.Ctx().ModuleConfig(ModuleName))
	if err != nil {
		_ = bindings.Close(ctx)
		_ = compiled.Close(ctx)
		return errors.Instantiation(err)
	}

	s.store = store
	s.bindings = bindings
	s.module = mod
	s.entry = entry
	s.state = StateInstantiated
	s.logger.Info("component instantiated",
		zap.String("path", path),
		zap.String("entry", entry),
		zap.Strings("namespaces", s.linker.Namespaces()))
	return nil
}

func findEntry(compiled wazero.CompiledModule, names []string) string {
	exports := compiled.ExportedFunctions()
	for _, name := range names {
		if def, ok := exports[name]; ok && len(def.ParamTypes()) == 0 && len(def.ResultTypes()) <= 1 {
			return name
		}
	}
	return ""
}

// Run calls the entry point and blocks until it returns. It can be called
// once, after Instantiate.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInstantiated {
		state := s.state
		s.mu.Unlock()
		return errors.InvalidState(errors.PhaseRuntime, "run", state.String())
	}
	s.state = StateRunning
	mod, entry := s.module, s.entry
	s.mu.Unlock()

	start := time.Now()
	s.logger.Debug("entry point started", zap.String("entry", entry))
	res, err := mod.ExportedFunction(entry).Call(ctx)
	err = entryResult(ctx, entry, res, err)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("entry point failed", zap.String("entry", entry), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Info("entry point completed", zap.String("entry", entry), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// entryResult classifies the outcome of the entry point call. A non-zero
// return value or exit code is the component reporting failure; anything
// else that stops it is a trap.
func entryResult(ctx context.Context, entry string, res []uint64, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.EntryPointTrap(entry, fmt.Errorf("%w: %w", ctxErr, err))
		}
		var exit *sys.ExitError
		if stderrors.As(err, &exit) {
			if exit.ExitCode() == 0 {
				return nil
			}
			return errors.EntryPointError(entry, exit.ExitCode())
		}
		return errors.EntryPointTrap(entry, err)
	}
	if len(res) == 1 {
		if code := api.DecodeU32(res[0]); code != 0 {
			return errors.EntryPointError(entry, code)
		}
	}
	return nil
}

// Start runs the entry point on a worker goroutine locked to its own OS
// thread. The channel receives Run's result and is then closed.
func (s *Session) Start(ctx context.Context) <-chan error {
	out := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(out)
		out <- s.Run(ctx)
	}()
	return out
}

// Close releases the module, the host bindings and the runtime. The host
// state passed to Instantiate is not closed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	if s.state == StateRunning {
		s.logger.Warn("closing a running session")
	}
	s.state = StateClosed

	var errs []error
	if s.module != nil {
		errs = append(errs, s.module.Close(ctx))
	}
	if s.bindings != nil {
		errs = append(errs, s.bindings.Close(ctx))
	}
	errs = append(errs, s.runtime.Close(ctx))
	if s.cache != nil {
		errs = append(errs, s.cache.Close(ctx))
	}
	s.module, s.bindings, s.store = nil, nil, nil
	return stderrors.Join(errs...)
}
