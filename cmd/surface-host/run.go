package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/surface-host/capability"
	"github.com/wippyai/surface-host/config"
	"github.com/wippyai/surface-host/gpu"
	"github.com/wippyai/surface-host/host"
	"github.com/wippyai/surface-host/linker"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/platform"
	"github.com/wippyai/surface-host/platform/headless"
	"github.com/wippyai/surface-host/resource"
	"github.com/wippyai/surface-host/session"
)

// loadConfig reads the configuration file and applies command-line
// overrides on top of it.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("on-failure") {
		cfg.Runtime.OnFailure = f.onFailure
	}
	if changed("exit-on-success") {
		cfg.Runtime.ExitOnSuccess = f.exitOnSuccess
	}
	if changed("shutdown-grace") {
		cfg.Runtime.ShutdownGrace = f.grace
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	cfg.WASI.Env = append(cfg.WASI.Env, f.env...)
	cfg.WASI.Dirs = append(cfg.WASI.Dirs, f.dirs...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// outcome records how the entry point finished.
type outcome struct {
	err  error
	done bool
	mu   sync.Mutex
}

func (o *outcome) set(err error) {
	o.mu.Lock()
	o.err, o.done = err, true
	o.mu.Unlock()
}

func (o *outcome) get() (done bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done, o.err
}

// awaitWorker waits up to grace for done and reports whether it closed.
func awaitWorker(done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	default:
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func run(cmd *cobra.Command, artifact string, f flags) error {
	rep := newReport(cmd.ErrOrStderr())
	started := time.Now()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		rep.failure("configuration", err)
		return errReported
	}
	logger, err := newLogger(cfg)
	if err != nil {
		rep.failure("logger", err)
		return errReported
	}
	defer func() { _ = logger.Sync() }()
	installLogger(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := headless.New()
	defer p.Close()
	loop := mainthread.New(p,
		mainthread.WithLogger(logger.Named("mainthread")),
		mainthread.WithMetrics(mainthread.NewMetrics(reg)),
		mainthread.WithPollTimeout(cfg.Platform.PollTimeout),
		mainthread.WithEventHandler(func(ev platform.Event) {
			logger.Debug("native event", zap.Stringer("kind", ev.Kind), zap.Uint64("window", uint64(ev.Window)))
		}),
	)

	backends, err := cfg.Backends()
	if err != nil {
		rep.failure("configuration", err)
		return errReported
	}
	instance := gpu.NewInstance(gpu.InstanceDescriptor{Backends: backends, Flags: gpu.FlagsFromBuildConfig()})
	defer instance.Release()

	wasiCtx, err := cfg.WASIContext(append([]string{filepath.Base(artifact)}, cfg.WASI.Args...)...)
	if err != nil {
		rep.failure("configuration", err)
		return errReported
	}
	table := resource.NewTable(resource.WithObserver(newResourceMetrics(reg).observe))
	store, err := host.New(loop.Proxy(),
		host.WithInstance(instance),
		host.WithContext(wasiCtx),
		host.WithTable(table),
	)
	if err != nil {
		rep.failure("host", err)
		return errReported
	}
	defer store.Close()

	l := linker.New()
	capability.Link(l)

	sess := session.New(ctx, l,
		session.WithLogger(logger.Named("session")),
		session.WithEntryPoints(cfg.Runtime.EntryPoints...),
		session.WithMemoryLimitPages(cfg.Runtime.MemoryLimitPages),
		session.WithCacheDir(cfg.Runtime.CacheDir),
	)
	defer sess.Close(context.Background())

	// Every load, link and instantiation failure is reported here, before
	// the event loop starts.
	if err := sess.Instantiate(ctx, artifact, store); err != nil {
		rep.failure("instantiate "+artifact, err)
		return errReported
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The worker is not part of the group: a component blocked in a host
	// call that ignores cancellation must not keep the process alive once
	// the loop has stopped.
	var result outcome
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		err := <-sess.Start(gctx)
		result.set(err)
		if cfg.ExitAfter(err) {
			logger.Info("stopping event loop", zap.Bool("entry_failed", err != nil))
			loop.Exit()
		}
	}()

	// The loop owns the main thread until it is told to stop.
	loopErr := loop.Run(gctx)
	cancel()

	abandoned := !awaitWorker(workerDone, cfg.Runtime.ShutdownGrace)
	if abandoned {
		logger.Warn("abandoning running entry point", zap.Duration("grace", cfg.Runtime.ShutdownGrace))
	}
	groupErr := g.Wait()

	finished, entryErr := result.get()
	state := sess.State().String()
	if !finished {
		state = "interrupted"
	}
	newReport(cmd.OutOrStdout()).summary(summary{
		artifact: artifact,
		session:  sess.ID().String(),
		entry:    sess.Entry(),
		state:    state,
		windows:  p.Created(),
		elapsed:  time.Since(started),
		err:      entryErr,
	})

	switch {
	case abandoned:
		rep.failure("entry point", fmt.Errorf("still running %v after the event loop stopped; abandoned", cfg.Runtime.ShutdownGrace))
		return errReported
	case loopErr != nil:
		rep.failure("event loop", loopErr)
		return errReported
	case groupErr != nil:
		rep.failure("worker", groupErr)
		return errReported
	case entryErr != nil:
		return errReported
	}
	return nil
}
