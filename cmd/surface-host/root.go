package main

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errReported marks errors whose report was already printed.
var errReported = stderrors.New("reported")

type flags struct {
	configPath    string
	logLevel      string
	onFailure     string
	exitOnSuccess bool
	grace         time.Duration
	metricsAddr   string
	env           []string
	dirs          []string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "surface-host [flags] <artifact.wasm>",
		Short: "Run a sandboxed graphics component",
		Long: `surface-host instantiates a WebAssembly component with the webgpu,
frame-buffer, graphics-context and surface capabilities plus WASI, runs its
entry point on a worker thread and services window requests on the main
thread until the component finishes or the process is interrupted.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fl.StringVar(&f.onFailure, "on-failure", "", "When the entry point fails: exit or continue")
	fl.BoolVar(&f.exitOnSuccess, "exit-on-success", false, "Stop the event loop when the entry point succeeds")
	fl.DurationVar(&f.grace, "shutdown-grace", 0, "How long to wait for a running entry point after the event loop stops")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fl.StringArrayVarP(&f.env, "env", "e", nil, "Component environment variable KEY=VALUE (repeatable)")
	fl.StringArrayVarP(&f.dirs, "dir", "d", nil, "Preopen directory HOST[:GUEST] (repeatable)")
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !stderrors.Is(err, errReported) {
			newReport(cmd.ErrOrStderr()).failure("surface-host", err)
		}
		return 1
	}
	return 0
}
