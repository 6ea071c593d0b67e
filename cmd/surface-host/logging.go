package main

import (
	"go.uber.org/zap"

	"github.com/wippyai/surface-host/capability"
	"github.com/wippyai/surface-host/config"
	"github.com/wippyai/surface-host/linker"
	"github.com/wippyai/surface-host/mainthread"
	"github.com/wippyai/surface-host/session"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// installLogger makes l the logger of every package that logs.
func installLogger(l *zap.Logger) {
	mainthread.SetLogger(l.Named("mainthread"))
	linker.SetLogger(l.Named("linker"))
	capability.SetLogger(l.Named("capability"))
	session.SetLogger(l.Named("session"))
}
