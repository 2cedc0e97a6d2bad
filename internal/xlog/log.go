// Package xlog provides the process-wide structured logger used by every
// navcore component. It mirrors the teacher's internal/log.Setup(level)
// convention (gated behind --verbose in the CLI) but backs it with zap
// instead of a bespoke writer.
package xlog

import (
	"sync"

	"go.uber.org/zap"
)

// Level selects the verbosity of the global logger.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
)

var (
	mu  sync.Mutex
	log *zap.SugaredLogger
)

func init() {
	log = mustBuild(LevelInfo)
}

// Setup (re)configures the global logger. Called once at process startup,
// typically from a CLI's PersistentPreRun.
func Setup(level Level) {
	mu.Lock()
	defer mu.Unlock()
	log = mustBuild(level)
}

func mustBuild(level Level) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	if level == LevelVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		// Logging setup must never be fatal to the caller; fall back to a
		// no-op core rather than panic.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// For returns a logger tagged with a component name, matching the teacher's
// "[router]", "[transport]" prefix convention.
func For(component string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return log.Named(component)
}
