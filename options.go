package readsweep

import (
	"go.uber.org/zap"

	"github.com/readsweep/readsweep/internal/kraken"
	"github.com/readsweep/readsweep/internal/stats"
)

// Option configures a Pipeline.
type Option interface {
	apply(*options)
}

// options holds the pipeline configuration.
type options struct {
	runner        kraken.Runner
	stats         stats.Collector
	logger        *zap.Logger
	workspaceRoot string
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		runner: kraken.NewExecRunner(),
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithRunner sets the external command runner. The default spawns real
// processes; tests substitute a recording implementation.
func WithRunner(r kraken.Runner) Option {
	return optionFunc(func(o *options) {
		o.runner = r
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithWorkspaceRoot sets the directory the run workspace is created under.
// The default is the current working directory, so intermediate classifier
// output stays on the same filesystem as the final destinations.
func WithWorkspaceRoot(dir string) Option {
	return optionFunc(func(o *options) {
		o.workspaceRoot = dir
	})
}
