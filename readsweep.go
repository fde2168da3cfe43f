// Package readsweep removes host reads from sequencing files by staging
// them for the kraken2 classifier, running it once, and reassembling its
// unclassified-read output in the requested compression format.
//
// Example usage:
//
//	pipeline, err := readsweep.New(
//	    readsweep.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req, err := readsweep.NewRequest([]string{"sample.fq.gz"}, "/path/to/db",
//	    readsweep.WithThreads(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := pipeline.Run(ctx, req)
package readsweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/readsweep/readsweep/internal/database"
	"github.com/readsweep/readsweep/internal/kraken"
	"github.com/readsweep/readsweep/internal/output"
	"github.com/readsweep/readsweep/internal/stage"
	"github.com/readsweep/readsweep/internal/stats"
	"github.com/readsweep/readsweep/internal/workspace"
)

// Pipeline runs the staging/invocation/reassembly flow for one request at
// a time. A Pipeline is stateless between runs and safe for concurrent use
// with distinct requests.
type Pipeline struct {
	runner        kraken.Runner
	stats         stats.Collector
	logger        *zap.Logger
	workspaceRoot string
}

// New creates a Pipeline with the given options.
// If no options are provided, sensible defaults are used.
func New(opts ...Option) (*Pipeline, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return &Pipeline{
		runner:        cfg.runner,
		stats:         cfg.stats,
		logger:        cfg.logger,
		workspaceRoot: cfg.workspaceRoot,
	}, nil
}

// CheckDependencies reports the external commands that are not runnable.
// An empty slice means the classifier is available.
func (p *Pipeline) CheckDependencies() []string {
	return kraken.NewInvoker(p.runner, p.logger.Named("kraken")).MissingDependencies()
}

// Run executes the full pipeline for req and returns the final report.
//
// Stages run strictly in order: dependency and database checks, staging,
// one blocking classifier invocation, report parsing, output finalization,
// then best-effort workspace teardown. Every failure is fatal and aborts
// the run; only teardown failure is downgraded to a warning.
func (p *Pipeline) Run(ctx context.Context, req *Request) (report *StatsReport, err error) {
	start := time.Now()
	p.stats.IncCounter(stats.MetricRuns, 1)
	defer func() {
		if err != nil {
			p.stats.IncCounter(stats.MetricRunFailures, 1)
		}
	}()

	invoker := kraken.NewInvoker(p.runner, p.logger.Named("kraken"))

	// Fail fast on environment problems before touching any file.
	if missing := invoker.MissingDependencies(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	if err := database.Validate(req.database); err != nil {
		return nil, err
	}

	ws, err := workspace.New(p.workspaceRoot, p.logger.Named("workspace"))
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	// Stage inputs the classifier cannot read natively.
	stageInputs := make([]stage.Input, len(req.inputs))
	var stagedCount int64
	for i, in := range req.inputs {
		stageInputs[i] = stage.Input{Path: in.Path, Format: in.Format}
		if in.Format.NeedsStaging() {
			stagedCount++
		}
	}
	paths, err := stage.New(ws, req.compressionThreads, p.logger.Named("stage")).
		Stage(ctx, stageInputs)
	if err != nil {
		return nil, fmt.Errorf("staging inputs: %w", err)
	}
	p.stats.IncCounter(stats.MetricStagedFiles, stagedCount)

	// Invoke the classifier once, blocking until it exits.
	template := ws.Path("kraken_out.fq")
	if req.Paired() {
		template = ws.Path("kraken_out#.fq")
	}
	inv := kraken.Invocation{
		Threads:              req.threads,
		Database:             req.database,
		RawOutput:            ws.Path("kraken_raw.out"),
		UnclassifiedTemplate: template,
		Paired:               req.Paired(),
		Inputs:               paths,
	}
	res, err := invoker.Invoke(ctx, inv)

	// Persist the classifier's stderr whenever the process actually ran:
	// on a failed run the log is the primary debugging artifact.
	if req.classifierLog != "" && !errors.Is(err, ErrClassifierSpawn) {
		if werr := os.WriteFile(req.classifierLog, res.Stderr, 0o644); werr != nil {
			return nil, fmt.Errorf("writing classifier log: %w", werr)
		}
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("kraken2 finished, organising output")

	// Parse the run report before moving anything: a malformed report is a
	// hard failure.
	parsed, err := kraken.ParseStats(res.Stderr)
	if err != nil {
		return nil, err
	}
	p.stats.IncCounter(stats.MetricReadsTotal, parsed.Total)
	p.stats.IncCounter(stats.MetricReadsClassified, parsed.Classified)
	p.stats.IncCounter(stats.MetricReadsUnclassified, parsed.Unclassified)
	p.stats.SetGauge(stats.MetricLastRunReads, parsed.Total)

	version, err := invoker.Version(ctx)
	if err != nil {
		p.logger.Warn("could not determine kraken2 version", zap.Error(err))
		version = "unknown"
	}

	// Move or recompress each per-input result into its destination.
	targets := make([]output.Target, len(req.outputs))
	for i, out := range req.outputs {
		targets[i] = output.Target{
			Src:    res.Unclassified[i],
			Dest:   out.Path,
			Format: out.Format,
		}
	}
	writer := output.New(req.compressionThreads, p.logger.Named("output"))
	if err := writer.Finalize(ctx, targets); err != nil {
		return nil, err
	}

	report = newStatsReport(version, req, parsed)
	if req.statsPath != "" {
		if err := report.WriteFile(req.statsPath); err != nil {
			return nil, err
		}
	}

	p.stats.ObserveHistogram(stats.MetricRunSeconds, time.Since(start).Seconds())
	p.logger.Info("done", zap.Duration("elapsed", time.Since(start)))
	return report, nil
}
