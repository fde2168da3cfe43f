// Package kraken invokes kraken2 as a single blocking external process and
// parses its textual run report.
package kraken

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Command is the classifier's command name.
const Command = "kraken2"

// Sentinel errors for the invocation contract.
var (
	// ErrSpawn indicates the classifier process could not be started.
	ErrSpawn = errors.New("kraken: failed to start kraken2")

	// ErrNonZeroExit indicates the classifier exited with an error status.
	ErrNonZeroExit = errors.New("kraken: kraken2 exited with an error")

	// ErrStatsParse indicates an expected label was absent from the run
	// report, usually meaning the report format changed upstream.
	ErrStatsParse = errors.New("kraken: statistics missing from report")
)

// Invocation describes one classifier run. The argument vector it produces
// is deterministic for a given value.
type Invocation struct {
	Threads              int
	Database             string
	RawOutput            string // combined classification output inside the workspace
	UnclassifiedTemplate string // contains "#" when paired
	Paired               bool
	Inputs               []string // classifier-ready paths in original input order
}

// Args builds the classifier argument vector.
func (inv Invocation) Args() []string {
	args := []string{
		"--threads", fmt.Sprintf("%d", inv.Threads),
		"--db", inv.Database,
		"--output", inv.RawOutput,
	}
	if inv.Paired {
		args = append(args, "--paired")
	}
	args = append(args, "--unclassified-out", inv.UnclassifiedTemplate)
	args = append(args, inv.Inputs...)
	return args
}

// UnclassifiedPaths resolves the output template to the concrete file paths
// the classifier produces. On paired runs kraken2 substitutes the "#"
// placeholder with _1 and _2.
func (inv Invocation) UnclassifiedPaths() []string {
	if !inv.Paired {
		return []string{inv.UnclassifiedTemplate}
	}
	return []string{
		strings.Replace(inv.UnclassifiedTemplate, "#", "_1", 1),
		strings.Replace(inv.UnclassifiedTemplate, "#", "_2", 1),
	}
}

// Result is the outcome of a successful classifier invocation.
type Result struct {
	Stdout       []byte
	Stderr       []byte
	Unclassified []string // per-input unclassified-read files, in input order
}

// Invoker checks for and executes the classifier.
type Invoker struct {
	runner Runner
	logger *zap.Logger
}

// NewInvoker creates an Invoker using the given Runner.
func NewInvoker(runner Runner, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{runner: runner, logger: logger}
}

// MissingDependencies returns the external commands that are not runnable.
// An empty slice means all dependencies are available.
func (iv *Invoker) MissingDependencies() []string {
	var missing []string
	for _, cmd := range []string{Command} {
		if iv.runner.CheckRunnable(cmd) {
			iv.logger.Debug("dependency available", zap.String("command", cmd))
			continue
		}
		iv.logger.Debug("dependency not runnable", zap.String("command", cmd))
		missing = append(missing, cmd)
	}
	return missing
}

// Version probes the classifier version. It reports the version token from
// the first line of `kraken2 --version`.
func (iv *Invoker) Version(ctx context.Context) (string, error) {
	out, err := iv.runner.Run(ctx, Command, "--version")
	if err != nil {
		return "", fmt.Errorf("probing kraken2 version: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out.Stdout)), "\n")
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "Kraken version "); ok {
		return rest, nil
	}
	if line == "" {
		return "", fmt.Errorf("probing kraken2 version: empty output")
	}
	return line, nil
}

// Invoke runs the classifier synchronously and captures its streams to
// completion. There is no timeout and no retry: a spawn failure or non-zero
// exit aborts the pipeline. On a non-zero exit the Result still carries the
// captured streams, so the caller can persist the classifier's stderr.
func (iv *Invoker) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	args := inv.Args()
	iv.logger.Info("running kraken2")
	iv.logger.Debug("kraken2 arguments", zap.Strings("args", args))

	out, err := iv.runner.Run(ctx, Command, args...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	if out.ExitCode != 0 {
		return Result{Stdout: out.Stdout, Stderr: out.Stderr},
			fmt.Errorf("%w: exit status %d: %s",
				ErrNonZeroExit, out.ExitCode, lastLine(out.Stderr))
	}

	return Result{
		Stdout:       out.Stdout,
		Stderr:       out.Stderr,
		Unclassified: inv.UnclassifiedPaths(),
	}, nil
}

// lastLine extracts the final non-empty stderr line for error messages.
func lastLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
