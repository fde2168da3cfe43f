package kraken

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Output holds the captured streams and exit status of a finished process.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner abstracts external command execution so tests can substitute a
// recording implementation that never spawns anything.
type Runner interface {
	// CheckRunnable reports whether name resolves to an executable on the
	// current execution environment.
	CheckRunnable(name string) bool

	// Run executes name with args, blocking until the process exits, and
	// returns its captured stdout and stderr. A non-zero exit status is
	// reported through Output.ExitCode, not the error; the error is
	// reserved for failure to spawn.
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// execRunner is the process-backed Runner.
type execRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() Runner { return execRunner{} }

func (execRunner) CheckRunnable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return out, err
	}
	return out, nil
}
