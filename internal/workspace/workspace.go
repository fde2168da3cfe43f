// Package workspace owns the run-local temporary directory that holds all
// intermediate pipeline artifacts.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
)

// Workspace is a uniquely-named temporary directory for a single run.
//
// It is rooted in the current working directory rather than the system temp
// filesystem so that large intermediate classifier output lands on the same
// volume as the final destination, keeping the final move a cheap rename.
type Workspace struct {
	dir     string
	logger  *zap.Logger
	cleaned atomic.Bool
}

// New creates a workspace directory under root. An empty root means the
// current working directory.
func New(root string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	dir, err := os.MkdirTemp(root, "readsweep-*")
	if err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}
	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string { return w.dir }

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string { return filepath.Join(w.dir, name) }

// TempFile creates a new file inside the workspace. The pattern follows
// os.CreateTemp semantics, so concurrent callers always get distinct files.
func (w *Workspace) TempFile(pattern string) (*os.File, error) {
	return os.CreateTemp(w.dir, pattern)
}

// Cleanup removes the workspace directory. It runs at most once; removal
// failure is logged as a warning and never fails the run.
func (w *Workspace) Cleanup() {
	if !w.cleaned.CompareAndSwap(false, true) {
		return
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn("failed to remove workspace directory",
			zap.String("dir", w.dir),
			zap.Error(err),
		)
	}
}
