// Package output finalizes the classifier's per-file results: a cheap
// rename when the destination is uncompressed, a streaming recompression
// otherwise.
package output

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/readsweep/readsweep/internal/compression"
)

// Target pairs a classifier temp output with its final destination. The
// Format is inferred from the destination extension by the caller.
type Target struct {
	Src    string
	Dest   string
	Format compression.Format
}

// Writer moves or recompresses classifier outputs into their destinations.
type Writer struct {
	threads int
	logger  *zap.Logger
}

// New creates a Writer. threads bounds both concurrent finalizations and
// the per-codec encoder parallelism.
func New(threads int, logger *zap.Logger) *Writer {
	if threads < 1 {
		threads = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{threads: threads, logger: logger}
}

// Finalize writes every target. Targets are finalized independently, but
// all must succeed; the first failure aborts the remaining work.
func (w *Writer) Finalize(ctx context.Context, targets []Target) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.threads)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return w.finalizeOne(t)
		})
	}
	return g.Wait()
}

func (w *Writer) finalizeOne(t Target) error {
	if t.Format == compression.None {
		// Same filesystem as the workspace, so this is a rename, not a copy.
		if err := os.Rename(t.Src, t.Dest); err != nil {
			return fmt.Errorf("moving output to %s: %w", t.Dest, err)
		}
		w.logger.Info("output written", zap.String("path", t.Dest))
		return nil
	}

	src, err := os.Open(t.Src)
	if err != nil {
		return fmt.Errorf("opening classifier output %s: %w", t.Src, err)
	}
	defer src.Close()

	dest, err := os.Create(t.Dest)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", t.Dest, err)
	}

	enc, err := compression.Writer(t.Format, dest, w.threads)
	if err != nil {
		dest.Close()
		return fmt.Errorf("compressing output %s: %w", t.Dest, err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dest.Close()
		return fmt.Errorf("compressing output %s: %w", t.Dest, err)
	}
	if err := enc.Close(); err != nil {
		dest.Close()
		return fmt.Errorf("compressing output %s: %w", t.Dest, err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("closing output %s: %w", t.Dest, err)
	}

	w.logger.Info("output written",
		zap.String("path", t.Dest),
		zap.String("compression", t.Format.String()),
	)
	return nil
}
