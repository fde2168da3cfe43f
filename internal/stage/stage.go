// Package stage materializes inputs the classifier cannot read natively
// into plain temporary files inside the workspace.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/readsweep/readsweep/internal/compression"
	"github.com/readsweep/readsweep/internal/workspace"
)

// ErrDecompression indicates a staged input could not be decompressed.
// Compression corruption is not transient, so the failure is fatal.
var ErrDecompression = errors.New("stage: decompression failed")

// Input is a read file with its detected compression format.
type Input struct {
	Path   string
	Format compression.Format
}

// Stager decompresses staged-format inputs into the workspace.
type Stager struct {
	ws      *workspace.Workspace
	threads int
	logger  *zap.Logger
}

// New creates a Stager. threads bounds concurrent decompressions.
func New(ws *workspace.Workspace, threads int, logger *zap.Logger) *Stager {
	if threads < 1 {
		threads = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{ws: ws, threads: threads, logger: logger}
}

// Stage returns classifier-ready paths in input order: a decompressed
// workspace temp file for formats that need staging, the original path
// otherwise. Files are staged concurrently when more than one needs
// staging and the thread bound allows it.
func (s *Stager) Stage(ctx context.Context, inputs []Input) ([]string, error) {
	paths := make([]string, len(inputs))
	var staged []int
	for i, in := range inputs {
		if in.Format.NeedsStaging() {
			staged = append(staged, i)
			continue
		}
		paths[i] = in.Path
	}

	if len(staged) == 0 {
		return paths, nil
	}

	if len(staged) > 1 && s.threads > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(s.threads)
		for _, i := range staged {
			i := i
			g.Go(func() error {
				dest, err := s.stageOne(ctx, inputs[i])
				if err != nil {
					return err
				}
				paths[i] = dest
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return paths, nil
	}

	for _, i := range staged {
		dest, err := s.stageOne(ctx, inputs[i])
		if err != nil {
			return nil, err
		}
		paths[i] = dest
	}
	return paths, nil
}

// stageOne decompresses a single input into a fresh workspace file.
func (s *Stager) stageOne(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(in.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", in.Path, err)
	}
	defer src.Close()

	reader, err := compression.Reader(in.Format, src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecompression, in.Path, err)
	}
	defer reader.Close()

	base := filepath.Base(in.Path)
	dest, err := s.ws.TempFile("staged_*_" + trimCompressionExt(base, in.Format))
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}

	s.logger.Debug("staging input",
		zap.String("input", in.Path),
		zap.String("format", in.Format.String()),
		zap.String("dest", dest.Name()),
	)

	if _, err := io.Copy(dest, reader); err != nil {
		dest.Close()
		return "", fmt.Errorf("%w: %s: %v", ErrDecompression, in.Path, err)
	}
	if err := dest.Close(); err != nil {
		return "", fmt.Errorf("closing staging file: %w", err)
	}
	return dest.Name(), nil
}

// trimCompressionExt strips the recognized compression extension so the
// staged file name reflects its decompressed content.
func trimCompressionExt(name string, f compression.Format) string {
	ext := filepath.Ext(name)
	if f != compression.None && compression.Detect(name) == f {
		return name[:len(name)-len(ext)]
	}
	return name
}
