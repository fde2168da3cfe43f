package readsweep

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/readsweep/readsweep/internal/compression"
)

// ReadFile is an input sequencing-read file with its detected compression
// format.
type ReadFile struct {
	Path   string
	Format compression.Format
}

// OutputTarget is a destination path with the compression format inferred
// from its extension. The extension is the sole mechanism determining the
// output codec.
type OutputTarget struct {
	Path   string
	Format compression.Format
}

// Request describes a single pipeline run. Build one with NewRequest; a
// Request is immutable after construction and all path validation has
// already happened by the time NewRequest returns.
type Request struct {
	inputs             []ReadFile
	outputs            []OutputTarget
	database           string
	threads            int
	compressionThreads int
	classifierLog      string
	statsPath          string
}

// Inputs returns the input read files in their original order.
func (r *Request) Inputs() []ReadFile { return r.inputs }

// Outputs returns the resolved output targets, one per input.
func (r *Request) Outputs() []OutputTarget { return r.outputs }

// Database returns the classifier database directory.
func (r *Request) Database() string { return r.database }

// Threads returns the classifier thread count.
func (r *Request) Threads() int { return r.threads }

// CompressionThreads returns the thread bound for codec work.
func (r *Request) CompressionThreads() int { return r.compressionThreads }

// Paired reports whether this is a paired-end run.
func (r *Request) Paired() bool { return len(r.inputs) == 2 }

// RequestOption configures a Request during construction.
type RequestOption func(*requestConfig)

type requestConfig struct {
	outputs            []string
	threads            int
	compressionThreads int
	classifierLog      string
	statsPath          string
	overwrite          bool
}

// WithOutputs sets explicit output paths, positionally matching the
// inputs. Inputs without an explicit path get the default name.
func WithOutputs(paths ...string) RequestOption {
	return func(c *requestConfig) { c.outputs = paths }
}

// WithThreads sets the classifier thread count. Defaults to 1.
func WithThreads(n int) RequestOption {
	return func(c *requestConfig) { c.threads = n }
}

// WithCompressionThreads sets the thread bound for decompression and
// recompression. Defaults to the classifier thread count.
func WithCompressionThreads(n int) RequestOption {
	return func(c *requestConfig) { c.compressionThreads = n }
}

// WithClassifierLog sets a path that receives the classifier's verbatim
// stderr stream after the run.
func WithClassifierLog(path string) RequestOption {
	return func(c *requestConfig) { c.classifierLog = path }
}

// WithStatsPath sets a path that receives the run's StatsReport as JSON.
func WithStatsPath(path string) RequestOption {
	return func(c *requestConfig) { c.statsPath = path }
}

// WithOverwrite permits writing over pre-existing output paths.
func WithOverwrite() RequestOption {
	return func(c *requestConfig) { c.overwrite = true }
}

// NewRequest validates inputs and resolves output targets. It fails before
// any temporary file is created: on more than two inputs, on two inputs
// resolving to the same output path, and on a pre-existing output path
// without WithOverwrite.
func NewRequest(inputs []string, databaseDir string, opts ...RequestOption) (*Request, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(inputs) > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyInputs, len(inputs))
	}

	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threads < 1 {
		cfg.threads = 1
	}
	if cfg.compressionThreads < 1 {
		cfg.compressionThreads = cfg.threads
	}
	if len(cfg.outputs) > len(inputs) {
		return nil, fmt.Errorf("got %d output paths for %d inputs", len(cfg.outputs), len(inputs))
	}

	req := &Request{
		database:           databaseDir,
		threads:            cfg.threads,
		compressionThreads: cfg.compressionThreads,
		classifierLog:      cfg.classifierLog,
		statsPath:          cfg.statsPath,
	}

	for i, in := range inputs {
		req.inputs = append(req.inputs, ReadFile{Path: in, Format: compression.Detect(in)})

		out := ""
		if i < len(cfg.outputs) {
			out = cfg.outputs[i]
		}
		if out == "" {
			out = DefaultOutputPath(in)
		}
		req.outputs = append(req.outputs, OutputTarget{Path: out, Format: compression.Detect(out)})
	}

	if req.Paired() && req.outputs[0].Path == req.outputs[1].Path {
		return nil, fmt.Errorf("%w: both inputs resolve to %s", ErrOutputCollision, req.outputs[0].Path)
	}

	if !cfg.overwrite {
		for _, out := range req.outputs {
			if _, err := os.Stat(out.Path); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrOutputExists, out.Path)
			}
		}
	}

	return req, nil
}

// DefaultOutputPath computes the default destination for an input file:
// the input stem with a ".nohuman.fq" suffix, mirroring the input's
// recognized compression extension when it has one.
//
//	sample.fq      -> sample.nohuman.fq
//	sample.fq.gz   -> sample.nohuman.fq.gz
//	sample.fq.zst  -> sample.nohuman.fq.zst
func DefaultOutputPath(input string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)

	if compression.Detect(base) != compression.None {
		compExt := filepath.Ext(base)
		stem := strings.TrimSuffix(base, compExt)
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
		return filepath.Join(dir, stem+".nohuman.fq"+compExt)
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".nohuman.fq")
}
