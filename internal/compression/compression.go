// Package compression maps filename extensions to compression formats and
// constructs streaming readers and writers for them.
//
// The destination extension is the sole mechanism determining the output
// codec; there is no content sniffing or confirmation step.
package compression

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Format identifies a compression codec.
type Format int

const (
	// None means the file is treated as uncompressed.
	None Format = iota
	// Gzip is RFC 1952 gzip (.gz).
	Gzip
	// Bgzip is blocked gzip as written by bgzip (.bgz). It is gzip-framed,
	// so any gzip reader decodes it; writes use the parallel gzip encoder.
	Bgzip
	// Bzip2 is bzip2 (.bz2).
	Bzip2
	// Xz is the xz container format (.xz).
	Xz
	// Lzma is the legacy raw LZMA format (.lzma).
	Lzma
	// Zstd is Zstandard (.zst, .zstd).
	Zstd
)

// String returns the codec name.
func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Bgzip:
		return "bgzip"
	case Bzip2:
		return "bzip2"
	case Xz:
		return "xz"
	case Lzma:
		return "lzma"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// Ext returns the canonical file extension without the dot, or "" for None.
func (f Format) Ext() string {
	switch f {
	case Gzip:
		return "gz"
	case Bgzip:
		return "bgz"
	case Bzip2:
		return "bz2"
	case Xz:
		return "xz"
	case Lzma:
		return "lzma"
	case Zstd:
		return "zst"
	default:
		return ""
	}
}

// Native reports whether kraken2 decodes the format itself, meaning the
// original file must be passed through unchanged.
func (f Format) Native() bool {
	switch f {
	case Gzip, Bgzip, Bzip2:
		return true
	default:
		return false
	}
}

// NeedsStaging reports whether the file must be decompressed into a plain
// temporary file before the classifier can read it.
func (f Format) NeedsStaging() bool {
	switch f {
	case Xz, Lzma, Zstd:
		return true
	default:
		return false
	}
}

// Detect classifies a file's compression format from its name alone.
// Unrecognized or absent extensions yield None; there is no error path.
func Detect(path string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "gz":
		return Gzip
	case "bgz":
		return Bgzip
	case "bz2":
		return Bzip2
	case "xz":
		return Xz
	case "lzma":
		return Lzma
	case "zst", "zstd":
		return Zstd
	default:
		return None
	}
}

// Reader wraps r to decompress data read from it.
func Reader(f Format, r io.Reader) (io.ReadCloser, error) {
	switch f {
	case None:
		return io.NopCloser(r), nil
	case Gzip, Bgzip:
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, nil
	case Bzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("opening bzip2 stream: %w", err)
		}
		return br, nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		return io.NopCloser(xr), nil
	case Lzma:
		lr, err := lzma.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening lzma stream: %w", err)
		}
		return io.NopCloser(lr), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// Writer wraps w to compress data written to it. The thread count is an
// advisory upper bound passed to codecs that support parallel encoding;
// bzip2, xz and lzma encode on a single thread regardless.
func Writer(f Format, w io.Writer, threads int) (io.WriteCloser, error) {
	if threads < 1 {
		threads = 1
	}
	switch f {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip, Bgzip:
		zw := pgzip.NewWriter(w)
		if err := zw.SetConcurrency(1<<20, threads); err != nil {
			return nil, fmt.Errorf("configuring gzip encoder: %w", err)
		}
		return zw, nil
	case Bzip2:
		bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 encoder: %w", err)
		}
		return bw, nil
	case Xz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating xz encoder: %w", err)
		}
		return xw, nil
	case Lzma:
		lw, err := lzma.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating lzma encoder: %w", err)
		}
		return lw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(threads))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
