package database

import (
	"archive/tar"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
)

// DefaultURL is the pre-built human kraken2 database archive.
const DefaultURL = "https://zenodo.org/records/8339732/files/kraken_human_db.tar.gz"

// DefaultChecksum is the MD5 digest published alongside the archive.
const DefaultChecksum = "8d7bd4266d2ab03407e5fefd43958a0e"

const responseHeaderTimeout = 30 * time.Second

// Downloader fetches and unpacks the database archive.
type Downloader struct {
	client   *http.Client
	url      string
	checksum string
	logger   *zap.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithURL overrides the archive URL.
func WithURL(url string) DownloaderOption {
	return func(d *Downloader) { d.url = url }
}

// WithChecksum overrides the expected MD5 digest. An empty string disables
// verification.
func WithChecksum(sum string) DownloaderOption {
	return func(d *Downloader) { d.checksum = sum }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = logger }
}

// NewDownloader creates a Downloader with sensible defaults.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: responseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		},
		url:      DefaultURL,
		checksum: DefaultChecksum,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches the database archive, verifies its digest and unpacks it
// into dir. A file lock on the directory keeps concurrent downloads from
// interleaving; the second caller blocks and then finds the layout valid.
func (d *Downloader) Download(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".download.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking database directory: %w", err)
	}
	defer lock.Unlock()

	// Another process may have finished while we waited on the lock.
	if Validate(dir) == nil {
		d.logger.Info("database already present", zap.String("dir", dir))
		return nil
	}

	archivePath := filepath.Join(dir, ".db.tar.gz")
	if err := d.fetch(ctx, archivePath); err != nil {
		return err
	}
	defer os.Remove(archivePath)

	if d.checksum != "" {
		if err := verifyMD5(archivePath, d.checksum); err != nil {
			return err
		}
	}

	if err := unpack(archivePath, dir); err != nil {
		return err
	}
	return Validate(dir)
}

// fetch streams the archive to dest, resuming a partial download when the
// server supports range requests.
func (d *Downloader) fetch(ctx context.Context, dest string) error {
	var existing int64
	if info, err := os.Stat(dest); err == nil {
		existing = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if existing > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading database: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPartialContent:
		flags = os.O_WRONLY | os.O_APPEND
	default:
		return fmt.Errorf("downloading database: unexpected status %s", resp.Status)
	}

	file, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening archive file: %w", err)
	}
	defer file.Close()

	d.logger.Info("downloading database",
		zap.String("url", d.url),
		zap.Int64("resume_offset", existing),
	)

	buf := make([]byte, 1<<20)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return fmt.Errorf("writing archive: %w", werr)
			}
			written += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
	}

	d.logger.Info("download complete", zap.Int64("bytes", written))
	return nil
}

// verifyMD5 checks the archive digest against the published one.
func verifyMD5(path, want string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive for verification: %w", err)
	}
	defer file.Close()

	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("hashing archive: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("archive checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}

// unpack extracts the tar.gz archive into dir, flattening any leading
// directory so the .k2d files land directly in dir.
func unpack(archivePath, dir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gz, err := pgzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("opening archive gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(filepath.Clean(hdr.Name))
		if name == "." || name == ".." || strings.HasPrefix(name, ".") {
			continue
		}
		dest := filepath.Join(dir, name)
		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("extracting %s: %w", dest, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", dest, err)
		}
	}
}
