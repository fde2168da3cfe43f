package readsweep

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/readsweep/readsweep/internal/compression"
	"github.com/readsweep/readsweep/internal/kraken"
	"github.com/readsweep/readsweep/internal/stats"
)

const testReport = `Loading database information... done.
12345 sequences (3.09 Mbp) processed in 1.234s (600.1 Kseq/m, 150.29 Mbp/m).
  12000 sequences classified (97.21%)
  345 sequences unclassified (2.79%)
`

// fakeKrakenRunner acts out a classifier run without spawning anything: it
// materialises the unclassified-read files the argument vector asks for and
// replays a canned run report on stderr.
type fakeKrakenRunner struct {
	runnable   bool
	exitCode   int
	versionErr error
	report     string
	payload    []byte

	calls [][]string
}

func (f *fakeKrakenRunner) CheckRunnable(name string) bool { return f.runnable }

func (f *fakeKrakenRunner) Run(ctx context.Context, name string, args ...string) (kraken.Output, error) {
	if len(args) > 0 && args[0] == "--version" {
		if f.versionErr != nil {
			return kraken.Output{}, f.versionErr
		}
		return kraken.Output{Stdout: []byte("Kraken version 2.1.3\nCopyright 2013-2023\n")}, nil
	}

	f.calls = append(f.calls, append([]string{name}, args...))
	if f.exitCode != 0 {
		return kraken.Output{Stderr: []byte("kraken2: database loading failed\n"), ExitCode: f.exitCode}, nil
	}

	template := ""
	paired := false
	for i, a := range args {
		switch a {
		case "--unclassified-out":
			template = args[i+1]
		case "--paired":
			paired = true
		}
	}

	dests := []string{template}
	if paired {
		dests = []string{
			strings.Replace(template, "#", "_1", 1),
			strings.Replace(template, "#", "_2", 1),
		}
	}
	for _, dest := range dests {
		if err := os.WriteFile(dest, f.payload, 0o644); err != nil {
			return kraken.Output{}, err
		}
	}
	return kraken.Output{Stderr: []byte(f.report)}, nil
}

func newFakeRunner() *fakeKrakenRunner {
	return &fakeKrakenRunner{
		runnable: true,
		report:   testReport,
		payload:  []byte("@survivor\nACGT\n+\nIIII\n"),
	}
}

// fakeDatabase lays out an empty but structurally valid kraken2 database.
func fakeDatabase(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"hash.k2d", "opts.k2d", "taxo.k2d"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0}, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeCompressed(t *testing.T, path string, format compression.Format, data []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := compression.Writer(format, f, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readCompressed(t *testing.T, path string, format compression.Format) []byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := compression.Reader(format, f)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestPipeline(t *testing.T, runner kraken.Runner) (*Pipeline, string) {
	t.Helper()
	wsRoot := t.TempDir()
	p, err := New(
		WithRunner(runner),
		WithWorkspaceRoot(wsRoot),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, wsRoot
}

func TestRun_Uncompressed(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq")
	if err := os.WriteFile(input, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	p, wsRoot := newTestPipeline(t, runner)

	req, err := NewRequest([]string{input}, fakeDatabase(t), WithThreads(2))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	report, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dest := filepath.Join(dir, "sample.nohuman.fq")
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(got, runner.payload) {
		t.Errorf("output content = %q, want classifier payload", got)
	}

	if report.TotalReads != 12345 || report.ClassifiedReads != 12000 || report.UnclassifiedReads != 345 {
		t.Errorf("report counts = %d/%d/%d", report.TotalReads, report.ClassifiedReads, report.UnclassifiedReads)
	}
	if report.Version != "2.1.3" {
		t.Errorf("report version = %q, want 2.1.3", report.Version)
	}
	if len(report.Inputs) != 1 || report.Inputs[0] != input {
		t.Errorf("report inputs = %v", report.Inputs)
	}

	// The run workspace must be gone once Run returns.
	entries, err := os.ReadDir(wsRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace root not cleaned up: %v", entries)
	}
}

func TestRun_GzipPassedThroughUnchanged(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq.gz")
	writeCompressed(t, input, compression.Gzip, []byte("@r1\nACGT\n+\nIIII\n"))

	runner := newFakeRunner()
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest([]string{input}, fakeDatabase(t))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("classifier invoked %d times, want 1", len(runner.calls))
	}
	args := runner.calls[0]
	if args[len(args)-1] != input {
		t.Errorf("classifier received %q, want the gzip input untouched", args[len(args)-1])
	}

	// The destination mirrors the input's gzip extension.
	got := readCompressed(t, filepath.Join(dir, "sample.nohuman.fq.gz"), compression.Gzip)
	if !bytes.Equal(got, runner.payload) {
		t.Errorf("decompressed output = %q, want classifier payload", got)
	}
}

func TestRun_ZstdStagedAndRecompressed(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq.zst")
	writeCompressed(t, input, compression.Zstd, []byte("@r1\nACGT\n+\nIIII\n"))

	runner := newFakeRunner()
	p, wsRoot := newTestPipeline(t, runner)

	req, err := NewRequest([]string{input}, fakeDatabase(t))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	args := runner.calls[0]
	staged := args[len(args)-1]
	if staged == input {
		t.Error("zstd input reached the classifier without staging")
	}
	if !strings.HasPrefix(staged, wsRoot) {
		t.Errorf("staged copy %q is outside the workspace root %q", staged, wsRoot)
	}

	got := readCompressed(t, filepath.Join(dir, "sample.nohuman.fq.zst"), compression.Zstd)
	if !bytes.Equal(got, runner.payload) {
		t.Errorf("decompressed output = %q, want classifier payload", got)
	}
}

func TestRun_Paired(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"reads_1.fq", "reads_2.fq"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, path)
	}

	runner := newFakeRunner()
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest(inputs, fakeDatabase(t))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	report, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	args := strings.Join(runner.calls[0], " ")
	if !strings.Contains(args, "--paired") {
		t.Errorf("classifier args missing --paired: %s", args)
	}
	if !strings.Contains(args, "#") {
		t.Errorf("unclassified template missing # placeholder: %s", args)
	}

	for _, name := range []string{"reads_1.nohuman.fq", "reads_2.nohuman.fq"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if !bytes.Equal(got, runner.payload) {
			t.Errorf("%s content = %q, want classifier payload", name, got)
		}
	}
	if len(report.Outputs) != 2 {
		t.Errorf("report outputs = %v, want 2 entries", report.Outputs)
	}
}

func TestRun_MissingDependency(t *testing.T) {
	runner := newFakeRunner()
	runner.runnable = false
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest([]string{filepath.Join(t.TempDir(), "sample.fq")}, fakeDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background(), req)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("Run() error = %v, want ErrMissingDependency", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("classifier invoked despite missing dependency")
	}
}

func TestRun_InvalidDatabase(t *testing.T) {
	runner := newFakeRunner()
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest([]string{filepath.Join(t.TempDir(), "sample.fq")}, filepath.Join(t.TempDir(), "nodb"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background(), req)
	if !errors.Is(err, ErrInvalidDatabase) {
		t.Errorf("Run() error = %v, want ErrInvalidDatabase", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("classifier invoked despite invalid database")
	}
}

func TestRun_ClassifierFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq")
	if err := os.WriteFile(input, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	runner.exitCode = 2
	p, wsRoot := newTestPipeline(t, runner)

	logPath := filepath.Join(dir, "kraken2.log")
	req, err := NewRequest([]string{input}, fakeDatabase(t), WithClassifierLog(logPath))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background(), req)
	if !errors.Is(err, ErrClassifierExit) {
		t.Errorf("Run() error = %v, want ErrClassifierExit", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "sample.nohuman.fq")); !os.IsNotExist(err) {
		t.Error("output written despite classifier failure")
	}

	// The failed run's stderr is the debugging artifact: the log must
	// still be written.
	logData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading classifier log after failed run: %v", err)
	}
	if !strings.Contains(string(logData), "database loading failed") {
		t.Errorf("classifier log = %q, want the failure stderr", logData)
	}
	entries, err := os.ReadDir(wsRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace root not cleaned up after failure: %v", entries)
	}
}

func TestRun_MalformedReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq")
	if err := os.WriteFile(input, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	runner.report = "Loading database information... done.\n"
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest([]string{input}, fakeDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background(), req)
	if !errors.Is(err, ErrStatsParse) {
		t.Errorf("Run() error = %v, want ErrStatsParse", err)
	}
}

func TestRun_VersionProbeFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq")
	if err := os.WriteFile(input, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	runner.versionErr = errors.New("boom")
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest([]string{input}, fakeDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	report, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Version != "unknown" {
		t.Errorf("report version = %q, want unknown", report.Version)
	}
}

func TestRun_ClassifierLogAndStats(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq")
	if err := os.WriteFile(input, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(dir, "kraken2.log")
	statsPath := filepath.Join(dir, "stats.json")

	runner := newFakeRunner()
	p, _ := newTestPipeline(t, runner)

	req, err := NewRequest([]string{input}, fakeDatabase(t),
		WithClassifierLog(logPath),
		WithStatsPath(statsPath),
	)
	if err != nil {
		t.Fatal(err)
	}
	want, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	logData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading classifier log: %v", err)
	}
	if string(logData) != testReport {
		t.Errorf("classifier log = %q, want verbatim stderr", logData)
	}

	got, err := ReadStatsReport(statsPath)
	if err != nil {
		t.Fatalf("ReadStatsReport() error = %v", err)
	}
	if got.TotalReads != want.TotalReads || got.Version != want.Version {
		t.Errorf("persisted report %+v does not match returned report %+v", got, want)
	}
}

// recordingStats captures emitted metrics for assertions.
type recordingStats struct {
	counters   map[string]int64
	gauges     map[string]int64
	histograms map[string]int
}

func newRecordingStats() *recordingStats {
	return &recordingStats{
		counters:   make(map[string]int64),
		gauges:     make(map[string]int64),
		histograms: make(map[string]int),
	}
}

func (r *recordingStats) IncCounter(name string, delta int64)         { r.counters[name] += delta }
func (r *recordingStats) SetGauge(name string, value int64)           { r.gauges[name] = value }
func (r *recordingStats) ObserveHistogram(name string, value float64) { r.histograms[name]++ }

func TestRun_Metrics(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.fq")
	if err := os.WriteFile(input, []byte("@r1\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	collector := newRecordingStats()
	p, err := New(
		WithRunner(runner),
		WithWorkspaceRoot(t.TempDir()),
		WithStats(collector),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req, err := NewRequest([]string{input}, fakeDatabase(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := collector.counters[stats.MetricRuns]; got != 1 {
		t.Errorf("%s = %d, want 1", stats.MetricRuns, got)
	}
	if got := collector.counters[stats.MetricReadsTotal]; got != 12345 {
		t.Errorf("%s = %d, want 12345", stats.MetricReadsTotal, got)
	}
	if got := collector.gauges[stats.MetricLastRunReads]; got != 12345 {
		t.Errorf("%s gauge = %d, want 12345", stats.MetricLastRunReads, got)
	}
	if got := collector.histograms[stats.MetricRunSeconds]; got != 1 {
		t.Errorf("%s observed %d times, want 1", stats.MetricRunSeconds, got)
	}
	if got := collector.counters[stats.MetricRunFailures]; got != 0 {
		t.Errorf("%s = %d, want 0", stats.MetricRunFailures, got)
	}
}

func TestCheckDependencies(t *testing.T) {
	runner := newFakeRunner()
	p, _ := newTestPipeline(t, runner)
	if missing := p.CheckDependencies(); len(missing) != 0 {
		t.Errorf("CheckDependencies() = %v, want none", missing)
	}

	runner.runnable = false
	if missing := p.CheckDependencies(); len(missing) != 1 || missing[0] != "kraken2" {
		t.Errorf("CheckDependencies() = %v, want [kraken2]", missing)
	}
}
