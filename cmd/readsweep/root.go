package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/readsweep/readsweep"
	statslogger "github.com/readsweep/readsweep/internal/stats/logger"
)

var (
	// Global flags.
	databaseDir string
	verbose     bool

	// Run flags.
	out1               string
	out2               string
	threads            int
	compressionThreads int
	classifierLog      string
	statsPath          string
	force              bool
)

var rootCmd = &cobra.Command{
	Use:   "readsweep [flags] INPUT [INPUT2]",
	Short: "Remove human reads from sequencing files",
	Long: `Readsweep removes human reads from FASTQ files by classifying them
against a kraken2 human database and keeping only the unclassified reads.

It accepts one file or a read pair, handles gzip, bgzip, bzip2, xz, lzma
and zstd transparently, and writes each result next to its input as
<name>.nohuman.fq with the input's compression extension preserved.

Examples:
  # Single file, output written to reads.nohuman.fq.gz
  readsweep reads.fq.gz

  # Paired reads with explicit outputs
  readsweep -o clean_1.fq.gz -O clean_2.fq.gz reads_1.fq.gz reads_2.fq.gz

  # Eight classifier threads, keep the kraken2 log
  readsweep -t 8 -l kraken2.log reads.fq.zst`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&databaseDir, "db", "D", defaultDatabaseDir(), "kraken2 database directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.Flags().StringVarP(&out1, "out1", "o", "", "output path for the first input (default <input>.nohuman.fq[.ext])")
	rootCmd.Flags().StringVarP(&out2, "out2", "O", "", "output path for the second input")
	rootCmd.Flags().IntVarP(&threads, "threads", "t", 1, "number of classifier threads")
	rootCmd.Flags().IntVar(&compressionThreads, "compression-threads", 0, "threads for (de)compression (default same as --threads)")
	rootCmd.Flags().StringVarP(&classifierLog, "kraken2-log", "l", "", "write the kraken2 stderr stream to this file")
	rootCmd.Flags().StringVar(&statsPath, "stats", "", "write a JSON run report to this file")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing output files")
}

func runRoot(cmd *cobra.Command, args []string) error {
	for _, in := range args {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("input file %q: %w", in, err)
		}
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Setup context with cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	reqOpts := []readsweep.RequestOption{
		readsweep.WithThreads(threads),
	}
	if out1 != "" || out2 != "" {
		outs := []string{out1}
		if out2 != "" {
			outs = append(outs, out2)
		}
		reqOpts = append(reqOpts, readsweep.WithOutputs(outs...))
	}
	if compressionThreads > 0 {
		reqOpts = append(reqOpts, readsweep.WithCompressionThreads(compressionThreads))
	}
	if classifierLog != "" {
		reqOpts = append(reqOpts, readsweep.WithClassifierLog(classifierLog))
	}
	if statsPath != "" {
		reqOpts = append(reqOpts, readsweep.WithStatsPath(statsPath))
	}
	if force {
		reqOpts = append(reqOpts, readsweep.WithOverwrite())
	}

	req, err := readsweep.NewRequest(args, databaseDir, reqOpts...)
	if err != nil {
		return err
	}

	pipeOpts := []readsweep.Option{readsweep.WithLogger(logger)}
	if verbose {
		pipeOpts = append(pipeOpts, readsweep.WithStats(statslogger.New(logger.Named("stats"))))
	}
	pipeline, err := readsweep.New(pipeOpts...)
	if err != nil {
		return err
	}

	report, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("kraken2 %s processed %d reads: %d human (%.2f%%), %d kept (%.2f%%)\n",
		report.Version, report.TotalReads,
		report.ClassifiedReads, report.ClassifiedPercent,
		report.UnclassifiedReads, report.UnclassifiedPercent)
	for _, out := range report.Outputs {
		fmt.Printf("  %s\n", out)
	}
	return nil
}

// defaultDatabaseDir is ~/.readsweep/db, falling back to a relative path
// when the home directory cannot be determined.
func defaultDatabaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".readsweep", "db")
	}
	return filepath.Join(home, ".readsweep", "db")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}
