package kraken

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Stats holds the run statistics extracted from kraken2's stderr summary.
//
// The report format is owned by kraken2 and is not a stable contract; the
// parser fails with a named missing field rather than guessing when a label
// is absent.
type Stats struct {
	Total           int64
	Classified      int64
	ClassifiedPct   float64
	Unclassified    int64
	UnclassifiedPct float64
}

// Report labels scanned for, line by line.
const (
	labelProcessed    = "processed"
	labelClassified   = "sequences classified"
	labelUnclassified = "sequences unclassified"
)

// ParseStats extracts run statistics from the classifier's stderr report.
// A typical report contains lines like:
//
//	1000 sequences (0.25 Mbp) processed in 0.1s (600.0 Kseq/m, 150.00 Mbp/m).
//	  500 sequences classified (50.00%)
//	  500 sequences unclassified (50.00%)
func ParseStats(stderr []byte) (Stats, error) {
	var (
		stats            Stats
		haveTotal        bool
		haveClassified   bool
		haveUnclassified bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(stderr))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case !haveTotal && strings.Contains(line, "sequences") && strings.Contains(line, labelProcessed):
			n, err := leadingCount(line)
			if err != nil {
				return Stats{}, fmt.Errorf("%w: total sequences: %v", ErrStatsParse, err)
			}
			stats.Total = n
			haveTotal = true

		case !haveUnclassified && strings.Contains(line, labelUnclassified):
			n, pct, err := countAndPercent(line)
			if err != nil {
				return Stats{}, fmt.Errorf("%w: unclassified sequences: %v", ErrStatsParse, err)
			}
			stats.Unclassified, stats.UnclassifiedPct = n, pct
			haveUnclassified = true

		case !haveClassified && strings.Contains(line, labelClassified):
			n, pct, err := countAndPercent(line)
			if err != nil {
				return Stats{}, fmt.Errorf("%w: classified sequences: %v", ErrStatsParse, err)
			}
			stats.Classified, stats.ClassifiedPct = n, pct
			haveClassified = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Stats{}, fmt.Errorf("%w: reading report: %v", ErrStatsParse, err)
	}

	switch {
	case !haveTotal:
		return Stats{}, fmt.Errorf("%w: total sequences", ErrStatsParse)
	case !haveClassified:
		return Stats{}, fmt.Errorf("%w: classified sequences", ErrStatsParse)
	case !haveUnclassified:
		return Stats{}, fmt.Errorf("%w: unclassified sequences", ErrStatsParse)
	}
	return stats, nil
}

// leadingCount parses the integer that opens a report line.
func leadingCount(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty line")
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing count %q: %v", fields[0], err)
	}
	return n, nil
}

// countAndPercent parses "<n> sequences <label> (<pct>%)" lines.
func countAndPercent(line string) (int64, float64, error) {
	n, err := leadingCount(line)
	if err != nil {
		return 0, 0, err
	}

	open := strings.IndexByte(line, '(')
	pctEnd := strings.IndexByte(line, '%')
	if open < 0 || pctEnd < open {
		return 0, 0, fmt.Errorf("no percentage in %q", line)
	}
	pct, err := strconv.ParseFloat(line[open+1:pctEnd], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing percentage in %q: %v", line, err)
	}
	return n, pct, nil
}
