package readsweep

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/readsweep/readsweep/internal/kraken"
)

// StatsReport is the structured record of a completed run. It is the only
// externally persisted artifact besides the outputs themselves, written as
// JSON when the request carries a stats path.
type StatsReport struct {
	Version             string   `json:"kraken2_version"`
	Inputs              []string `json:"inputs"`
	Outputs             []string `json:"outputs"`
	TotalReads          int64    `json:"total_reads"`
	ClassifiedReads     int64    `json:"classified_reads"`
	ClassifiedPercent   float64  `json:"classified_percent"`
	UnclassifiedReads   int64    `json:"unclassified_reads"`
	UnclassifiedPercent float64  `json:"unclassified_percent"`
}

// newStatsReport enriches the parsed classifier statistics with the version
// string and the resolved input/output paths.
func newStatsReport(version string, req *Request, parsed kraken.Stats) *StatsReport {
	r := &StatsReport{
		Version:             version,
		TotalReads:          parsed.Total,
		ClassifiedReads:     parsed.Classified,
		ClassifiedPercent:   parsed.ClassifiedPct,
		UnclassifiedReads:   parsed.Unclassified,
		UnclassifiedPercent: parsed.UnclassifiedPct,
	}
	for _, in := range req.inputs {
		r.Inputs = append(r.Inputs, in.Path)
	}
	for _, out := range req.outputs {
		r.Outputs = append(r.Outputs, out.Path)
	}
	return r
}

// WriteFile writes the report as indented JSON to path.
func (r *StatsReport) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stats report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing stats report: %w", err)
	}
	return nil
}

// ReadStatsReport reads a report previously written with WriteFile.
func ReadStatsReport(path string) (*StatsReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stats report: %w", err)
	}
	var r StatsReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing stats report: %w", err)
	}
	return &r, nil
}
