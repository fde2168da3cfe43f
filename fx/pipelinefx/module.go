// Package pipelinefx provides an fx module for the readsweep pipeline.
package pipelinefx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/readsweep/readsweep"
	"github.com/readsweep/readsweep/internal/stats"
	"github.com/readsweep/readsweep/internal/stats/prometheus"
)

// Config holds configuration for the pipeline.
type Config struct {
	// WorkspaceRoot is the directory run workspaces are created under.
	// Empty means the current working directory.
	WorkspaceRoot string
}

// Module provides a *readsweep.Pipeline with Prometheus-backed metrics on
// the default registerer.
// Requires a *zap.Logger to be provided.
var Module = fx.Module("readsweep",
	fx.Provide(
		newStatsCollector,
		newPipeline,
	),
)

func newStatsCollector() stats.Collector {
	return prometheus.New(nil)
}

// Params holds dependencies for creating the pipeline.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
}

// Result holds the provided pipeline.
type Result struct {
	fx.Out

	Pipeline *readsweep.Pipeline
}

func newPipeline(p Params) (Result, error) {
	opts := []readsweep.Option{
		readsweep.WithStats(p.Collector),
		readsweep.WithLogger(p.Logger.Named("readsweep")),
	}
	if p.Config.WorkspaceRoot != "" {
		opts = append(opts, readsweep.WithWorkspaceRoot(p.Config.WorkspaceRoot))
	}

	pipeline, err := readsweep.New(opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Pipeline: pipeline}, nil
}
