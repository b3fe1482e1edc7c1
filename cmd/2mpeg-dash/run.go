package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/display"
	"github.com/Carbocode/2mpeg-dash/internal/logging"
	"github.com/Carbocode/2mpeg-dash/internal/metrics"
	"github.com/Carbocode/2mpeg-dash/internal/pipeline"
)

// runBatch is the root command: one pass over the input directory.
func (a *app) runBatch(cmd *cobra.Command, _ []string) error {
	orch, rec, err := a.startPipeline(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	stats, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	a.finishBatch(orch, rec, stats)
	if code := stats.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// startPipeline runs the shared startup of batch and watch mode: config,
// banner, paths, capability detection and orchestrator wiring.
func (a *app) startPipeline(cmd *cobra.Command) (*pipeline.Orchestrator, *metrics.Recorder, error) {
	if err := a.setup(cmd, false, a.stdout); err != nil {
		return nil, nil, err
	}
	display.PrintBanner(a.stdout, version)
	if err := a.preparePaths(); err != nil {
		return nil, nil, err
	}

	log := a.log.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("in", a.cfg.InputDir).
		Str("out", a.cfg.OutputDir).
		Str("work", a.cfg.WorkDir).
		Msg("2mpeg-dash")
	if a.cfg.DryRun {
		log.Warn().Msg("DRY RUN: nothing will be encoded or packaged")
	}

	ctx := cmd.Context()
	runner := a.runner()
	caps, err := check.Detect(ctx, runner, check.OptionsFromConfig(&a.cfg))
	if err != nil {
		return nil, nil, err
	}
	if !caps.AV1.Available() {
		log.Warn().Msg("no AV1 encoder available; producing H.264 only")
	}

	var rec *metrics.Recorder
	if a.cfg.MetricsTextfile != "" {
		rec = metrics.New()
	}
	orch := pipeline.New(&a.cfg, runner, caps, a.log.WithComponent("pipeline"), rec)

	a.stopInterruptLog = context.AfterFunc(ctx, func() {
		log.Warn().Msg("interrupt received; stopping running tools, nothing partial is published")
	})
	return orch, rec, nil
}

// finishBatch logs the summary and writes the optional report and metrics
// file. Artifact failures are logged but do not change the exit status.
func (a *app) finishBatch(orch *pipeline.Orchestrator, rec *metrics.Recorder, stats pipeline.RunStats) {
	log := a.log.WithComponent("summary")
	pipeline.LogSummary(log, stats)

	if a.cfg.ReportFile != "" {
		if err := pipeline.WriteReport(a.cfg.ReportFile, orch.BuildReport(stats)); err != nil {
			log.Error().Err(err).Msg("cannot write report")
		} else {
			log.Info().Str(logging.FieldPath, a.cfg.ReportFile).Msg("report written")
		}
	}
	if a.cfg.MetricsTextfile != "" {
		if err := rec.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			log.Error().Err(err).Msg("cannot write metrics textfile")
		}
	}
}
