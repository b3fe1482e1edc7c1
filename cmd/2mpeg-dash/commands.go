package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/display"
	"github.com/Carbocode/2mpeg-dash/internal/pipeline"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check ffmpeg, encoders and packagers, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, true, a.stdout); err != nil {
				return err
			}
			display.PrintBanner(a.stdout, version)
			if err := check.RunCheck(cmd.Context(), a.runner(), &a.cfg, a.log.WithComponent("check")); err != nil {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func (a *app) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Probe sources and print their ladders without encoding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The table owns stdout; log lines go to stderr.
			if err := a.setup(cmd, false, a.stderr); err != nil {
				return err
			}
			ctx := cmd.Context()
			runner := a.runner()
			opts := check.OptionsFromConfig(&a.cfg)
			opts.RequirePackager = false
			caps, err := check.Detect(ctx, runner, opts)
			if err != nil {
				return err
			}

			orch := pipeline.New(&a.cfg, runner, caps, a.log.WithComponent("plan"), nil)
			failed, err := orch.PrintPlan(ctx, a.stdout)
			if err != nil {
				return err
			}
			if failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	settle := pipeline.DefaultSettle
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process the input directory, then keep processing new files as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, rec, err := a.startPipeline(cmd)
			if err != nil {
				return err
			}
			w := &pipeline.Watcher{
				Orch:    orch,
				Settle:  settle,
				Log:     a.log.WithComponent("watch"),
				Metrics: rec,
				OnBatch: func(stats pipeline.RunStats) { a.finishBatch(orch, rec, stats) },
			}
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", settle, "How long a new file must stay unchanged before it is processed")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "2mpeg-dash %s (%s)\n", version, commit)
		},
	}
}
