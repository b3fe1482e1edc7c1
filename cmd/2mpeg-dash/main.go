// Command 2mpeg-dash turns a folder of source videos into MPEG-DASH
// packages with H.264 and AV1 ladders.
//
// The root command runs a batch. Subcommands run diagnostics (check),
// print ladders without encoding (plan), keep processing new files as they
// arrive (watch) and print the version.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/config"
	"github.com/Carbocode/2mpeg-dash/internal/logging"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError carries a process exit status out of a command without an
// additional error message; the command has already logged why.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// execute runs the CLI and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{cfg: config.DefaultConfig(), stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.stopInterruptLog != nil {
		a.stopInterruptLog()
	}
	if a.log != nil {
		_ = a.log.Close()
	}
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "2mpeg-dash: %v\n", err)
	return 1
}

// app holds the state shared by every subcommand.
type app struct {
	cfg        config.Config
	configPath string
	log        *logging.Logger
	stdout     io.Writer
	stderr     io.Writer

	stopInterruptLog func() bool
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "2mpeg-dash",
		Short: "Encode H.264 + AV1 ladders and package them as MPEG-DASH",
		Long: `Probes every video in the input directory, plans a resolution ladder,
encodes it once per codec family with ffmpeg and packages the result with
Shaka Packager or MP4Box into <out>/<name>/dash/manifest.mpd.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runBatch,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (flags override it)")
	config.BindFlags(root.PersistentFlags(), &a.cfg)

	root.AddCommand(a.checkCmd(), a.planCmd(), a.watchCmd(), a.versionCmd())
	return root
}

// setup resolves configuration and opens the logger. Human log lines go
// to logOut.
func (a *app) setup(cmd *cobra.Command, checkOnly bool, logOut io.Writer) error {
	if err := config.Resolve(cmd.Flags(), a.configPath, &a.cfg); err != nil {
		return err
	}
	a.cfg.CheckOnly = checkOnly
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(&a.cfg, logOut)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.log = log
	return nil
}

// preparePaths requires the input directory to exist, creates the output
// and work directories, and rejects layouts where discovery would pick up
// our own files.
func (a *app) preparePaths() error {
	inputAbs, err := absPath(a.cfg.InputDir)
	if err != nil {
		return fmt.Errorf("input not found: %s", a.cfg.InputDir)
	}
	for _, dir := range []string{a.cfg.OutputDir, a.cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	outputAbs, err := absPath(a.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("cannot resolve output path: %w", err)
	}
	workAbs, err := absPath(a.cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("cannot resolve work path: %w", err)
	}
	if err := a.cfg.ValidatePaths(inputAbs, outputAbs, workAbs); err != nil {
		return fmt.Errorf("%w (choose paths outside %s)", err, a.cfg.InputDir)
	}
	return nil
}

func (a *app) runner() command.ExecRunner {
	return command.ExecRunner{Timeout: a.cfg.Timeout}
}

// absPath returns the absolute, symlink-resolved path for safe comparison
// of directory hierarchies.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
