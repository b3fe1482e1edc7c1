// Package command runs external tools (ffmpeg, ffprobe, packagers) behind a
// small [Runner] interface so the pipeline can be exercised with fakes.
//
// The production [ExecRunner] starts every child in its own process group.
// Cancellation or a per-process timeout sends SIGTERM to the whole group,
// then SIGKILL after a grace period, so encoder helper processes never
// outlive the run.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned (wrapped) when a process exceeds the runner's
// per-process timeout.
var ErrTimeout = errors.New("process timed out")

// maxStderr bounds how much stderr is retained for classification.
const maxStderr = 64 << 10

// Cmd describes one external process invocation.
type Cmd struct {
	Name   string
	Args   []string
	Dir    string    // Working directory; empty means the caller's.
	Stderr io.Writer // Optional live copy of stderr.
}

// String renders the command line for logs and dry-run output.
func (c Cmd) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'$[]") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result holds the outcome of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   string // Tail of stderr, at most 64 KiB.
	ExitCode int
	Duration time.Duration
}

// Runner starts processes and resolves tool names.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
	LookPath(name string) (string, error)
}

// ExitError reports a process that ran to completion with a non-zero status.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// ExecRunner runs real processes via os/exec.
type ExecRunner struct {
	Timeout time.Duration // Per process; 0 disables.
	Grace   time.Duration // Delay between SIGTERM and SIGKILL; default 5s.
}

// LookPath resolves name on PATH.
func (r ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run starts c, waits for it and classifies the outcome. A non-zero exit
// yields *ExitError; a timeout yields an error wrapping ErrTimeout; parent
// cancellation yields an error wrapping ctx.Err().
func (r ExecRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	grace := r.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	var stdout bytes.Buffer
	stderr := &tailBuffer{max: maxStderr}
	cmd.Stdout = &stdout
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, c.Stderr)
	} else {
		cmd.Stderr = stderr
	}

	setProcessGroup(cmd)
	var killTimer *time.Timer
	cmd.Cancel = func() error {
		killTimer = terminate(cmd, grace)
		return nil
	}
	cmd.WaitDelay = 2 * grace

	start := time.Now()
	err := cmd.Run()
	if killTimer != nil {
		killTimer.Stop()
	}
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s: %w", c.Name, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s: %w after %s", c.Name, ErrTimeout, r.Timeout)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return res, &ExitError{Name: c.Name, Code: ee.ExitCode(), Stderr: res.Stderr}
	}
	return res, fmt.Errorf("%s: %w", c.Name, err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
