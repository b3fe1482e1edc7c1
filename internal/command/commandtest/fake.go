// Package commandtest provides a scriptable fake [command.Runner].
package commandtest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carbocode/2mpeg-dash/internal/command"
)

// Handler produces the outcome of one fake invocation.
type Handler func(ctx context.Context, c command.Cmd) (command.Result, error)

// Fake records every call and dispatches to per-tool handlers. Tools
// without a handler succeed with empty output. Safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	paths    map[string]string
	handlers map[string]Handler
	calls    []command.Cmd
}

// New returns a Fake where the given tools resolve on PATH.
func New(installed ...string) *Fake {
	f := &Fake{paths: map[string]string{}, handlers: map[string]Handler{}}
	for _, name := range installed {
		f.paths[name] = filepath.Join("/usr/bin", name)
	}
	return f
}

// Handle installs h for tool name.
func (f *Fake) Handle(name string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

// LookPath mirrors exec.LookPath's error shape for missing tools.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Run records c and invokes its handler.
func (f *Fake) Run(ctx context.Context, c command.Cmd) (command.Result, error) {
	f.mu.Lock()
	c.Args = append([]string(nil), c.Args...)
	f.calls = append(f.calls, c)
	h := f.handlers[c.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return command.Result{ExitCode: -1}, err
	}
	if h == nil {
		return command.Result{}, nil
	}
	return h(ctx, c)
}

// Calls returns a copy of every recorded invocation in call order.
func (f *Fake) Calls() []command.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Cmd(nil), f.calls...)
}

// CallsTo returns the recorded invocations of one tool.
func (f *Fake) CallsTo(name string) []command.Cmd {
	var out []command.Cmd
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Stdout returns a handler that succeeds with the given output.
func Stdout(out string) Handler {
	return func(context.Context, command.Cmd) (command.Result, error) {
		return command.Result{Stdout: []byte(out)}, nil
	}
}

// Fail returns a handler that exits with code and stderr.
func Fail(code int, stderr string) Handler {
	return func(_ context.Context, c command.Cmd) (command.Result, error) {
		return command.Result{Stderr: stderr, ExitCode: code},
			&command.ExitError{Name: c.Name, Code: code, Stderr: stderr}
	}
}

// Block returns a handler that waits for cancellation, like a hung encoder.
func Block() Handler {
	return func(ctx context.Context, c command.Cmd) (command.Result, error) {
		<-ctx.Done()
		return command.Result{ExitCode: -1}, ctx.Err()
	}
}

// WriteOutputs returns a handler that succeeds after creating a non-empty
// file for every argument ending in one of suffixes, skipping the value of
// "-i". It stands in for an encoder producing its outputs.
func WriteOutputs(suffixes ...string) Handler {
	return func(_ context.Context, c command.Cmd) (command.Result, error) {
		for i, a := range c.Args {
			if i > 0 && c.Args[i-1] == "-i" {
				continue
			}
			for _, s := range suffixes {
				if strings.HasSuffix(a, s) {
					path := a
					if c.Dir != "" && !filepath.IsAbs(path) {
						path = filepath.Join(c.Dir, path)
					}
					if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
						return command.Result{ExitCode: 1}, err
					}
					if err := os.WriteFile(path, []byte("fake media"), 0o644); err != nil {
						return command.Result{ExitCode: 1}, err
					}
				}
			}
		}
		return command.Result{}, nil
	}
}
