// Package packager drives Shaka Packager or GPAC MP4Box to turn encoded
// renditions into a DASH tree. Every run writes into a staging directory
// that is validated and then published atomically by the layout package.
package packager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/ffmpeg"
	"github.com/Carbocode/2mpeg-dash/internal/layout"
	"github.com/Carbocode/2mpeg-dash/internal/logging"
)

// Job describes one packaging run over all renditions of a source.
type Job struct {
	SourceID        string
	OutRoot         string
	Renditions      []ffmpeg.RenditionFile // Video inputs in manifest order.
	AudioPath       string                 // Empty when the source has no audio.
	SegmentDuration int                    // Seconds.
}

// Tree returns the output tree the job must produce.
func (j Job) Tree() layout.OutputTree {
	ids := make([]string, len(j.Renditions))
	for i, r := range j.Renditions {
		ids[i] = r.Spec.ID()
	}
	return layout.Expected(j.OutRoot, j.SourceID, ids, j.AudioPath != "")
}

// Packager runs one packager backend.
type Packager struct {
	Runner  command.Runner
	Backend check.PackagerBackend
	Path    string // Resolved binary; defaults to the backend's tool name.
	Log     zerolog.Logger
	// Progress, when set, receives the packager's live stderr.
	Progress io.Writer
}

// New returns a Packager for the resolved capabilities.
func New(r command.Runner, caps check.Capabilities, log zerolog.Logger) *Packager {
	return &Packager{Runner: r, Backend: caps.Packager, Path: caps.PackagerPath, Log: log}
}

func (p *Packager) bin() string {
	if p.Path != "" {
		return p.Path
	}
	return p.Backend.Tool()
}

// Command returns the packager invocation for job, to be run with its
// working directory set to the staging directory.
func (p *Packager) Command(job Job) (command.Cmd, error) {
	inputs, err := absInputs(job)
	if err != nil {
		return command.Cmd{}, err
	}
	var args []string
	switch p.Backend {
	case check.PackagerShaka:
		args, err = shakaArgs(job, inputs)
	case check.PackagerMP4Box:
		args = mp4boxArgs(job, inputs)
	default:
		err = fmt.Errorf("no packager backend available (%q)", p.Backend)
	}
	if err != nil {
		return command.Cmd{}, err
	}
	return command.Cmd{Name: p.bin(), Args: args}, nil
}

// Package stages, runs, validates and publishes the DASH tree for job.
// On any failure the staging directory is removed, nothing is published
// and the error is a *PackageError.
func (p *Packager) Package(ctx context.Context, job Job) (layout.OutputTree, error) {
	tree := job.Tree()
	log := p.Log.With().
		Str(logging.FieldSource, job.SourceID).
		Str(logging.FieldPackager, string(p.Backend)).
		Logger()

	fail := func(staging string, stderr string, err error) (layout.OutputTree, error) {
		if staging != "" {
			if rmErr := layout.Discard(staging); rmErr != nil {
				log.Warn().Err(rmErr).Str(logging.FieldPath, staging).Msg("could not remove staging dir")
			}
		}
		return layout.OutputTree{}, &PackageError{Source: job.SourceID, Backend: p.Backend, Stderr: stderr, Err: err}
	}

	if len(job.Renditions) == 0 {
		return fail("", "", fmt.Errorf("no renditions to package"))
	}
	c, err := p.Command(job)
	if err != nil {
		return fail("", "", err)
	}

	staging, err := layout.Prepare(tree.Root)
	if err != nil {
		return fail("", "", err)
	}
	for _, d := range tree.Dirs() {
		if err := os.MkdirAll(filepath.Join(staging, d), 0o755); err != nil {
			return fail(staging, "", err)
		}
	}

	c.Dir = staging
	c.Stderr = p.Progress
	log.Debug().Str(logging.FieldCommand, c.String()).Msg("running packager")
	res, err := p.Runner.Run(ctx, c)
	if err != nil {
		return fail(staging, res.Stderr, err)
	}
	log.Debug().Dur(logging.FieldDuration, res.Duration).Msg("packager finished")

	if p.Backend == check.PackagerMP4Box {
		if err := normalizeInitSegments(staging, tree); err != nil {
			return fail(staging, "", err)
		}
	}
	if err := layout.Validate(staging, tree); err != nil {
		return fail(staging, "", fmt.Errorf("invalid output tree: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(staging, "", err)
	}
	if err := layout.Publish(staging, tree.Root); err != nil {
		return fail(staging, "", err)
	}
	log.Info().Str(logging.FieldFinalPath, tree.Root).Msg("package published")
	return tree, nil
}

// absInputs resolves every input path since the packager runs inside the
// staging directory.
func absInputs(job Job) ([]string, error) {
	out := make([]string, 0, len(job.Renditions)+1)
	for _, r := range job.Renditions {
		abs, err := filepath.Abs(r.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	if job.AudioPath != "" {
		abs, err := filepath.Abs(job.AudioPath)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func millis(seconds int) string { return strconv.Itoa(seconds * 1000) }
