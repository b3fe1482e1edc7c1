package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/logging"
	"github.com/Carbocode/2mpeg-dash/internal/planner"
	"github.com/Carbocode/2mpeg-dash/internal/probe"
)

// AudioFileName is the extracted audio intermediate inside the audio work dir.
const AudioFileName = "audio.m4a"

// Encoder runs family encodes and audio extraction.
type Encoder struct {
	Runner command.Runner
	FFmpeg string // Resolved ffmpeg path; defaults to "ffmpeg".
	Opts   Options
	Log    zerolog.Logger
	// Progress, when set, receives ffmpeg's live stderr (verbose mode).
	Progress io.Writer
}

func (e *Encoder) bin() string {
	if e.FFmpeg == "" {
		return "ffmpeg"
	}
	return e.FFmpeg
}

// EncodeCommand returns the first-attempt command for job. Used for
// dry-run output.
func (e *Encoder) EncodeCommand(job Job) command.Cmd {
	return command.Cmd{Name: e.bin(), Args: BuildEncodeArgs(job, e.Opts, NewRetryState())}
}

// AudioCommand returns the first-attempt audio extraction command.
func (e *Encoder) AudioCommand(asset probe.SourceAsset, dir string) command.Cmd {
	out := filepath.Join(dir, AudioFileName)
	return command.Cmd{Name: e.bin(), Args: BuildAudioArgs(asset, out, e.Opts, NewRetryState())}
}

// Encode runs one family encode and returns the produced rendition files in
// spec order. Failures are *EncodeError.
func (e *Encoder) Encode(ctx context.Context, job Job) ([]RenditionFile, error) {
	if len(job.Specs) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		return nil, &EncodeError{Source: job.Asset.ID, Family: job.Family, Reason: ReasonIO, Err: err}
	}

	log := e.Log.With().
		Str(logging.FieldSource, job.Asset.ID).
		Str(logging.FieldFamily, string(job.Family)).
		Logger()

	build := func(rs *RetryState) []string { return BuildEncodeArgs(job, e.Opts, rs) }
	if err := e.run(ctx, log, job.Asset.ID, job.Family, build); err != nil {
		return nil, err
	}

	files := make([]RenditionFile, 0, len(job.Specs))
	for _, spec := range job.Specs {
		path := OutputPath(job.OutDir, spec)
		if err := checkOutput(path); err != nil {
			return nil, &EncodeError{Source: job.Asset.ID, Family: job.Family, Reason: ReasonMissingOutput, Err: err}
		}
		files = append(files, RenditionFile{Spec: spec, Path: path})
	}
	return files, nil
}

// ExtractAudio encodes the source's first audio track to <dir>/audio.m4a.
// Failures are *EncodeError with Family audio.
func (e *Encoder) ExtractAudio(ctx context.Context, asset probe.SourceAsset, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &EncodeError{Source: asset.ID, Family: planner.FamilyAudio, Reason: ReasonIO, Err: err}
	}
	out := filepath.Join(dir, AudioFileName)
	log := e.Log.With().
		Str(logging.FieldSource, asset.ID).
		Str(logging.FieldFamily, string(planner.FamilyAudio)).
		Logger()

	build := func(rs *RetryState) []string { return BuildAudioArgs(asset, out, e.Opts, rs) }
	if err := e.run(ctx, log, asset.ID, planner.FamilyAudio, build); err != nil {
		return "", err
	}
	if err := checkOutput(out); err != nil {
		return "", &EncodeError{Source: asset.ID, Family: planner.FamilyAudio, Reason: ReasonMissingOutput, Err: err}
	}
	return out, nil
}

// run executes ffmpeg with automatic fallbacks: on failure, stderr is
// matched against known recoverable patterns and the command is rebuilt
// with the fix applied, unless Strict is set.
func (e *Encoder) run(ctx context.Context, log zerolog.Logger, source string, family planner.Family, build func(*RetryState) []string) error {
	rs := NewRetryState()
	for {
		c := command.Cmd{Name: e.bin(), Args: build(rs), Stderr: e.Progress}
		log.Debug().Str(logging.FieldCommand, c.String()).Msg("running ffmpeg")

		res, err := e.Runner.Run(ctx, c)
		if err == nil {
			log.Debug().Dur(logging.FieldDuration, res.Duration).Msg("ffmpeg finished")
			return nil
		}

		stderr := res.Stderr
		reason := Classify(err, stderr)
		if reason == ReasonInterrupted || reason == ReasonTimeout || e.Opts.Strict {
			return &EncodeError{Source: source, Family: family, Reason: reason, Stderr: stderr, Err: err}
		}
		action := rs.Advance(stderr)
		if action == RetryNone {
			return &EncodeError{Source: source, Family: family, Reason: reason, Stderr: stderr, Err: err}
		}
		log.Warn().
			Int("attempt", rs.Attempt+1).
			Str("fix", action.String()).
			Msg("ffmpeg failed; retrying with fallback")
	}
}

func checkOutput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}
