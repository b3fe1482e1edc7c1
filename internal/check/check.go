// Package check resolves which external tools the run can use (AV1 encoder
// backend, DASH packager) and provides the interactive diagnostics behind
// the `check` subcommand.
//
// Capabilities are resolved once at startup and treated as read-only for
// the rest of the run.
package check

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/config"
)

// Tool names looked up on PATH.
const (
	ToolFFmpeg  = "ffmpeg"
	ToolFFprobe = "ffprobe"
	ToolShaka   = "packager"
	ToolMP4Box  = "MP4Box"
)

// ffmpeg encoder identifiers searched for in `ffmpeg -encoders`.
const (
	EncoderX264   = "libx264"
	EncoderSVTAV1 = "libsvtav1"
	EncoderAOMAV1 = "libaom-av1"
	EncoderAAC    = "aac"
)

// Sentinel errors wrapped by CapabilityError.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
	ErrEncoderMissing  = errors.New("encoder not available in ffmpeg")
	ErrNoPackager      = errors.New("need Shaka Packager ('packager') or GPAC ('MP4Box') on PATH")
)

// CodecBackend is the AV1 encoder resolved for the run. H264 is always
// libx264 and is listed for completeness.
type CodecBackend string

const (
	BackendH264           CodecBackend = "h264"
	BackendAV1SVT         CodecBackend = "av1-svt"
	BackendAV1AOM         CodecBackend = "av1-aom"
	BackendAV1Unavailable CodecBackend = "av1-unavailable"
)

// Available reports whether the backend can encode.
func (b CodecBackend) Available() bool { return b != BackendAV1Unavailable && b != "" }

// Encoder returns the ffmpeg encoder name for the backend.
func (b CodecBackend) Encoder() string {
	switch b {
	case BackendH264:
		return EncoderX264
	case BackendAV1SVT:
		return EncoderSVTAV1
	case BackendAV1AOM:
		return EncoderAOMAV1
	}
	return ""
}

// PackagerBackend is the DASH packager resolved for the run.
type PackagerBackend string

const (
	PackagerShaka  PackagerBackend = "shaka"
	PackagerMP4Box PackagerBackend = "mp4box"
	PackagerNone   PackagerBackend = "none"
)

// Tool returns the executable name for the packager.
func (p PackagerBackend) Tool() string {
	switch p {
	case PackagerShaka:
		return ToolShaka
	case PackagerMP4Box:
		return ToolMP4Box
	}
	return ""
}

// CapabilityError reports a required tool or encoder that is missing.
type CapabilityError struct {
	Tool string
	Err  error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Tool, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// Options selects backends. Zero values mean auto.
type Options struct {
	AV1      config.AV1Selector
	Packager config.PackagerSelector

	// RequirePackager makes a missing packager fatal. Planning and dry runs
	// leave it off so they work on machines without a packager installed.
	RequirePackager bool
}

// OptionsFromConfig builds detection options for a full run.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{AV1: cfg.AV1Encoder, Packager: cfg.Packager, RequirePackager: !cfg.DryRun}
}

// Capabilities is the resolved tool set for a run.
type Capabilities struct {
	FFmpeg       string // Absolute path.
	FFprobe      string
	AV1          CodecBackend
	Packager     PackagerBackend
	PackagerPath string
	Encoders     map[string]bool // Encoder names reported by ffmpeg.
}

// Detect resolves capabilities. ffmpeg and ffprobe are always required.
// AV1 follows opts.AV1: auto prefers SVT over AOM and degrades to
// unavailable; an explicit backend that is absent is a CapabilityError.
// The packager prefers Shaka over MP4Box.
func Detect(ctx context.Context, r command.Runner, opts Options) (Capabilities, error) {
	var caps Capabilities
	var err error

	if caps.FFmpeg, err = r.LookPath(ToolFFmpeg); err != nil {
		return caps, &CapabilityError{Tool: ToolFFmpeg, Err: ErrFfmpegNotFound}
	}
	if caps.FFprobe, err = r.LookPath(ToolFFprobe); err != nil {
		return caps, &CapabilityError{Tool: ToolFFprobe, Err: ErrFfprobeNotFound}
	}

	caps.Encoders, err = ListEncoders(ctx, r, caps.FFmpeg)
	if err != nil {
		return caps, &CapabilityError{Tool: ToolFFmpeg, Err: err}
	}
	for _, enc := range []string{EncoderX264, EncoderAAC} {
		if !caps.Encoders[enc] {
			return caps, &CapabilityError{Tool: enc, Err: ErrEncoderMissing}
		}
	}

	if caps.AV1, err = resolveAV1(opts.AV1, caps.Encoders); err != nil {
		return caps, err
	}
	if caps.Packager, caps.PackagerPath, err = resolvePackager(r, opts); err != nil {
		return caps, err
	}
	return caps, nil
}

func resolveAV1(sel config.AV1Selector, encoders map[string]bool) (CodecBackend, error) {
	switch sel {
	case config.AV1None:
		return BackendAV1Unavailable, nil
	case config.AV1SVT:
		if !encoders[EncoderSVTAV1] {
			return BackendAV1Unavailable, &CapabilityError{Tool: EncoderSVTAV1, Err: ErrEncoderMissing}
		}
		return BackendAV1SVT, nil
	case config.AV1AOM:
		if !encoders[EncoderAOMAV1] {
			return BackendAV1Unavailable, &CapabilityError{Tool: EncoderAOMAV1, Err: ErrEncoderMissing}
		}
		return BackendAV1AOM, nil
	}
	switch {
	case encoders[EncoderSVTAV1]:
		return BackendAV1SVT, nil
	case encoders[EncoderAOMAV1]:
		return BackendAV1AOM, nil
	}
	return BackendAV1Unavailable, nil
}

func resolvePackager(r command.Runner, opts Options) (PackagerBackend, string, error) {
	var order []PackagerBackend
	switch opts.Packager {
	case config.PackagerShaka:
		order = []PackagerBackend{PackagerShaka}
	case config.PackagerMP4Box:
		order = []PackagerBackend{PackagerMP4Box}
	default:
		order = []PackagerBackend{PackagerShaka, PackagerMP4Box}
	}
	for _, p := range order {
		if path, err := r.LookPath(p.Tool()); err == nil {
			return p, path, nil
		}
	}
	if !opts.RequirePackager {
		return PackagerNone, "", nil
	}
	tool := "packager"
	if len(order) == 1 {
		tool = order[0].Tool()
	}
	return PackagerNone, "", &CapabilityError{Tool: tool, Err: ErrNoPackager}
}

// ListEncoders runs `ffmpeg -hide_banner -encoders` and returns the set of
// encoder names it reports.
func ListEncoders(ctx context.Context, r command.Runner, ffmpeg string) (map[string]bool, error) {
	res, err := r.Run(ctx, command.Cmd{Name: ffmpeg, Args: []string{"-hide_banner", "-encoders"}})
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return ParseEncoders(res.Stdout), nil
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output.
// Rows look like " V....D libsvtav1   SVT-AV1(...)"; the legend above the
// "------" separator is ignored.
func ParseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inTable {
			if strings.HasPrefix(line, "---") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	if !inTable {
		// No legend: fall back to plain substring matching.
		for _, name := range []string{EncoderX264, EncoderSVTAV1, EncoderAOMAV1, EncoderAAC} {
			if bytes.Contains(out, []byte(name)) {
				encoders[name] = true
			}
		}
	}
	return encoders
}
