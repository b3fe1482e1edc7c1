package check

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/config"
)

// RunCheck runs the interactive diagnostics: tool versions, encoder
// availability, short libx264/AAC test encodes and the packager that would
// be selected. It keeps going after individual failures and returns the
// error Detect would return for a real run, if any.
func RunCheck(ctx context.Context, r command.Runner, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msg("=== System Check ===")

	ffmpeg := checkTool(ctx, r, log, ToolFFmpeg, "-version")
	checkTool(ctx, r, log, ToolFFprobe, "-version")
	if ffmpeg != "" {
		checkEncoders(ctx, r, log, ffmpeg)
		checkTestEncode(ctx, r, log, ffmpeg, "libx264", x264TestArgs())
		checkTestEncode(ctx, r, log, ffmpeg, "AAC", aacTestArgs())
	}
	checkTool(ctx, r, log, ToolShaka, "--version")
	checkTool(ctx, r, log, ToolMP4Box, "-version")

	opts := OptionsFromConfig(cfg)
	opts.RequirePackager = true
	caps, err := Detect(ctx, r, opts)
	if err != nil {
		log.Error().Err(err).Msg("run would fail")
		return err
	}
	log.Info().
		Str("av1", string(caps.AV1)).
		Str("packager", string(caps.Packager)).
		Msg("selected backends")
	return nil
}

// checkTool logs the first output line of `<tool> <versionFlag>` and
// returns the resolved path, or "" if the tool is missing.
func checkTool(ctx context.Context, r command.Runner, log zerolog.Logger, tool, versionFlag string) string {
	path, err := r.LookPath(tool)
	if err != nil {
		log.Warn().Str("tool", tool).Msg("not found")
		return ""
	}
	res, err := r.Run(ctx, command.Cmd{Name: path, Args: []string{versionFlag}})
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Msg("found but version query failed")
		return path
	}
	out := res.Stdout
	if len(strings.TrimSpace(string(out))) == 0 {
		// MP4Box prints its version banner on stderr.
		out = []byte(res.Stderr)
	}
	log.Info().Str("tool", tool).Str("path", path).Msg(firstLine(string(out)))
	return path
}

// checkEncoders reports each encoder the pipeline can use.
func checkEncoders(ctx context.Context, r command.Runner, log zerolog.Logger, ffmpeg string) {
	encoders, err := ListEncoders(ctx, r, ffmpeg)
	if err != nil {
		log.Warn().Err(err).Msg("could not list encoders")
		return
	}
	for _, name := range []string{EncoderX264, EncoderSVTAV1, EncoderAOMAV1, EncoderAAC} {
		ev := log.Info()
		if !encoders[name] {
			ev = log.Warn()
		}
		ev.Str("encoder", name).Bool("available", encoders[name]).Msg("encoder")
	}
}

func checkTestEncode(ctx context.Context, r command.Runner, log zerolog.Logger, ffmpeg, label string, args []string) {
	if _, err := r.Run(ctx, command.Cmd{Name: ffmpeg, Args: args}); err != nil {
		log.Error().Err(err).Msgf("%s test encode failed", label)
		return
	}
	log.Info().Msgf("%s test encode works", label)
}

func x264TestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-f", "null", "-",
	}
}

func aacTestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1",
		"-c:a", "aac", "-f", "null", "-",
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
