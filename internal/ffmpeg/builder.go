// Package ffmpeg builds and executes the per-family encode and the audio
// extraction. One ffmpeg process decodes the source once and emits every
// rung of a family through a split/scale filter graph, with an explicit
// codec per output so families can never be confused.
package ffmpeg

import (
	"path/filepath"
	"strconv"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/config"
	"github.com/Carbocode/2mpeg-dash/internal/planner"
	"github.com/Carbocode/2mpeg-dash/internal/probe"
)

// Options carries the encoder settings that do not vary per source.
type Options struct {
	H264Preset    string
	SVTPreset     int
	AOMCPUUsed    int
	AudioBitrate  string // e.g. "192k".
	AudioChannels int
	Verbose       bool // ffmpeg loglevel info instead of error.
	Strict        bool // Disable automatic retry fallbacks.
}

// OptionsFromConfig copies encoder settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		H264Preset:    cfg.H264Preset,
		SVTPreset:     cfg.SVTPreset,
		AOMCPUUsed:    cfg.AV1CPUUsed,
		AudioBitrate:  cfg.AudioBitrate,
		AudioChannels: cfg.AudioChannels,
		Verbose:       cfg.Verbose,
		Strict:        cfg.Strict,
	}
}

// Job is one family encode for one source.
type Job struct {
	Asset   probe.SourceAsset
	Family  planner.Family
	Backend check.CodecBackend // BackendH264 or an available AV1 backend.
	Specs   []planner.RenditionSpec
	OutDir  string // Work subdirectory owned by this family.
}

// RenditionFile is an encoded intermediate ready for packaging.
type RenditionFile struct {
	Spec planner.RenditionSpec
	Path string
}

// OutputPath returns the intermediate file for spec inside dir,
// e.g. <dir>/h264_1080.mp4.
func OutputPath(dir string, spec planner.RenditionSpec) string {
	return filepath.Join(dir, spec.ID()+".mp4")
}

// labelPrefix keeps filter pad names distinct per family.
func labelPrefix(f planner.Family) string {
	if f == planner.FamilyAV1 {
		return "t"
	}
	return "s"
}

// BuildEncodeArgs constructs the ffmpeg argument slice (without the binary)
// for a family encode.
func BuildEncodeArgs(job Job, opts Options, rs *RetryState) []string {
	args := make([]string, 0, 32+len(job.Specs)*24)
	args = appendPreamble(args, opts, rs)
	args = append(args, "-i", job.Asset.Path)

	graph, labels := planner.FilterGraph(job.Specs, labelPrefix(job.Family), job.Asset.Interlaced)
	args = append(args, "-filter_complex", graph)

	for i, spec := range job.Specs {
		args = append(args, "-map", "["+labels[i]+"]")
		args = appendVideoCodec(args, job.Backend, spec, opts)
		args = append(args, "-an", "-sn", "-dn")
		args = appendOutputFlags(args, rs)
		args = append(args, OutputPath(job.OutDir, spec))
	}
	return args
}

// BuildAudioArgs constructs the ffmpeg arguments that extract the first
// audio track as stereo AAC into out.
func BuildAudioArgs(asset probe.SourceAsset, out string, opts Options, rs *RetryState) []string {
	channels := opts.AudioChannels
	if channels <= 0 {
		channels = 2
	}
	args := make([]string, 0, 32)
	args = appendPreamble(args, opts, rs)
	args = append(args,
		"-i", asset.Path,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		"-ac", strconv.Itoa(channels),
	)
	args = appendOutputFlags(args, rs)
	return append(args, out)
}

// appendPreamble adds global flags and pre-input timestamp handling.
func appendPreamble(args []string, opts Options, rs *RetryState) []string {
	args = append(args, "-hide_banner", "-nostdin", "-y")
	if opts.Verbose {
		args = append(args, "-loglevel", "info", "-stats")
	} else {
		args = append(args, "-loglevel", "error", "-nostats")
	}
	if rs != nil && rs.TimestampFix {
		args = append(args, "-fflags", "+genpts+discardcorrupt")
	}
	return args
}

// appendOutputFlags adds per-output muxing flags.
func appendOutputFlags(args []string, rs *RetryState) []string {
	queue := muxQueueDefault
	if rs != nil {
		queue = rs.MuxQueueSize
	}
	args = append(args, "-max_muxing_queue_size", strconv.Itoa(queue))
	if rs != nil && rs.TimestampFix {
		args = append(args, "-avoid_negative_ts", "make_zero")
	}
	return append(args, "-movflags", "+faststart")
}

// appendVideoCodec adds the codec-specific arguments for one output.
func appendVideoCodec(args []string, backend check.CodecBackend, spec planner.RenditionSpec, opts Options) []string {
	gop := strconv.Itoa(spec.GOP)
	switch backend {
	case check.BackendAV1SVT:
		args = append(args,
			"-c:v", check.EncoderSVTAV1,
			"-pix_fmt", "yuv420p",
			"-crf", strconv.Itoa(spec.CRF),
			"-g", gop,
			"-preset", strconv.Itoa(opts.SVTPreset),
		)
	case check.BackendAV1AOM:
		args = append(args,
			"-c:v", check.EncoderAOMAV1,
			"-pix_fmt", "yuv420p",
			"-crf", strconv.Itoa(spec.CRF),
			"-b:v", "0",
			"-g", gop,
			"-row-mt", "1",
			"-cpu-used", strconv.Itoa(opts.AOMCPUUsed),
			"-tile-columns", "1",
			"-tile-rows", "1",
		)
	default:
		args = append(args,
			"-c:v", check.EncoderX264,
			"-preset", opts.H264Preset,
			"-pix_fmt", "yuv420p",
			"-profile:v", "high",
			"-g", gop,
			"-keyint_min", gop,
			"-sc_threshold", "0",
			"-b:v", kbps(spec.BitrateKbps),
			"-maxrate", kbps(spec.MaxRateKbps),
			"-bufsize", kbps(spec.BufSizeKbps),
		)
	}
	return args
}

func kbps(n int) string { return strconv.Itoa(n) + "k" }
