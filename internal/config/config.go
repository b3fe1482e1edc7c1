// Package config holds runtime configuration: defaults, YAML file loading,
// CLI flag binding, and validation. A bare invocation reads ./videos and
// writes ./out using ./temp for intermediates.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// AV1Selector chooses which AV1 encoder backend to use.
type AV1Selector string

const (
	AV1Auto AV1Selector = "auto" // Prefer SVT, fall back to AOM, else disable AV1 (default).
	AV1SVT  AV1Selector = "svt"  // Require libsvtav1.
	AV1AOM  AV1Selector = "aom"  // Require libaom-av1.
	AV1None AV1Selector = "none" // Skip AV1 entirely.
)

// PackagerSelector chooses which DASH packager backend to use.
type PackagerSelector string

const (
	PackagerAuto   PackagerSelector = "auto"   // Prefer Shaka, fall back to MP4Box (default).
	PackagerShaka  PackagerSelector = "shaka"  // Require Shaka Packager ("packager").
	PackagerMP4Box PackagerSelector = "mp4box" // Require GPAC MP4Box.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by a YAML file ([LoadFile]) and finally by CLI flags
// before being passed (by pointer) to packages that need it.
type Config struct {
	// Paths.
	InputDir  string `yaml:"input"`
	OutputDir string `yaml:"output"`
	WorkDir   string `yaml:"work"`

	// Discovery.
	Extensions []string `yaml:"extensions"` // Lowercase, with leading dot.
	Recursive  bool     `yaml:"recursive"`

	// Packaging.
	SegmentDuration int              `yaml:"segment_duration"` // Seconds. Default: 4.
	Packager        PackagerSelector `yaml:"packager"`

	// Audio.
	AudioBitrate  string `yaml:"audio_bitrate"` // Default: "192k".
	AudioChannels int    `yaml:"-"`             // Fixed: 2.

	// H.264.
	H264Preset string `yaml:"h264_preset"` // Default: "slow".

	// AV1.
	AV1Encoder AV1Selector `yaml:"av1_encoder"`
	AV1CPUUsed int         `yaml:"av1_cpu_used"` // libaom-av1 -cpu-used. Default: 6.
	SVTPreset  int         `yaml:"svt_preset"`   // libsvtav1 -preset. Default: 8.

	// Ladder.
	MaxHeight int `yaml:"max_height"` // 0 = uncapped.

	// Scheduling.
	Jobs             int           `yaml:"jobs"`              // Parallel source slots. Default: 1.
	ParallelFamilies bool          `yaml:"parallel_families"` // Encode H.264 and AV1 concurrently.
	Timeout          time.Duration `yaml:"timeout"`           // Per external process. 0 = none.

	// Behavior flags.
	DryRun   bool `yaml:"dry_run"`
	Force    bool `yaml:"force"`     // Re-package sources whose manifest already exists.
	KeepWork bool `yaml:"keep_work"` // Keep intermediate files after success.
	Strict   bool `yaml:"strict"`    // Disable automatic ffmpeg retry fallbacks.

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	ColorMode ColorMode `yaml:"color"`
	LogFile   string    `yaml:"log_file"`
	CheckOnly bool      `yaml:"-"` // Running diagnostics; paths are not required.

	// Run artifacts.
	ReportFile      string `yaml:"report_file"`      // JSON run report.
	MetricsTextfile string `yaml:"metrics_textfile"` // Prometheus textfile-collector output.
}

// DefaultExtensions is the set of file extensions picked up by discovery.
var DefaultExtensions = []string{
	".mp4", ".mkv", ".mov", ".m4v", ".webm", ".avi",
	".ts", ".m2ts", ".mpg", ".mpeg", ".wmv", ".flv",
}

// DefaultConfig returns a Config with all defaults. Used as the base before
// the config file and CLI flags apply overrides.
func DefaultConfig() Config {
	return Config{
		InputDir:         "videos",
		OutputDir:        "out",
		WorkDir:          "temp",
		Extensions:       append([]string(nil), DefaultExtensions...),
		SegmentDuration:  4,
		Packager:         PackagerAuto,
		AudioBitrate:     "192k",
		AudioChannels:    2,
		H264Preset:       "slow",
		AV1Encoder:       AV1Auto,
		AV1CPUUsed:       6,
		SVTPreset:        8,
		MaxHeight:        0,
		Jobs:             1,
		ParallelFamilies: true,
		ColorMode:        ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

var validPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
	"placebo": true,
}

// Validate checks enum fields and numeric ranges and canonicalizes the audio
// bitrate and extension list. When not in CheckOnly mode, it also requires
// the input, output and work paths to be non-empty.
func (c *Config) Validate() error {
	switch c.AV1Encoder {
	case AV1Auto, AV1SVT, AV1AOM, AV1None:
	default:
		return errors.New("invalid AV1 encoder (use 'auto', 'svt', 'aom' or 'none')")
	}

	switch c.Packager {
	case PackagerAuto, PackagerShaka, PackagerMP4Box:
	default:
		return errors.New("invalid packager (use 'auto', 'shaka' or 'mp4box')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.SegmentDuration <= 0 {
		return fmt.Errorf("segment duration must be positive (got %d)", c.SegmentDuration)
	}
	if c.MaxHeight < 0 {
		return fmt.Errorf("max height must be 0 (uncapped) or positive (got %d)", c.MaxHeight)
	}
	if c.MaxHeight%2 != 0 {
		return fmt.Errorf("max height must be even (got %d)", c.MaxHeight)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1 (got %d)", c.Jobs)
	}
	if c.AV1CPUUsed < 0 || c.AV1CPUUsed > 8 {
		return fmt.Errorf("cpu-used must be between 0 and 8 (got %d)", c.AV1CPUUsed)
	}
	if c.SVTPreset < 0 || c.SVTPreset > 13 {
		return fmt.Errorf("svt preset must be between 0 and 13 (got %d)", c.SVTPreset)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if !validPresets[c.H264Preset] {
		return fmt.Errorf("invalid x264 preset %q", c.H264Preset)
	}

	normalizedBitrate, err := normalizeAudioBitrate(c.AudioBitrate)
	if err != nil {
		return err
	}
	c.AudioBitrate = normalizedBitrate

	exts, err := normalizeExtensions(c.Extensions)
	if err != nil {
		return err
	}
	c.Extensions = exts

	if c.CheckOnly {
		return nil
	}
	if c.InputDir == "" || c.OutputDir == "" || c.WorkDir == "" {
		return errors.New("input, output and work directories must not be empty")
	}
	return nil
}

// normalizeAudioBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "192", "192k", "192K", "192kbps". Output is "<n>k".
func normalizeAudioBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("audio bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audio bitrate %q (use positive Kbps value, e.g. 192k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}

// normalizeExtensions lowercases entries, adds the leading dot and drops
// duplicates while preserving order.
func normalizeExtensions(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one input extension is required")
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one input extension is required")
	}
	return out, nil
}

// ValidatePaths ensures neither the resolved output directory nor the work
// directory is inside (or equal to) the resolved input directory. This
// prevents discovery from picking up its own intermediate or packaged files.
// All arguments must be absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs, workAbs string) error {
	if nested(inputAbs, outputAbs) {
		return errors.New("output directory must not be inside input directory")
	}
	if nested(inputAbs, workAbs) {
		return errors.New("work directory must not be inside input directory")
	}
	return nil
}

func nested(parent, child string) bool {
	sep := string(filepath.Separator)
	return child == parent || strings.HasPrefix(child+sep, parent+sep)
}
