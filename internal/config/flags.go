package config

// This file binds CLI flags to a Config. Flags are grouped into paths,
// encoding, packaging, behavior, and display/logging.
// Enum flags go through pflag.Value adapters so bad values fail at parse time.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// BindFlags registers every run option on fs, writing into cfg. The current
// values of cfg become the flag defaults shown in --help.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	definePathFlags(fs, cfg)
	defineEncodingFlags(fs, cfg)
	definePackagingFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg)
	defineDisplayFlags(fs, cfg)
}

func definePathFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.InputDir, "input", "i", cfg.InputDir, "Directory containing source videos")
	fs.StringVarP(&cfg.OutputDir, "out", "o", cfg.OutputDir, "Directory receiving DASH packages")
	fs.StringVarP(&cfg.WorkDir, "work", "w", cfg.WorkDir, "Directory for intermediate encodes")
	fs.StringSliceVar(&cfg.Extensions, "extensions", cfg.Extensions, "Source file extensions to discover")
	fs.BoolVarP(&cfg.Recursive, "recursive", "r", cfg.Recursive, "Descend into subdirectories of the input directory")
}

func defineEncodingFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.H264Preset, "preset264", cfg.H264Preset, "x264 preset (e.g. slow, medium)")
	fs.Var(&av1SelectorValue{&cfg.AV1Encoder}, "av1-encoder", "AV1 encoder: auto | svt | aom | none")
	fs.IntVar(&cfg.AV1CPUUsed, "cpu-used", cfg.AV1CPUUsed, "libaom-av1 -cpu-used (0-8)")
	fs.IntVar(&cfg.SVTPreset, "svt-preset", cfg.SVTPreset, "libsvtav1 -preset (0-13)")
	fs.IntVar(&cfg.MaxHeight, "max-height", cfg.MaxHeight, "Cap the ladder at this height (0 = uncapped)")
	fs.StringVar(&cfg.AudioBitrate, "audio-bitrate", cfg.AudioBitrate, "AAC bitrate (e.g. 192k)")
}

func definePackagingFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.SegmentDuration, "seg", cfg.SegmentDuration, "DASH segment duration in seconds")
	fs.Var(&packagerSelectorValue{&cfg.Packager}, "packager", "DASH packager: auto | shaka | mp4box")
}

func defineBehaviorFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVarP(&cfg.Jobs, "jobs", "j", cfg.Jobs, "Number of sources processed in parallel")
	fs.BoolVar(&cfg.ParallelFamilies, "parallel-families", cfg.ParallelFamilies, "Encode H.264 and AV1 of one source concurrently")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Kill any external tool running longer than this (0 = no limit)")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "d", cfg.DryRun, "Probe and plan only; print commands without running them")
	fs.BoolVarP(&cfg.Force, "force", "f", cfg.Force, "Re-package sources that already have a manifest")
	fs.BoolVar(&cfg.KeepWork, "keep-work", cfg.KeepWork, "Keep intermediate encodes after a successful publish")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Disable automatic ffmpeg retry fallbacks")
}

func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose (debug) logging")
	fs.Var(&colorModeValue{&cfg.ColorMode}, "color", "Colored output: auto | always | never")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "Append JSON logs to file")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "Write a JSON run report to this path")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write Prometheus metrics to this .prom file")
}

// pflag.Value adapters so enum types reject bad values during parsing.

type av1SelectorValue struct{ p *AV1Selector }

func (v *av1SelectorValue) String() string { return string(*v.p) }
func (v *av1SelectorValue) Type() string   { return "encoder" }
func (v *av1SelectorValue) Set(s string) error {
	switch sel := AV1Selector(strings.ToLower(s)); sel {
	case AV1Auto, AV1SVT, AV1AOM, AV1None:
		*v.p = sel
	default:
		return fmt.Errorf("invalid AV1 encoder %q (use 'auto', 'svt', 'aom' or 'none')", s)
	}
	return nil
}

type packagerSelectorValue struct{ p *PackagerSelector }

func (v *packagerSelectorValue) String() string { return string(*v.p) }
func (v *packagerSelectorValue) Type() string   { return "packager" }
func (v *packagerSelectorValue) Set(s string) error {
	switch sel := PackagerSelector(strings.ToLower(s)); sel {
	case PackagerAuto, PackagerShaka, PackagerMP4Box:
		*v.p = sel
	default:
		return fmt.Errorf("invalid packager %q (use 'auto', 'shaka' or 'mp4box')", s)
	}
	return nil
}

type colorModeValue struct{ p *ColorMode }

func (v *colorModeValue) String() string { return string(*v.p) }
func (v *colorModeValue) Type() string   { return "mode" }
func (v *colorModeValue) Set(s string) error {
	switch m := ColorMode(strings.ToLower(s)); m {
	case ColorAuto, ColorAlways, ColorNever:
		*v.p = m
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}

// Resolve applies the precedence flags > file > defaults. It resets cfg to
// [DefaultConfig], overlays the YAML file when path is non-empty, then
// re-applies every flag the user set explicitly on fs.
func Resolve(fs *pflag.FlagSet, path string, cfg *Config) error {
	type setFlag struct{ name, value string }
	var changed []setFlag
	fs.Visit(func(f *pflag.Flag) {
		changed = append(changed, setFlag{f.Name, flagValue(f)})
	})

	*cfg = DefaultConfig()
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return err
		}
	}
	for _, c := range changed {
		f := fs.Lookup(c.name)
		if f == nil {
			continue
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if err := sv.Replace(splitList(c.value)); err != nil {
				return fmt.Errorf("--%s: %w", c.name, err)
			}
			continue
		}
		if err := f.Value.Set(c.value); err != nil {
			return fmt.Errorf("--%s: %w", c.name, err)
		}
	}
	cfg.InputDir = NormalizeDirArg(cfg.InputDir)
	cfg.OutputDir = NormalizeDirArg(cfg.OutputDir)
	cfg.WorkDir = NormalizeDirArg(cfg.WorkDir)
	return nil
}

func flagValue(f *pflag.Flag) string {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return strings.Join(sv.GetSlice(), ",")
	}
	return f.Value.String()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
