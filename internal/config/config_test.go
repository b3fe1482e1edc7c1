package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDirArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no trailing slash", "/media/library", "/media/library"},
		{"single trailing slash", "/media/library/", "/media/library"},
		{"multiple trailing slashes", "/media/library///", "/media/library"},
		{"root path", "/", "/"},
		{"relative path", "output", "output"},
		{"relative with slash", "output/", "output"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDirArg(tt.in))
		})
	}
}

func TestValidate_Enums(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"av1 auto", func(c *Config) { c.AV1Encoder = AV1Auto }, false},
		{"av1 svt", func(c *Config) { c.AV1Encoder = AV1SVT }, false},
		{"av1 none", func(c *Config) { c.AV1Encoder = AV1None }, false},
		{"av1 unknown", func(c *Config) { c.AV1Encoder = "rav1e" }, true},
		{"packager mp4box", func(c *Config) { c.Packager = PackagerMP4Box }, false},
		{"packager empty", func(c *Config) { c.Packager = "" }, true},
		{"color never", func(c *Config) { c.ColorMode = ColorNever }, false},
		{"color bogus", func(c *Config) { c.ColorMode = "rainbow" }, true},
		{"preset medium", func(c *Config) { c.H264Preset = "medium" }, false},
		{"preset bogus", func(c *Config) { c.H264Preset = "turbo" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CheckOnly = true
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero segment", func(c *Config) { c.SegmentDuration = 0 }},
		{"negative cap", func(c *Config) { c.MaxHeight = -1 }},
		{"odd cap", func(c *Config) { c.MaxHeight = 479 }},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }},
		{"cpu-used too high", func(c *Config) { c.AV1CPUUsed = 9 }},
		{"svt preset too high", func(c *Config) { c.SVTPreset = 14 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"no extensions", func(c *Config) { c.Extensions = []string{" "} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AudioBitrate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"192k", "192k", false},
		{"256", "256k", false},
		{"128K", "128k", false},
		{"320kbps", "320k", false},
		{" 96 k ", "96k", false},
		{"", "", true},
		{"0k", "", true},
		{"loud", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AudioBitrate = tt.in
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.AudioBitrate)
		})
	}
}

func TestValidate_ExtensionsNormalized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extensions = []string{"MP4", ".mkv", "mp4", ""}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{".mp4", ".mkv"}, cfg.Extensions)
}

func TestValidate_RequiresPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = ""
	assert.Error(t, cfg.Validate(), "empty input must fail outside check mode")

	cfg.CheckOnly = true
	assert.NoError(t, cfg.Validate(), "check mode does not need paths")
}

func TestValidatePaths(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		output  string
		work    string
		wantErr bool
	}{
		{"separate directories", "/media/in", "/media/out", "/tmp/work", false},
		{"output equals input", "/media/lib", "/media/lib", "/tmp/work", true},
		{"output inside input", "/media/lib", "/media/lib/output", "/tmp/work", true},
		{"work inside input", "/media/lib", "/media/out", "/media/lib/temp", true},
		{"output is parent of input", "/media/lib/sub", "/media/lib", "/tmp/work", false},
		{"similar prefix not nested", "/media/library", "/media/library2", "/media/library3", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.ValidatePaths(tt.input, tt.output, tt.work)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "videos", cfg.InputDir)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "temp", cfg.WorkDir)
	assert.Equal(t, 4, cfg.SegmentDuration)
	assert.Equal(t, "192k", cfg.AudioBitrate)
	assert.Equal(t, "slow", cfg.H264Preset)
	assert.Equal(t, AV1Auto, cfg.AV1Encoder)
	assert.Equal(t, 6, cfg.AV1CPUUsed)
	assert.Equal(t, 0, cfg.MaxHeight)
	assert.Equal(t, 1, cfg.Jobs)
	assert.False(t, cfg.DryRun)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: /srv/in\nmax_height: 1080\nav1_encoder: none\ntimeout: 90s\n"), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, "/srv/in", cfg.InputDir)
	assert.Equal(t, 1080, cfg.MaxHeight)
	assert.Equal(t, AV1None, cfg.AV1Encoder)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "out", cfg.OutputDir, "keys absent from the file keep defaults")
}

func TestLoadFile_Strict(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "inptu: /srv/in\n"},
		{"two documents", "input: a\n---\ninput: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			cfg := DefaultConfig()
			assert.Error(t, LoadFile(path, &cfg))
		})
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seg: 0\n"), 0o644))
	require.Error(t, func() error {
		cfg := DefaultConfig()
		return LoadFile(path, &cfg)
	}(), "yaml keys follow the struct tags, not flag names")

	require.NoError(t, os.WriteFile(path, []byte("segment_duration: 6\nmax_height: 720\nextensions: [mkv]\n"), 0o644))

	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--max-height", "1080", "--out", "dist/", "--av1-encoder", "aom"}))
	require.NoError(t, Resolve(fs, path, &cfg))

	assert.Equal(t, 6, cfg.SegmentDuration, "file overrides default")
	assert.Equal(t, 1080, cfg.MaxHeight, "flag overrides file")
	assert.Equal(t, "dist", cfg.OutputDir)
	assert.Equal(t, AV1AOM, cfg.AV1Encoder)
	assert.Equal(t, []string{"mkv"}, cfg.Extensions)
	assert.Equal(t, "videos", cfg.InputDir)
}

func TestResolve_SliceFlagReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extensions: [mkv, avi]\n"), 0o644))

	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--extensions", "mp4,mov"}))
	require.NoError(t, Resolve(fs, path, &cfg))
	assert.Equal(t, []string{"mp4", "mov"}, cfg.Extensions)
}

func TestFlags_RejectBadEnum(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(new(discard))
	BindFlags(fs, &cfg)
	assert.Error(t, fs.Parse([]string{"--packager", "ffmpeg"}))
	assert.Error(t, fs.Parse([]string{"--color", "sometimes"}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
