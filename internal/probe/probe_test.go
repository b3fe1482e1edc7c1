package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/command/commandtest"
)

// Matroska file with cover art ahead of an HDR10 main stream and one audio
// track. The cover art must not be chosen as the primary video.
const sampleHDR = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 900,
      "disposition": { "default": 0, "attached_pic": 1 }
    },
    {
      "index": 1,
      "codec_name": "hevc",
      "codec_type": "video",
      "pix_fmt": "yuv420p10le",
      "width": 3840,
      "height": 2160,
      "bit_rate": "25000000",
      "field_order": "progressive",
      "color_transfer": "smpte2084",
      "color_primaries": "bt2020",
      "avg_frame_rate": "24000/1001",
      "r_frame_rate": "24000/1001",
      "disposition": { "default": 1, "attached_pic": 0 }
    },
    {
      "index": 2,
      "codec_name": "eac3",
      "codec_type": "audio",
      "channels": 6,
      "tags": { "language": "eng" }
    }
  ],
  "format": {
    "filename": "/media/in/Feature.mkv",
    "format_name": "matroska,webm",
    "duration": "5400.500000",
    "size": "16000000000",
    "bit_rate": "23700000"
  }
}`

// Interlaced SD broadcast capture whose avg_frame_rate is unknown.
const sampleInterlaced = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mpeg2video",
      "codec_type": "video",
      "pix_fmt": "yuv420p",
      "width": 720,
      "height": 576,
      "field_order": "tt",
      "avg_frame_rate": "0/0",
      "r_frame_rate": "25/1"
    },
    {
      "index": 1,
      "codec_name": "mp2",
      "codec_type": "audio",
      "channels": 2
    }
  ],
  "format": { "filename": "capture.ts", "duration": "60.0" }
}`

// Minimal file: just video with no frame-rate information.
const sampleMinimal = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1280,
      "height": 720
    }
  ],
  "format": { "filename": "minimal.mp4", "duration": "10.000", "size": "500000" }
}`

const sampleAudioOnly = `{
  "streams": [ { "index": 0, "codec_name": "flac", "codec_type": "audio", "channels": 2 } ],
  "format": { "filename": "song.flac" }
}`

func TestParseJSON_HDRFile(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleHDR))
	require.NoError(t, err)

	require.NotNil(t, pr.PrimaryVideo)
	assert.Equal(t, 1, pr.PrimaryVideo.Index, "attached pic must be skipped")
	assert.Equal(t, "hevc", pr.PrimaryVideo.Codec)
	assert.Equal(t, int64(25000000), pr.PrimaryVideo.BitRate)
	assert.Equal(t, 5400.5, pr.Format.Duration)
	assert.Equal(t, int64(16000000000), pr.Format.Size)
	require.Len(t, pr.AudioStreams, 1)
	assert.Equal(t, "eng", pr.AudioStreams[0].Language)
	assert.True(t, pr.IsHDR())
	assert.False(t, pr.IsInterlaced())
	assert.InDelta(t, 23.976, pr.FrameRate(), 0.001)
}

func TestProbeResult_Asset(t *testing.T) {
	tests := []struct {
		name string
		json string
		want SourceAsset
	}{
		{
			name: "hdr feature",
			json: sampleHDR,
			want: SourceAsset{
				ID: "Feature", Path: "/in/Feature.mkv", NativeHeight: 2160, Width: 3840,
				FrameRate: 24000.0 / 1001.0, HasAudio: true, HDR: true,
				Duration: 5400.5, Size: 16000000000, VideoCodec: "hevc",
			},
		},
		{
			name: "interlaced falls back to r_frame_rate",
			json: sampleInterlaced,
			want: SourceAsset{
				ID: "capture", Path: "/in/capture.ts", NativeHeight: 576, Width: 720,
				FrameRate: 25, HasAudio: true, Interlaced: true, Duration: 60, VideoCodec: "mpeg2video",
			},
		},
		{
			name: "no frame rate defaults to 25",
			json: sampleMinimal,
			want: SourceAsset{
				ID: "minimal", Path: "/in/minimal.mp4", NativeHeight: 720, Width: 1280,
				FrameRate: DefaultFrameRate, Duration: 10, Size: 500000, VideoCodec: "h264",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := ParseJSON([]byte(tt.json))
			require.NoError(t, err)
			got, err := pr.Asset(tt.want.ID, tt.want.Path)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Asset() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProbeResult_AssetErrors(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleAudioOnly))
	require.NoError(t, err)
	_, err = pr.Asset("song", "song.flac")
	assert.ErrorIs(t, err, ErrNoVideo)

	pr, err = ParseJSON([]byte(`{"streams":[{"index":0,"codec_type":"video","height":0}]}`))
	require.NoError(t, err)
	_, err = pr.Asset("zero", "zero.mp4")
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30000/1001", 30000.0 / 1001.0},
		{"25/1", 25},
		{"50", 50},
		{"0/0", 0},
		{"24/0", 0},
		{"", 0},
		{"abc", 0},
		{"-25/1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseFrameRate(tt.in), 1e-9)
		})
	}
}

func TestIsHDR(t *testing.T) {
	tests := []struct {
		name string
		v    *VideoStream
		want bool
	}{
		{"nil video", nil, false},
		{"pq", &VideoStream{ColorTransfer: "smpte2084"}, true},
		{"hlg", &VideoStream{ColorTransfer: "arib-std-b67"}, true},
		{"bt2020 primaries only", &VideoStream{ColorPrimaries: "bt2020"}, true},
		{"bt709", &VideoStream{ColorTransfer: "bt709", ColorPrimaries: "bt709"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &ProbeResult{PrimaryVideo: tt.v}
			assert.Equal(t, tt.want, pr.IsHDR())
		})
	}
}

func TestIsInterlaced(t *testing.T) {
	for order, want := range map[string]bool{
		"tt": true, "BB": true, "tb": true, " bt ": true,
		"progressive": false, "": false, "unknown": false,
	} {
		pr := &ProbeResult{PrimaryVideo: &VideoStream{FieldOrder: order}}
		assert.Equal(t, want, pr.IsInterlaced(), "field_order %q", order)
	}
	assert.False(t, (&ProbeResult{}).IsInterlaced())
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	_, err := ParseJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestSourceID(t *testing.T) {
	assert.Equal(t, "clip", SourceID("/videos/clip.mp4"))
	assert.Equal(t, "my.show.s01", SourceID("my.show.s01.mkv"))
	assert.Equal(t, "noext", SourceID("dir/noext"))
}

func TestInspect(t *testing.T) {
	f := commandtest.New("ffprobe")
	f.Handle("/usr/bin/ffprobe", commandtest.Stdout(sampleInterlaced))

	asset, err := Prober{Runner: f, FFprobe: "/usr/bin/ffprobe"}.Inspect(context.Background(), "/in/capture.ts")
	require.NoError(t, err)
	assert.Equal(t, "capture", asset.ID)
	assert.Equal(t, 576, asset.NativeHeight)

	calls := f.CallsTo("/usr/bin/ffprobe")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", "/in/capture.ts"}, calls[0].Args)
}

func TestInspect_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler commandtest.Handler
		is      error
	}{
		{"tool failure", commandtest.Fail(1, "Invalid data found when processing input"), nil},
		{"garbage output", commandtest.Stdout("{"), nil},
		{"no video", commandtest.Stdout(sampleAudioOnly), ErrNoVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := commandtest.New()
			f.Handle("ffprobe", tt.handler)
			_, err := Prober{Runner: f}.Inspect(context.Background(), "bad.mp4")

			var pe *ProbeError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "bad", pe.Source)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestInspect_ToolFailureKeepsExitError(t *testing.T) {
	f := commandtest.New()
	f.Handle("ffprobe", commandtest.Fail(1, "moov atom not found"))
	_, err := Prober{Runner: f}.Inspect(context.Background(), "broken.mp4")

	var ee *command.ExitError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.Stderr, "moov atom")
}
