package ffmpeg

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/command/commandtest"
	"github.com/Carbocode/2mpeg-dash/internal/config"
	"github.com/Carbocode/2mpeg-dash/internal/planner"
	"github.com/Carbocode/2mpeg-dash/internal/probe"
)

func testOpts() Options {
	cfg := config.DefaultConfig()
	return OptionsFromConfig(&cfg)
}

func clip() probe.SourceAsset {
	return probe.SourceAsset{ID: "clip", Path: "/in/clip.mp4", NativeHeight: 1080, FrameRate: 25, HasAudio: true}
}

func ladder(t *testing.T, backend check.CodecBackend) planner.Ladder {
	t.Helper()
	l, err := planner.Plan(clip(), backend, 0)
	require.NoError(t, err)
	return l
}

// argAfter returns every value that follows flag in args.
func argAfter(args []string, flag string) []string {
	var out []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			out = append(out, args[i+1])
		}
	}
	return out
}

func TestBuildEncodeArgs_H264(t *testing.T) {
	l := ladder(t, check.BackendAV1Unavailable)
	job := Job{Asset: clip(), Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264, OutDir: "/work/clip/h264"}

	args := BuildEncodeArgs(job, testOpts(), NewRetryState())
	joined := strings.Join(args, " ")

	assert.Equal(t, []string{"/in/clip.mp4"}, argAfter(args, "-i"))
	assert.Equal(t, []string{"[s1080]", "[s720]", "[s480]"}, argAfter(args, "-map"))
	assert.Equal(t, []string{"libx264", "libx264", "libx264"}, argAfter(args, "-c:v"))
	assert.Equal(t, []string{"5000k", "2800k", "1400k"}, argAfter(args, "-b:v"))
	assert.Equal(t, []string{"5350k", "2996k", "1498k"}, argAfter(args, "-maxrate"))
	assert.Equal(t, []string{"10000k", "5600k", "2800k"}, argAfter(args, "-bufsize"))
	assert.Equal(t, []string{"50", "50", "50"}, argAfter(args, "-keyint_min"))
	assert.Equal(t, []string{"slow", "slow", "slow"}, argAfter(args, "-preset"))
	assert.Contains(t, joined, "-profile:v high -g 50 -keyint_min 50 -sc_threshold 0")
	assert.Contains(t, joined, "-an -sn -dn")
	assert.Equal(t, "/work/clip/h264/h264_480.mp4", args[len(args)-1])
	assert.Equal(t, 3, strings.Count(joined, "-movflags +faststart"))
	assert.NotContains(t, joined, "-fflags")
}

func TestBuildEncodeArgs_AV1Backends(t *testing.T) {
	l := ladder(t, check.BackendAV1SVT)

	svt := BuildEncodeArgs(Job{Asset: clip(), Family: planner.FamilyAV1, Backend: check.BackendAV1SVT, Specs: l.AV1, OutDir: "/w/av1"}, testOpts(), NewRetryState())
	assert.Equal(t, []string{"[t1080]", "[t720]", "[t480]"}, argAfter(svt, "-map"))
	assert.Equal(t, []string{"libsvtav1", "libsvtav1", "libsvtav1"}, argAfter(svt, "-c:v"))
	assert.Equal(t, []string{"32", "33", "34"}, argAfter(svt, "-crf"))
	assert.Equal(t, []string{"8", "8", "8"}, argAfter(svt, "-preset"))
	assert.Empty(t, argAfter(svt, "-b:v"))
	assert.Equal(t, "/w/av1/av1_480.mp4", svt[len(svt)-1])

	aom := BuildEncodeArgs(Job{Asset: clip(), Family: planner.FamilyAV1, Backend: check.BackendAV1AOM, Specs: l.AV1[:1], OutDir: "/w/av1"}, testOpts(), NewRetryState())
	joined := strings.Join(aom, " ")
	assert.Contains(t, joined, "-c:v libaom-av1 -pix_fmt yuv420p -crf 32 -b:v 0 -g 50 -row-mt 1 -cpu-used 6 -tile-columns 1 -tile-rows 1")
}

func TestBuildEncodeArgs_DeinterlaceAndRetryFlags(t *testing.T) {
	a := clip()
	a.Interlaced = true
	l := ladder(t, check.BackendAV1Unavailable)
	rs := NewRetryState()
	rs.TimestampFix = true
	rs.MuxQueueSize = muxQueueEscalate

	args := BuildEncodeArgs(Job{Asset: a, Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264[:1], OutDir: "/w"}, testOpts(), rs)
	assert.True(t, strings.HasPrefix(argAfter(args, "-filter_complex")[0], "[0:v]yadif="))
	assert.Equal(t, []string{"+genpts+discardcorrupt"}, argAfter(args, "-fflags"))
	assert.Equal(t, []string{"16384"}, argAfter(args, "-max_muxing_queue_size"))
	assert.Equal(t, []string{"make_zero"}, argAfter(args, "-avoid_negative_ts"))
}

func TestBuildAudioArgs(t *testing.T) {
	args := BuildAudioArgs(clip(), "/w/audio/audio.m4a", testOpts(), NewRetryState())
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /in/clip.mp4 -map 0:a:0 -vn -sn -dn -c:a aac -b:a 192k -ac 2")
	assert.Equal(t, "/w/audio/audio.m4a", args[len(args)-1])
}

func TestVerbosePreamble(t *testing.T) {
	opts := testOpts()
	opts.Verbose = true
	args := BuildAudioArgs(clip(), "a.m4a", opts, nil)
	assert.Equal(t, []string{"info"}, argAfter(args, "-loglevel"))
	assert.Contains(t, args, "-stats")
	assert.Equal(t, []string{"4096"}, argAfter(args, "-max_muxing_queue_size"))
}

func newEncoder(f *commandtest.Fake) *Encoder {
	return &Encoder{Runner: f, FFmpeg: "ffmpeg", Opts: testOpts(), Log: zerolog.Nop()}
}

func TestEncode_Success(t *testing.T) {
	f := commandtest.New("ffmpeg")
	f.Handle("ffmpeg", commandtest.WriteOutputs(".mp4"))
	dir := filepath.Join(t.TempDir(), "h264")
	l := ladder(t, check.BackendAV1Unavailable)

	files, err := newEncoder(f).Encode(context.Background(), Job{Asset: clip(), Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264, OutDir: dir})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "h264_1080.mp4"), files[0].Path)
	assert.Equal(t, 480, files[2].Spec.Height)
	assert.Len(t, f.CallsTo("ffmpeg"), 1, "one ffmpeg pass per family")
}

func TestEncode_FailureClassified(t *testing.T) {
	f := commandtest.New("ffmpeg")
	f.Handle("ffmpeg", commandtest.Fail(1, "[vost#0:0] Unknown encoder 'libsvtav1'"))
	l := ladder(t, check.BackendAV1SVT)

	_, err := newEncoder(f).Encode(context.Background(), Job{Asset: clip(), Family: planner.FamilyAV1, Backend: check.BackendAV1SVT, Specs: l.AV1, OutDir: t.TempDir()})
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, planner.FamilyAV1, ee.Family)
	assert.Equal(t, "clip", ee.Source)
	assert.Equal(t, ReasonMissingEncoder, ee.Reason)
	var exit *command.ExitError
	assert.ErrorAs(t, err, &exit)
}

func TestEncode_RetriesRecoverableFailure(t *testing.T) {
	f := commandtest.New("ffmpeg")
	calls := 0
	ok := commandtest.WriteOutputs(".mp4")
	f.Handle("ffmpeg", func(ctx context.Context, c command.Cmd) (command.Result, error) {
		calls++
		if calls == 1 {
			return commandtest.Fail(1, "Too many packets buffered for output stream 0:0.")(ctx, c)
		}
		return ok(ctx, c)
	})
	l := ladder(t, check.BackendAV1Unavailable)

	_, err := newEncoder(f).Encode(context.Background(), Job{Asset: clip(), Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264, OutDir: t.TempDir()})
	require.NoError(t, err)
	runs := f.CallsTo("ffmpeg")
	require.Len(t, runs, 2)
	assert.Equal(t, "16384", argAfter(runs[1].Args, "-max_muxing_queue_size")[0])
}

func TestEncode_StrictDoesNotRetry(t *testing.T) {
	f := commandtest.New("ffmpeg")
	f.Handle("ffmpeg", commandtest.Fail(1, "Too many packets buffered for output stream 0:0."))
	enc := newEncoder(f)
	enc.Opts.Strict = true
	l := ladder(t, check.BackendAV1Unavailable)

	_, err := enc.Encode(context.Background(), Job{Asset: clip(), Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264, OutDir: t.TempDir()})
	require.Error(t, err)
	assert.Len(t, f.CallsTo("ffmpeg"), 1)
}

func TestEncode_MissingOutput(t *testing.T) {
	f := commandtest.New("ffmpeg")
	l := ladder(t, check.BackendAV1Unavailable)

	_, err := newEncoder(f).Encode(context.Background(), Job{Asset: clip(), Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264, OutDir: t.TempDir()})
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonMissingOutput, ee.Reason)
}

func TestEncode_Cancelled(t *testing.T) {
	f := commandtest.New("ffmpeg")
	f.Handle("ffmpeg", commandtest.Block())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := ladder(t, check.BackendAV1Unavailable)

	_, err := newEncoder(f).Encode(ctx, Job{Asset: clip(), Family: planner.FamilyH264, Backend: check.BackendH264, Specs: l.H264, OutDir: t.TempDir()})
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonInterrupted, ee.Reason)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtractAudio(t *testing.T) {
	f := commandtest.New("ffmpeg")
	f.Handle("ffmpeg", commandtest.WriteOutputs(".m4a"))
	dir := filepath.Join(t.TempDir(), "audio")

	out, err := newEncoder(f).ExtractAudio(context.Background(), clip(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, AudioFileName), out)

	f.Handle("ffmpeg", commandtest.Fail(1, "Permission denied"))
	_, err = newEncoder(f).ExtractAudio(context.Background(), clip(), dir)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, planner.FamilyAudio, ee.Family)
	assert.Equal(t, ReasonIO, ee.Reason)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		stderr string
		want   Reason
	}{
		{"timeout", command.ErrTimeout, "", ReasonTimeout},
		{"cancel", context.Canceled, "", ReasonInterrupted},
		{"missing encoder", nil, "Unknown encoder 'libaom-av1'", ReasonMissingEncoder},
		{"bad option", nil, "Unrecognized option 'row-mt'.", ReasonInvalidArgument},
		{"odd height", nil, "[libx264 @ 0x1] height not divisible by 2 (640x361)", ReasonInvalidArgument},
		{"io", nil, "out.mp4: No space left on device", ReasonIO},
		{"corrupt input", nil, "clip.mp4: Invalid data found when processing input", ReasonIO},
		{"signal", nil, "Exiting normally, received signal 15.", ReasonInterrupted},
		{"unknown", nil, "something odd", ReasonOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, tt.stderr))
		})
	}
}

func TestRetryState_Advance(t *testing.T) {
	rs := NewRetryState()
	assert.Equal(t, RetryIncreaseMux, rs.Advance("Too many packets buffered for output stream 0:1."))
	assert.Equal(t, RetryNone, rs.Advance("Too many packets buffered for output stream 0:1."), "mux fix already applied")

	rs = NewRetryState()
	assert.Equal(t, RetryFixTimestamps, rs.Advance("Non-monotonous DTS in output stream 0:0"))
	assert.True(t, rs.TimestampFix)

	rs = NewRetryState()
	assert.Equal(t, RetryNone, rs.Advance("Unknown encoder"))
	assert.Equal(t, "none", RetryNone.String())
}
