// Package probe inspects source media with a single ffprobe JSON call and
// reduces the result to the [SourceAsset] the planner works from.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Carbocode/2mpeg-dash/internal/command"
)

// DefaultFrameRate is used when ffprobe reports no usable frame rate.
const DefaultFrameRate = 25.0

// ErrNoVideo is wrapped by ProbeError when the file has no video stream.
var ErrNoVideo = errors.New("no video stream")

// ProbeError reports a source that could not be inspected. It is fatal to
// that source only.
type ProbeError struct {
	Source string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Source, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober runs ffprobe through a command.Runner.
type Prober struct {
	Runner  command.Runner
	FFprobe string // Resolved ffprobe path; defaults to "ffprobe".
}

// Inspect probes path and returns its SourceAsset. The asset ID defaults to
// the file stem; callers resolving collisions overwrite it.
func (p Prober) Inspect(ctx context.Context, path string) (SourceAsset, error) {
	id := SourceID(path)
	bin := p.FFprobe
	if bin == "" {
		bin = "ffprobe"
	}
	res, err := p.Runner.Run(ctx, command.Cmd{
		Name: bin,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format", "-show_streams",
			path,
		},
	})
	if err != nil {
		return SourceAsset{}, &ProbeError{Source: id, Err: err}
	}

	pr, err := ParseJSON(res.Stdout)
	if err != nil {
		return SourceAsset{}, &ProbeError{Source: id, Err: err}
	}
	asset, err := pr.Asset(id, path)
	if err != nil {
		return SourceAsset{}, &ProbeError{Source: id, Err: err}
	}
	return asset, nil
}

// SourceID derives the source identifier from a file name: its stem.
func SourceID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	PixFmt         string            `json:"pix_fmt"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	BitRate        string            `json:"bit_rate"`
	FieldOrder     string            `json:"field_order"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	AvgFrameRate   string            `json:"avg_frame_rate"`
	RFrameRate     string            `json:"r_frame_rate"`
	Channels       int               `json:"channels"`
	Disposition    map[string]int    `json:"disposition"`
	Tags           map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: FormatInfo{
			Filename:   raw.Format.Filename,
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			Size:       parseInt64(raw.Format.Size),
			BitRate:    parseInt64(raw.Format.BitRate),
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			vs := convertVideo(s)
			if !vs.IsAttachedPic && pr.PrimaryVideo == nil {
				pr.PrimaryVideo = &vs
			}
		case "audio":
			pr.AudioStreams = append(pr.AudioStreams, AudioStream{
				Index:    s.Index,
				Codec:    s.CodecName,
				Channels: s.Channels,
				Language: s.Tags["language"],
			})
		}
	}
	return pr
}

func convertVideo(s *ffprobeStream) VideoStream {
	return VideoStream{
		Index:          s.Index,
		Codec:          s.CodecName,
		PixFmt:         s.PixFmt,
		Width:          s.Width,
		Height:         s.Height,
		BitRate:        parseInt64(s.BitRate),
		FieldOrder:     s.FieldOrder,
		ColorTransfer:  s.ColorTransfer,
		ColorPrimaries: s.ColorPrimaries,
		IsAttachedPic:  s.Disposition["attached_pic"] == 1,
		AvgFrameRate:   s.AvgFrameRate,
		RFrameRate:     s.RFrameRate,
	}
}

// ParseFrameRate parses an ffprobe rational ("30000/1001") or decimal
// ("25") frame rate. It returns 0 for empty, malformed, zero-denominator or
// non-positive values.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var fps float64
	if num, den, ok := strings.Cut(s, "/"); ok {
		n := parseFloat(num)
		d := parseFloat(den)
		if d == 0 {
			return 0
		}
		fps = n / d
	} else {
		fps = parseFloat(s)
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0
	}
	return fps
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
