package probe

import "fmt"

// SourceAsset is one input video, immutable after probing.
type SourceAsset struct {
	ID           string  // Unique within the batch; names the output directory.
	Path         string  // Absolute or input-relative source path.
	NativeHeight int     // Height of the primary video stream in pixels.
	Width        int     // Width of the primary video stream in pixels.
	FrameRate    float64 // Frames per second; DefaultFrameRate when unknown.
	HasAudio     bool
	Interlaced   bool
	HDR          bool
	Duration     float64 // Seconds; 0 when unknown.
	Size         int64   // Bytes; 0 when unknown.
	VideoCodec   string
}

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index          int
	Codec          string
	PixFmt         string
	Width          int
	Height         int
	BitRate        int64
	FieldOrder     string
	ColorTransfer  string
	ColorPrimaries string
	IsAttachedPic  bool
	AvgFrameRate   string
	RFrameRate     string
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index    int
	Codec    string
	Channels int
	Language string
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type ProbeResult struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioStreams []AudioStream
}

// FrameRate returns the primary stream's average frame rate, falling back
// to r_frame_rate and then DefaultFrameRate.
func (p *ProbeResult) FrameRate() float64 {
	if p.PrimaryVideo == nil {
		return DefaultFrameRate
	}
	if fps := ParseFrameRate(p.PrimaryVideo.AvgFrameRate); fps > 0 {
		return fps
	}
	if fps := ParseFrameRate(p.PrimaryVideo.RFrameRate); fps > 0 {
		return fps
	}
	return DefaultFrameRate
}

// Asset reduces the probe result to a SourceAsset. A missing video stream
// or a non-positive height is an error.
func (p *ProbeResult) Asset(id, path string) (SourceAsset, error) {
	v := p.PrimaryVideo
	if v == nil {
		return SourceAsset{}, ErrNoVideo
	}
	if v.Height <= 0 {
		return SourceAsset{}, fmt.Errorf("video stream %d reports height %d", v.Index, v.Height)
	}
	return SourceAsset{
		ID:           id,
		Path:         path,
		NativeHeight: v.Height,
		Width:        v.Width,
		FrameRate:    p.FrameRate(),
		HasAudio:     len(p.AudioStreams) > 0,
		Interlaced:   p.IsInterlaced(),
		HDR:          p.IsHDR(),
		Duration:     p.Format.Duration,
		Size:         p.Format.Size,
		VideoCodec:   v.Codec,
	}, nil
}
