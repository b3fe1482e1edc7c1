package planner

// SizeEstimate holds the predicted size of a source's DASH package.
type SizeEstimate struct {
	H264Bytes  int64
	AudioBytes int64
	Known      bool // False when the source duration is unknown.
}

// Total returns the H264 plus audio estimate. AV1 is CRF-driven and has no
// predictable size, so it is not included.
func (e SizeEstimate) Total() int64 { return e.H264Bytes + e.AudioBytes }

// EstimateSize predicts the package size from the H264 target bitrates,
// the audio bitrate (kbps, 0 when the source has no audio) and the source
// duration in seconds.
func EstimateSize(l Ladder, durationSec float64, audioKbps int) SizeEstimate {
	if durationSec <= 0 {
		return SizeEstimate{}
	}
	var kbps int
	for _, r := range l.H264 {
		kbps += r.BitrateKbps
	}
	return SizeEstimate{
		H264Bytes:  kbpsToBytes(kbps, durationSec),
		AudioBytes: kbpsToBytes(audioKbps, durationSec),
		Known:      true,
	}
}

func kbpsToBytes(kbps int, sec float64) int64 {
	return int64(float64(kbps) * 1000 / 8 * sec)
}
