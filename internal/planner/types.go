package planner

import (
	"fmt"

	"github.com/Carbocode/2mpeg-dash/internal/check"
)

// Family is a codec family. Each family is encoded in one ffmpeg pass.
type Family string

const (
	FamilyH264  Family = "h264"
	FamilyAV1   Family = "av1"
	FamilyAudio Family = "audio"
)

// RenditionSpec is one planned output: a family at a target height.
// H264 rungs carry VBV rate control; AV1 rungs carry a CRF.
type RenditionSpec struct {
	Family Family
	Height int
	GOP    int // Fixed keyframe interval in frames.

	// H264 only, in kbps.
	BitrateKbps int
	MaxRateKbps int
	BufSizeKbps int

	// AV1 only.
	CRF int
}

// ID is the rendition identifier used for file and directory names,
// e.g. "h264_1080".
func (r RenditionSpec) ID() string {
	return RenditionID(r.Family, r.Height)
}

// RenditionID formats a family and height as "<family>_<height>".
func RenditionID(f Family, height int) string {
	return fmt.Sprintf("%s_%d", f, height)
}

// Ladder is the set of renditions planned for one source. Both partitions
// are sorted strictly descending by height; AV1 is empty when no AV1
// backend is available.
type Ladder struct {
	Source     string
	GOP        int
	AV1Backend check.CodecBackend
	H264       []RenditionSpec
	AV1        []RenditionSpec
}

// Partition returns the rungs of one family.
func (l Ladder) Partition(f Family) []RenditionSpec {
	switch f {
	case FamilyH264:
		return l.H264
	case FamilyAV1:
		return l.AV1
	}
	return nil
}

// Heights returns the H264 rung heights, which every family shares.
func (l Ladder) Heights() []int {
	hs := make([]int, len(l.H264))
	for i, r := range l.H264 {
		hs[i] = r.Height
	}
	return hs
}

// WithoutAV1 returns a copy of the ladder degraded to H264 only.
func (l Ladder) WithoutAV1() Ladder {
	l.AV1 = nil
	l.AV1Backend = check.BackendAV1Unavailable
	return l
}

// Renditions returns every rung, H264 first.
func (l Ladder) Renditions() []RenditionSpec {
	out := make([]RenditionSpec, 0, len(l.H264)+len(l.AV1))
	out = append(out, l.H264...)
	return append(out, l.AV1...)
}

// PlanError reports a source for which no valid ladder exists. It should
// not occur for any source with a positive native height.
type PlanError struct {
	Source string
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %s: %s", e.Source, e.Reason)
}
