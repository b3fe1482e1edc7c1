// Package planner derives the per-source rendition ladder: which heights to
// encode, H264 rate control and AV1 CRF per rung, and the shared keyframe
// interval. Planning is pure and deterministic.
package planner

import (
	"fmt"

	"github.com/Carbocode/2mpeg-dash/internal/check"
	"github.com/Carbocode/2mpeg-dash/internal/probe"
)

// Plan builds the ladder for asset. maxHeight caps the ladder (0 = no cap).
// av1 selects whether the AV1 partition is filled.
//
// Flow:
//  1. Keep reference rungs at or below min(native, cap)
//  2. If none survive, keep one even rung at or below min(native, cap)
//  3. Assign H264 VBV rates and the GOP per rung
//  4. Assign AV1 CRF per rung when the backend is available
func Plan(asset probe.SourceAsset, av1 check.CodecBackend, maxHeight int) (Ladder, error) {
	if asset.NativeHeight <= 0 {
		return Ladder{}, &PlanError{
			Source: asset.ID,
			Reason: fmt.Sprintf("native height %d is not positive", asset.NativeHeight),
		}
	}
	if maxHeight < 0 {
		return Ladder{}, &PlanError{Source: asset.ID, Reason: fmt.Sprintf("negative height cap %d", maxHeight)}
	}

	heights := RungHeights(asset.NativeHeight, maxHeight)
	gop := GOP(asset.FrameRate)

	l := Ladder{
		Source:     asset.ID,
		GOP:        gop,
		AV1Backend: check.BackendAV1Unavailable,
		H264:       make([]RenditionSpec, 0, len(heights)),
	}
	for _, h := range heights {
		br, maxrate, bufsize := H264Rate(h)
		l.H264 = append(l.H264, RenditionSpec{
			Family:      FamilyH264,
			Height:      h,
			GOP:         gop,
			BitrateKbps: br,
			MaxRateKbps: maxrate,
			BufSizeKbps: bufsize,
		})
	}
	if len(l.H264) == 0 {
		return Ladder{}, &PlanError{Source: asset.ID, Reason: fmt.Sprintf("no encodable rung for height %d", asset.NativeHeight)}
	}

	if av1.Available() && av1 != check.BackendH264 {
		l.AV1Backend = av1
		l.AV1 = make([]RenditionSpec, 0, len(heights))
		for _, h := range heights {
			l.AV1 = append(l.AV1, RenditionSpec{
				Family: FamilyAV1,
				Height: h,
				GOP:    gop,
				CRF:    AV1CRF(h),
			})
		}
	}
	return l, nil
}

// RungHeights returns the ladder heights for a source, descending and
// deduplicated. Every height is at most min(native, maxHeight); maxHeight
// 0 means uncapped. A single rung below the reference ladder is rounded
// down to an even height, since yuv420p needs even dimensions.
func RungHeights(native, maxHeight int) []int {
	limit := native
	if maxHeight > 0 && maxHeight < limit {
		limit = maxHeight
	}
	var out []int
	for _, h := range ReferenceLadder {
		if h <= limit && (len(out) == 0 || out[len(out)-1] > h) {
			out = append(out, h)
		}
	}
	if even := limit &^ 1; len(out) == 0 && even > 0 {
		out = append(out, even)
	}
	return out
}
