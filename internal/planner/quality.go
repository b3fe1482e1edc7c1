package planner

import "math"

// ReferenceLadder is the descending set of candidate rung heights.
var ReferenceLadder = []int{2160, 1440, 1080, 720, 480}

// h264Row is one row of the H264 VBV table.
type h264Row struct {
	height      int
	bitrateKbps int
}

// h264Table holds the target bitrate per reference height, descending.
// maxrate is 1.07x and bufsize 2x the target.
var h264Table = []h264Row{
	{2160, 12000},
	{1440, 7000},
	{1080, 5000},
	{720, 2800},
	{480, 1400},
}

// minH264Kbps floors the bitrate of very small non-table rungs.
const minH264Kbps = 200

// av1CRFTable maps reference heights to CRF, descending by height.
var av1CRFTable = []struct{ height, crf int }{
	{2160, 30},
	{1440, 31},
	{1080, 32},
	{720, 33},
	{480, 34},
}

// H264Rate returns target bitrate, maxrate and bufsize in kbps for height.
// Table heights are exact. Heights between two rows are interpolated
// linearly; heights outside the table scale the nearest row by pixel ratio.
// The result is monotonic in height and never below minH264Kbps.
func H264Rate(height int) (bitrate, maxrate, bufsize int) {
	bitrate = h264Bitrate(height)
	return bitrate, bitrate * 107 / 100, bitrate * 2
}

func h264Bitrate(h int) int {
	top, bottom := h264Table[0], h264Table[len(h264Table)-1]
	switch {
	case h >= top.height:
		return floorKbps(scaleByPixels(top, h))
	case h <= bottom.height:
		return floorKbps(scaleByPixels(bottom, h))
	}
	for i := 0; i < len(h264Table)-1; i++ {
		hi, lo := h264Table[i], h264Table[i+1]
		if h == hi.height {
			return hi.bitrateKbps
		}
		if h > lo.height && h < hi.height {
			frac := float64(h-lo.height) / float64(hi.height-lo.height)
			return int(math.Round(float64(lo.bitrateKbps) + frac*float64(hi.bitrateKbps-lo.bitrateKbps)))
		}
	}
	return bottom.bitrateKbps
}

func scaleByPixels(row h264Row, h int) int {
	ratio := float64(h) * float64(h) / (float64(row.height) * float64(row.height))
	return int(math.Round(float64(row.bitrateKbps) * ratio))
}

func floorKbps(k int) int {
	if k < minH264Kbps {
		return minH264Kbps
	}
	return k
}

// AV1CRF returns the CRF for height: the CRF of the nearest table height
// at or above it, or the table's lowest CRF for heights above the table.
func AV1CRF(height int) int {
	crf := av1CRFTable[0].crf
	for _, row := range av1CRFTable {
		if row.height >= height {
			crf = row.crf
		}
	}
	return crf
}

// GOP returns the fixed keyframe interval for a frame rate: two seconds of
// frames, at least 1. Non-positive rates use 25 fps.
func GOP(fps float64) int {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = 25
	}
	g := int(math.Round(fps * 2))
	if g < 1 {
		return 1
	}
	return g
}
