package probe

import "strings"

// Field orders ffprobe reports for interlaced video.
var interlacedOrders = map[string]bool{"tt": true, "bb": true, "tb": true, "bt": true}

// Transfer characteristics of PQ and HLG content.
var hdrTransfers = map[string]bool{"smpte2084": true, "arib-std-b67": true}

// IsInterlaced reports whether the primary video stream is field-coded.
// Such sources are deinterlaced before scaling.
func (p *ProbeResult) IsInterlaced() bool {
	v := p.PrimaryVideo
	return v != nil && interlacedOrders[strings.ToLower(strings.TrimSpace(v.FieldOrder))]
}

// IsHDR reports PQ/HLG transfer or bt2020 primaries on the primary video
// stream. Ladders are encoded as 8-bit yuv420p, so HDR is only warned about.
func (p *ProbeResult) IsHDR() bool {
	v := p.PrimaryVideo
	return v != nil && (hdrTransfers[v.ColorTransfer] || v.ColorPrimaries == "bt2020")
}
