package display

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a size with binary units, e.g. "4.7 GiB".
// Negative sizes come from unknown estimates and render as "-".
func FormatBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

// FormatBitrateLabel renders a ladder bitrate: kbps below one megabit,
// Mbps with one decimal above.
func FormatBitrateLabel(kbps int64) string {
	if kbps >= 1000 {
		return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
	}
	return strconv.FormatInt(kbps, 10) + " kbps"
}
