package planner

import (
	"fmt"
	"strings"
)

// deinterlaceFilter is applied ahead of the split for interlaced sources.
const deinterlaceFilter = "yadif=mode=send_frame:parity=auto:deint=interlaced"

// FilterGraph builds the -filter_complex graph for one family: decode once,
// split into len(specs) branches and scale each branch to its rung height.
// It returns the graph and the output pad labels in ladder order. prefix
// keeps labels distinct between families ("s" for H264, "t" for AV1).
func FilterGraph(specs []RenditionSpec, prefix string, deinterlace bool) (string, []string) {
	n := len(specs)
	var b strings.Builder
	b.WriteString("[0:v]")
	if deinterlace {
		b.WriteString(deinterlaceFilter)
		b.WriteString(",")
	}
	fmt.Fprintf(&b, "split=%d", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%ssplit%d]", prefix, i)
	}

	labels := make([]string, n)
	for i, s := range specs {
		labels[i] = fmt.Sprintf("%s%d", prefix, s.Height)
		fmt.Fprintf(&b, ";[%ssplit%d]scale=-2:%d:flags=bicubic[%s]", prefix, i, s.Height, labels[i])
	}
	return b.String(), labels
}
