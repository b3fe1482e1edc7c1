package packager

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Carbocode/2mpeg-dash/internal/layout"
)

// shakaArgs builds one stream descriptor per representation. Output paths
// are relative to the staging directory; inputs are absolute.
func shakaArgs(job Job, inputs []string) ([]string, error) {
	tree := job.Tree()
	args := make([]string, 0, len(inputs)+5)
	for i, dir := range tree.Dirs() {
		in := inputs[i]
		// Shaka splits descriptors on commas.
		if strings.Contains(in, ",") {
			return nil, fmt.Errorf("input path %q contains a comma", in)
		}
		stream := "video"
		if dir == layout.AudioDirName {
			stream = "audio,lang=und"
		}
		args = append(args, fmt.Sprintf("in=%s,stream=%s,init_segment=%s,segment_template=%s",
			in, stream,
			path.Join(dir, layout.InitName),
			path.Join(dir, layout.SegmentPrefix+"$Number$"+layout.SegmentExt)))
	}
	return append(args,
		"--segment_duration", strconv.Itoa(job.SegmentDuration),
		"--generate_static_mpd",
		"--mpd_output", layout.ManifestName,
	), nil
}
