package packager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carbocode/2mpeg-dash/internal/layout"
)

// mp4boxArgs builds a live-profile dash run. The CMAF-named profile is
// rejected by MP4Box, so the live profile with explicit naming is used.
func mp4boxArgs(job Job, inputs []string) []string {
	ms := millis(job.SegmentDuration)
	args := []string{
		"-dash", ms,
		"-rap",
		"-frag", ms,
		"-profile", "live",
		"-segment-name", "$RepresentationID$/" + layout.SegmentPrefix + "$Number$",
		"-segment-ext", strings.TrimPrefix(layout.SegmentExt, "."),
		"-init-segment-ext", "mp4",
		"-no-frags-default",
		"-out", layout.ManifestName,
	}
	tree := job.Tree()
	for i, dir := range tree.Dirs() {
		kind := "video"
		if dir == layout.AudioDirName {
			kind = "audio"
		}
		args = append(args, fmt.Sprintf("%s#%s:id=%s", inputs[i], kind, dir))
	}
	return args
}

// normalizeInitSegments renames the init segment MP4Box wrote in each
// representation directory to init.mp4 and rewrites the manifest to match.
func normalizeInitSegments(staging string, tree layout.OutputTree) error {
	renamed := make(map[string]bool)
	for _, dir := range tree.Dirs() {
		d := filepath.Join(staging, dir)
		if _, err := os.Stat(filepath.Join(d, layout.InitName)); err == nil {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(d, "*.mp4"))
		if err != nil {
			return err
		}
		if len(matches) != 1 {
			return fmt.Errorf("%s: expected one init segment, found %d", dir, len(matches))
		}
		if err := os.Rename(matches[0], filepath.Join(d, layout.InitName)); err != nil {
			return err
		}
		renamed[filepath.Base(matches[0])] = true
	}
	if len(renamed) == 0 {
		return nil
	}

	manifest := filepath.Join(staging, layout.ManifestName)
	data, err := os.ReadFile(manifest)
	if err != nil {
		return err
	}
	text := string(data)
	for old := range renamed {
		text = strings.ReplaceAll(text, "/"+old+`"`, "/"+layout.InitName+`"`)
	}
	return os.WriteFile(manifest, []byte(text), 0o644)
}
