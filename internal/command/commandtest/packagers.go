package commandtest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carbocode/2mpeg-dash/internal/command"
)

// FakeShaka returns a handler that writes what Shaka Packager would for its
// stream descriptors: an init segment and two media segments per stream,
// plus the manifest named by --mpd_output.
func FakeShaka() Handler {
	return func(_ context.Context, c command.Cmd) (command.Result, error) {
		for i, a := range c.Args {
			if strings.HasPrefix(a, "in=") {
				fields := descriptorFields(a)
				if err := writeRel(c.Dir, fields["init_segment"]); err != nil {
					return command.Result{ExitCode: 1}, err
				}
				for _, n := range []string{"1", "2"} {
					seg := strings.ReplaceAll(fields["segment_template"], "$Number$", n)
					if err := writeRel(c.Dir, seg); err != nil {
						return command.Result{ExitCode: 1}, err
					}
				}
			}
			if a == "--mpd_output" && i+1 < len(c.Args) {
				if err := writeRel(c.Dir, c.Args[i+1]); err != nil {
					return command.Result{ExitCode: 1}, err
				}
			}
		}
		return command.Result{}, nil
	}
}

func descriptorFields(desc string) map[string]string {
	out := make(map[string]string)
	for _, kv := range strings.Split(desc, ",") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// FakeMP4Box returns a handler that writes what MP4Box writes for
// "-segment-name $RepresentationID$/seg_$Number$": seg_init.mp4 and media
// segments per representation, and a manifest referencing the init name.
func FakeMP4Box() Handler {
	return func(_ context.Context, c command.Cmd) (command.Result, error) {
		var manifest string
		for i, a := range c.Args {
			if a == "-out" && i+1 < len(c.Args) {
				manifest = c.Args[i+1]
			}
			_, frag, ok := strings.Cut(a, "#")
			if !ok {
				continue
			}
			_, id, ok := strings.Cut(frag, ":id=")
			if !ok {
				continue
			}
			for _, name := range []string{"seg_init.mp4", "seg_1.m4s", "seg_2.m4s"} {
				if err := writeRel(c.Dir, filepath.Join(id, name)); err != nil {
					return command.Result{ExitCode: 1}, err
				}
			}
		}
		if manifest != "" {
			mpd := `<MPD><SegmentTemplate initialization="$RepresentationID$/seg_init.mp4" media="$RepresentationID$/seg_$Number$.m4s"/></MPD>`
			path := manifest
			if c.Dir != "" && !filepath.IsAbs(path) {
				path = filepath.Join(c.Dir, path)
			}
			if err := os.WriteFile(path, []byte(mpd), 0o644); err != nil {
				return command.Result{ExitCode: 1}, err
			}
		}
		return command.Result{}, nil
	}
}

func writeRel(dir, name string) error {
	if name == "" {
		return nil
	}
	path := name
	if dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake segment"), 0o644)
}
