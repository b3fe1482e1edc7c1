// Package layout owns the on-disk contract of a run: the per-source work
// area, the expected DASH output tree, and the staging/validate/publish
// sequence that guarantees a partial package is never visible at the final
// path.
//
//	<out>/<id>/dash/manifest.mpd
//	<out>/<id>/dash/<family>_<height>/init.mp4, seg_<n>.m4s
//	<out>/<id>/dash/audio/init.mp4, seg_<n>.m4s   (only with audio)
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Fixed names inside an output tree.
const (
	DashDirName    = "dash"
	ManifestName   = "manifest.mpd"
	AudioDirName   = "audio"
	InitName       = "init.mp4"
	SegmentPrefix  = "seg_"
	SegmentExt     = ".m4s"
	stagingPrefix  = ".dash-staging-"
	retiringPrefix = ".dash-old-"
)

// OutputTree names the directories and manifest of one source's package.
// Root is the final location; packaging happens in a staging directory
// with the same relative structure.
type OutputTree struct {
	Root       string   // <out>/<id>/dash
	Renditions []string // Rendition IDs in packaging order.
	HasAudio   bool
}

// ManifestPath returns the manifest location under root.
func (t OutputTree) ManifestPath(root string) string {
	return filepath.Join(root, ManifestName)
}

// Dirs returns every representation directory name: renditions, then audio.
func (t OutputTree) Dirs() []string {
	dirs := append([]string(nil), t.Renditions...)
	if t.HasAudio {
		dirs = append(dirs, AudioDirName)
	}
	return dirs
}

// FinalDir returns <outRoot>/<id>/dash.
func FinalDir(outRoot, id string) string {
	return filepath.Join(outRoot, id, DashDirName)
}

// Expected returns the tree a package of the given renditions must have.
// It only computes names.
func Expected(outRoot, id string, renditionIDs []string, hasAudio bool) OutputTree {
	return OutputTree{
		Root:       FinalDir(outRoot, id),
		Renditions: append([]string(nil), renditionIDs...),
		HasAudio:   hasAudio,
	}
}

// Published reports whether a manifest already exists at the final path.
func Published(outRoot, id string) bool {
	fi, err := os.Stat(filepath.Join(FinalDir(outRoot, id), ManifestName))
	return err == nil && fi.Mode().IsRegular()
}

// Prepare creates a fresh, empty staging directory next to finalDir and
// removes staging directories left behind by interrupted runs.
func Prepare(finalDir string) (string, error) {
	parent := filepath.Dir(finalDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", parent, err)
	}
	removeLeftovers(parent)
	staging := filepath.Join(parent, stagingPrefix+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return staging, nil
}

func removeLeftovers(parent string) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && (strings.HasPrefix(e.Name(), stagingPrefix) || strings.HasPrefix(e.Name(), retiringPrefix)) {
			_ = os.RemoveAll(filepath.Join(parent, e.Name()))
		}
	}
}

// Discard removes a staging directory after a failed packaging run.
func Discard(staging string) error {
	return os.RemoveAll(staging)
}

// Validate checks that staging holds exactly the structure of tree:
// each representation directory has init.mp4 and at least one segment,
// audio/ exists iff audio was packaged, no other directories exist, and
// the root holds exactly one .mpd file named manifest.mpd.
func Validate(staging string, tree OutputTree) error {
	var errs []error

	want := make(map[string]bool)
	for _, d := range tree.Dirs() {
		want[d] = true
		if err := validateRepresentation(filepath.Join(staging, d)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
		}
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}
	var manifests []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir() && !want[name]:
			errs = append(errs, fmt.Errorf("unexpected directory %q", name))
		case !e.IsDir() && strings.EqualFold(filepath.Ext(name), ".mpd"):
			manifests = append(manifests, name)
		}
	}
	switch {
	case len(manifests) == 0:
		errs = append(errs, errors.New("no manifest written"))
	case len(manifests) > 1:
		errs = append(errs, fmt.Errorf("expected one manifest, found %v", manifests))
	case manifests[0] != ManifestName:
		errs = append(errs, fmt.Errorf("manifest named %q, want %q", manifests[0], ManifestName))
	}
	return errors.Join(errs...)
}

func validateRepresentation(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return errors.New("directory missing")
	}
	if !fi.IsDir() {
		return errors.New("not a directory")
	}
	if _, err := os.Stat(filepath.Join(dir, InitName)); err != nil {
		return fmt.Errorf("missing %s", InitName)
	}
	segs, _ := filepath.Glob(filepath.Join(dir, SegmentPrefix+"*"+SegmentExt))
	if len(segs) == 0 {
		return errors.New("no media segments")
	}
	return nil
}

// Publish atomically replaces finalDir with staging. Any previous tree is
// moved aside first and removed only after the new tree is in place; if
// the final rename fails the previous tree is restored.
func Publish(staging, finalDir string) error {
	parent := filepath.Dir(finalDir)
	var retired string
	if _, err := os.Stat(finalDir); err == nil {
		retired = filepath.Join(parent, retiringPrefix+uuid.NewString())
		if err := os.Rename(finalDir, retired); err != nil {
			return fmt.Errorf("move previous package aside: %w", err)
		}
	}
	if err := os.Rename(staging, finalDir); err != nil {
		if retired != "" {
			_ = os.Rename(retired, finalDir)
		}
		return fmt.Errorf("publish package: %w", err)
	}
	if retired != "" {
		_ = os.RemoveAll(retired)
	}
	return nil
}
