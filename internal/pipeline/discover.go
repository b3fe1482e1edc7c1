package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover collects files in inputDir whose lowercased extension is in
// exts, descending into subdirectories only when recursive is set. Hidden
// files and directories are ignored. Paths are returned sorted for a
// deterministic processing order.
func Discover(inputDir string, exts []string, recursive bool) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == inputDir {
				return nil
			}
			if !recursive || isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || (!d.Type().IsRegular() && d.Type()&os.ModeSymlink == 0) {
			return nil
		}
		if want[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// matchesExtension reports whether path would be picked up by Discover.
func matchesExtension(path string, exts []string) bool {
	if isHidden(filepath.Base(path)) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
