package layout

import (
	"os"
	"path/filepath"
)

// WorkArea is the per-source intermediate directory <work>/<id>. Each codec
// family writes into its own subdirectory so concurrent encodes of one
// source never share paths.
type WorkArea struct {
	Dir string
}

// NewWorkArea returns the work area for source id under workRoot.
func NewWorkArea(workRoot, id string) WorkArea {
	return WorkArea{Dir: filepath.Join(workRoot, id)}
}

// Sub returns the subdirectory for a family ("h264", "av1", "audio").
func (w WorkArea) Sub(family string) string {
	return filepath.Join(w.Dir, family)
}

// Reset removes intermediates from a previous attempt.
func (w WorkArea) Reset() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return err
	}
	return os.MkdirAll(w.Dir, 0o755)
}

// Remove deletes the work area.
func (w WorkArea) Remove() error {
	return os.RemoveAll(w.Dir)
}
