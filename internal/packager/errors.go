package packager

import (
	"fmt"

	"github.com/Carbocode/2mpeg-dash/internal/check"
)

// PackageError reports a failed packaging run. Nothing was published.
type PackageError struct {
	Source  string
	Backend check.PackagerBackend
	Stderr  string // Tail of the packager's stderr, if any.
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s with %s: %v", e.Source, e.Backend, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }
