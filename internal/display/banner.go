// Package display holds the small human-facing formatters shared by the
// CLI and the batch summary.
package display

import (
	"fmt"
	"io"

	"github.com/Carbocode/2mpeg-dash/internal/term"
)

const banner = `  ____                                      _           _
 |___ \ _ __ ___  _ __   ___  __ _       __| | __ _ ___| |__
   __) | '_ ` + "`" + ` _ \| '_ \ / _ \/ _` + "`" + ` |____ / _` + "`" + ` |/ _` + "`" + ` / __| '_ \
  / __/| | | | | | |_) |  __/ (_| |____| (_| | (_| \__ \ | | |
 |_____|_| |_| |_| .__/ \___|\__, |     \__,_|\__,_|___/_| |_|
                 |_|         |___/
`

// PrintBanner writes the ASCII art banner and version line to w; cyan if
// colors are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Cyan+banner+term.NC)
	fmt.Fprintf(w, " %sH.264 + AV1 ladders to MPEG-DASH%s  %s\n\n", term.Bold, term.NC, version)
}
