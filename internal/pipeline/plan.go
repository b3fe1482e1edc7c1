package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Carbocode/2mpeg-dash/internal/display"
	"github.com/Carbocode/2mpeg-dash/internal/planner"
	"github.com/Carbocode/2mpeg-dash/internal/probe"
	"github.com/Carbocode/2mpeg-dash/internal/term"
)

// planRow holds one source's line in the plan table.
type planRow struct {
	Name     string
	ID       string
	Native   string
	FPS      string
	GOP      string
	H264     string
	AV1      string
	TopRate  string
	Estimate string
	Err      string
}

// PrintPlan probes every discovered source and writes its ladder to w
// without encoding anything. It returns the number of sources that could
// not be probed or planned.
func (o *Orchestrator) PrintPlan(ctx context.Context, w io.Writer) (int, error) {
	files, err := Discover(o.cfg.InputDir, o.cfg.Extensions, o.cfg.Recursive)
	if err != nil {
		return 0, fmt.Errorf("discover sources: %w", err)
	}
	if len(files) == 0 {
		o.log.Warn().Str("dir", o.cfg.InputDir).Msg("no media files found")
		return 0, nil
	}

	isTTY := term.IsTerminal(os.Stderr)
	audioKbps, _ := strconv.Atoi(strings.TrimSuffix(o.cfg.AudioBitrate, "k"))
	var rows []planRow
	failed := 0

	for i, path := range files {
		if ctx.Err() != nil {
			if isTTY {
				clearProgress()
			}
			return failed, ctx.Err()
		}
		printProgress(isTTY, i+1, len(files), failed, filepath.Base(path))

		id := o.ids.Resolve(path, probe.SourceID(path))
		row := planRow{Name: filepath.Base(path), ID: id}

		asset, err := o.prober.Inspect(ctx, path)
		if err == nil {
			asset.ID = id
			var ladder planner.Ladder
			ladder, err = planner.Plan(asset, o.caps.AV1, o.cfg.MaxHeight)
			if err == nil {
				fillPlanRow(&row, asset.NativeHeight, asset.FrameRate, asset.HasAudio, asset.Duration, ladder, audioKbps)
			}
		}
		if err != nil {
			failed++
			row.Err = err.Error()
		}
		rows = append(rows, row)
	}
	if isTTY {
		clearProgress()
	}

	printPlanTable(w, rows)
	return failed, nil
}

func fillPlanRow(row *planRow, native int, fps float64, hasAudio bool, duration float64, l planner.Ladder, audioKbps int) {
	row.Native = strconv.Itoa(native) + "p"
	row.FPS = strconv.FormatFloat(fps, 'f', -1, 64)
	row.GOP = strconv.Itoa(l.GOP)
	row.H264 = joinHeights(l.H264)
	row.AV1 = joinHeights(l.AV1)
	if row.AV1 == "" {
		row.AV1 = "-"
	}
	if len(l.H264) > 0 {
		row.TopRate = display.FormatBitrateLabel(int64(l.H264[0].BitrateKbps))
	}
	if !hasAudio {
		audioKbps = 0
	}
	row.Estimate = "n/a"
	if est := planner.EstimateSize(l, duration, audioKbps); est.Known {
		row.Estimate = display.FormatBytes(est.Total())
	}
}

func joinHeights(specs []planner.RenditionSpec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = strconv.Itoa(s.Height)
	}
	return strings.Join(parts, "/")
}

var planHeaders = []string{"File", "ID", "Native", "FPS", "GOP", "H.264", "AV1", "Top Rate", "Est. Size"}

func (r planRow) cells() []string {
	return []string{r.Name, r.ID, r.Native, r.FPS, r.GOP, r.H264, r.AV1, r.TopRate, r.Estimate}
}

func printPlanTable(w io.Writer, rows []planRow) {
	widths := make([]int, len(planHeaders))
	for i, h := range planHeaders {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range rows {
		for i, c := range r.cells() {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}
	if widths[0] > 50 {
		widths[0] = 50
	}

	header := formatCells(planHeaders, widths)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header)-2))

	for _, r := range rows {
		cells := r.cells()
		cells[0] = truncate(cells[0], widths[0])
		if r.Err != "" {
			// Pad the plain text first, then wrap in ANSI color, so escape
			// bytes don't count toward the column width.
			fmt.Fprintf(w, "  %-*s  %-*s  %s\n", widths[0], cells[0], widths[1], cells[1],
				colorPad("error: "+r.Err, 0, term.Red))
			continue
		}
		fmt.Fprintln(w, formatCells(cells, widths))
	}
	fmt.Fprintln(w)
}

func formatCells(cells []string, widths []int) string {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString("  ")
		fmt.Fprintf(&b, "%-*s", widths[i], c)
	}
	return strings.TrimRight(b.String(), " ")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// colorPad pads s to width, then wraps it in color.
func colorPad(s string, width int, color string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	if color == "" {
		return padded
	}
	return color + padded + term.NC
}

// printProgress shows a live probe counter. On a TTY it writes an
// inline \r-overwritten line to stderr; otherwise it is a no-op.
func printProgress(isTTY bool, current, total, failed int, name string) {
	if !isTTY {
		return
	}
	pct := current * 100 / total
	status := fmt.Sprintf("  Probing [%d/%d] %d%% ", current, total, pct)
	if failed > 0 {
		status += fmt.Sprintf("(%d failed) ", failed)
	}

	status += truncate(name, 40)

	// Pad to 80 chars to overwrite previous longer lines, then \r.
	if n := utf8.RuneCountInString(status); n < 80 {
		status += strings.Repeat(" ", 80-n)
	}
	fmt.Fprintf(os.Stderr, "\r%s", status)
}

// clearProgress erases the inline progress line on a TTY.
func clearProgress() {
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 80))
}
