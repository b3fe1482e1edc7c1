package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// Report is the JSON run report written with --report.
type Report struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	DryRun          bool           `json:"dry_run"`
	Interrupted     bool           `json:"interrupted"`
	AV1Backend      string         `json:"av1_backend"`
	Packager        string         `json:"packager"`
	Totals          ReportTotals   `json:"totals"`
	Sources         []SourceReport `json:"sources"`
}

// ReportTotals mirrors the RunStats counters.
type ReportTotals struct {
	Total       int   `json:"total"`
	Succeeded   int   `json:"succeeded"`
	Degraded    int   `json:"degraded"`
	Failed      int   `json:"failed"`
	Skipped     int   `json:"skipped"`
	InputBytes  int64 `json:"input_bytes"`
	OutputBytes int64 `json:"output_bytes"`
}

// SourceReport is one source's entry in the report.
type SourceReport struct {
	ID              string   `json:"id"`
	Path            string   `json:"path"`
	Outcome         Outcome  `json:"outcome"`
	State           State    `json:"state"`
	FailedAt        Stage    `json:"failed_at,omitempty"`
	Error           string   `json:"error,omitempty"`
	DegradedReason  string   `json:"degraded_reason,omitempty"`
	Renditions      []string `json:"renditions,omitempty"`
	OutputDir       string   `json:"output_dir,omitempty"`
	OutputBytes     int64    `json:"output_bytes,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// BuildReport converts stats into a Report for this run.
func (o *Orchestrator) BuildReport(stats RunStats) Report {
	r := Report{
		RunID:           o.runID,
		StartedAt:       stats.Started.UTC(),
		FinishedAt:      stats.Finished.UTC(),
		DurationSeconds: stats.Elapsed().Seconds(),
		DryRun:          o.cfg.DryRun,
		Interrupted:     stats.Interrupted,
		AV1Backend:      string(o.caps.AV1),
		Packager:        string(o.caps.Packager),
		Totals: ReportTotals{
			Total:       stats.Total,
			Succeeded:   stats.Succeeded,
			Degraded:    stats.Degraded,
			Failed:      stats.Failed,
			Skipped:     stats.Skipped,
			InputBytes:  stats.TotalInputBytes,
			OutputBytes: stats.TotalOutputBytes,
		},
		Sources: make([]SourceReport, 0, len(stats.Results)),
	}
	for _, res := range stats.Results {
		sr := SourceReport{
			ID:              res.ID,
			Path:            res.Path,
			Outcome:         res.Outcome(),
			State:           res.State,
			FailedAt:        res.FailedAt,
			OutputDir:       res.OutputDir,
			OutputBytes:     res.OutputBytes,
			DurationSeconds: res.Duration.Seconds(),
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		if res.DegradedErr != nil {
			sr.DegradedReason = res.DegradedErr.Error()
		}
		if res.State != StateFailed && res.State != StateSkipped {
			for _, spec := range res.Ladder.Renditions() {
				sr.Renditions = append(sr.Renditions, spec.ID())
			}
		}
		r.Sources = append(r.Sources, sr)
	}
	return r
}

// WriteReport writes r to path as indented JSON. The file is replaced
// atomically so readers never see a partial report.
func WriteReport(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}
