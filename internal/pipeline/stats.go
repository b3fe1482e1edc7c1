package pipeline

import (
	"time"

	"github.com/Carbocode/2mpeg-dash/internal/planner"
)

// State is a source's position in the per-source state machine:
// queued → probed → planned → encoded → packaged → done, or failed at the
// stage being attempted. Skipped sources never leave queued.
type State string

const (
	StateQueued   State = "queued"
	StateProbed   State = "probed"
	StatePlanned  State = "planned"
	StateEncoded  State = "encoded"
	StatePackaged State = "packaged"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateSkipped  State = "skipped"
)

// Stage names the unit of work a source was in when it failed.
type Stage string

const (
	StageProbe   Stage = "probe"
	StagePlan    Stage = "plan"
	StageEncode  Stage = "encode"
	StageAudio   Stage = "audio"
	StagePackage Stage = "package"
)

// Outcome is the summary bucket a finished source falls into.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// SourceResult is the terminal record of one source.
type SourceResult struct {
	ID       string
	Path     string
	State    State
	FailedAt Stage // Set when State is failed.
	Err      error

	// Degraded is set when AV1 was dropped after a failed AV1 encode.
	Degraded    bool
	DegradedErr error

	Ladder      planner.Ladder
	OutputDir   string
	OutputBytes int64
	InputBytes  int64
	DryRun      bool
	Duration    time.Duration
}

// Outcome classifies the result for the summary.
func (r SourceResult) Outcome() Outcome {
	switch {
	case r.State == StateSkipped:
		return OutcomeSkipped
	case r.State == StateFailed:
		return OutcomeFailed
	case r.Degraded:
		return OutcomeDegraded
	}
	return OutcomeSucceeded
}

// RunStats aggregates a batch.
type RunStats struct {
	Total            int
	Succeeded        int
	Degraded         int
	Failed           int
	Skipped          int
	Interrupted      bool // Cancelled before every source finished.
	TotalInputBytes  int64
	TotalOutputBytes int64
	Results          []SourceResult // Discovery order.
	Started          time.Time
	Finished         time.Time
}

// add folds one result into the counters.
func (s *RunStats) add(r SourceResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome() {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeDegraded:
		s.Degraded++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
	if r.State == StateDone && !r.DryRun {
		s.TotalInputBytes += r.InputBytes
		s.TotalOutputBytes += r.OutputBytes
	}
}

// ExitCode is 0 when every source succeeded (possibly degraded) or was
// skipped, and 1 when any source failed or the batch was interrupted.
func (s *RunStats) ExitCode() int {
	if s.Failed > 0 || s.Interrupted {
		return 1
	}
	return 0
}

// Elapsed returns the batch wall time.
func (s *RunStats) Elapsed() time.Duration {
	return s.Finished.Sub(s.Started)
}
