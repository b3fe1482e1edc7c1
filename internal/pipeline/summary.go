package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/Carbocode/2mpeg-dash/internal/display"
	"github.com/Carbocode/2mpeg-dash/internal/logging"
)

// MIMEHint is the content-type mapping a web server needs to serve the
// published packages.
const MIMEHint = ".mpd=application/dash+xml  .m4s=video/iso.segment"

// LogSummary logs the batch totals, then one line per degraded or failed
// source, then the serving hint when anything was published.
func LogSummary(log zerolog.Logger, stats RunStats) {
	log.Info().
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("degraded", stats.Degraded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Dur(logging.FieldDuration, stats.Elapsed()).
		Msg("batch finished")

	published := 0
	for _, r := range stats.Results {
		switch r.Outcome() {
		case OutcomeFailed:
			log.Error().
				Str(logging.FieldSource, r.ID).
				Str(logging.FieldStage, string(r.FailedAt)).
				Err(r.Err).
				Msg("failed")
		case OutcomeDegraded:
			log.Warn().
				Str(logging.FieldSource, r.ID).
				Err(r.DegradedErr).
				Msg("degraded (AV1 dropped)")
			published++
		case OutcomeSucceeded:
			if !r.DryRun {
				published++
			}
		}
	}

	if stats.Interrupted {
		log.Warn().Msg("interrupted; unfinished sources were not published")
	}
	if published > 0 {
		log.Info().
			Str("output", display.FormatBytes(stats.TotalOutputBytes)).
			Str("input", display.FormatBytes(stats.TotalInputBytes)).
			Msg("published")
		log.Info().Msg("Server MIME: " + MIMEHint)
	}
}
