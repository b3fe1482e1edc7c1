package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Carbocode/2mpeg-dash/internal/command"
	"github.com/Carbocode/2mpeg-dash/internal/planner"
)

// Reason classifies why an encode failed.
type Reason string

const (
	ReasonMissingEncoder  Reason = "missing-encoder"
	ReasonInvalidArgument Reason = "invalid-argument"
	ReasonIO              Reason = "io"
	ReasonInterrupted     Reason = "interrupted"
	ReasonTimeout         Reason = "timeout"
	ReasonMissingOutput   Reason = "missing-output"
	ReasonOther           Reason = "other"
)

// EncodeError reports a failed family encode or audio extraction. An AV1
// EncodeError degrades the source; any other family fails it.
type EncodeError struct {
	Source string
	Family planner.Family
	Reason Reason
	Stderr string // Tail of ffmpeg's stderr, if any.
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s %s (%s): %v", e.Source, e.Family, e.Reason, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Pre-compiled regexes for classifying ffmpeg stderr output. Classify checks
// them in declaration order.
var (
	reMissingEncoder = regexp.MustCompile(
		`(?i)Unknown encoder|Encoder .* not found|encoder not found|` +
			`Automatic encoder selection failed`)

	reInvalidArgument = regexp.MustCompile(
		`(?i)Unrecognized option|Option .* not found|Error parsing|` +
			`Invalid argument|No such filter|Error initializing filter|` +
			`Error (opening|initializing) output stream|height not divisible by 2`)

	reIOError = regexp.MustCompile(
		`(?i)No such file or directory|Permission denied|No space left on device|` +
			`Input/output error|Invalid data found when processing input|moov atom not found|` +
			`Read-only file system`)

	reInterrupted = regexp.MustCompile(
		`(?i)received signal \d+|Exiting normally, received signal`)

	reMuxQueueOverflow = regexp.MustCompile(
		`Too many packets buffered for output stream`)

	reTimestampIssue = regexp.MustCompile(
		`(?i)Non-monotonous DTS|non monotonically increasing dts|` +
			`invalid, non monotonically increasing dts|` +
			`DTS .*out of order|PTS .*out of order|` +
			`pts has no value|missing PTS|Timestamps are unset`)
)

// Classify maps a runner error and ffmpeg stderr to a Reason. Cancellation
// and timeouts are recognized from err; everything else from stderr.
func Classify(err error, stderr string) Reason {
	switch {
	case errors.Is(err, command.ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonInterrupted
	case reMissingEncoder.MatchString(stderr):
		return ReasonMissingEncoder
	case reInvalidArgument.MatchString(stderr):
		return ReasonInvalidArgument
	case reIOError.MatchString(stderr):
		return ReasonIO
	case reInterrupted.MatchString(stderr):
		return ReasonInterrupted
	}
	return ReasonOther
}

// MatchMuxQueueOverflow reports whether stderr contains a mux queue overflow.
func MatchMuxQueueOverflow(stderr string) bool {
	return reMuxQueueOverflow.MatchString(stderr)
}

// MatchTimestampIssue reports whether stderr contains a timestamp discontinuity.
func MatchTimestampIssue(stderr string) bool {
	return reTimestampIssue.MatchString(stderr)
}
