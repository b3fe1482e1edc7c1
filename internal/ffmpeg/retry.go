package ffmpeg

// RetryAction identifies which fix was applied (or none).
type RetryAction int

const (
	RetryNone          RetryAction = iota
	RetryIncreaseMux               // Raise max_muxing_queue_size to 16384.
	RetryFixTimestamps             // Enable +genpts+discardcorrupt.
)

func (a RetryAction) String() string {
	switch a {
	case RetryIncreaseMux:
		return "increase mux queue"
	case RetryFixTimestamps:
		return "regenerate timestamps"
	}
	return "none"
}

const (
	maxAttempts      = 3
	muxQueueDefault  = 4096
	muxQueueEscalate = 16384
)

// RetryState tracks which fallback fixes have been applied across ffmpeg
// attempts for one invocation.
type RetryState struct {
	Attempt      int
	MaxAttempts  int
	MuxQueueSize int
	TimestampFix bool
}

// NewRetryState returns the initial state: default mux queue, timestamps
// untouched.
func NewRetryState() *RetryState {
	return &RetryState{
		MaxAttempts:  maxAttempts,
		MuxQueueSize: muxQueueDefault,
	}
}

// Advance inspects stderr from a failed run, applies the first matching fix
// not yet applied and returns it. Returns RetryNone when nothing matches or
// the attempt limit is reached.
//
// Pattern evaluation order: mux queue, then timestamps. Only one fix is
// applied per call.
func (s *RetryState) Advance(stderr string) RetryAction {
	s.Attempt++
	if s.Attempt >= s.MaxAttempts {
		return RetryNone
	}
	if s.MuxQueueSize < muxQueueEscalate && MatchMuxQueueOverflow(stderr) {
		s.MuxQueueSize = muxQueueEscalate
		return RetryIncreaseMux
	}
	if !s.TimestampFix && MatchTimestampIssue(stderr) {
		s.TimestampFix = true
		return RetryFixTimestamps
	}
	return RetryNone
}
