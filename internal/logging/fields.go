package logging

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID     = "run_id"
	FieldSource    = "source"
	FieldComponent = "component"

	// Pipeline fields
	FieldStage    = "stage"
	FieldFamily   = "family"
	FieldBackend  = "backend"
	FieldPackager = "packager"

	// Media fields
	FieldHeight  = "height"
	FieldFPS     = "fps"
	FieldBitrate = "bitrate"
	FieldCRF     = "crf"
	FieldGOP     = "gop"

	// Path fields
	FieldPath      = "path"
	FieldFinalPath = "final_path"

	// Process fields
	FieldCommand  = "cmd"
	FieldExitCode = "exit_code"
	FieldDuration = "duration"
)
