package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Settings errors
	ErrSettingsNotFound = "SETTINGS_NOT_FOUND"
	ErrSettingsInvalid  = "SETTINGS_INVALID"
	ErrSettingsExists   = "SETTINGS_EXISTS"
	ErrFlagsInvalid     = "FLAGS_INVALID"

	// File errors
	ErrFileNotFound   = "FILE_NOT_FOUND"
	ErrFileExists     = "FILE_EXISTS"
	ErrFileReadError  = "FILE_READ_ERROR"
	ErrFileWriteError = "FILE_WRITE_ERROR"
	ErrParseFailed    = "PARSE_FAILED"

	// Run errors
	ErrCheckpointError = "CHECKPOINT_ERROR"
	ErrRunInterrupted  = "RUN_INTERRUPTED"
	ErrFindings        = "FINDINGS"

	// History errors
	ErrDatabaseError = "DATABASE_ERROR"
	ErrRunNotFound   = "RUN_NOT_FOUND"
	ErrRunAmbiguous  = "RUN_AMBIGUOUS"

	// Input errors
	ErrInvalidInput = "INVALID_INPUT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnCheckpointResumed = "CHECKPOINT_RESUMED"
	WarnLogNotWritten     = "LOG_NOT_WRITTEN"
	WarnHistoryNotSaved   = "HISTORY_NOT_SAVED"
	WarnCheckpointKept    = "CHECKPOINT_NOT_DISCARDED"
)
