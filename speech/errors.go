package speech

import (
	"errors"
	"time"
)

// Common errors for the speech system.
var (
	// Synthesis errors
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	ErrEmptyText       = errors.New("nothing to synthesize")
	ErrUnknownEngine   = errors.New("unknown synthesis engine")
	ErrRateLimited     = errors.New("synthesis rate limit exceeded")
	ErrStreamClosed    = errors.New("synthesis stream closed")

	// Playback errors
	ErrQueueClosed   = errors.New("speak queue is closed")
	ErrUnknownAvatar = errors.New("unknown avatar kind")
	ErrPlayback      = errors.New("playback failed")

	// Controller errors
	ErrControllerBusy = errors.New("a reply is already being spoken")
	ErrStopped        = errors.New("speech was stopped")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("required configuration missing")
)

// IsRecoverableError reports whether the pipeline may keep going after err.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrMissingConfig),
		errors.Is(err, ErrUnknownEngine),
		errors.Is(err, ErrUnknownAvatar),
		errors.Is(err, ErrQueueClosed):
		return false
	}

	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for problems that only skip a single utterance.
	SeverityWarning
	// SeverityError is for errors that prevent normal operation.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SpeechError provides detailed error information.
type SpeechError struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	Severity  ErrorSeverity  // Severity of the error
	Timestamp int64          // Unix timestamp when error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *SpeechError) Error() string {
	if e.Err == nil {
		return "unknown speech error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	if e.Action == "" {
		return e.Component + ": " + e.Err.Error()
	}
	return e.Component + ": " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *SpeechError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *SpeechError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewSpeechError creates a new speech error with context.
func NewSpeechError(err error, component, action string) *SpeechError {
	return &SpeechError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now().Unix(),
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the error severity.
func (e *SpeechError) WithSeverity(severity ErrorSeverity) *SpeechError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *SpeechError) WithContext(key string, value any) *SpeechError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
