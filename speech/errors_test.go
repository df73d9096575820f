package speech

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"synthesis failure", ErrSynthesisFailed, true},
		{"rate limited", ErrRateLimited, true},
		{"playback", ErrPlayback, true},
		{"invalid config", ErrInvalidConfig, false},
		{"unknown engine", ErrUnknownEngine, false},
		{"unknown avatar", ErrUnknownAvatar, false},
		{"queue closed", ErrQueueClosed, false},
		{"wrapped config", fmt.Errorf("load: %w", ErrMissingConfig), false},
		{"wrapped synthesis", fmt.Errorf("engine: %w", ErrSynthesisFailed), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverableError(tt.err); got != tt.want {
				t.Errorf("IsRecoverableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSpeechError(t *testing.T) {
	err := NewSpeechError(ErrSynthesisFailed, "engine", "synthesize").
		WithSeverity(SeverityWarning).
		WithContext("text", "hello")

	if !errors.Is(err, ErrSynthesisFailed) {
		t.Error("SpeechError should unwrap to its cause")
	}
	if got, want := err.Error(), "engine: synthesize: speech synthesis failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want warning", err.Severity)
	}
	if err.Context["text"] != "hello" {
		t.Errorf("Context[text] = %v, want hello", err.Context["text"])
	}
	if !err.IsRecoverable() {
		t.Error("synthesis failures should be recoverable")
	}

	var se *SpeechError
	wrapped := fmt.Errorf("reply: %w", err)
	if !errors.As(wrapped, &se) {
		t.Fatal("errors.As should find the SpeechError")
	}
	if se.Component != "engine" {
		t.Errorf("Component = %q, want engine", se.Component)
	}
}

func TestSpeechErrorMessageFallbacks(t *testing.T) {
	if got := (&SpeechError{}).Error(); got != "unknown speech error" {
		t.Errorf("empty error = %q", got)
	}
	if got := (&SpeechError{Err: ErrStopped}).Error(); got != "speech was stopped" {
		t.Errorf("bare error = %q", got)
	}
	if got := (&SpeechError{Err: ErrStopped, Component: "queue"}).Error(); got != "queue: speech was stopped" {
		t.Errorf("component error = %q", got)
	}
}

func TestSeverityString(t *testing.T) {
	tests := map[ErrorSeverity]string{
		SeverityInfo:      "info",
		SeverityWarning:   "warning",
		SeverityError:     "error",
		SeverityCritical:  "critical",
		ErrorSeverity(99): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
