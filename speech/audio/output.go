// Package audio moves PCM between synthesis and the speakers: it batches
// streamed chunks, decodes encoded audio, computes lip sync envelopes and
// plays mono PCM16.
package audio

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrOutputClosed = errors.New("audio output is closed")
	ErrNoAudio      = errors.New("audio playback not available")
)

// Output plays mono PCM16LE.
type Output interface {
	// Play blocks until the buffer finished playing, Stop was called or
	// ctx is done.
	Play(ctx context.Context, pcm []byte) error
	// Stop interrupts the current Play.
	Stop()
	SampleRate() int
	SetVolume(v float64) error
	Close() error
}

// OutputConfig configures an Output.
type OutputConfig struct {
	SampleRate int
	Volume     float64
}

// DefaultOutputConfig returns mono 24 kHz at full volume.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		SampleRate: 24000,
		Volume:     1.0,
	}
}

func (c OutputConfig) validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample rate must be between 8000 and 192000 Hz, got %d", c.SampleRate)
	}
	return validateVolume(c.Volume)
}

func validateVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", v)
	}
	return nil
}

var (
	_ Output = (*OtoOutput)(nil)
	_ Output = (*MockOutput)(nil)
)
