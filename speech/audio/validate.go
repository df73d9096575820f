package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

const (
	// MinPCMBytes is the smallest buffer worth playing.
	MinPCMBytes = 1024
	// MaxPCMBytes is the largest single buffer accepted.
	MaxPCMBytes = 1 << 20

	// BytesPerSample for mono signed 16-bit PCM.
	BytesPerSample = 2
)

var (
	ErrEmptyAudio    = errors.New("audio data is empty")
	ErrAudioTooShort = errors.New("audio data too short")
	ErrAudioTooLarge = errors.New("audio data too large")
	ErrOddLength     = errors.New("PCM16 data has odd length")
	ErrBadEncoding   = errors.New("invalid base64 audio")
)

// ValidatePCM16 checks that b looks like a playable mono PCM16 buffer.
func ValidatePCM16(b []byte) error {
	switch {
	case len(b) == 0:
		return ErrEmptyAudio
	case len(b) < MinPCMBytes:
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrAudioTooShort, len(b), MinPCMBytes)
	case len(b) > MaxPCMBytes:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrAudioTooLarge, len(b), MaxPCMBytes)
	case len(b)%BytesPerSample != 0:
		return fmt.Errorf("%w: %d bytes", ErrOddLength, len(b))
	}
	return nil
}

// DecodeBase64Audio decodes a base64 audio delta.
func DecodeBase64Audio(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrEmptyAudio
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return b, nil
}

// Duration returns how long n bytes of mono PCM16 last at sampleRate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Silence returns d worth of silent mono PCM16.
func Silence(d time.Duration, sampleRate int) []byte {
	samples := int(d * time.Duration(sampleRate) / time.Second)
	return make([]byte, samples*BytesPerSample)
}
