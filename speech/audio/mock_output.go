package audio

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// MockCallbacks provides hooks for tests.
type MockCallbacks struct {
	OnPlay func(pcm []byte)
	OnStop func()
}

// MockOutput simulates playback without producing sound. Play lasts as long
// as the audio would, scaled by the speed factor.
type MockOutput struct {
	sampleRate int
	callbacks  MockCallbacks

	mu      sync.Mutex
	volume  float64
	speed   float64
	failErr error
	stopCh  chan struct{}
	closed  bool
	last    []byte
	playing atomic.Bool

	playCount atomic.Int64
	stopCount atomic.Int64
}

// NewMockOutput creates a mock that plays at speed times real time. A
// speed of zero finishes immediately.
func NewMockOutput(sampleRate int, speed float64, callbacks MockCallbacks) *MockOutput {
	return &MockOutput{
		sampleRate: sampleRate,
		callbacks:  callbacks,
		volume:     1.0,
		speed:      speed,
	}
}

// Play simulates playback of pcm.
func (m *MockOutput) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrOutputClosed
	}
	if m.failErr != nil {
		err := m.failErr
		m.mu.Unlock()
		return err
	}
	if m.stopCh != nil {
		close(m.stopCh)
	}
	stop := make(chan struct{})
	m.stopCh = stop
	m.last = bytes.Clone(pcm)
	speed := m.speed
	m.mu.Unlock()

	m.playCount.Add(1)
	m.playing.Store(true)
	defer m.playing.Store(false)
	if m.callbacks.OnPlay != nil {
		m.callbacks.OnPlay(pcm)
	}

	var wait time.Duration
	if speed > 0 {
		wait = time.Duration(float64(Duration(len(pcm), m.sampleRate)) / speed)
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		m.mu.Lock()
		if m.stopCh == stop {
			m.stopCh = nil
		}
		m.mu.Unlock()
		return nil
	case <-stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop interrupts the current Play.
func (m *MockOutput) Stop() {
	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.mu.Unlock()

	m.stopCount.Add(1)
	if m.callbacks.OnStop != nil {
		m.callbacks.OnStop()
	}
}

// SampleRate returns the simulated sample rate.
func (m *MockOutput) SampleRate() int {
	return m.sampleRate
}

// SetVolume records the volume.
func (m *MockOutput) SetVolume(v float64) error {
	if err := validateVolume(v); err != nil {
		return err
	}
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
	return nil
}

// Volume returns the last volume set.
func (m *MockOutput) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetFailure makes every following Play return err. Pass nil to clear.
func (m *MockOutput) SetFailure(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// Close stops playback and rejects further Play calls.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("already closed")
	}
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.closed = true
	return nil
}

// IsPlaying reports whether a Play is in progress.
func (m *MockOutput) IsPlaying() bool {
	return m.playing.Load()
}

// PlayCount returns how many times Play started.
func (m *MockOutput) PlayCount() int64 {
	return m.playCount.Load()
}

// StopCount returns how many times Stop was called.
func (m *MockOutput) StopCount() int64 {
	return m.stopCount.Load()
}

// LastPlayed returns a copy of the last buffer played.
func (m *MockOutput) LastPlayed() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.last)
}
