package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockOutput_PlayWaitsForDuration(t *testing.T) {
	var played []byte
	m := NewMockOutput(24000, 1.0, MockCallbacks{OnPlay: func(pcm []byte) { played = pcm }})
	defer m.Close()

	pcm := Silence(50*time.Millisecond, 24000)
	start := time.Now()
	if err := m.Play(context.Background(), pcm); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Play returned after %v, want about 50ms", elapsed)
	}
	if len(played) != len(pcm) || m.PlayCount() != 1 {
		t.Errorf("OnPlay saw %d bytes, PlayCount = %d", len(played), m.PlayCount())
	}
	if m.IsPlaying() {
		t.Error("IsPlaying after Play returned")
	}
}

func TestMockOutput_StopInterrupts(t *testing.T) {
	stopped := make(chan struct{}, 1)
	m := NewMockOutput(24000, 1.0, MockCallbacks{OnStop: func() { stopped <- struct{}{} }})
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Play(context.Background(), Silence(5*time.Second, 24000)) }()

	waitUntil(t, m.IsPlaying)
	m.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("stopped Play returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt Play")
	}
	<-stopped
	if m.StopCount() != 1 {
		t.Errorf("StopCount = %d", m.StopCount())
	}
}

func TestMockOutput_ContextCancel(t *testing.T) {
	m := NewMockOutput(24000, 1.0, MockCallbacks{})
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Play(ctx, Silence(5*time.Second, 24000))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Play() = %v, want deadline exceeded", err)
	}
}

func TestMockOutput_FailureAndClose(t *testing.T) {
	m := NewMockOutput(24000, 0, MockCallbacks{})
	boom := errors.New("device lost")

	m.SetFailure(boom)
	if err := m.Play(context.Background(), []byte{0, 0}); !errors.Is(err, boom) {
		t.Errorf("Play() = %v, want injected error", err)
	}
	m.SetFailure(nil)
	if err := m.Play(context.Background(), []byte{0, 0}); err != nil {
		t.Errorf("Play() after clearing failure = %v", err)
	}
	if err := m.Play(context.Background(), nil); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Play(nil) = %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := m.Play(context.Background(), []byte{0, 0}); !errors.Is(err, ErrOutputClosed) {
		t.Errorf("Play after Close = %v", err)
	}
	if err := m.Close(); err == nil {
		t.Error("second Close should fail")
	}
}

func TestMockOutput_Volume(t *testing.T) {
	m := NewMockOutput(24000, 0, MockCallbacks{})
	if err := m.SetVolume(0.25); err != nil || m.Volume() != 0.25 {
		t.Errorf("SetVolume(0.25) = %v, Volume = %v", err, m.Volume())
	}
	if err := m.SetVolume(1.5); err == nil {
		t.Error("SetVolume(1.5) should fail")
	}
	if m.SampleRate() != 24000 {
		t.Errorf("SampleRate = %d", m.SampleRate())
	}
}

func TestOutputConfigValidate(t *testing.T) {
	if err := DefaultOutputConfig().validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if err := (OutputConfig{SampleRate: 100, Volume: 1}).validate(); err == nil {
		t.Error("low sample rate accepted")
	}
	if err := (OutputConfig{SampleRate: 24000, Volume: -1}).validate(); err == nil {
		t.Error("negative volume accepted")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
