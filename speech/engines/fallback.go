// Package engines selects and combines synthesis engines.
package engines

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
)

// DefaultMaxFailures is how many consecutive primary failures switch a
// FallbackEngine over.
const DefaultMaxFailures = 3

// FallbackEngine wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently. It always returns
// raw PCM16, decoding whichever engine produced encoded audio.
type FallbackEngine struct {
	primary       speech.Synthesizer
	fallback      speech.Synthesizer
	sampleRate    int
	maxFailures   int
	failures      int
	usingFallback bool
	mu            sync.Mutex
	log           *log.Logger
}

var _ speech.Synthesizer = (*FallbackEngine)(nil)

// NewFallbackEngine creates an engine that switches to fallback after
// maxFailures consecutive primary failures.
func NewFallbackEngine(primary, fallback speech.Synthesizer, maxFailures, sampleRate int) *FallbackEngine {
	if maxFailures < 1 {
		maxFailures = DefaultMaxFailures
	}
	return &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		sampleRate:  sampleRate,
		maxFailures: maxFailures,
		log:         log.WithPrefix("fallback"),
	}
}

func (f *FallbackEngine) Name() string {
	return f.primary.Name() + "+" + f.fallback.Name()
}

// Synthesize generates audio using the active engine.
func (f *FallbackEngine) Synthesize(ctx context.Context, text, emotion string) ([]byte, error) {
	f.mu.Lock()
	using := f.usingFallback
	f.mu.Unlock()

	if using {
		return f.run(ctx, f.fallback, text, emotion)
	}

	pcm, err := f.run(ctx, f.primary, text, emotion)
	if err == nil {
		f.mu.Lock()
		if f.failures > 0 {
			f.log.Info("Primary engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return pcm, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.mu.Lock()
	f.failures++
	failures := f.failures
	switched := failures >= f.maxFailures && !f.usingFallback
	if switched {
		f.usingFallback = true
	}
	f.mu.Unlock()

	f.log.Warn("Primary engine failed", "attempt", failures, "max", f.maxFailures, "err", err)
	if failures < f.maxFailures {
		return nil, err
	}
	if switched {
		f.log.Warn("Switching to fallback engine", "engine", f.fallback.Name())
	}

	pcm, ferr := f.run(ctx, f.fallback, text, emotion)
	if ferr != nil {
		return nil, fmt.Errorf("both engines failed: %w", ferr)
	}
	return pcm, nil
}

func (f *FallbackEngine) run(ctx context.Context, s speech.Synthesizer, text, emotion string) ([]byte, error) {
	data, err := s.Synthesize(ctx, text, emotion)
	if err != nil || len(data) == 0 || !speech.NeedsDecode(s) {
		return data, err
	}
	pcm, err := audio.Decode(data, f.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", speech.ErrSynthesisFailed, s.Name(), err)
	}
	return pcm, nil
}

// Reset goes back to the primary engine.
func (f *FallbackEngine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = 0
	f.usingFallback = false
	f.log.Info("Reset to primary engine")
}

// Status describes the active engine.
func (f *FallbackEngine) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usingFallback {
		return fmt.Sprintf("Using fallback engine (primary failed %d times)", f.failures)
	}
	return fmt.Sprintf("Using primary engine (failures: %d/%d)", f.failures, f.maxFailures)
}
