// Package mock provides a synthesis engine that produces PCM without any
// external service.
package mock

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/speakstream/speech"
)

const (
	chunkSize  = 4096
	chunkDelay = 5 * time.Millisecond
	toneHz     = 220
)

// Engine generates PCM16 whose length follows the text at a speaking rate.
type Engine struct {
	sampleRate int

	mu          sync.Mutex
	delay       time.Duration
	wpm         int
	tone        bool
	failureRate float64
	failErr     error
	rng         *rand.Rand
	callCount   int
}

var _ speech.StreamingSynthesizer = (*Engine)(nil)

// New creates a mock engine producing mono PCM16 at sampleRate.
func New(cfg speech.MockConfig, sampleRate int) *Engine {
	wpm := cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	return &Engine{
		sampleRate:  sampleRate,
		delay:       cfg.GenerationDelay,
		wpm:         wpm,
		tone:        true,
		failureRate: cfg.FailureRate,
		rng:         rand.New(rand.NewPCG(1, 2)),
	}
}

func (e *Engine) Name() string {
	return "mock"
}

// Synthesize waits the generation delay and returns the whole utterance.
func (e *Engine) Synthesize(ctx context.Context, text, emotion string) ([]byte, error) {
	if err := e.begin(text); err != nil {
		return nil, err
	}
	if err := sleep(ctx, e.getDelay()); err != nil {
		return nil, err
	}
	return e.generate(text), nil
}

// Stream delivers the utterance in small chunks.
func (e *Engine) Stream(ctx context.Context, text, emotion string, sink func([]byte)) error {
	if err := e.begin(text); err != nil {
		return err
	}
	if err := sleep(ctx, e.getDelay()); err != nil {
		return err
	}

	pcm := e.generate(text)
	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		sink(pcm[start:end])
		if err := sleep(ctx, chunkDelay); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) begin(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callCount++

	if text == "" {
		return speech.ErrEmptyText
	}
	if e.failErr != nil {
		return fmt.Errorf("%w: %w", speech.ErrSynthesisFailed, e.failErr)
	}
	if e.failureRate > 0 && e.rng.Float64() < e.failureRate {
		return fmt.Errorf("%w: simulated failure", speech.ErrSynthesisFailed)
	}
	return nil
}

func (e *Engine) generate(text string) []byte {
	e.mu.Lock()
	tone := e.tone
	e.mu.Unlock()

	samples := int(e.EstimateDuration(text).Seconds() * float64(e.sampleRate))
	pcm := make([]byte, samples*2)
	if !tone {
		return pcm
	}
	for i := 0; i < samples; i++ {
		v := 0.3 * math.Sin(2*math.Pi*toneHz*float64(i)/float64(e.sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm
}

// EstimateDuration estimates speaking duration for text, about five
// characters per word.
func (e *Engine) EstimateDuration(text string) time.Duration {
	e.mu.Lock()
	wpm := e.wpm
	e.mu.Unlock()

	words := max(utf8.RuneCountInString(text)/5, 1)
	seconds := float64(words) * 60.0 / float64(wpm)
	return time.Duration(seconds * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) getDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delay
}

// Test control methods

// SetDelay sets the simulated generation delay.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

// SetTone switches between a sine tone and silence.
func (e *Engine) SetTone(on bool) {
	e.mu.Lock()
	e.tone = on
	e.mu.Unlock()
}

// SetFailure makes every call fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	e.failErr = err
	e.mu.Unlock()
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.SetFailure(nil)
}

// CallCount returns the number of Synthesize and Stream calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}
