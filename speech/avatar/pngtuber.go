package avatar

import (
	"context"
	"errors"
	"time"

	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
)

// DefaultFallbackTimeout bounds a single PNGTuber utterance.
const DefaultFallbackTimeout = 30 * time.Second

// PNGTuber is a sprite avatar that only moves its mouth. Playback errors
// are logged and never fail the utterance, and no utterance outlives the
// fallback timeout.
type PNGTuber struct {
	speaker
	timeout time.Duration
}

// NewPNGTuber creates a PNGTuber avatar.
func NewPNGTuber(out audio.Output, rig Rig, opts Options) *PNGTuber {
	timeout := opts.FallbackTimeout
	if timeout <= 0 {
		timeout = DefaultFallbackTimeout
	}
	return &PNGTuber{
		speaker: newSpeaker(out, rig, opts.Logger, "pngtuber"),
		timeout: timeout,
	}
}

// Play speaks the utterance, giving up after the fallback timeout. Playback
// errors are logged, not returned.
func (p *PNGTuber) Play(ctx context.Context, data []byte, _ speech.Talk, needsDecode bool) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.speak(ctx, data, needsDecode)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		p.log.Debug("Speak canceled")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.log.Warn("Utterance hit fallback timeout", "timeout", p.timeout)
	default:
		p.log.Error("Speak failed", "err", err)
	}
	return nil
}

// Stop halts audio and closes the mouth.
func (p *PNGTuber) Stop() {
	p.stop()
}

// ResetToNeutral closes the mouth.
func (p *PNGTuber) ResetToNeutral(context.Context) error {
	p.rig.SetMouthOpen(0)
	return nil
}
