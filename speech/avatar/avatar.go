// Package avatar adapts the speak queue to the character renderers. Every
// avatar plays decoded PCM on an audio.Output and drives a Rig, the
// boundary to whatever actually draws the character.
package avatar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
)

// Rig is the renderer boundary.
type Rig interface {
	// ShowEmotion switches the expression.
	ShowEmotion(ctx context.Context, emotion string) error
	// SetMouthOpen sets how far the mouth is open, from 0 to 1.
	SetMouthOpen(v float64)
	// Idle returns the character to its idle motion.
	Idle(ctx context.Context) error
}

// Kind selects an avatar implementation.
type Kind string

const (
	KindVRM      Kind = "vrm"
	KindLive2D   Kind = "live2d"
	KindPNGTuber Kind = "pngtuber"
)

// Options are shared by every avatar.
type Options struct {
	// FallbackTimeout bounds a PNGTuber utterance.
	FallbackTimeout time.Duration
	// Expressions maps emotions to Live2D expression names.
	Expressions map[string]string
	Logger      *log.Logger
}

// New creates the avatar named by kind.
func New(kind Kind, out audio.Output, rig Rig, opts Options) (speech.PlaybackAdapter, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindVRM:
		return NewVRM(out, rig, opts), nil
	case KindLive2D:
		return NewLive2D(out, rig, opts), nil
	case KindPNGTuber:
		return NewPNGTuber(out, rig, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", speech.ErrUnknownAvatar, kind)
	}
}

// speaker plays audio while moving the rig's mouth along the lip sync
// envelope. The avatars embed it.
type speaker struct {
	out audio.Output
	rig Rig
	log *log.Logger
}

func newSpeaker(out audio.Output, rig Rig, l *log.Logger, prefix string) speaker {
	if l == nil {
		l = log.WithPrefix(prefix)
	}
	return speaker{out: out, rig: rig, log: l}
}

// speak decodes the audio if needed and plays it with lip sync. The mouth
// is closed when it returns.
func (s speaker) speak(ctx context.Context, data []byte, needsDecode bool) error {
	if len(data) == 0 {
		return nil
	}

	pcm, err := audio.Prepare(data, needsDecode, s.out.SampleRate())
	if err != nil {
		return fmt.Errorf("%w: %v", speech.ErrPlayback, err)
	}
	if len(pcm) == 0 {
		return nil
	}

	env := audio.Envelope(pcm, s.out.SampleRate())
	done := make(chan struct{})
	animDone := make(chan struct{})
	go func() {
		defer close(animDone)
		s.animate(env, done)
	}()

	err = s.out.Play(ctx, pcm)
	close(done)
	<-animDone
	s.rig.SetMouthOpen(0)
	return err
}

func (s speaker) animate(env []float64, done <-chan struct{}) {
	if len(env) == 0 {
		return
	}
	ticker := time.NewTicker(audio.FrameInterval)
	defer ticker.Stop()

	s.rig.SetMouthOpen(env[0])
	for i := 1; i < len(env); i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.rig.SetMouthOpen(env[i])
		}
	}
}

func (s speaker) stop() {
	s.out.Stop()
	s.rig.SetMouthOpen(0)
}

// MouthState names the sprite a mouth value maps to.
func MouthState(v float64) string {
	switch {
	case v < 0.2:
		return "closed"
	case v < 0.6:
		return "half"
	default:
		return "open"
	}
}
