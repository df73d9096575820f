package avatar

import (
	"context"

	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Live2D is a 2D rigged avatar driven by named expressions.
type Live2D struct {
	speaker
	expressions map[string]string
}

// NewLive2D creates a Live2D avatar. Emotions missing from
// opts.Expressions map to their title-cased name.
func NewLive2D(out audio.Output, rig Rig, opts Options) *Live2D {
	return &Live2D{
		speaker:     newSpeaker(out, rig, opts.Logger, "live2d"),
		expressions: opts.Expressions,
	}
}

// Expression returns the model expression for emotion.
func (l *Live2D) Expression(emotion string) string {
	if e, ok := l.expressions[emotion]; ok {
		return e
	}
	return cases.Title(language.Und).String(emotion)
}

// Play sets the expression for the utterance's emotion and speaks it.
func (l *Live2D) Play(ctx context.Context, data []byte, talk speech.Talk, needsDecode bool) error {
	if talk.Emotion != "" {
		expr := l.Expression(talk.Emotion)
		if err := l.rig.ShowEmotion(ctx, expr); err != nil {
			l.log.Warn("Could not set expression", "expression", expr, "err", err)
		}
	}
	return l.speak(ctx, data, needsDecode)
}

// Stop interrupts the current utterance.
func (l *Live2D) Stop() {
	l.stop()
}

// ResetToNeutral closes the mouth and returns to the idle motion.
func (l *Live2D) ResetToNeutral(ctx context.Context) error {
	l.rig.SetMouthOpen(0)
	return l.rig.Idle(ctx)
}
