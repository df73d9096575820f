package avatar

import (
	"context"

	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
)

// VRM is a 3D model avatar. It shows the emotion of each utterance and
// resets by showing neutral.
type VRM struct {
	speaker
}

// NewVRM creates a VRM avatar.
func NewVRM(out audio.Output, rig Rig, opts Options) *VRM {
	return &VRM{speaker: newSpeaker(out, rig, opts.Logger, "vrm")}
}

// Play shows the utterance's emotion and speaks it with lip sync.
func (v *VRM) Play(ctx context.Context, data []byte, talk speech.Talk, needsDecode bool) error {
	if err := v.rig.ShowEmotion(ctx, talk.Emotion); err != nil {
		v.log.Warn("Could not show emotion", "emotion", talk.Emotion, "err", err)
	}
	return v.speak(ctx, data, needsDecode)
}

// Stop interrupts the current utterance.
func (v *VRM) Stop() {
	v.stop()
}

// ResetToNeutral closes the mouth and shows the neutral emotion.
func (v *VRM) ResetToNeutral(ctx context.Context) error {
	v.rig.SetMouthOpen(0)
	return v.rig.ShowEmotion(ctx, speech.EmotionNeutral)
}
