package speech

import "context"

// Synthesizer turns one utterance into audio bytes.
type Synthesizer interface {
	// Synthesize returns the audio for text. A nil result with a nil error
	// means the engine produced nothing for this text.
	Synthesize(ctx context.Context, text, emotion string) ([]byte, error)

	// Name identifies the engine in logs and cache keys.
	Name() string
}

// StreamingSynthesizer delivers raw PCM16 fragments as they are produced.
type StreamingSynthesizer interface {
	Synthesizer

	// Stream calls sink with every audio fragment for text and returns once
	// the engine signals the end of the utterance.
	Stream(ctx context.Context, text, emotion string, sink func([]byte)) error
}

// PlaybackAdapter is the avatar renderer that plays audio and shows
// expressions.
type PlaybackAdapter interface {
	// Play blocks until the audio finished playing or ctx is done.
	Play(ctx context.Context, audio []byte, talk Talk, needsDecode bool) error

	// Stop physically interrupts whatever is playing.
	Stop()

	// ResetToNeutral returns the avatar to its idle posture.
	ResetToNeutral(ctx context.Context) error
}

// ChatLog records the reply as it is spoken.
type ChatLog interface {
	Upsert(id, role, content string)
}

// TextSegmenter cuts a fragment stream into units.
type TextSegmenter interface {
	Feed(fragment string) []Unit
	Finish() []Unit
	Reset()
}

// SpeakQueue plays tasks in order against a PlaybackAdapter.
type SpeakQueue interface {
	AddTask(task SpeakTask)
	CheckSessionID(id SessionID)
	StopAll()
	OnSpeakCompletion(fn func()) *Callback
	RemoveSpeakCompletionCallback(cb *Callback)
}

// SessionSource hands out a fresh SessionID for every reply.
type SessionSource interface {
	Next() SessionID
}

// EncodedSynthesizer is implemented by synthesizers whose output is a
// container format such as WAV or MP3 rather than raw PCM16.
type EncodedSynthesizer interface {
	Synthesizer
	NeedsDecode() bool
}

// NeedsDecode reports whether audio from s must be decoded before playback.
func NeedsDecode(s Synthesizer) bool {
	e, ok := s.(EncodedSynthesizer)
	return ok && e.NeedsDecode()
}
