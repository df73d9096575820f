package speech

import (
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Emotions understood by every avatar.
const (
	EmotionNeutral   = "neutral"
	EmotionHappy     = "happy"
	EmotionAngry     = "angry"
	EmotionSad       = "sad"
	EmotionRelaxed   = "relaxed"
	EmotionSurprised = "surprised"
)

// KnownEmotions lists the emotions in their canonical order.
var KnownEmotions = []string{
	EmotionNeutral,
	EmotionHappy,
	EmotionAngry,
	EmotionSad,
	EmotionRelaxed,
	EmotionSurprised,
}

// ResolveEmotion maps a free-form tag onto one of KnownEmotions. Tags that
// are close enough, like "surprise" or "hapy", resolve to the nearest
// emotion; anything else is neutral.
func ResolveEmotion(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return EmotionNeutral
	}
	if slices.Contains(KnownEmotions, tag) {
		return tag
	}

	matches := fuzzy.Find(tag, KnownEmotions)
	if len(matches) == 0 {
		return EmotionNeutral
	}
	return matches[0].Str
}

// TalkFor builds the Talk metadata for a speech unit.
func TalkFor(u Unit, message string) Talk {
	return Talk{
		Emotion: ResolveEmotion(u.Emotion),
		Message: message,
	}
}
