package speech

import "context"

// UnitKind distinguishes speakable text from opaque code blocks.
type UnitKind int

const (
	// KindSpeech is a sentence-sized piece of text meant to be spoken.
	KindSpeech UnitKind = iota
	// KindCode is the verbatim content of a fenced code block.
	KindCode
)

// String returns the string representation of the kind.
func (k UnitKind) String() string {
	switch k {
	case KindSpeech:
		return "speech"
	case KindCode:
		return "code"
	default:
		return "unknown"
	}
}

// Unit is one segment of a reply, produced in stream order.
type Unit struct {
	Kind    UnitKind
	Emotion string // active emotion tag, empty until a tag is seen
	Text    string

	// Unterminated is set on a code unit whose closing fence never arrived.
	Unterminated bool
}

// Chat log roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleCode      = "code"
)

// SessionID scopes every task that belongs to one logical reply.
type SessionID string

// StyleParams carries renderer hints that travel with an utterance.
type StyleParams struct {
	Style    string
	SpeakerX float64
	SpeakerY float64
}

// Talk describes what the avatar is saying and how.
type Talk struct {
	Emotion string
	Message string
	Style   StyleParams
}

// SpeakTask is one synthesized utterance waiting for playback.
type SpeakTask struct {
	SessionID   SessionID
	Audio       []byte
	Talk        Talk
	NeedsDecode bool
	OnComplete  func()
}

// Callback is a registered drain-completion callback. Handles are compared
// by identity, so registering the same function twice yields two handles.
type Callback struct {
	fn func()
}

// NewCallback wraps fn in a new handle.
func NewCallback(fn func()) *Callback {
	return &Callback{fn: fn}
}

// Call invokes the wrapped function.
func (c *Callback) Call() {
	if c != nil && c.fn != nil {
		c.fn()
	}
}

// ContextKey is the type used for values this package stores in contexts.
type ContextKey string

// SessionKey holds the SessionID of the reply a context belongs to.
const SessionKey ContextKey = "session"

// SessionFromContext returns the session stored by WithSession, if any.
func SessionFromContext(ctx context.Context) (SessionID, bool) {
	id, ok := ctx.Value(SessionKey).(SessionID)
	return id, ok
}

// WithSession returns a copy of ctx carrying id.
func WithSession(ctx context.Context, id SessionID) context.Context {
	return context.WithValue(ctx, SessionKey, id)
}
