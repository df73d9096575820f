// Package segment cuts a stream of AI text fragments into speakable units.
//
// The segmenter is a small lexer. Its grammar is
//
//	stream   := (speech | fence)*
//	fence    := "```" langline? code "```"
//	langline := identifier? "\n"
//	speech   := (tag | sentence)*
//	tag      := "[" blank* identifier blank* "]"
//	sentence := text up to a boundary
//
// A boundary is a short terminator (. ! ? 。 ！ ？ ． or newline) while the
// unit is at most ShortMax runes long, or any terminator including the comma
// class (, 、 ，) once the unit is at least LongMin runes long. The start of
// a tag is also a boundary. Terminator runs and closing quotes that follow
// a boundary stay with the unit, and a '.' between two digits is never a
// boundary.
//
// Nothing is emitted until it is fully determined by the input seen so far,
// so the units produced do not depend on how the text was split into
// fragments.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
)

const (
	// DefaultShortMax is the longest unit that ends at a short terminator
	// under the short rule.
	DefaultShortMax = 19
	// DefaultLongMin is the shortest unit that may end at a comma.
	DefaultLongMin = 20
	// MaxTagLength bounds the identifier inside an emotion tag.
	MaxTagLength = 32

	fence = "```"
)

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithCutoffs sets the short and long sentence length cutoffs.
func WithCutoffs(shortMax, longMin int) Option {
	return func(s *Segmenter) {
		s.shortMax = shortMax
		s.longMin = longMin
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Segmenter) {
		s.log = l
	}
}

// Segmenter turns fragments into units. It is not safe for concurrent use.
type Segmenter struct {
	shortMax int
	longMin  int
	log      *log.Logger

	pending []rune
	partial []byte // trailing bytes of a rune split across fragments
	emotion string
	final   bool

	inCode      bool
	langPending bool // the opening fence line has not been inspected yet
	codeScan    int  // where the search for the closing fence resumes
}

// New creates a Segmenter with the default cutoffs.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		shortMax: DefaultShortMax,
		longMin:  DefaultLongMin,
		log:      log.WithPrefix("segment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emotion returns the active emotion tag.
func (s *Segmenter) Emotion() string {
	return s.emotion
}

// InCode reports whether the segmenter is inside a code fence.
func (s *Segmenter) InCode() bool {
	return s.inCode
}

// Feed appends a fragment and returns every unit that is now complete.
func (s *Segmenter) Feed(fragment string) []speech.Unit {
	if fragment == "" {
		return nil
	}

	data := append(s.partial, fragment...)
	complete, rest := splitIncomplete(data)
	s.partial = append([]byte(nil), rest...)
	s.pending = append(s.pending, []rune(string(complete))...)

	return s.drain(s.step)
}

// Finish flushes whatever is left at the end of the stream and resets the
// segmenter for the next stream.
func (s *Segmenter) Finish() []speech.Unit {
	if len(s.partial) > 0 {
		s.pending = append(s.pending, []rune(string(s.partial))...)
		s.partial = nil
	}

	s.final = true
	units := s.drain(s.step)
	s.Reset()
	return units
}

// Reset discards all buffered input and state.
func (s *Segmenter) Reset() {
	s.pending = nil
	s.partial = nil
	s.emotion = ""
	s.final = false
	s.inCode = false
	s.langPending = false
	s.codeScan = 0
}

// drain runs next until it stops making progress. A step that claims
// progress without shrinking the buffer would spin forever, so the whole
// buffer is emitted as one unit instead.
func (s *Segmenter) drain(next func() ([]speech.Unit, bool)) []speech.Unit {
	var out []speech.Unit
	for {
		before := len(s.pending)
		units, progressed := next()
		out = append(out, units...)
		if !progressed {
			return out
		}
		if len(s.pending) >= before {
			s.log.Error("segmenter stalled, forcing out pending text", "runes", len(s.pending))
			if u, ok := s.forceEmit(); ok {
				out = append(out, u)
			}
			return out
		}
	}
}

func (s *Segmenter) forceEmit() (speech.Unit, bool) {
	kind := speech.KindSpeech
	if s.inCode {
		kind = speech.KindCode
	}
	text := strings.TrimSpace(string(s.pending))
	s.pending = s.pending[:0]
	s.inCode = false
	s.langPending = false
	s.codeScan = 0
	if text == "" {
		return speech.Unit{}, false
	}
	return speech.Unit{Kind: kind, Emotion: s.emotion, Text: text, Unterminated: kind == speech.KindCode}, true
}

// step extracts at most one unit. It reports false when nothing more can
// be decided without further input.
func (s *Segmenter) step() ([]speech.Unit, bool) {
	if s.inCode {
		return s.codeStep()
	}
	return s.speechStep()
}

func (s *Segmenter) speechStep() ([]speech.Unit, bool) {
	lead := 0
	for lead < len(s.pending) && unicode.IsSpace(s.pending[lead]) {
		lead++
	}
	if lead > 0 {
		s.consume(lead)
		return nil, true
	}

	p := s.pending
	for j := 0; j < len(p); j++ {
		r := p[j]
		switch {
		case r == '`':
			n := 1
			for j+n < len(p) && p[j+n] == '`' && n < len(fence) {
				n++
			}
			if n >= len(fence) {
				units := s.cut(j, j+len(fence))
				s.inCode = true
				s.langPending = true
				s.codeScan = 0
				return units, true
			}
			if j+n == len(p) && !s.final {
				return nil, false
			}
			j += n - 1

		case r == '[':
			end, ident, state := scanTag(p, j, s.final)
			switch state {
			case tagIncomplete:
				return nil, false
			case tagValid:
				if j == 0 {
					s.emotion = ident
					s.consume(end)
					return nil, true
				}
				return s.cut(j, j), true
			}

		case r == '\n':
			return s.cut(j, j+1), true

		case s.isBoundary(p, j):
			if r == '.' && j > 0 && isDigit(p[j-1]) {
				if j+1 == len(p) && !s.final {
					return nil, false
				}
				if j+1 < len(p) && isDigit(p[j+1]) {
					continue
				}
			}
			end := j + 1
			for end < len(p) && isTrailing(p[end]) {
				end++
			}
			if end == len(p) && !s.final {
				return nil, false
			}
			return s.cut(end, end), true
		}
	}

	if s.final && len(p) > 0 {
		return s.cut(len(p), len(p)), true
	}
	return nil, false
}

// isBoundary applies the dual-length rule to the rune at j. The unit
// starts at index 0, so j+1 is its length in runes.
func (s *Segmenter) isBoundary(p []rune, j int) bool {
	length := j + 1
	switch {
	case isShortTerminator(p[j]):
		return length <= s.shortMax || length >= s.longMin
	case isCommaClass(p[j]):
		return length >= s.longMin
	}
	return false
}

func (s *Segmenter) codeStep() ([]speech.Unit, bool) {
	p := s.pending
	closing := indexFence(p, s.codeScan)

	if s.langPending {
		nl := indexRune(p, '\n')
		switch {
		case nl >= 0 && (closing < 0 || nl < closing):
			s.langPending = false
			if isLangLine(p[:nl]) {
				s.consume(nl + 1)
				return nil, true
			}
		case closing >= 0 || s.final:
			s.langPending = false
		default:
			return nil, false
		}
	}

	if closing < 0 {
		if !s.final {
			s.codeScan = max(0, len(p)-len(fence)+1)
			return nil, false
		}
		code := trimCode(string(p))
		s.log.Warn("stream ended inside a code block", "runes", len(p))
		s.inCode = false
		s.consume(len(p))
		if code == "" {
			return nil, false
		}
		return []speech.Unit{{Kind: speech.KindCode, Emotion: s.emotion, Text: code, Unterminated: true}}, false
	}

	code := trimCode(string(p[:closing]))
	s.inCode = false
	s.consume(closing + len(fence))
	if code == "" {
		return nil, true
	}
	return []speech.Unit{{Kind: speech.KindCode, Emotion: s.emotion, Text: code}}, true
}

// cut emits pending[:textEnd] as a speech unit and drops pending[:consumed].
func (s *Segmenter) cut(textEnd, consumed int) []speech.Unit {
	text := strings.TrimSpace(string(s.pending[:textEnd]))
	s.consume(consumed)
	if text == "" {
		return nil
	}
	return []speech.Unit{{Kind: speech.KindSpeech, Emotion: s.emotion, Text: text}}
}

func (s *Segmenter) consume(n int) {
	s.pending = s.pending[n:]
	s.codeScan = 0
	if len(s.pending) == 0 {
		s.pending = nil
	}
}

type tagState int

const (
	tagInvalid tagState = iota
	tagIncomplete
	tagValid
)

// scanTag reads a tag starting at the '[' at p[j]. It returns the index
// just past the closing bracket and the identifier when the tag is valid.
func scanTag(p []rune, j int, final bool) (int, string, tagState) {
	incomplete := tagIncomplete
	if final {
		incomplete = tagInvalid
	}

	k := j + 1
	for k < len(p) && isBlank(p[k]) {
		k++
	}
	start := k
	for k < len(p) && isIdentRune(p[k]) {
		k++
		if k-start > MaxTagLength {
			return 0, "", tagInvalid
		}
	}
	identEnd := k
	for k < len(p) && isBlank(p[k]) {
		k++
	}
	if k == len(p) {
		return 0, "", incomplete
	}
	if p[k] != ']' || identEnd == start {
		return 0, "", tagInvalid
	}
	return k + 1, string(p[start:identEnd]), tagValid
}

func indexFence(p []rune, from int) int {
	for i := from; i+len(fence) <= len(p); i++ {
		if p[i] == '`' && p[i+1] == '`' && p[i+2] == '`' {
			return i
		}
	}
	return -1
}

func indexRune(p []rune, r rune) int {
	for i, c := range p {
		if c == r {
			return i
		}
	}
	return -1
}

// isLangLine reports whether the line after an opening fence is a bare
// language identifier, or blank.
func isLangLine(line []rune) bool {
	trimmed := strings.TrimSpace(string(line))
	if utf8.RuneCountInString(trimmed) > MaxTagLength {
		return false
	}
	for _, r := range trimmed {
		if !isIdentRune(r) && !strings.ContainsRune("+#.", r) {
			return false
		}
	}
	return true
}

func trimCode(code string) string {
	code = strings.TrimLeft(code, "\r\n")
	return strings.TrimRightFunc(code, unicode.IsSpace)
}

// splitIncomplete separates a trailing, partially received UTF-8 sequence.
func splitIncomplete(b []byte) ([]byte, []byte) {
	for i := len(b) - 1; i >= 0 && i > len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i], b[i:]
			}
			break
		}
	}
	return b, nil
}

func isShortTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '．':
		return true
	}
	return false
}

func isCommaClass(r rune) bool {
	switch r {
	case ',', '、', '，':
		return true
	}
	return false
}

// isTrailing reports whether r sticks to the end of a finished sentence.
func isTrailing(r rune) bool {
	if isShortTerminator(r) {
		return true
	}
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '」', '』', '）', '】':
		return true
	}
	return false
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
