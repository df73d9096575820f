// Package preprocess cleans a unit of reply text before it is synthesized.
package preprocess

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// emoji holds the pictographic blocks removed before synthesis, plus the
// variation selector and zero width joiner that glue them together.
var emoji = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
		{Lo: 0xfe0f, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f1e0, Hi: 0x1f1ff, Stride: 1},
		{Lo: 0x1f300, Hi: 0x1f9ff, Stride: 1},
	},
}

var md = goldmark.New()

// Message returns text ready to be spoken, or "" when nothing speakable
// is left.
func Message(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = StripEmoji(s)
	s = StripMarkdown(s)
	s = norm.NFC.String(strings.Join(strings.Fields(s), " "))

	if !Speakable(s) {
		return ""
	}
	return s
}

// StripEmoji removes pictographs from s.
func StripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(emoji, r) {
			return -1
		}
		return r
	}, s)
}

// Speakable reports whether s contains a letter or a digit.
func Speakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r)
	}) >= 0
}

// StripMarkdown drops inline markdown markers from s and keeps the text
// they wrap. Link targets and raw HTML are dropped.
func StripMarkdown(s string) string {
	reader := text.NewReader([]byte(s))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	walk(doc, reader.Source(), &buf)
	return strings.TrimSpace(buf.String())
}

func walk(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.AutoLink:
		buf.Write(n.Label(source))
		return

	case *ast.RawHTML, *ast.HTMLBlock:
		return

	case *ast.CodeBlock, *ast.FencedCodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c, source, buf)
		if c.Type() == ast.TypeBlock && c.NextSibling() != nil {
			buf.WriteByte(' ')
		}
	}
}
