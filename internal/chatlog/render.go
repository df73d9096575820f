package chatlog

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/speakstream/speech"
)

const (
	roleWidth   = 10
	minWidth    = 20
	glamourNone = "notty"
)

var roleColors = map[string]lipgloss.Color{
	speech.RoleUser:      lipgloss.Color("39"),
	speech.RoleAssistant: lipgloss.Color("212"),
	speech.RoleCode:      lipgloss.Color("243"),
}

// Renderer formats a transcript for the terminal.
type Renderer struct {
	Width int

	// Plain disables colors and uses glamour's notty style.
	Plain bool

	// GlamourStyle names a glamour style or a JSON style file for code
	// blocks. Empty picks one from the terminal background.
	GlamourStyle string

	lg *lipgloss.Renderer
}

// NewRenderer returns a renderer whose colors follow w.
func NewRenderer(w io.Writer, width int, plain bool) *Renderer {
	r := &Renderer{Width: width, Plain: plain, lg: lipgloss.NewRenderer(w)}
	if plain {
		r.lg.SetColorProfile(termenv.Ascii)
	}
	return r
}

// Render returns every message of t, each headed by its role.
func (r *Renderer) Render(t *Transcript) (string, error) {
	width := max(r.Width, minWidth)
	bodyWidth := width - roleWidth - 1

	var b strings.Builder
	for i, m := range t.Messages() {
		if i > 0 {
			b.WriteString("\n")
		}

		body, err := r.body(m, bodyWidth)
		if err != nil {
			return "", err
		}

		label := r.label(m.Role)
		pad := strings.Repeat(" ", roleWidth+1)
		lines := strings.Split(body, "\n")
		for j, line := range lines {
			if j == 0 {
				b.WriteString(label + " " + line)
			} else {
				b.WriteString(pad + line)
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (r *Renderer) label(role string) string {
	text := runewidth.FillRight(runewidth.Truncate(role, roleWidth, "…"), roleWidth)
	style := r.lg.NewStyle().Bold(true)
	if c, ok := roleColors[role]; ok {
		style = style.Foreground(c)
	}
	return style.Render(text)
}

func (r *Renderer) body(m Message, width int) (string, error) {
	if m.Role != speech.RoleCode {
		return wordwrap.String(m.Content, width), nil
	}

	style := glamour.WithAutoStyle()
	switch {
	case r.Plain:
		style = glamour.WithStandardStyle(glamourNone)
	case r.GlamourStyle != "":
		style = glamour.WithStylePath(r.GlamourStyle)
	}

	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := tr.Render(wrapCodeBlock(m.Content))
	if err != nil {
		return "", fmt.Errorf("error rendering code block: %w", err)
	}
	out = strings.Trim(out, "\n")
	if r.Plain {
		out = dedent(out)
	}
	return out, nil
}

// dedent strips the margin glamour puts in front of every line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " "))
		if margin < 0 || n < margin {
			margin = n
		}
	}
	if margin <= 0 {
		return s
	}
	for i, l := range lines {
		if len(l) >= margin {
			lines[i] = strings.TrimRight(l[margin:], " ")
		} else {
			lines[i] = strings.TrimRight(l, " ")
		}
	}
	return strings.Join(lines, "\n")
}
