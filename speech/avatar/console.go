package avatar

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

const (
	labelWidth = 10
	meterWidth = 8
)

var emotionColors = map[string]lipgloss.Color{
	"neutral":   lipgloss.Color("250"),
	"happy":     lipgloss.Color("220"),
	"angry":     lipgloss.Color("196"),
	"sad":       lipgloss.Color("69"),
	"relaxed":   lipgloss.Color("114"),
	"surprised": lipgloss.Color("213"),
}

// ConsoleRig renders rig state as terminal lines. Mouth updates are only
// written when the mouth sprite changes.
type ConsoleRig struct {
	name string
	w    io.Writer
	r    *lipgloss.Renderer

	mu      sync.Mutex
	emotion string
	mouth   string
	level   float64
	lines   int
}

// NewConsoleRig writes to w. Colors follow the terminal's profile, or are
// disabled when plain is set.
func NewConsoleRig(name string, w io.Writer, plain bool) *ConsoleRig {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}
	return &ConsoleRig{
		name:    name,
		w:       w,
		r:       r,
		emotion: "neutral",
		mouth:   MouthState(0),
	}
}

func (c *ConsoleRig) ShowEmotion(_ context.Context, emotion string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if emotion == c.emotion {
		return nil
	}
	c.emotion = emotion
	c.writeLocked()
	return nil
}

func (c *ConsoleRig) SetMouthOpen(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = v
	state := MouthState(v)
	if state == c.mouth {
		return
	}
	c.mouth = state
	c.writeLocked()
}

func (c *ConsoleRig) Idle(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emotion = "idle"
	c.mouth = MouthState(0)
	c.level = 0
	c.writeLocked()
	return nil
}

// Lines returns how many state lines were written.
func (c *ConsoleRig) Lines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}

func (c *ConsoleRig) writeLocked() {
	color, ok := emotionColors[c.emotion]
	if !ok {
		color = lipgloss.Color("245")
	}

	name := c.r.NewStyle().Bold(true).Render(c.name)
	label := runewidth.FillRight(runewidth.Truncate(c.emotion, labelWidth, "…"), labelWidth)
	emotion := c.r.NewStyle().Foreground(color).Render(label)

	filled := int(c.level*meterWidth + 0.5)
	meter := strings.Repeat("▇", filled) + strings.Repeat("▁", meterWidth-filled)
	meter = c.r.NewStyle().Faint(true).Render(meter)

	fmt.Fprintf(c.w, "%s %s %s %s\n", name, emotion, meter, c.mouth)
	c.lines++
}
