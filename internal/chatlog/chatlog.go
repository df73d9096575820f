// Package chatlog keeps the transcript of spoken replies.
package chatlog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dgnsrekt/speakstream/speech"
)

// Message is one transcript entry.
type Message struct {
	ID      string
	Role    string
	Content string
	Created time.Time
	Updated time.Time
}

// Transcript is an ordered, concurrency-safe chat log.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
}

var _ speech.ChatLog = (*Transcript)(nil)

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

// Upsert replaces the message with id, or appends it when id is new.
// A message keeps its position when updated.
func (t *Transcript) Upsert(id, role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if i, ok := t.index[id]; ok {
		t.messages[i].Role = role
		t.messages[i].Content = content
		t.messages[i].Updated = now
		return
	}

	t.index[id] = len(t.messages)
	t.messages = append(t.messages, Message{
		ID:      id,
		Role:    role,
		Content: content,
		Created: now,
		Updated: now,
	})
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset drops every message.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.index = make(map[string]int)
}

// Plain returns the transcript as "role: content" blocks. Code messages
// are fenced.
func (t *Transcript) Plain() string {
	var b strings.Builder
	for i, m := range t.Messages() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if m.Role == speech.RoleCode {
			fmt.Fprintf(&b, "%s:\n%s", m.Role, wrapCodeBlock(m.Content))
			continue
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}

// Copy puts the plain transcript on the system clipboard.
func (t *Transcript) Copy() error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not available on this system")
	}
	if err := clipboard.WriteAll(t.Plain()); err != nil {
		return fmt.Errorf("unable to copy transcript: %w", err)
	}
	return nil
}

func wrapCodeBlock(s string) string {
	return "```\n" + strings.TrimRight(s, "\n") + "\n```"
}
