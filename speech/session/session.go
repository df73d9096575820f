// Package session hands out reply session ids.
package session

import (
	"fmt"
	"sync"

	"github.com/dgnsrekt/speakstream/speech"
	"github.com/google/uuid"
)

// Controller issues a new SessionID for every reply. Ids share a
// per-controller prefix and end in an increasing counter.
type Controller struct {
	prefix string

	mu      sync.Mutex
	n       uint64
	current speech.SessionID
}

var _ speech.SessionSource = (*Controller)(nil)

// New creates a controller with a random prefix.
func New() *Controller {
	return &Controller{prefix: uuid.NewString()[:8]}
}

// Next returns a fresh id and makes it current.
func (c *Controller) Next() speech.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	c.current = speech.SessionID(fmt.Sprintf("%s-%d", c.prefix, c.n))
	return c.current
}

// Current returns the id issued last, or "" before the first Next.
func (c *Controller) Current() speech.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Prefix returns the controller's id prefix.
func (c *Controller) Prefix() string {
	return c.prefix
}
