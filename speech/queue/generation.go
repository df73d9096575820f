package queue

import "sync/atomic"

// Generation is a monotonically increasing stop counter. Work captures a
// Token before it starts and rechecks it at every safe point; advancing
// the generation invalidates every token captured earlier.
type Generation struct {
	n atomic.Uint64
}

// Token is a captured generation value.
type Token struct {
	g *Generation
	v uint64
}

// Capture returns a token for the current generation.
func (g *Generation) Capture() Token {
	return Token{g: g, v: g.n.Load()}
}

// Advance invalidates all outstanding tokens and returns the new value.
func (g *Generation) Advance() uint64 {
	return g.n.Add(1)
}

// Current returns the current generation value.
func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// Valid reports whether no Advance happened since the token was captured.
func (t Token) Valid() bool {
	return t.g != nil && t.g.n.Load() == t.v
}

// Value returns the generation the token was captured at.
func (t Token) Value() uint64 {
	return t.v
}
