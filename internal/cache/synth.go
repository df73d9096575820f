package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
)

// Store is the part of Manager a CachedSynthesizer needs.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// CachedSynthesizer answers repeated utterances from a Store and forwards
// misses to the wrapped engine.
type CachedSynthesizer struct {
	inner speech.Synthesizer
	store Store
	log   *log.Logger
}

// streamingCached adds Stream when the wrapped engine streams.
type streamingCached struct {
	*CachedSynthesizer
	stream speech.StreamingSynthesizer
}

// Wrap returns s backed by store. The result streams if s does.
func Wrap(s speech.Synthesizer, store Store) speech.Synthesizer {
	c := &CachedSynthesizer{inner: s, store: store, log: log.WithPrefix("cache")}
	if st, ok := s.(speech.StreamingSynthesizer); ok {
		return &streamingCached{CachedSynthesizer: c, stream: st}
	}
	return c
}

// Name returns the wrapped engine's name.
func (c *CachedSynthesizer) Name() string { return c.inner.Name() }

// NeedsDecode reports the wrapped engine's encoding.
func (c *CachedSynthesizer) NeedsDecode() bool { return speech.NeedsDecode(c.inner) }

// Synthesize returns cached audio or synthesizes and stores it.
func (c *CachedSynthesizer) Synthesize(ctx context.Context, text, emotion string) ([]byte, error) {
	key := Key(c.inner.Name(), emotion, text)
	if data, ok := c.store.Get(key); ok {
		c.log.Debug("Cache hit", "engine", c.inner.Name(), "bytes", len(data))
		return data, nil
	}

	data, err := c.inner.Synthesize(ctx, text, emotion)
	if err != nil || len(data) == 0 {
		return data, err
	}
	c.put(key, data)
	return data, nil
}

// Stream replays a hit as one fragment. Misses are streamed through and
// stored once the engine finished the utterance.
func (s *streamingCached) Stream(ctx context.Context, text, emotion string, sink func([]byte)) error {
	key := Key(s.inner.Name(), emotion, text)
	if data, ok := s.store.Get(key); ok {
		sink(data)
		return nil
	}

	var collected []byte
	err := s.stream.Stream(ctx, text, emotion, func(b []byte) {
		collected = append(collected, b...)
		sink(b)
	})
	if err != nil {
		return err
	}
	if len(collected) > 0 {
		s.put(key, collected)
	}
	return nil
}

func (c *CachedSynthesizer) put(key string, data []byte) {
	if err := c.store.Put(key, data); err != nil {
		c.log.Debug("Not caching utterance", "err", err)
	}
}
