// Package remote synthesizes speech through an HTTP endpoint that returns
// WAV or MP3 audio.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

const (
	// SessionHeader carries the reply session to the server.
	SessionHeader = "X-Session-ID"

	maxTextSize  = 5000
	maxAudioSize = 32 << 20
	maxErrorBody = 512
)

// Engine posts each utterance as JSON and returns the response body.
type Engine struct {
	cfg     speech.HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *log.Logger
}

var _ speech.EncodedSynthesizer = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// request is the JSON body sent for every utterance.
type request struct {
	Text    string  `json:"text"`
	Emotion string  `json:"emotion,omitempty"`
	Voice   string  `json:"voice,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
}

// New creates an HTTP engine. Requests are limited to cfg.Rate per second
// with bursts of cfg.Burst.
func New(cfg speech.HTTPConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		log:     log.WithPrefix("http"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Name() string {
	return "http"
}

// NeedsDecode is always true since the endpoint returns encoded audio.
func (e *Engine) NeedsDecode() bool {
	return true
}

// Synthesize requests audio for text. An empty response body yields nil
// audio and no error.
func (e *Engine) Synthesize(ctx context.Context, text, emotion string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, speech.ErrEmptyText
	}
	if len(text) > maxTextSize {
		return nil, fmt.Errorf("text too long: %d characters (max %d)", len(text), maxTextSize)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	body, err := json.Marshal(request{
		Text:    text,
		Emotion: emotion,
		Voice:   e.cfg.Voice,
		Speed:   e.cfg.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav, audio/mpeg")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	if id, ok := speech.SessionFromContext(ctx); ok {
		req.Header.Set(SessionHeader, string(id))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, speech.ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", speech.ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", speech.ErrSynthesisFailed, err)
	}
	if len(audio) > maxAudioSize {
		return nil, fmt.Errorf("%w: response larger than %s", speech.ErrSynthesisFailed, humanize.Bytes(maxAudioSize))
	}
	if len(audio) == 0 {
		e.log.Warn("Empty audio response", "text", text)
		return nil, nil
	}

	e.log.Debug("Synthesized", "size", humanize.Bytes(uint64(len(audio))), "type", resp.Header.Get("Content-Type"))
	return audio, nil
}
