// Package realtime synthesizes speech over a realtime websocket API that
// streams base64 PCM16 deltas.
package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
	"github.com/gorilla/websocket"
)

// Server event types.
const (
	EventAudioDelta    = "response.audio.delta"
	EventAudioDone     = "response.audio.done"
	EventResponseDone  = "response.done"
	EventError         = "error"
	EventResponseStart = "response.create"
)

// Engine opens one websocket per utterance and streams the audio deltas.
type Engine struct {
	cfg    speech.RealtimeConfig
	dialer *websocket.Dialer
	log    *log.Logger
}

var _ speech.StreamingSynthesizer = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(e *Engine) {
		e.dialer = d
	}
}

type responseCreate struct {
	Type     string          `json:"type"`
	Response responseOptions `json:"response"`
}

type responseOptions struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
	Voice        string   `json:"voice,omitempty"`
}

type serverEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a realtime engine.
func New(cfg speech.RealtimeConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		log:    log.WithPrefix("realtime"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Name() string {
	return "realtime"
}

// Synthesize collects the whole stream into one PCM16 buffer.
func (e *Engine) Synthesize(ctx context.Context, text, emotion string) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Stream(ctx, text, emotion, func(b []byte) { buf.Write(b) }); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, nil
	}
	return buf.Bytes(), nil
}

// Stream asks the server to speak text and calls sink with every decoded
// delta until the server reports the audio is done.
func (e *Engine) Stream(ctx context.Context, text, emotion string, sink func([]byte)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return speech.ErrEmptyText
	}

	conn, err := e.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", speech.ErrSynthesisFailed, err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	if err := conn.WriteJSON(responseCreate{
		Type: EventResponseStart,
		Response: responseOptions{
			Modalities:   []string{"audio", "text"},
			Instructions: instructions(text, emotion),
			Voice:        e.cfg.Voice,
		},
	}); err != nil {
		return e.streamErr(ctx, fmt.Errorf("send request: %w", err))
	}

	for {
		var ev serverEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return e.streamErr(ctx, err)
		}

		switch ev.Type {
		case EventAudioDelta:
			pcm, err := audio.DecodeBase64Audio(ev.Delta)
			if err != nil {
				e.log.Warn("Skipping bad audio delta", "err", err)
				continue
			}
			sink(pcm)
		case EventAudioDone, EventResponseDone:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case EventError:
			msg := "unknown error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			return fmt.Errorf("%w: server: %s", speech.ErrSynthesisFailed, msg)
		default:
			e.log.Debug("Ignoring event", "type", ev.Type)
		}
	}
}

func (e *Engine) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(e.cfg.URL)
	if err != nil {
		return nil, err
	}
	if e.cfg.Model != "" {
		q := u.Query()
		q.Set("model", e.cfg.Model)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if e.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	header.Set("OpenAI-Beta", "realtime=v1")
	if id, ok := speech.SessionFromContext(ctx); ok {
		header.Set("X-Session-ID", string(id))
	}

	conn, _, err := e.dialer.DialContext(ctx, u.String(), header)
	return conn, err
}

// streamErr prefers the context error when the read failed because the
// connection was closed on cancellation.
func (e *Engine) streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("%w: %v", speech.ErrStreamClosed, err)
	}
	return fmt.Errorf("%w: %v", speech.ErrSynthesisFailed, err)
}

func instructions(text, emotion string) string {
	if emotion == "" || emotion == speech.EmotionNeutral {
		return "Read the following text aloud exactly as written: " + text
	}
	return fmt.Sprintf("Read the following text aloud exactly as written, in a %s tone: %s", emotion, text)
}
