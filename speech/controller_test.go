package speech_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/speakstream/internal/chatlog"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/queue"
	"github.com/dgnsrekt/speakstream/speech/segment"
	"github.com/dgnsrekt/speakstream/speech/session"
)

type played struct {
	talk        speech.Talk
	size        int
	needsDecode bool
	session     speech.SessionID
}

type recordingAdapter struct {
	mu      sync.Mutex
	plays   []played
	block   bool
	started chan struct{}
}

func newRecordingAdapter() *recordingAdapter {
	return &recordingAdapter{started: make(chan struct{}, 64)}
}

func (a *recordingAdapter) Play(ctx context.Context, audio []byte, talk speech.Talk, needsDecode bool) error {
	id, _ := speech.SessionFromContext(ctx)
	a.mu.Lock()
	a.plays = append(a.plays, played{talk: talk, size: len(audio), needsDecode: needsDecode, session: id})
	block := a.block
	a.mu.Unlock()
	a.started <- struct{}{}

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (a *recordingAdapter) Stop()                                {}
func (a *recordingAdapter) ResetToNeutral(context.Context) error { return nil }

func (a *recordingAdapter) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, p := range a.plays {
		out = append(out, p.talk.Message)
	}
	return out
}

type fakeSynth struct {
	delays map[string]time.Duration
	fail   map[string]bool

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *fakeSynth) Name() string { return "fake" }

func (s *fakeSynth) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-time.After(s.delays[text]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.fail[text] {
		return nil, speech.ErrSynthesisFailed
	}
	return []byte("pcm:" + text), nil
}

type streamSynth struct {
	chunks int
	size   int
}

func (s *streamSynth) Name() string { return "stream" }

func (s *streamSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (s *streamSynth) Stream(ctx context.Context, _, _ string, sink func([]byte)) error {
	for i := 0; i < s.chunks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sink(make([]byte, s.size))
	}
	return nil
}

func newController(t *testing.T, synth speech.Synthesizer, adapter speech.PlaybackAdapter, opts ...speech.ControllerOption) *speech.Controller {
	t.Helper()
	q := queue.New(adapter, queue.WithCheckDelay(10*time.Millisecond))
	t.Cleanup(func() { q.Close() })

	c := speech.NewController(synth, q, session.New(),
		func() speech.TextSegmenter { return segment.New() }, opts...)
	t.Cleanup(c.Close)
	return c
}

// fragments streams s in n-byte pieces and closes the channel.
func fragments(s string, n int) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for len(s) > 0 {
			k := min(n, len(s))
			ch <- s[:k]
			s = s[k:]
		}
	}()
	return ch
}

func speakAndWait(t *testing.T, c *speech.Controller, text string) {
	t.Helper()
	if err := c.Speak(context.Background(), fragments(text, 3)); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestController_SpeaksInOrder(t *testing.T) {
	synth := &fakeSynth{delays: map[string]time.Duration{"Hi there.": 80 * time.Millisecond}}
	adapter := newRecordingAdapter()
	c := newController(t, synth, adapter)

	speakAndWait(t, c, "[happy]Hi there. How are you? [sad]Bye now.")

	want := []string{"Hi there.", "How are you?", "Bye now."}
	if got := adapter.messages(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("played %q, want %q", got, want)
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	for i, emotion := range []string{"happy", "happy", "sad"} {
		if adapter.plays[i].talk.Emotion != emotion {
			t.Errorf("play %d emotion = %q, want %q", i, adapter.plays[i].talk.Emotion, emotion)
		}
		if adapter.plays[i].needsDecode {
			t.Errorf("play %d marked for decoding", i)
		}
	}
	if adapter.plays[0].session == "" {
		t.Error("playback context lost the session")
	}
	if synth.peak.Load() < 2 {
		t.Errorf("synthesis never overlapped, peak = %d", synth.peak.Load())
	}
}

func TestController_LookaheadBound(t *testing.T) {
	synth := &fakeSynth{delays: map[string]time.Duration{
		"One.": 20 * time.Millisecond, "Two.": 20 * time.Millisecond,
		"Three.": 20 * time.Millisecond, "Four.": 20 * time.Millisecond,
	}}
	c := newController(t, synth, newRecordingAdapter(), speech.WithLookahead(2))

	speakAndWait(t, c, "One. Two. Three. Four.")
	if p := synth.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestController_ChatLog(t *testing.T) {
	transcript := chatlog.New()
	c := newController(t, &fakeSynth{}, newRecordingAdapter(), speech.WithChatLog(transcript))

	speakAndWait(t, c, "First one. Second one. ```go\nx := 1\n``` Outro.")

	msgs := transcript.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != speech.RoleAssistant || msgs[0].Content != "First one. Second one." {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != speech.RoleCode || msgs[1].Content != "x := 1" {
		t.Errorf("code message = %+v", msgs[1])
	}
	if msgs[2].Role != speech.RoleAssistant || msgs[2].Content != "Outro." {
		t.Errorf("last message = %+v", msgs[2])
	}
	if msgs[0].ID == msgs[2].ID {
		t.Error("speech after code reused the earlier message id")
	}
}

func TestController_SynthesisFailureSkipsUtterance(t *testing.T) {
	transcript := chatlog.New()
	synth := &fakeSynth{fail: map[string]bool{"Bad one.": true}}
	adapter := newRecordingAdapter()
	c := newController(t, synth, adapter, speech.WithChatLog(transcript))

	speakAndWait(t, c, "Good one. Bad one. Good two.")

	if got := adapter.messages(); strings.Join(got, "|") != "Good one.|Good two." {
		t.Errorf("played %q", got)
	}
	if msgs := transcript.Messages(); len(msgs) != 1 || !strings.Contains(msgs[0].Content, "Bad one.") {
		t.Errorf("failed text missing from chat log: %+v", msgs)
	}
}

func TestController_Streaming(t *testing.T) {
	adapter := newRecordingAdapter()
	c := newController(t, &streamSynth{chunks: 3, size: 10}, adapter, speech.WithBufferThreshold(16))

	speakAndWait(t, c, "Alpha. Beta.")

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.plays) != 4 {
		t.Fatalf("played %d buffers, want 4", len(adapter.plays))
	}
	wantSizes := []int{20, 10, 20, 10}
	wantText := []string{"Alpha.", "Alpha.", "Beta.", "Beta."}
	for i, p := range adapter.plays {
		if p.size != wantSizes[i] || p.talk.Message != wantText[i] {
			t.Errorf("buffer %d = %d bytes %q", i, p.size, p.talk.Message)
		}
		if p.needsDecode {
			t.Errorf("streamed buffer %d marked for decoding", i)
		}
	}
}

func TestController_Stop(t *testing.T) {
	adapter := newRecordingAdapter()
	adapter.block = true
	c := newController(t, &fakeSynth{}, adapter)

	ch := make(chan string)
	errc := make(chan error, 1)
	go func() { errc <- c.Speak(context.Background(), ch) }()
	ch <- "Hello there. "
	ch <- "More"

	select {
	case <-adapter.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
	}

	c.Stop()
	select {
	case err := <-errc:
		if !errors.Is(err, speech.ErrStopped) {
			t.Errorf("Speak() error = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after Stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Errorf("Wait after Stop = %v", err)
	}

	// the next reply plays again
	adapter.mu.Lock()
	adapter.block = false
	adapter.mu.Unlock()
	speakAndWait(t, c, "Again.")
	if got := adapter.messages(); got[len(got)-1] != "Again." {
		t.Errorf("played %q", got)
	}
}

func TestController_Busy(t *testing.T) {
	c := newController(t, &fakeSynth{}, newRecordingAdapter())

	ch := make(chan string)
	errc := make(chan error, 1)
	go func() { errc <- c.Speak(context.Background(), ch) }()
	ch <- "Hi"

	if err := c.Speak(context.Background(), fragments("Other.", 3)); !errors.Is(err, speech.ErrControllerBusy) {
		t.Errorf("second Speak = %v, want ErrControllerBusy", err)
	}
	close(ch)
	if err := <-errc; err != nil {
		t.Errorf("first Speak = %v", err)
	}
}

func TestController_WaitWithoutAudio(t *testing.T) {
	adapter := newRecordingAdapter()
	c := newController(t, &fakeSynth{}, adapter)

	if err := c.Speak(context.Background(), fragments("```\nonly code\n```", 4)); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Errorf("Wait = %v, want immediate return", err)
	}
	if len(adapter.messages()) != 0 {
		t.Error("code was spoken")
	}
}

func TestController_ContextCancel(t *testing.T) {
	c := newController(t, &fakeSynth{}, newRecordingAdapter())

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan string)
	errc := make(chan error, 1)
	go func() { errc <- c.Speak(ctx, ch) }()
	ch <- "Hi"
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Speak() = %v, want context.Canceled", err)
	}
}
