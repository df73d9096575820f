package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dgnsrekt/speakstream/internal/preprocess"
	"github.com/dgnsrekt/speakstream/speech/audio"
)

// DefaultLookahead is how many utterances are synthesized ahead of the
// one being enqueued.
const DefaultLookahead = 3

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithChatLog records every unit in l.
func WithChatLog(l ChatLog) ControllerOption {
	return func(c *Controller) {
		c.chat = l
	}
}

// WithLookahead bounds concurrent synthesis.
func WithLookahead(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.lookahead = n
		}
	}
}

// WithBufferThreshold sets the flush size used for streamed audio.
func WithBufferThreshold(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l *log.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l
	}
}

// Controller turns a stream of AI text fragments into queued speech. One
// reply is spoken at a time and every reply gets its own session.
type Controller struct {
	synth        Synthesizer
	queue        SpeakQueue
	sessions     SessionSource
	newSegmenter func() TextSegmenter
	chat         ChatLog
	lookahead    int
	threshold    int
	log          *log.Logger

	completion *Callback

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	stopped   bool
	finished  uint64        // drain completions seen
	since     uint64        // value of finished when the last reply enqueued audio
	expecting bool          // last reply enqueued audio
	changed   chan struct{} // closed and replaced on every completion
}

// NewController wires a reply pipeline. newSegmenter is called once per
// reply.
func NewController(synth Synthesizer, queue SpeakQueue, sessions SessionSource,
	newSegmenter func() TextSegmenter, opts ...ControllerOption,
) *Controller {
	c := &Controller{
		synth:        synth,
		queue:        queue,
		sessions:     sessions,
		newSegmenter: newSegmenter,
		lookahead:    DefaultLookahead,
		threshold:    audio.DefaultThreshold,
		log:          log.WithPrefix("speech"),
		changed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.completion = queue.OnSpeakCompletion(c.completed)
	return c
}

// job is one speech unit on its way to the queue.
type job struct {
	unit Unit
	text string
	talk Talk

	done  chan struct{}
	audio []byte
	err   error
}

// Speak consumes fragments until the channel closes and enqueues the
// resulting utterances in order. It returns once everything is enqueued;
// use Wait to block until playback finished.
func (c *Controller) Speak(ctx context.Context, fragments <-chan string) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrControllerBusy
	}
	id := c.sessions.Next()
	ctx, cancel := context.WithCancel(WithSession(ctx, id))
	c.running = true
	c.cancel = cancel
	c.stopped = false
	c.expecting = false
	c.since = c.finished
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	c.queue.CheckSessionID(id)
	c.log.Debug("Reply started", "session", id, "engine", c.synth.Name())

	jobs := make(chan *job, c.lookahead)
	sem := make(chan struct{}, c.lookahead)
	enqueued := make(chan int, 1)
	go func() {
		enqueued <- c.enqueue(ctx, id, jobs, sem)
	}()

	seg := c.newSegmenter()
	var run chatRun
	dispatch := func(units []Unit) bool {
		for _, u := range units {
			c.record(&run, u)
			if u.Kind != KindSpeech {
				continue
			}
			text := preprocess.Message(u.Text)
			if text == "" {
				continue
			}
			j := &job{unit: u, text: text, talk: TalkFor(u, text), done: make(chan struct{})}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return false
			}
			if _, ok := c.synth.(StreamingSynthesizer); !ok {
				go c.synthesize(ctx, j)
			}
			jobs <- j
		}
		return true
	}

	err := func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frag, ok := <-fragments:
				if !ok {
					dispatch(seg.Finish())
					return nil
				}
				if !dispatch(seg.Feed(frag)) {
					return ctx.Err()
				}
			}
		}
	}()
	close(jobs)
	n := <-enqueued

	c.mu.Lock()
	stopped := c.stopped
	c.expecting = n > 0 && !stopped
	c.mu.Unlock()

	c.log.Debug("Reply enqueued", "session", id, "tasks", n)
	if stopped {
		return ErrStopped
	}
	return err
}

// enqueue hands finished jobs to the queue in dispatch order and reports
// how many tasks it added.
func (c *Controller) enqueue(ctx context.Context, id SessionID, jobs <-chan *job, sem <-chan struct{}) int {
	n := 0
	stream, streaming := c.synth.(StreamingSynthesizer)
	for j := range jobs {
		if streaming {
			n += c.stream(ctx, id, stream, j)
			<-sem
			continue
		}

		<-j.done
		<-sem
		if ctx.Err() != nil {
			continue
		}
		if j.err != nil {
			c.log.Warn("Synthesis failed, skipping utterance", "text", j.text, "err", j.err)
			continue
		}
		if len(j.audio) == 0 {
			c.log.Debug("Engine returned no audio", "text", j.text)
			continue
		}
		c.queue.AddTask(SpeakTask{
			SessionID:   id,
			Audio:       j.audio,
			Talk:        j.talk,
			NeedsDecode: NeedsDecode(c.synth),
		})
		n++
	}
	return n
}

func (c *Controller) synthesize(ctx context.Context, j *job) {
	defer close(j.done)
	j.audio, j.err = c.synth.Synthesize(ctx, j.text, j.talk.Emotion)
}

// stream plays a streaming engine's output as it arrives, cut into
// threshold-sized buffers.
func (c *Controller) stream(ctx context.Context, id SessionID, s StreamingSynthesizer, j *job) int {
	var mu sync.Mutex
	n := 0
	acc := audio.NewAccumulator(func(ctx context.Context, pcm []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.queue.AddTask(SpeakTask{
			SessionID: id,
			Audio:     pcm,
			Talk:      j.talk,
		})
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	}, audio.WithThreshold(c.threshold), audio.WithContext(ctx))

	err := s.Stream(ctx, j.text, j.talk.Emotion, acc.AddData)
	acc.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("Streaming synthesis failed", "text", j.text, "err", err)
	}
	cuts, total := acc.Flushed()
	c.log.Debug("Stream finished", "buffers", cuts, "size", humanize.Bytes(uint64(total)))

	mu.Lock()
	defer mu.Unlock()
	return n
}

// chatRun tracks the chat log message that consecutive speech units share.
type chatRun struct {
	id      string
	content []string
}

func (c *Controller) record(run *chatRun, u Unit) {
	if c.chat == nil {
		return
	}
	text := strings.TrimSpace(u.Text)
	if u.Kind == KindCode {
		c.chat.Upsert(uuid.NewString(), RoleCode, u.Text)
		*run = chatRun{}
		return
	}
	if run.id == "" {
		run.id = uuid.NewString()
	}
	if text != "" {
		run.content = append(run.content, text)
	}
	c.chat.Upsert(run.id, RoleAssistant, strings.Join(run.content, " "))
}

// Stop silences the current reply: the queue is cleared and playback
// interrupted, and any synthesis in flight is cancelled.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.stopped = true
		c.cancel()
	}
	c.expecting = false
	c.mu.Unlock()

	c.queue.StopAll()
	c.wake()
}

// Wait blocks until the queue has drained the audio of the last reply.
// It returns at once when that reply produced no audio or was stopped.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.expecting || c.finished > c.since {
			c.mu.Unlock()
			return nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close detaches the controller from the queue.
func (c *Controller) Close() {
	c.queue.RemoveSpeakCompletionCallback(c.completion)
}

func (c *Controller) completed() {
	c.mu.Lock()
	c.finished++
	c.mu.Unlock()
	c.wake()
}

func (c *Controller) wake() {
	c.mu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}
