// Package queue plays synthesized utterances in order against an avatar.
package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dustin/go-humanize"
)

const (
	// DefaultCheckDelay is how long the queue must stay empty before a
	// drain counts as finished.
	DefaultCheckDelay = 1500 * time.Millisecond

	resetTimeout = 5 * time.Second
)

// State is the observable state of a Queue.
type State int

const (
	// StateIdle means the queue is empty and no drain loop is running.
	StateIdle State = iota
	// StateProcessing means a drain loop is active.
	StateProcessing
	// StateStopped means StopAll was called and no new session reopened
	// the queue yet.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks queue activity.
type Stats struct {
	Enqueued  int64
	Dropped   int64 // added while stopped or closed
	Discarded int64 // session mismatch or cleared before playing
	Played    int64
	Failed    int64
	Drains    int64
	PeakSize  int
	LastPlay  time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithCheckDelay sets the quiet period that ends a drain.
func WithCheckDelay(d time.Duration) Option {
	return func(q *Queue) {
		q.checkDelay = d
	}
}

// WithGeneration shares a stop counter between queues.
func WithGeneration(g *Generation) Option {
	return func(q *Queue) {
		q.gen = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) {
		q.log = l
	}
}

// Queue serializes playback of speak tasks. All methods are safe for
// concurrent use.
type Queue struct {
	adapter    speech.PlaybackAdapter
	gen        *Generation
	checkDelay time.Duration
	log        *log.Logger

	mu        sync.Mutex
	tasks     []speech.SpeakTask
	session   speech.SessionID
	speaking  bool
	stopped   bool
	running   bool
	closed    bool
	activity  uint64
	timer     *time.Timer
	callbacks []*speech.Callback
	stats     Stats

	base    context.Context
	abort   context.CancelFunc
	playCtx context.Context
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

var _ speech.SpeakQueue = (*Queue)(nil)

// New creates a queue that plays through adapter.
func New(adapter speech.PlaybackAdapter, opts ...Option) *Queue {
	q := &Queue{
		adapter:    adapter,
		checkDelay: DefaultCheckDelay,
		log:        log.WithPrefix("queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.gen == nil {
		q.gen = &Generation{}
	}

	q.base, q.abort = context.WithCancel(context.Background())
	q.playCtx, q.cancel = context.WithCancel(q.base)
	return q
}

// AddTask appends task and starts the drain loop if it is not running. It
// returns without waiting for playback. Tasks added while the queue is
// stopped are dropped until CheckSessionID opens a new session.
func (q *Queue) AddTask(task speech.SpeakTask) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.stopped {
		q.stats.Dropped++
		q.log.Debug("Dropping task", "session", task.SessionID, "stopped", q.stopped, "closed", q.closed)
		return
	}

	q.tasks = append(q.tasks, task)
	q.stats.Enqueued++
	q.stats.PeakSize = max(q.stats.PeakSize, len(q.tasks))
	q.speaking = true
	q.touchLocked()

	q.log.Debug("Task queued",
		"session", task.SessionID,
		"size", humanize.Bytes(uint64(len(task.Audio))),
		"pending", len(q.tasks))

	if !q.running {
		q.running = true
		q.wg.Add(1)
		go q.run(q.gen.Capture(), q.playCtx)
	}
}

// run is the drain loop. Exactly one runs at a time, guarded by q.running.
func (q *Queue) run(tok Token, ctx context.Context) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if !tok.Valid() {
			// Stopped while playing. Anything queued now belongs to a
			// session opened after the stop.
			if q.closed || q.stopped || len(q.tasks) == 0 {
				q.running = false
				q.mu.Unlock()
				q.log.Debug("Drain aborted", "generation", tok.Value())
				return
			}
			tok = q.gen.Capture()
			ctx = q.playCtx
		}

		if !q.speaking {
			q.stats.Discarded += int64(len(q.tasks))
			q.tasks = nil
			q.running = false
			if !q.closed && !q.stopped {
				q.scheduleCheckLocked()
			}
			q.mu.Unlock()
			q.log.Debug("Speaking flag cleared, queue emptied")
			return
		}

		if len(q.tasks) == 0 {
			q.running = false
			if !q.closed {
				q.scheduleCheckLocked()
			}
			q.mu.Unlock()
			return
		}

		task := q.tasks[0]
		q.tasks[0] = speech.SpeakTask{}
		q.tasks = q.tasks[1:]

		if task.SessionID != q.session {
			q.stats.Discarded++
			current := q.session
			q.mu.Unlock()
			q.log.Debug("Discarding task from another session", "task", task.SessionID, "current", current)
			continue
		}
		q.mu.Unlock()

		if err := q.play(ctx, task); err != nil {
			q.mu.Lock()
			q.stats.Failed++
			q.mu.Unlock()
			q.log.Error("Playback failed, continuing", "session", task.SessionID, "err", err)
			continue
		}

		q.mu.Lock()
		q.stats.Played++
		q.stats.LastPlay = time.Now()
		q.mu.Unlock()

		if !tok.Valid() {
			continue
		}
		if task.OnComplete != nil {
			q.safeCall("task completion", task.OnComplete)
		}
	}
}

func (q *Queue) play(ctx context.Context, task speech.SpeakTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: adapter panicked: %v", speech.ErrPlayback, r)
		}
	}()
	return q.adapter.Play(speech.WithSession(ctx, task.SessionID), task.Audio, task.Talk, task.NeedsDecode)
}

// StopAll cancels everything: the generation advances, queued tasks are
// dropped, the adapter is told to stop, and the queue stays stopped until
// CheckSessionID opens a new session.
func (q *Queue) StopAll() {
	q.mu.Lock()
	gen := q.gen.Advance()
	q.stopped = true
	q.speaking = false
	q.stats.Discarded += int64(len(q.tasks))
	q.tasks = nil
	q.cancel()
	q.playCtx, q.cancel = context.WithCancel(q.base)
	q.touchLocked()
	q.mu.Unlock()

	q.adapter.Stop()
	q.log.Debug("Stopped all playback", "generation", gen)
}

// CheckSessionID makes id the current session. A stopped queue is reopened;
// a different id discards everything queued for the old one; the same id
// is a no-op.
func (q *Queue) CheckSessionID(id speech.SessionID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.stopped:
		q.log.Debug("Reopening stopped queue", "session", id)
		q.stopped = false
	case id != q.session:
		q.log.Debug("Session changed", "from", q.session, "to", id)
	default:
		return
	}

	q.session = id
	q.stats.Discarded += int64(len(q.tasks))
	q.tasks = nil
	q.speaking = true
	q.touchLocked()
}

// OnSpeakCompletion registers fn to run after every finished drain.
func (q *Queue) OnSpeakCompletion(fn func()) *speech.Callback {
	cb := speech.NewCallback(fn)
	q.mu.Lock()
	q.callbacks = append(q.callbacks, cb)
	q.mu.Unlock()
	return cb
}

// RemoveSpeakCompletionCallback unregisters the handle returned by
// OnSpeakCompletion.
func (q *Queue) RemoveSpeakCompletionCallback(cb *speech.Callback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callbacks = slices.DeleteFunc(q.callbacks, func(c *speech.Callback) bool {
		return c == cb
	})
}

// ClearQueue drops every queued task without stopping playback.
func (q *Queue) ClearQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Discarded += int64(len(q.tasks))
	q.tasks = nil
}

// SetSpeaking sets the shared speaking indicator. Clearing it makes a
// running drain loop empty the queue and exit.
func (q *Queue) SetSpeaking(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.speaking = v
}

// IsSpeaking reports the shared speaking indicator.
func (q *Queue) IsSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// IsStopped reports whether StopAll was called since the last session.
func (q *Queue) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// State returns the current state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.stopped:
		return StateStopped
	case q.running:
		return StateProcessing
	default:
		return StateIdle
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Session returns the current session.
func (q *Queue) Session() speech.SessionID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.session
}

// Generation returns the stop counter used by the queue.
func (q *Queue) Generation() *Generation {
	return q.gen
}

// Stats returns a snapshot of the queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close stops playback and waits for the drain loop and any pending drain
// check to finish.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	q.StopAll()

	q.mu.Lock()
	q.closed = true
	q.abort()
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// touchLocked records activity, which cancels any pending drain check.
func (q *Queue) touchLocked() {
	q.activity++
	if q.timer != nil && q.timer.Stop() {
		q.wg.Done()
	}
	q.timer = nil
}

// scheduleCheckLocked arms the drain check. A check only fires if nothing
// happened on the queue since it was armed.
func (q *Queue) scheduleCheckLocked() {
	if q.timer != nil && q.timer.Stop() {
		q.wg.Done()
	}
	seen := q.activity
	q.wg.Add(1)
	q.timer = time.AfterFunc(q.checkDelay, func() {
		defer q.wg.Done()
		q.checkDrained(seen)
	})
}

func (q *Queue) checkDrained(seen uint64) {
	q.mu.Lock()
	if q.closed || q.activity != seen || q.running || len(q.tasks) > 0 {
		q.mu.Unlock()
		return
	}
	q.activity++
	q.timer = nil
	q.stats.Drains++
	callbacks := slices.Clone(q.callbacks)
	q.mu.Unlock()

	q.log.Debug("Queue drained", "callbacks", len(callbacks))
	for _, cb := range callbacks {
		q.safeCall("completion callback", cb.Call)
	}

	ctx, cancel := context.WithTimeout(q.base, resetTimeout)
	defer cancel()
	if err := q.adapter.ResetToNeutral(ctx); err != nil {
		q.log.Warn("Could not reset avatar", "err", err)
	}
}

func (q *Queue) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Recovered from panic", "in", what, "panic", r)
		}
	}()
	fn()
}
