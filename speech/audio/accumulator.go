package audio

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// DefaultThreshold is the pending size that triggers an automatic flush.
const DefaultThreshold = 100000

// Sink receives flushed PCM buffers.
type Sink func(ctx context.Context, pcm []byte) error

// AccumulatorOption configures an Accumulator.
type AccumulatorOption func(*Accumulator)

// WithThreshold sets the auto-flush size in bytes.
func WithThreshold(n int) AccumulatorOption {
	return func(a *Accumulator) {
		if n > 0 {
			a.threshold = n
		}
	}
}

// WithContext sets the context passed to the sink.
func WithContext(ctx context.Context) AccumulatorOption {
	return func(a *Accumulator) {
		a.ctx = ctx
	}
}

// WithAccumulatorLogger sets the logger.
func WithAccumulatorLogger(l *log.Logger) AccumulatorOption {
	return func(a *Accumulator) {
		a.log = l
	}
}

// Accumulator batches streamed PCM chunks into larger buffers. Cut buffers
// are handed to the sink one at a time, in the order they were cut, by a
// single goroutine; AddData and Flush never wait for the sink.
type Accumulator struct {
	sink      Sink
	threshold int
	ctx       context.Context
	log       *log.Logger

	mu      sync.Mutex
	pending []byte
	queue   [][]byte
	closed  bool
	flushed int
	bytes   int64

	wake chan struct{}
	done chan struct{}
}

// NewAccumulator creates an Accumulator and starts its hand-off goroutine.
func NewAccumulator(sink Sink, opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		sink:      sink,
		threshold: DefaultThreshold,
		ctx:       context.Background(),
		log:       log.WithPrefix("accumulator"),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.handoff()
	return a
}

// AddData appends a copy of b and flushes once the threshold is reached.
func (a *Accumulator) AddData(b []byte) {
	if len(b) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.log.Warn("Data added after close, dropping", "size", humanize.Bytes(uint64(len(b))))
		return
	}

	a.pending = append(a.pending, b...)
	if len(a.pending) >= a.threshold {
		a.cutLocked()
	}
}

// Flush hands the pending buffer to the sink.
func (a *Accumulator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.cutLocked()
	}
}

// Pending returns the number of bytes waiting for the next cut.
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flushed returns how many buffers were cut and the total bytes they held.
func (a *Accumulator) Flushed() (int, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushed, a.bytes
}

// Close flushes and waits until the sink has seen every cut buffer.
func (a *Accumulator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.cutLocked()
	a.closed = true
	a.mu.Unlock()

	a.signal()
	<-a.done
}

// cutLocked moves the whole pending buffer to the hand-off queue.
func (a *Accumulator) cutLocked() {
	n := len(a.pending)
	if n == 0 {
		return
	}

	a.queue = append(a.queue, a.pending)
	a.pending = nil
	a.flushed++
	a.bytes += int64(n)
	a.log.Debug("Buffer cut", "size", humanize.Bytes(uint64(n)), "queued", len(a.queue))
	a.signal()
}

func (a *Accumulator) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Accumulator) handoff() {
	defer close(a.done)
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			closed := a.closed
			a.mu.Unlock()
			if closed {
				return
			}
			<-a.wake
			continue
		}
		buf := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.mu.Unlock()

		if err := a.sink(a.ctx, buf); err != nil {
			a.log.Error("Sink rejected buffer", "size", humanize.Bytes(uint64(len(buf))), "err", err)
		}
	}
}
