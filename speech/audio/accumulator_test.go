package audio

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	bufs  [][]byte
	delay time.Duration
	err   error
}

func (r *recordingSink) sink(ctx context.Context, pcm []byte) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufs = append(r.bufs, bytes.Clone(pcm))
	return r.err
}

func (r *recordingSink) buffers() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.bufs...)
}

func TestAccumulator_FlushesAtThreshold(t *testing.T) {
	rec := &recordingSink{}
	acc := NewAccumulator(rec.sink, WithThreshold(8))

	acc.AddData([]byte{1, 2, 3, 4})
	if acc.Pending() != 4 {
		t.Fatalf("Pending = %d, want 4", acc.Pending())
	}
	acc.AddData([]byte{5, 6, 7, 8, 9, 10})
	if acc.Pending() != 0 {
		t.Errorf("Pending after threshold = %d, want 0", acc.Pending())
	}
	acc.Close()

	bufs := rec.buffers()
	if len(bufs) != 1 {
		t.Fatalf("got %d buffers, want 1", len(bufs))
	}
	if !bytes.Equal(bufs[0], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("buffer = %v", bufs[0])
	}
}

func TestAccumulator_FlushEmptyIsNoop(t *testing.T) {
	rec := &recordingSink{}
	acc := NewAccumulator(rec.sink)
	acc.Flush()
	acc.Close()

	if n := len(rec.buffers()); n != 0 {
		t.Errorf("sink called %d times for an empty flush", n)
	}
	if cuts, _ := acc.Flushed(); cuts != 0 {
		t.Errorf("Flushed = %d, want 0", cuts)
	}
}

func TestAccumulator_OrderPreservedWithSlowSink(t *testing.T) {
	rec := &recordingSink{delay: 10 * time.Millisecond}
	acc := NewAccumulator(rec.sink, WithThreshold(1<<20))

	start := time.Now()
	for i := byte(0); i < 5; i++ {
		acc.AddData([]byte{i, i})
		acc.Flush()
	}
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Errorf("AddData/Flush waited for the sink: %v", elapsed)
	}
	acc.Close()

	bufs := rec.buffers()
	if len(bufs) != 5 {
		t.Fatalf("got %d buffers, want 5", len(bufs))
	}
	for i, b := range bufs {
		if b[0] != byte(i) {
			t.Errorf("buffer %d = %v, out of order", i, b)
		}
	}
}

func TestAccumulator_FlushDeliversEveryByte(t *testing.T) {
	rec := &recordingSink{}
	acc := NewAccumulator(rec.sink, WithThreshold(10))

	acc.AddData([]byte{1, 2, 3})
	acc.Flush()
	if acc.Pending() != 0 {
		t.Fatalf("Pending after Flush = %d, want 0", acc.Pending())
	}
	acc.AddData([]byte{4})
	acc.Close()

	bufs := rec.buffers()
	if len(bufs) != 2 {
		t.Fatalf("got %d buffers, want 2", len(bufs))
	}
	if !bytes.Equal(bufs[0], []byte{1, 2, 3}) || !bytes.Equal(bufs[1], []byte{4}) {
		t.Errorf("buffers = %v", bufs)
	}
	if cuts, total := acc.Flushed(); cuts != 2 || total != 4 {
		t.Errorf("Flushed = %d, %d, want 2, 4", cuts, total)
	}
}

func TestAccumulator_CopiesInput(t *testing.T) {
	rec := &recordingSink{}
	acc := NewAccumulator(rec.sink)

	in := []byte{9, 9}
	acc.AddData(in)
	in[0] = 0
	acc.Close()

	if got := rec.buffers()[0]; got[0] != 9 {
		t.Errorf("accumulator aliased caller memory: %v", got)
	}
}

func TestAccumulator_SinkErrorDoesNotStopHandoff(t *testing.T) {
	rec := &recordingSink{err: errors.New("queue full")}
	acc := NewAccumulator(rec.sink)

	acc.AddData([]byte{1, 1})
	acc.Flush()
	acc.AddData([]byte{2, 2})
	acc.Close()

	if n := len(rec.buffers()); n != 2 {
		t.Errorf("sink saw %d buffers, want 2", n)
	}
	cuts, total := acc.Flushed()
	if cuts != 2 || total != 4 {
		t.Errorf("Flushed = (%d, %d), want (2, 4)", cuts, total)
	}
}

func TestAccumulator_AddAfterCloseIsDropped(t *testing.T) {
	rec := &recordingSink{}
	acc := NewAccumulator(rec.sink)
	acc.Close()
	acc.AddData([]byte{1, 2})
	acc.Flush()
	acc.Close()

	if n := len(rec.buffers()); n != 0 {
		t.Errorf("sink called after close: %d", n)
	}
}

func TestAccumulator_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "reply")

	var got any
	acc := NewAccumulator(func(ctx context.Context, _ []byte) error {
		got = ctx.Value(key{})
		return nil
	}, WithContext(ctx))
	acc.AddData([]byte{0, 0})
	acc.Close()

	if got != "reply" {
		t.Errorf("sink context value = %v", got)
	}
}
