package logbuf

import (
	"sync"
	"time"
)

// Line is one captured output line with the time it was read.
type Line struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Buffer is a bounded FIFO ring of the most recent output lines.
// It has a single writer (the output pump) and any number of readers;
// all methods are safe for concurrent use. Contents survive child
// restarts and are only lost when the supervisor itself exits — the
// persisted log file is the durable record.
type Buffer struct {
	mu    sync.RWMutex
	lines []Line
	head  int // index of the oldest line
	size  int

	subMu sync.Mutex
	subs  map[chan Line]struct{}
}

// New creates a buffer holding at most capacity lines. Capacity values
// below 1 are raised to 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		lines: make([]Line, capacity),
		subs:  make(map[chan Line]struct{}),
	}
}

// Append adds a line, evicting the oldest when full. O(1).
func (b *Buffer) Append(l Line) {
	b.mu.Lock()
	if b.size < len(b.lines) {
		b.lines[(b.head+b.size)%len(b.lines)] = l
		b.size++
	} else {
		b.lines[b.head] = l
		b.head = (b.head + 1) % len(b.lines)
	}
	b.mu.Unlock()

	b.subMu.Lock()
	for ch := range b.subs {
		select {
		case ch <- l:
		default: // slow subscriber drops lines rather than stalling the pump
		}
	}
	b.subMu.Unlock()
}

// Tail returns the most recent min(k, size) lines in chronological order.
// It never blocks and never mutates the buffer.
func (b *Buffer) Tail(k int) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if k > b.size {
		k = b.size
	}
	if k <= 0 {
		return nil
	}
	out := make([]Line, k)
	start := b.head + b.size - k
	for i := 0; i < k; i++ {
		out[i] = b.lines[(start+i)%len(b.lines)]
	}
	return out
}

// Len reports the number of lines currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Subscribe registers a channel that receives every line appended after
// the call. The channel is buffered; lines are dropped for subscribers
// that fall behind.
func (b *Buffer) Subscribe() chan Line {
	ch := make(chan Line, 64)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

// Unsubscribe removes a channel previously returned by Subscribe and
// closes it.
func (b *Buffer) Unsubscribe(ch chan Line) {
	b.subMu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.subMu.Unlock()
}
