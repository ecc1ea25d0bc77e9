package logbuffer

import "sync"

// DefaultCapacity is the number of lines a project keeps when no other
// capacity is configured.
const DefaultCapacity = 1000

// Buffer is a thread-safe circular buffer of lines.
//
// The buffer maintains a start index pointing at the oldest line and a
// count. Appending to a full buffer overwrites the oldest slot and advances
// start, so Append is O(1) and Len never exceeds Cap.
//
//	Cap 3:     [_, _, _]  start=0, n=0
//	Append a,b,c: [a, b, c]  start=0, n=3
//	Append d:  [d, b, c]  start=1, n=3 → Lines() returns b, c, d
type Buffer struct {
	mu    sync.RWMutex
	lines []Line
	start int
	n     int
}

// New creates a buffer holding at most capacity lines. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{lines: make([]Line, capacity)}
}

// Append adds a line, evicting the oldest when the buffer is full.
// It reports whether a line was evicted.
func (b *Buffer) Append(line Line) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.lines)
	if b.n < size {
		b.lines[(b.start+b.n)%size] = line
		b.n++
		return false
	}

	b.lines[b.start] = line
	b.start = (b.start + 1) % size
	return true
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Line, b.n)
	size := len(b.lines)
	for i := 0; i < b.n; i++ {
		out[i] = b.lines[(b.start+i)%size]
	}
	return out
}

// Tail returns up to the last n lines, oldest first.
func (b *Buffer) Tail(n int) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.n {
		n = b.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]Line, n)
	size := len(b.lines)
	first := b.start + b.n - n
	for i := 0; i < n; i++ {
		out[i] = b.lines[(first+i)%size]
	}
	return out
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.n
}

// Cap returns the maximum number of lines the buffer holds.
func (b *Buffer) Cap() int {
	return len(b.lines)
}

// Clear discards all lines. The underlying storage is retained.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.lines)
	b.start = 0
	b.n = 0
}
